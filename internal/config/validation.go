package config

import (
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "无法识别的日志级别: "+g.LogLevel)
	}
	if g.LogMaxSize < 0 {
		return newFieldError("Global.LogMaxSize", "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxBackups", "不能为负数")
	}

	cache := c.Cache
	if strings.ContainsRune(cache.Dir, '\x00') {
		return newFieldError("Cache.CacheDir", "不允许包含空字符")
	}
	if cache.DefaultTTL.DurationValue() < 0 {
		return newFieldError("Cache.DefaultTTL", "不能为负数")
	}
	if cache.MaxValueSize <= 0 {
		return newFieldError("Cache.MaxValueSize", "必须大于 0")
	}

	return nil
}
