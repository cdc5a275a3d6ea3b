package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// CacheFields 描述一次缓存操作，供 HTTP 层与 CLI 复用。
func CacheFields(op, key string, hit bool) logrus.Fields {
	return logrus.Fields{
		"action":    "cache_" + op,
		"key":       key,
		"cache_hit": hit,
	}
}
