package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mugendi/ttl-file-cache/internal/cache"
	"github.com/mugendi/ttl-file-cache/internal/config"
)

// ServiceName 写入每条日志的 service 字段。
const ServiceName = "ttl-file-cache"

// InitLogger 按配置创建 JSON 日志：每条记录都带 service 与 cache_dir 字段，
// 便于多实例共用日志管道时区分来源；日志文件不可写时退回 stdout。
func InitLogger(cfg *config.Config) (*logrus.Logger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("日志配置为空")
	}
	global := cfg.Global
	level, err := logrus.ParseLevel(global.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("无法解析日志级别: %w", err)
	}

	output, outErr := rotatingOutput(global)
	if outErr != nil {
		fmt.Fprintf(os.Stderr, "logger_fallback: %v\n", outErr)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	logger.AddHook(staticFields{
		"service":   ServiceName,
		"cache_dir": cacheDirLabel(cfg.Cache.Dir),
	})

	// 未注入 Logger 的调用方落到标准 logger，保持输出一致
	std := logrus.StandardLogger()
	std.SetFormatter(logger.Formatter)
	std.SetOutput(logger.Out)
	std.SetLevel(logger.GetLevel())

	if outErr != nil {
		logger.WithFields(logrus.Fields{
			"action": "logger_fallback",
			"path":   global.LogFilePath,
		}).Warn(outErr.Error())
	}
	return logger, nil
}

// Component 返回带 component 字段的日志入口，供各子系统区分来源。
func Component(logger logrus.FieldLogger, name string) *logrus.Entry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logger.WithField("component", name)
}

// staticFields 为每条日志补齐固定字段，调用方显式设置的同名字段优先。
type staticFields logrus.Fields

func (h staticFields) Levels() []logrus.Level { return logrus.AllLevels }

func (h staticFields) Fire(entry *logrus.Entry) error {
	for k, v := range h {
		if _, ok := entry.Data[k]; !ok {
			entry.Data[k] = v
		}
	}
	return nil
}

// cacheDirLabel 与 cache.Open 的目录选择一致：为空时落在系统临时目录。
func cacheDirLabel(dir string) string {
	if dir == "" {
		return filepath.Join(os.TempDir(), cache.DefaultDirName)
	}
	return dir
}

// rotatingOutput 为配置的日志文件挂上 lumberjack 轮转；未配置文件时写 stdout，
// 目录无法创建时同样降级到 stdout 并返回错误。
func rotatingOutput(global config.GlobalConfig) (io.Writer, error) {
	if global.LogFilePath == "" {
		return os.Stdout, nil
	}
	if err := os.MkdirAll(filepath.Dir(global.LogFilePath), 0o755); err != nil {
		return os.Stdout, fmt.Errorf("创建日志目录失败: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   global.LogFilePath,
		MaxSize:    global.LogMaxSize,
		MaxBackups: global.LogMaxBackups,
		Compress:   global.LogCompress,
		LocalTime:  true,
	}, nil
}
