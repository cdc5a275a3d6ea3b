package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfgPath := testConfigPath(t, "valid.toml")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Cache.DefaultTTL.DurationValue() != 30*time.Minute {
		t.Fatalf("DefaultTTL 应解析为 30m，得到 %v", cfg.Cache.DefaultTTL.DurationValue())
	}
	if !filepath.IsAbs(cfg.Cache.Dir) {
		t.Fatalf("CacheDir 应转换为绝对路径，得到 %s", cfg.Cache.Dir)
	}
	if cfg.Cache.MaxValueSize != defaultMaxValueSize {
		t.Fatalf("MaxValueSize 应自动填充默认值")
	}
	if cfg.Global.LogMaxSize != 100 || cfg.Global.LogMaxBackups != 10 || !cfg.Global.LogCompress {
		t.Fatalf("日志轮转参数应使用默认值: %+v", cfg.Global)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cfgPath := testConfigPath(t, "invalid.toml")

	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("不合法的配置应返回错误")
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Global.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ListenPort 超出范围应当报错")
	}
}

func TestValidateFields(t *testing.T) {
	testCases := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"bad log level", func(c *Config) { c.Global.LogLevel = "loud" }, "Global.LogLevel"},
		{"negative ttl", func(c *Config) { c.Cache.DefaultTTL = Duration(-time.Second) }, "Cache.DefaultTTL"},
		{"zero value size", func(c *Config) { c.Cache.MaxValueSize = 0 }, "Cache.MaxValueSize"},
		{"negative backups", func(c *Config) { c.Global.LogMaxBackups = -1 }, "Global.LogMaxBackups"},
		{"ok", func(*Config) {}, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			fieldErr, ok := err.(FieldError)
			if !ok {
				t.Fatalf("expected FieldError, got %v", err)
			}
			if fieldErr.Field != tc.wantField {
				t.Fatalf("expected field %s, got %s", tc.wantField, fieldErr.Field)
			}
		})
	}
}

func TestDefaultTTLLabel(t *testing.T) {
	if label := (CacheConfig{}).DefaultTTLLabel(); label != "forever" {
		t.Fatalf("未设置 TTL 应显示 forever，得到 %s", label)
	}
	if label := (CacheConfig{DefaultTTL: Duration(90 * time.Second)}).DefaultTTLLabel(); label != "1m30s" {
		t.Fatalf("unexpected label %s", label)
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenPort: 5000,
			LogLevel:   "info",
		},
		Cache: CacheConfig{
			Dir:          "./data",
			DefaultTTL:   Duration(time.Hour),
			MaxValueSize: 1024,
		},
	}
}
