package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/mugendi/ttl-file-cache/internal/cache"
	"github.com/mugendi/ttl-file-cache/internal/config"
	"github.com/mugendi/ttl-file-cache/internal/logging"
	"github.com/mugendi/ttl-file-cache/internal/metrics"
	"github.com/mugendi/ttl-file-cache/internal/server"
	"github.com/mugendi/ttl-file-cache/internal/server/routes"
	"github.com/mugendi/ttl-file-cache/internal/version"
)

const (
	configEnvVar     = "TTL_FILE_CACHE_CONFIG"
	metricsNamespace = "ttlcache"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["cache_dir"] = cfg.Cache.Dir
		fields["default_ttl"] = cfg.Cache.DefaultTTLLabel()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序为“配置 → 指标 → 磁盘缓存（同步重建过期索引）→ Fiber server”，
	// 保证服务开始接收请求时索引已经就绪。
	var store *cache.Cache
	recorder := metrics.NewRecorder(metricsNamespace, func() int {
		if store == nil {
			return 0
		}
		return store.IndexSize()
	})

	store, err = openCache(cfg, logger, recorder)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["cache_dir"] = store.Dir()
	fields["default_ttl"] = cfg.Cache.DefaultTTLLabel()
	fields["indexed_keys"] = store.IndexSize()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, store, recorder, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("ttl-file-cache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 TTL_FILE_CACHE_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv(configEnvVar)
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func openCache(cfg *config.Config, logger *logrus.Logger, observer cache.Observer) (*cache.Cache, error) {
	return cache.Open(context.Background(), cache.Options{
		Dir:        cfg.Cache.Dir,
		DefaultTTL: cfg.Cache.DefaultTTL.DurationValue(),
		Logger:     logging.Component(logger, "cache"),
		Observer:   observer,
	})
}

func startHTTPServer(cfg *config.Config, store *cache.Cache, recorder *metrics.Recorder, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:        logger,
		Cache:         store,
		MaxValueSize:  cfg.Cache.MaxValueSize,
		RefreshOnList: cfg.Cache.RefreshOnList,
	})
	if err != nil {
		return err
	}
	routes.RegisterDiagnosticsRoutes(app, routes.DiagnosticsOptions{
		Cache:   store,
		Metrics: recorder.Handler(),
		Version: version.Full(),
	})

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
