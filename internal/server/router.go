package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mugendi/ttl-file-cache/internal/cache"
)

// CacheService 是 HTTP 层依赖的缓存能力，*cache.Cache 直接满足该接口，测试可注入替身。
type CacheService interface {
	Get(ctx context.Context, key string, opts cache.GetOptions) (*cache.Entry, error)
	Set(ctx context.Context, key string, value cache.Value, ttl time.Duration) error
	Touch(ctx context.Context, key string, ttl time.Duration) (cache.TouchResult, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, opts cache.ListOptions) ([]*cache.Entry, error)
	Clear(ctx context.Context) (int, error)
}

// AppOptions controls how the Fiber application exposes the cache.
type AppOptions struct {
	Logger *logrus.Logger
	Cache  CacheService
	// MaxValueSize 限制单次写入的请求体大小（字节）。
	MaxValueSize int
	// RefreshOnList 让 /-/entries 在枚举时重新登记过期索引。
	RefreshOnList bool
}

const contextKeyRequestID = "_ttlcache_request_id"

// NewApp builds a Fiber application exposing the cache over HTTP with
// request-id tagging, access logging and panic recovery.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("cache is required")
	}

	cfg := fiber.Config{
		CaseSensitive: true,
	}
	if opts.MaxValueSize > 0 {
		cfg.BodyLimit = opts.MaxValueSize
	}
	app := fiber.New(cfg)

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts.Logger))

	h := &cacheHandler{
		cache:         opts.Cache,
		logger:        opts.Logger,
		refreshOnList: opts.RefreshOnList,
	}
	app.Get("/cache/*", h.get)
	app.Put("/cache/*", h.set)
	app.Delete("/cache/*", h.remove)
	app.Post("/touch/*", h.touch)
	app.Get("/-/entries", h.list)
	app.Delete("/-/entries", h.clear)

	return app, nil
}

// requestContextMiddleware 生成请求 ID，并在请求结束后输出访问日志。
func requestContextMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		start := time.Now()
		err := c.Next()

		path := string(c.Request().URI().Path())
		if isDiagnosticsPath(path) {
			return err
		}
		logger.WithFields(logrus.Fields{
			"action":     "http_request",
			"method":     c.Method(),
			"path":       path,
			"status":     c.Response().StatusCode(),
			"request_id": reqID,
			"latency_ms": time.Since(start).Milliseconds(),
		}).Debug("request served")
		return err
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
