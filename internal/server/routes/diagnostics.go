package routes

import (
	"net/http"
	"sort"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
)

// IndexReporter 暴露过期索引与缓存目录，供诊断接口读取。
type IndexReporter interface {
	Dir() string
	IndexSnapshot() map[string]int
}

// DiagnosticsOptions 描述 /-/ 诊断接口的数据来源；Metrics 为空时不挂载 /-/metrics。
type DiagnosticsOptions struct {
	Cache   IndexReporter
	Metrics http.Handler
	Version string
}

// RegisterDiagnosticsRoutes 暴露 /-/index、/-/metrics 与 /-/healthz，供 SRE 查看过期索引与运行状态。
func RegisterDiagnosticsRoutes(app *fiber.App, opts DiagnosticsOptions) {
	if app == nil || opts.Cache == nil {
		return
	}

	app.Get("/-/healthz", func(c fiber.Ctx) error {
		payload := fiber.Map{
			"status": "ok",
			"dir":    opts.Cache.Dir(),
		}
		if opts.Version != "" {
			payload["version"] = opts.Version
		}
		return c.JSON(payload)
	})

	app.Get("/-/index", func(c fiber.Ctx) error {
		return c.JSON(encodeIndex(opts.Cache.IndexSnapshot()))
	})

	if opts.Metrics != nil {
		app.Get("/-/metrics", adaptor.HTTPHandler(opts.Metrics))
	}
}

type bucketPayload struct {
	Bucket string `json:"bucket"`
	Keys   int    `json:"keys"`
}

type indexPayload struct {
	Buckets []bucketPayload `json:"buckets"`
	Total   int             `json:"total"`
}

// encodeIndex 按时间桶升序输出；桶名是 ISO 时间串，字典序即时间序。
func encodeIndex(snapshot map[string]int) indexPayload {
	payload := indexPayload{Buckets: make([]bucketPayload, 0, len(snapshot))}
	for bucket, keys := range snapshot {
		payload.Buckets = append(payload.Buckets, bucketPayload{Bucket: bucket, Keys: keys})
		payload.Total += keys
	}
	sort.Slice(payload.Buckets, func(i, j int) bool {
		return payload.Buckets[i].Bucket < payload.Buckets[j].Bucket
	})
	return payload
}
