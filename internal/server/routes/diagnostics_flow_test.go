package routes_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/mugendi/ttl-file-cache/internal/cache"
	"github.com/mugendi/ttl-file-cache/internal/metrics"
	"github.com/mugendi/ttl-file-cache/internal/server"
	"github.com/mugendi/ttl-file-cache/internal/server/routes"
)

// 完整链路：HTTP 写入 → 时钟推进 → 读取触发清扫 → 索引与指标同步变化。
func TestDiagnosticsReflectExpiry(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	now := time.Date(2024, 3, 1, 8, 15, 0, 0, time.UTC)
	var store *cache.Cache
	recorder := metrics.NewRecorder("ttlcache", func() int {
		if store == nil {
			return 0
		}
		return store.IndexSize()
	})

	var err error
	store, err = cache.Open(context.Background(), cache.Options{
		Dir:      t.TempDir(),
		Logger:   logger,
		Observer: recorder,
		Now:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}

	app, err := server.NewApp(server.AppOptions{Logger: logger, Cache: store})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	routes.RegisterDiagnosticsRoutes(app, routes.DiagnosticsOptions{
		Cache:   store,
		Metrics: recorder.Handler(),
	})

	put := httptest.NewRequest(http.MethodPut, "/cache/report?ttl=30m", strings.NewReader("weekly"))
	put.Header.Set(fiber.HeaderContentType, "text/plain")
	if resp := mustDo(t, app, put); resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204 on put, got %d", resp.StatusCode)
	}

	if total := indexTotal(t, app); total != 1 {
		t.Fatalf("expected one indexed key, got %d", total)
	}

	now = now.Add(2 * time.Hour)
	resp := mustDo(t, app, httptest.NewRequest(http.MethodGet, "/cache/report", nil))
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected expired entry to miss, got %d", resp.StatusCode)
	}
	if total := indexTotal(t, app); total != 0 {
		t.Fatalf("expected index to drain after sweep, got %d", total)
	}

	resp = mustDo(t, app, httptest.NewRequest(http.MethodGet, "/-/metrics", nil))
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		`ttlcache_operations_total{op="set",result="ok"} 1`,
		`ttlcache_operations_total{op="get",result="miss"} 1`,
		`ttlcache_expired_entries_total 1`,
		`ttlcache_expiry_index_keys 0`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q:\n%s", want, string(body))
		}
	}
}

func indexTotal(t *testing.T, app *fiber.App) int {
	t.Helper()
	resp := mustDo(t, app, httptest.NewRequest(http.MethodGet, "/-/index", nil))
	var payload struct {
		Total int `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode index: %v", err)
	}
	return payload.Total
}

func mustDo(t *testing.T, app *fiber.App, req *http.Request) *http.Response {
	t.Helper()
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	return resp
}
