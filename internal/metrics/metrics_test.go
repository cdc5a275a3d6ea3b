package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCountsOperations(t *testing.T) {
	r := NewRecorder("ttlcache", func() int { return 3 })

	r.OnGet(true)
	r.OnGet(false)
	r.OnGet(false)
	r.OnSet()
	r.OnTouch(true)
	r.OnDelete()
	r.OnExpire(4)

	if got := testutil.ToFloat64(r.operations.WithLabelValues("get", "miss")); got != 2 {
		t.Fatalf("expected 2 misses, got %v", got)
	}
	if got := testutil.ToFloat64(r.operations.WithLabelValues("get", "hit")); got != 1 {
		t.Fatalf("expected 1 hit, got %v", got)
	}
	if got := testutil.ToFloat64(r.expired); got != 4 {
		t.Fatalf("expected 4 expired, got %v", got)
	}
	if got := testutil.ToFloat64(r.indexKeys); got != 3 {
		t.Fatalf("expected index gauge 3, got %v", got)
	}
}

func TestRecorderHandler(t *testing.T) {
	r := NewRecorder("ttlcache", nil)
	r.OnSet()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `ttlcache_operations_total{op="set",result="ok"} 1`) {
		t.Fatalf("metrics output missing set counter:\n%s", body)
	}
}
