// Package metrics exposes cache activity as Prometheus collectors. Recorder
// implements cache.Observer so the engine stays free of metrics imports.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder wraps the Prometheus collectors for one cache instance.
type Recorder struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	expired    prometheus.Counter
	indexKeys  prometheus.GaugeFunc
}

// NewRecorder registers cache collectors on a private registry. indexSize is
// sampled at scrape time and may be nil.
func NewRecorder(namespace string, indexSize func() int) *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Cache operations by type and result",
			},
			[]string{"op", "result"},
		),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_entries_total",
			Help:      "Entries removed because their TTL elapsed",
		}),
	}
	registry.MustRegister(r.operations, r.expired)

	if indexSize != nil {
		r.indexKeys = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "expiry_index_keys",
			Help:      "Keys currently tracked by the in-memory expiry index",
		}, func() float64 { return float64(indexSize()) })
		registry.MustRegister(r.indexKeys)
	}
	return r
}

func (r *Recorder) OnGet(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.operations.WithLabelValues("get", result).Inc()
}

func (r *Recorder) OnSet() {
	r.operations.WithLabelValues("set", "ok").Inc()
}

func (r *Recorder) OnTouch(extended bool) {
	result := "unchanged"
	if extended {
		result = "extended"
	}
	r.operations.WithLabelValues("touch", result).Inc()
}

func (r *Recorder) OnDelete() {
	r.operations.WithLabelValues("delete", "ok").Inc()
}

func (r *Recorder) OnExpire(n int) {
	r.expired.Add(float64(n))
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
