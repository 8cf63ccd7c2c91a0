// Package metrics holds the Prometheus instruments for the enquiry server.
// All methods are nil-safe so components can run without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for the record engine and search sync.
type Metrics struct {
	// Engine outcomes by operation ("create", "update") and result
	EngineOutcome *prometheus.CounterVec

	// Engine call latency by operation
	EngineLatency *prometheus.HistogramVec

	// Attachment bytes written by kind ("photo", "audio")
	AttachmentBytes *prometheus.CounterVec

	// Search sync notifications by result ("published", "dropped", "failed")
	SearchSync *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the metrics and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EngineOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "enquiry_engine_outcomes_total",
			Help: "Record engine calls by operation and result",
		}, []string{"operation", "result"}),

		EngineLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "enquiry_engine_duration_seconds",
			Help:    "Duration of record engine calls including attachment writes",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),

		AttachmentBytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "enquiry_attachment_bytes_total",
			Help: "Bytes handed to the attachment store by kind",
		}, []string{"kind"}),

		SearchSync: f.NewCounterVec(prometheus.CounterOpts{
			Name: "enquiry_search_sync_total",
			Help: "Search sync notifications by result",
		}, []string{"result"}),

		gatherer: reg,
	}
}

// ObserveEngine records the outcome and duration of one engine call.
func (m *Metrics) ObserveEngine(operation, result string, d time.Duration) {
	if m != nil {
		m.EngineOutcome.WithLabelValues(operation, result).Inc()
		m.EngineLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// AddAttachmentBytes records n bytes stored for kind.
func (m *Metrics) AddAttachmentBytes(kind string, n int) {
	if m != nil {
		m.AttachmentBytes.WithLabelValues(kind).Add(float64(n))
	}
}

// IncrementSearchSync records one search sync result.
func (m *Metrics) IncrementSearchSync(result string) {
	if m != nil {
		m.SearchSync.WithLabelValues(result).Inc()
	}
}

// Handler exposes the registered metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
