package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// ProgressRefreshes counts wave progress refreshes by where the value came from
	// (store, local, previous).
	ProgressRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wave_progress_refresh_total", Help: "Wave progress refreshes by result source."},
		[]string{"source"},
	)
	// RowsRejected counts backend rows skipped at the deserialization boundary
	RowsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "store_rows_rejected_total", Help: "Backend rows rejected by validation, by entity."},
		[]string{"entity"},
	)
	// ImportRows counts CSV import rows by outcome (created, failed)
	ImportRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "import_rows_total", Help: "CSV import rows by outcome."},
		[]string{"outcome"},
	)
	// WebhookDeliveries counts forwarded events by outcome (delivered, failed)
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by outcome."},
		[]string{"outcome"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(ProgressRefreshes)
		Registry.MustRegister(RowsRejected)
		Registry.MustRegister(ImportRows)
		Registry.MustRegister(WebhookDeliveries)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
