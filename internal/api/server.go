// Package api implements the HTTP surface of the migration backend.
package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"fibermig/internal/config"
	"fibermig/internal/events"
	"fibermig/internal/ingest"
	"fibermig/internal/progress"
	"fibermig/internal/store"
)

type Server struct {
	Store    store.Store
	Broker   events.EventBroker
	Tasks    *progress.Tracker
	Progress *progress.Service
	Importer *ingest.Importer
	Log      *zap.Logger
	Config   config.Config

	now func() time.Time
}

// NewServer wires the services the handlers use around one store and broker.
func NewServer(cfg config.Config, st store.Store, broker events.EventBroker, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if broker == nil {
		broker = events.NewBroker()
	}
	imp := ingest.NewImporter(st, broker, log)
	imp.BatchSize = cfg.ImportBatchSize
	return &Server{
		Store:    st,
		Broker:   broker,
		Tasks:    progress.NewTracker(broker, log),
		Progress: progress.NewService(st, broker, log),
		Importer: imp,
		Log:      log.Named("api"),
		Config:   cfg,
		now:      time.Now,
	}
}

// Close cancels running background tasks and waits for them.
func (s *Server) Close() {
	s.Tasks.Close()
}

// Handler returns the routed mux wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)
	var h http.Handler = mux
	h = rateLimit(s.Config.RateRPS, s.Config.RateBurst)(h)
	h = instrument(s.Log)(h)
	h = recoverer(s.Log)(h)
	return h
}

func (s *Server) routes(mux *http.ServeMux) {
	// Locations
	mux.HandleFunc("GET /v1/locations", s.ListLocationsHandler)
	mux.HandleFunc("POST /v1/locations", s.CreateLocationHandler)
	mux.HandleFunc("PUT /v1/locations/{id}/fiber-status", s.LocationFiberStatusHandler)
	mux.HandleFunc("PUT /v1/locations/{id}/wave", s.LocationWaveHandler)

	// Assets
	mux.HandleFunc("GET /v1/assets", s.ListAssetsHandler)
	mux.HandleFunc("POST /v1/assets", s.CreateAssetHandler)
	mux.HandleFunc("POST /v1/assets/import", s.ImportAssetsHandler)
	mux.HandleFunc("PATCH /v1/assets/{id}", s.UpdateAssetHandler)

	// Waves
	mux.HandleFunc("GET /v1/waves", s.ListWavesHandler)
	mux.HandleFunc("POST /v1/waves", s.CreateWaveHandler)
	mux.HandleFunc("POST /v1/waves/progress", s.RefreshAllProgressHandler)
	mux.HandleFunc("GET /v1/waves/{id}", s.GetWaveHandler)
	mux.HandleFunc("PUT /v1/waves/{id}/status", s.WaveStatusHandler)
	mux.HandleFunc("POST /v1/waves/{id}/progress", s.RefreshWaveProgressHandler)

	// Technicians and work orders
	mux.HandleFunc("GET /v1/technicians", s.ListTechniciansHandler)
	mux.HandleFunc("POST /v1/technicians", s.CreateTechnicianHandler)
	mux.HandleFunc("GET /v1/technicians/load", s.TechnicianLoadHandler)
	mux.HandleFunc("GET /v1/work-orders", s.ListWorkOrdersHandler)
	mux.HandleFunc("POST /v1/work-orders", s.CreateWorkOrderHandler)
	mux.HandleFunc("PUT /v1/work-orders/{id}/technician", s.AssignTechnicianHandler)
	mux.HandleFunc("PUT /v1/work-orders/{id}/status", s.WorkOrderStatusHandler)

	// Customers and consent
	mux.HandleFunc("GET /v1/customers", s.ListCustomersHandler)
	mux.HandleFunc("POST /v1/customers", s.CreateCustomerHandler)
	mux.HandleFunc("PUT /v1/customers/{id}/consent", s.CustomerConsentHandler)
	mux.HandleFunc("GET /v1/consent-logs", s.ListConsentLogsHandler)
	mux.HandleFunc("POST /v1/consent-logs", s.CreateConsentLogHandler)
	mux.HandleFunc("GET /v1/consent/summary", s.ConsentSummaryHandler)

	// Derived views and exports
	mux.HandleFunc("GET /v1/reports/daily", s.DailyReportHandler)
	mux.HandleFunc("GET /v1/reports/work-orders", s.WorkOrderReportHandler)
	mux.HandleFunc("GET /v1/reports/reconciliation", s.ReconciliationReportHandler)
	mux.HandleFunc("GET /v1/reconciliation", s.ReconciliationHandler)
	mux.HandleFunc("GET /v1/dashboard", s.DashboardHandler)
	mux.HandleFunc("GET /v1/feasibility", s.FeasibilityHandler)

	// Tasks and events
	mux.HandleFunc("GET /v1/tasks/{id}", s.TaskHandler)
	mux.HandleFunc("GET /v1/events/stream", s.EventStreamHandler)
	mux.HandleFunc("GET /v1/events/ws", s.EventWSHandler)

	// Ops
	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("GET /readyz", s.ReadyHandler)
	mux.Handle("GET /metrics", metricsHandler())
	mux.HandleFunc("GET /debug/info", s.DebugJSON)
	mux.HandleFunc("GET /openapi.yaml", s.OpenAPIHandler)
	mux.HandleFunc("GET /openapi.json", s.OpenAPIJSONHandler)
	mux.HandleFunc("GET /docs", s.DocsHandler)
}

// startRefresh runs a wave progress refresh as a tracked task.
func (s *Server) startRefresh(waveID string) *progress.Task {
	return s.Tasks.Start("wave.progress", func(ctx context.Context) (any, error) {
		return s.Progress.RefreshWave(ctx, waveID)
	})
}
