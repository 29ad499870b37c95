package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fibermig/internal/buildinfo"
	"fibermig/internal/metrics"
)

func metricsHandler() http.Handler {
	metrics.RegisterDefault()
	return promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler checks the store and, when it has one, the broker connection.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Store unavailable", err.Error(), r.URL.Path)
		return
	}
	if p, ok := s.Broker.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Broker unavailable", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	c := s.Config
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  s.now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"PORT":                      c.Port,
			"LOG_LEVEL":                 c.LogLevel,
			"RATE_RPS":                  c.RateRPS,
			"RATE_BURST":                c.RateBurst,
			"PROGRESS_REFRESH_INTERVAL": c.ProgressRefreshInterval.String(),
			"IMPORT_BATCH_SIZE":         c.ImportBatchSize,
			"HAS_DATABASE_URL":          c.DatabaseURL != "",
			"HAS_REDIS_URL":             c.RedisURL != "",
			"HAS_WEBHOOK_URL":           c.WebhookURL != "",
		},
	})
}
