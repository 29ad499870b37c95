package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fibermig/internal/api"
	"fibermig/internal/app"
	"fibermig/internal/config"
	"fibermig/internal/logging"
	"fibermig/internal/metrics"
	"fibermig/internal/progress"
	"fibermig/internal/webhooks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, "fibermig-api")
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.RegisterDefault()

	st, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()
	broker, closeBroker := app.OpenBroker(ctx, cfg, log)
	defer closeBroker()

	srvDeps := api.NewServer(cfg, st, broker, log)
	defer srvDeps.Close()

	if cfg.ProgressRefreshInterval > 0 {
		sched := progress.NewScheduler(srvDeps.Progress, cfg.ProgressRefreshInterval, log)
		sched.Start()
		defer sched.Close()
	}
	if cfg.WebhookURL != "" {
		worker := webhooks.NewWorker(broker, cfg.WebhookURL, cfg.WebhookSecret, cfg.WebhookMaxAttempts, log)
		worker.Start()
		defer worker.Close()
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srvDeps.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("API listening", zap.String("addr", cfg.Addr()))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
