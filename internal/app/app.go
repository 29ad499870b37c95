// Package app builds the shared runtime (store, broker) from config for the
// API server and the CLI.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"fibermig/internal/config"
	"fibermig/internal/events"
	"fibermig/internal/store"
)

// OpenStore returns Postgres when DatabaseURL is set, else an in-memory
// store. The returned func releases the store.
func OpenStore(ctx context.Context, cfg config.Config, log *zap.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Info("using in-memory store")
		return store.NewMemory(), func() {}, nil
	}
	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.DBMigrate {
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return pg, func() { _ = pg.Close() }, nil
}

// OpenBroker returns a Redis broker when RedisURL is set and reachable,
// else an in-process one.
func OpenBroker(ctx context.Context, cfg config.Config, log *zap.Logger) (events.EventBroker, func()) {
	if cfg.RedisURL == "" {
		return events.NewBroker(), func() {}
	}
	rb, err := events.NewRedisBroker(cfg.RedisURL, log)
	if err == nil {
		err = rb.Ping(ctx)
		if err != nil {
			_ = rb.Close()
		}
	}
	if err != nil {
		log.Warn("redis broker unavailable, using in-process broker", zap.Error(err))
		return events.NewBroker(), func() {}
	}
	return rb, func() { _ = rb.Close() }
}
