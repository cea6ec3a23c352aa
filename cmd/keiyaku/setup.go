package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hakenworks/keiyaku/pkg/config"
	"github.com/hakenworks/keiyaku/pkg/observability"
	"github.com/hakenworks/keiyaku/pkg/store"
)

// env holds the wired runtime a subcommand runs against.
type env struct {
	cfg     *config.Config
	store   store.Store
	metrics *observability.Metrics

	closers []func() error
}

// setup loads configuration, opens the configured store backend and
// initializes telemetry. Close must be called when the command is done.
func setup(ctx context.Context, stderr io.Writer) (*env, error) {
	cfg := config.Load()
	e := &env{cfg: cfg}

	switch cfg.StoreDriver {
	case "sqlite":
		s, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		e.store = s
		e.closers = append(e.closers, s.Close)
	case "postgres":
		s, err := store.OpenPostgres(cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		e.store = s
		e.closers = append(e.closers, s.Close)
	case "memory":
		e.store = store.NewMemory()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	provider, err := observability.Init(ctx, observability.Config{
		ServiceName:    "keiyaku",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTLPEndpoint != "",
	})
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.metrics = provider.Metrics
	e.closers = append(e.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return provider.Shutdown(ctx)
	})

	return e, nil
}

// runLock returns the Redis-backed sync lock, or nil when no Redis
// address is configured.
func (e *env) runLock() *store.RunLock {
	if e.cfg.RedisAddr == "" {
		return nil
	}
	return store.NewRunLock(e.cfg.RedisAddr, e.cfg.RedisPassword, e.cfg.RedisDB, e.cfg.RunLockTTL)
}

func (e *env) Close() error {
	var first error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
