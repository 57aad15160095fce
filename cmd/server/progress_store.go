package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"dials/internal/platform/config"
	"dials/internal/platform/postgres"
	"dials/internal/platform/redis"
	"dials/internal/progress/service"
	"dials/internal/progress/store"
)

const defaultStoreSetupTimeout = 10 * time.Second

// openProgressStore builds the store selected by PROGRESS_STORE. The returned
// closer releases its connections.
func openProgressStore(ctx context.Context, cfg config.Server, log *slog.Logger) (service.Store, io.Closer, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultStoreSetupTimeout)
		defer cancel()
	}

	switch cfg.ProgressStore {
	case "", "memory":
		log.Warn("using in-memory progress store; drafts are lost on restart")
		return store.NewInMemoryStore(), nopCloser{}, nil

	case "postgres":
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		pg := store.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info("using postgres progress store")
		return pg, db, nil

	case "redis":
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using redis progress store")
		return store.NewRedis(client.Client, ""), client, nil

	default:
		return nil, nil, fmt.Errorf("unknown PROGRESS_STORE %q (want memory, postgres or redis)", cfg.ProgressStore)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
