package main

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/vshulcz/influxreporter/internal/adapters/persistence/file"
	memrepo "github.com/vshulcz/influxreporter/internal/adapters/repository/memory"
	pgrepo "github.com/vshulcz/influxreporter/internal/adapters/repository/postgres"
	"github.com/vshulcz/influxreporter/internal/config"
	"github.com/vshulcz/influxreporter/internal/misc"
	"github.com/vshulcz/influxreporter/internal/ports"
)

// buildRepoAndPersister prefers Postgres when a DSN is set and falls back to
// the in-memory repo backed by the points file. The persister is nil for
// Postgres. cleanup releases the database handle.
func buildRepoAndPersister(ctx context.Context, cfg config.SinkConfig, logger *zap.Logger) (repo ports.PointsRepo, p ports.Persister, cleanup func()) {
	if cfg.DSN != "" {
		db, err := sql.Open("postgres", cfg.DSN)
		if err == nil {
			op := func() error {
				if err := db.PingContext(ctx); err != nil {
					return err
				}
				return pgrepo.MigrateContext(ctx, db)
			}
			notify := func(attempt int, next time.Duration, err error) {
				logger.Info("postgres not ready, retrying",
					zap.Int("attempt", attempt), zap.Duration("next", next), zap.Error(err))
			}
			if err = misc.RetryNotify(ctx, misc.DefaultBackoff, pgrepo.IsRetryable, op, notify); err == nil {
				logger.Info("db connected & migrated")
				return pgrepo.New(db), nil, func() { _ = db.Close() }
			}
			_ = db.Close()
		}
		logger.Warn("postgres init failed, falling back to memory", zap.Error(err))
	}

	mem := memrepo.New(cfg.Limit)
	persister := file.New(cfg.File)
	if cfg.Restore {
		if err := persister.Restore(ctx, mem); err != nil {
			logger.Warn("restore failed", zap.Error(err))
		} else {
			logger.Info("restore ok", zap.String("file", cfg.File))
		}
	}
	return mem, persister, func() {}
}
