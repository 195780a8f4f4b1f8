package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vshulcz/influxreporter/internal/adapters/http/ginserver"
	"github.com/vshulcz/influxreporter/internal/adapters/http/ginserver/middlewares"
	"github.com/vshulcz/influxreporter/internal/config"
	"github.com/vshulcz/influxreporter/internal/domain"
	"github.com/vshulcz/influxreporter/internal/ports"
	"github.com/vshulcz/influxreporter/internal/services/ingest"
)

const shutdownTimeout = 5 * time.Second

// run serves the write endpoints on ln until ctx is done. Points kept in
// memory are saved once more on the way out.
func run(ctx context.Context, cfg config.SinkConfig, ln net.Listener, logger *zap.Logger) error {
	repo, persister, cleanup := buildRepoAndPersister(ctx, cfg, logger)
	defer cleanup()

	var onChanged func(context.Context, []domain.Point)
	if persister != nil && cfg.Interval == 0 {
		onChanged = func(ctx context.Context, points []domain.Point) {
			if err := persister.Save(ctx, points); err != nil {
				logger.Warn("save failed", zap.Error(err))
			}
		}
	}

	svc := ingest.New(repo, onChanged)
	r := ginserver.NewRouter(ginserver.NewHandler(svc),
		middlewares.ZapLogger(logger),
		middlewares.GzipRequest(),
		middlewares.HashSHA256(cfg.Key),
		middlewares.GzipResponse(),
	)
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}

	saveCtx, stopSaving := context.WithCancel(ctx)
	defer stopSaving()
	saving := make(chan struct{})
	if persister != nil && cfg.Interval > 0 {
		go func() {
			defer close(saving)
			saveEvery(saveCtx, cfg.Interval, repo, persister, logger)
		}()
	} else {
		close(saving)
	}

	logger.Info("sink started",
		zap.String("addr", ln.Addr().String()),
		zap.String("file", cfg.File),
		zap.Duration("interval", cfg.Interval),
		zap.Bool("restore", cfg.Restore),
		zap.Bool("postgres", persister == nil))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	var err error
	select {
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		err = srv.Shutdown(sctx)
	}
	stopSaving()
	<-saving

	if persister != nil {
		err = multierr.Append(err, saveAll(context.WithoutCancel(ctx), repo, persister))
	}
	return err
}

func saveEvery(ctx context.Context, interval time.Duration, repo ports.PointsRepo, p ports.Persister, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := saveAll(ctx, repo, p); err != nil {
				logger.Warn("periodic save failed", zap.Error(err))
			}
		}
	}
}

func saveAll(ctx context.Context, repo ports.PointsRepo, p ports.Persister) error {
	points, err := repo.Points(ctx)
	if err != nil {
		return err
	}
	return p.Save(ctx, points)
}
