package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	metrics "github.com/rcrowley/go-metrics"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	auditfile "github.com/vshulcz/influxreporter/internal/adapters/audit/file"
	remoteaudit "github.com/vshulcz/influxreporter/internal/adapters/audit/remote"
	"github.com/vshulcz/influxreporter/internal/adapters/collector/runtime"
	"github.com/vshulcz/influxreporter/internal/adapters/columnclient"
	"github.com/vshulcz/influxreporter/internal/adapters/http/ginserver/middlewares"
	"github.com/vshulcz/influxreporter/internal/adapters/influxhttp"
	"github.com/vshulcz/influxreporter/internal/adapters/registry"
	"github.com/vshulcz/influxreporter/internal/adapters/registry/gometrics"
	"github.com/vshulcz/influxreporter/internal/adapters/registry/promgather"
	"github.com/vshulcz/influxreporter/internal/adapters/sender/httpline"
	"github.com/vshulcz/influxreporter/internal/adapters/sender/udpline"
	"github.com/vshulcz/influxreporter/internal/config"
	"github.com/vshulcz/influxreporter/internal/domain"
	"github.com/vshulcz/influxreporter/internal/observability"
	"github.com/vshulcz/influxreporter/internal/ports"
	"github.com/vshulcz/influxreporter/internal/services/audit"
	"github.com/vshulcz/influxreporter/internal/services/reporter"
)

const metricsShutdownTimeout = 5 * time.Second

// run reports until ctx is done. The final cycle and the transport close
// happen before it returns.
func run(ctx context.Context, cfg config.ReporterConfig, logger *zap.Logger) (retErr error) {
	promReg := prometheus.NewRegistry()
	self := observability.NewMetrics(promReg)

	collector := runtime.New(metrics.NewRegistry())
	if cfg.Runtime {
		if err := collector.Start(ctx, cfg.PollInterval); err != nil {
			return fmt.Errorf("start runtime collector: %w", err)
		}
		defer collector.Stop()
	}
	sources := []ports.Source{gometrics.New(collector.Registry())}
	if cfg.SelfMetrics {
		sources = append(sources, promgather.New(promReg))
	}

	subject, closeAudit, err := newAuditSubject(cfg, self, logger)
	if err != nil {
		return err
	}
	defer func() { retErr = multierr.Append(retErr, closeAudit()) }()

	runner, transport, err := buildRunner(cfg, registry.Chain(sources...), self,
		reporter.WithLogger(logger), reporter.WithPublisher(subject))
	if err != nil {
		return err
	}

	if cfg.MetricsAddress != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddress,
			Handler:           metricsRouter(promReg, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
			defer cancel()
			retErr = multierr.Append(retErr, srv.Shutdown(sctx))
		}()
	}

	sched := reporter.NewScheduler(runner, cfg.ReportInterval, transport, logger)
	sched.OnCycle = collector.RecordCycle

	logger.Info("reporter started",
		zap.String("version", string(cfg.Version)),
		zap.Stringer("transport", cfg.Transport.Kind),
		zap.Duration("report", cfg.ReportInterval),
		zap.Duration("poll", cfg.PollInterval),
		zap.Bool("runtime", cfg.Runtime),
		zap.Bool("self_metrics", cfg.SelfMetrics))
	return sched.Run(ctx)
}

// newAuditSubject fans cycle events out to the self metrics and the
// optional file and webhook observers. closeFn releases the audit file.
func newAuditSubject(cfg config.ReporterConfig, self *observability.Metrics, logger *zap.Logger) (subject *audit.Subject, closeFn func() error, err error) {
	subject = audit.NewSubject(self)
	subject.SetErrorHandler(func(err error) {
		logger.Warn("audit observer failed", zap.Error(err))
	})
	if cfg.AuditURL != "" {
		rc, err := remoteaudit.New(cfg.AuditURL, cfg.Transport.HTTP.Key, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("audit url: %w", err)
		}
		subject.Attach(rc)
	}
	closeFn = func() error { return nil }
	if cfg.AuditFile != "" {
		w := auditfile.New(cfg.AuditFile)
		subject.Attach(w)
		closeFn = w.Close
	}
	return subject, closeFn, nil
}

// buildRunner picks the cycle implementation for the configured protocol
// version and the transport it writes through.
func buildRunner(cfg config.ReporterConfig, src ports.Source, obs ports.FlushObserver, opts ...reporter.Option) (reporter.Runner, io.Closer, error) {
	if cfg.Version == domain.VersionV08 {
		client, err := newColumnClient(cfg, obs)
		if err != nil {
			return nil, nil, err
		}
		return reporter.NewLegacy(src, client, reporter.LegacyConfig{
			Prefix:   cfg.Prefix,
			SkipIdle: cfg.SkipIdle,
		}, opts...), client, nil
	}

	sender, err := newSender(cfg, obs)
	if err != nil {
		return nil, nil, err
	}
	return reporter.New(src, sender, reporter.Config{
		BaseTags:    cfg.BaseTags,
		Transformer: cfg.Transformer,
		Precision:   cfg.Precision,
	}, opts...), sender, nil
}

func newSender(cfg config.ReporterConfig, obs ports.FlushObserver) (ports.Sender, error) {
	switch cfg.Transport.Kind {
	case config.TransportHTTP:
		h := cfg.Transport.HTTP
		return httpline.New(httpline.Config{
			URL:       h.URL,
			Database:  h.Database,
			Precision: cfg.Precision,
			BatchSize: h.BatchSize,
			Options:   httpOptions(h),
		}, httpline.WithObserver(obs))
	case config.TransportUDP:
		return udpline.New(cfg.Transport.UDP.Address, udpline.WithObserver(obs))
	default:
		return nil, fmt.Errorf("unsupported transport %s", cfg.Transport.Kind)
	}
}

func newColumnClient(cfg config.ReporterConfig, obs ports.FlushObserver) (*columnclient.Client, error) {
	switch cfg.Transport.Kind {
	case config.TransportHTTP:
		h := cfg.Transport.HTTP
		return columnclient.NewHTTP(columnclient.HTTPConfig{
			URL:       h.URL,
			Database:  h.Database,
			Precision: cfg.Precision,
			Options:   httpOptions(h),
		}, columnclient.WithObserver(obs))
	case config.TransportUDP:
		return columnclient.NewUDP(cfg.Transport.UDP.Address, cfg.Precision, columnclient.WithObserver(obs))
	default:
		return nil, fmt.Errorf("unsupported transport %s", cfg.Transport.Kind)
	}
}

func httpOptions(h config.HTTPTransport) influxhttp.Options {
	return influxhttp.Options{
		User:     h.User,
		Password: h.Password,
		Key:      h.Key,
		Timeout:  h.Timeout,
		Gzip:     h.Gzip,
	}
}

func metricsRouter(g prometheus.Gatherer, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middlewares.ZapLogger(logger))
	r.GET("/metrics", gin.WrapH(observability.Handler(g)))
	return r
}
