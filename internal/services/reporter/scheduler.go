package reporter

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/influxreporter/internal/services/audit"
)

// Runner runs one reporting cycle. Both Reporter and Legacy implement it.
type Runner interface {
	RunOnce(ctx context.Context) error
}

var (
	_ Runner = (*Reporter)(nil)
	_ Runner = (*Legacy)(nil)
)

// DefaultShutdownTimeout bounds the final cycle run after cancellation.
const DefaultShutdownTimeout = 5 * time.Second

// Scheduler drives a Runner on a fixed interval.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	closer   io.Closer
	log      *zap.Logger

	// ShutdownTimeout bounds the final cycle.
	ShutdownTimeout time.Duration
	// OnCycle is called with the duration of every cycle.
	OnCycle func(time.Duration)
}

// NewScheduler returns a scheduler for r. closer, usually the transport,
// is closed once Run returns; it may be nil.
func NewScheduler(r Runner, interval time.Duration, closer io.Closer, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		runner:          r,
		interval:        interval,
		closer:          closer,
		log:             log,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// Run reports every interval until ctx is done, then runs one last cycle
// so nothing harvested since the previous tick is lost, and closes the
// transport.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown(ctx)
			return s.close()
		case <-ticker.C:
			s.cycle(audit.WithTrigger(ctx, audit.TriggerTick))
		}
	}
}

func (s *Scheduler) shutdown(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.ShutdownTimeout)
	defer cancel()
	s.cycle(audit.WithTrigger(ctx, audit.TriggerShutdown))
}

func (s *Scheduler) cycle(ctx context.Context) {
	start := time.Now()
	err := s.runner.RunOnce(ctx)
	elapsed := time.Since(start)
	if s.OnCycle != nil {
		s.OnCycle(elapsed)
	}
	s.log.Debug("reporting cycle finished",
		zap.Duration("elapsed", elapsed),
		zap.String("trigger", audit.TriggerFromContext(ctx)),
		zap.Bool("ok", err == nil))
}

func (s *Scheduler) close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
