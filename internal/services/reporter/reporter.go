// Package reporter runs reporting cycles: harvest registry snapshots, turn
// them into InfluxDB writes and hand them to a transport.
package reporter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vshulcz/influxreporter/internal/domain"
	"github.com/vshulcz/influxreporter/internal/lineproto"
	"github.com/vshulcz/influxreporter/internal/measurement"
	"github.com/vshulcz/influxreporter/internal/ports"
	"github.com/vshulcz/influxreporter/internal/services/audit"
)

// Config holds the measurement settings of the line-protocol reporter.
type Config struct {
	BaseTags    map[string]string
	Transformer measurement.Transformer
	Precision   lineproto.Precision
}

type options struct {
	now    func() time.Time
	log    *zap.Logger
	events audit.Publisher
}

// Option customises a reporter.
type Option func(*options)

// WithClock replaces time.Now as the cycle timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithPublisher receives one audit.Event per cycle.
func WithPublisher(p audit.Publisher) Option {
	return func(o *options) { o.events = p }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, log: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	return o
}

// Reporter writes line protocol through a Sender. It is not safe for
// concurrent RunOnce calls; Scheduler never overlaps them.
type Reporter struct {
	src     ports.Source
	sender  ports.Sender
	builder *measurement.Builder
	enc     *lineproto.Encoder
	options
}

// New builds a line-protocol reporter reading from src.
func New(src ports.Source, sender ports.Sender, cfg Config, opts ...Option) *Reporter {
	o := buildOptions(opts)
	return &Reporter{
		src:     src,
		sender:  sender,
		builder: measurement.NewBuilder(cfg.BaseTags, cfg.Transformer),
		enc:     lineproto.NewEncoder(cfg.Precision, lineproto.WithClock(o.now)),
		options: o,
	}
}

// RunOnce runs one cycle. Every measurement shares the timestamp captured
// on entry. The first build, encode or send failure stops the harvest, yet
// Flush is still called exactly once so already buffered lines go out.
func (r *Reporter) RunOnce(ctx context.Context) error {
	start := r.now()
	ts := start.UnixMilli()
	evt := audit.Event{Timestamp: ts, Version: string(domain.VersionLatest), Trigger: audit.TriggerFromContext(ctx)}

	harvestErr := r.harvest(ctx, ts, &evt)
	if harvestErr != nil {
		evt.Failed++
		r.log.Warn("reporting cycle aborted", zap.Error(harvestErr), zap.Int("sent", evt.Measurements))
	}

	flushErr := r.sender.Flush(ctx)
	if flushErr != nil {
		r.log.Warn("unable to report to InfluxDB, batch discarded", zap.Error(flushErr))
	}

	err := multierr.Append(harvestErr, flushErr)
	publish(ctx, r.events, &evt, start, r.now(), err)
	return err
}

func (r *Reporter) harvest(ctx context.Context, ts int64, evt *audit.Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	snaps, err := r.src.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	for _, s := range snaps {
		m, ok := r.builder.Build(s.Name, s.Snapshot, ts)
		if !ok {
			evt.Skipped++
			continue
		}
		line, err := r.enc.Encode(m)
		if err != nil {
			return fmt.Errorf("encode %s: %w", s.Name, err)
		}
		if err := r.sender.Send(ctx, line); err != nil {
			return fmt.Errorf("send %s: %w", s.Name, err)
		}
		evt.Measurements++
	}
	return nil
}

func publish(ctx context.Context, p audit.Publisher, evt *audit.Event, start, end time.Time, err error) {
	if p == nil {
		return
	}
	evt.DurationMs = end.Sub(start).Milliseconds()
	if err != nil {
		evt.Err = err.Error()
	}
	p.Publish(ctx, *evt)
}
