package reporter

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vshulcz/influxreporter/internal/domain"
	"github.com/vshulcz/influxreporter/internal/ports"
	"github.com/vshulcz/influxreporter/internal/services/audit"
)

// Column layouts of the v08 series, time first.
var (
	ColumnsTimer = []string{
		"time", "count",
		"min", "max", "mean", "std-dev",
		"50-percentile", "75-percentile", "95-percentile", "99-percentile", "999-percentile",
		"one-minute", "five-minute", "fifteen-minute", "mean-rate",
		"run-count",
	}
	ColumnsHistogram = []string{
		"time", "count",
		"min", "max", "mean", "std-dev",
		"50-percentile", "75-percentile", "95-percentile", "99-percentile", "999-percentile",
		"run-count",
	}
	ColumnsCount = []string{"time", "count"}
	ColumnsGauge = []string{"time", "value"}
	ColumnsMeter = []string{
		"time", "count",
		"one-minute", "five-minute", "fifteen-minute", "mean-rate",
	}
)

// Series name suffixes.
const (
	SuffixTimer     = ".timer"
	SuffixHistogram = ".histogram"
	SuffixCount     = ".count"
	SuffixGauge     = ".value"
	SuffixMeter     = ".meter"
)

// LegacyConfig holds the v08 settings.
type LegacyConfig struct {
	// Prefix is trimmed and joined to every series name with a dot.
	Prefix string
	// SkipIdle drops timers, histograms and meters whose count did not move
	// since they were last reported.
	SkipIdle bool
}

// Legacy reports v08 column series through a ColumnClient.
type Legacy struct {
	src      ports.Source
	client   ports.ColumnClient
	prefix   string
	skipIdle bool
	previous map[string]int64

	// scratch rows, overwritten per metric and copied by the client
	timerRow     []any
	histogramRow []any
	countRow     []any
	gaugeRow     []any
	meterRow     []any

	options
}

// NewLegacy builds a v08 reporter reading from src.
func NewLegacy(src ports.Source, client ports.ColumnClient, cfg LegacyConfig, opts ...Option) *Legacy {
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix != "" {
		prefix += "."
	}
	return &Legacy{
		src:          src,
		client:       client,
		prefix:       prefix,
		skipIdle:     cfg.SkipIdle,
		previous:     make(map[string]int64),
		timerRow:     make([]any, len(ColumnsTimer)),
		histogramRow: make([]any, len(ColumnsHistogram)),
		countRow:     make([]any, len(ColumnsCount)),
		gaugeRow:     make([]any, len(ColumnsGauge)),
		meterRow:     make([]any, len(ColumnsMeter)),
		options:      buildOptions(opts),
	}
}

// RunOnce runs one v08 cycle. A failing metric is logged and the cycle
// moves on; the aggregated request is sent only if a series was appended.
func (l *Legacy) RunOnce(ctx context.Context) error {
	start := l.now()
	ts := start.UnixMilli()
	evt := audit.Event{Timestamp: ts, Version: string(domain.VersionV08), Trigger: audit.TriggerFromContext(ctx)}

	l.client.Reset()
	snaps, err := l.src.Snapshot(ctx)
	if err != nil {
		err = fmt.Errorf("snapshot: %w", err)
		l.log.Warn("reporting cycle aborted", zap.Error(err))
		publish(ctx, l.events, &evt, start, l.now(), err)
		return err
	}

	for _, s := range snaps {
		skipped, err := l.report(ts, s)
		switch {
		case err != nil:
			evt.Failed++
			l.log.Warn("unable to report metric", zap.String("metric", s.Name), zap.Error(err))
		case skipped:
			evt.Skipped++
		default:
			evt.Measurements++
		}
	}

	if l.client.HasSeriesData() {
		if err = l.client.Send(ctx); err != nil {
			l.log.Warn("unable to report to InfluxDB, discarding data", zap.Error(err))
		}
	}
	publish(ctx, l.events, &evt, start, l.now(), err)
	return err
}

func (l *Legacy) report(ts int64, s domain.NamedSnapshot) (skipped bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	if count, ok := domain.CumulativeCount(s.Snapshot); ok && l.canSkip(s.Name, count) {
		return true, nil
	}

	t := l.client.ConvertTimestamp(ts)
	switch v := s.Snapshot.(type) {
	case domain.TimerSnapshot:
		p := l.timerRow
		p[0], p[1] = t, v.Size
		fillDistribution(p[2:11], v.Distribution)
		fillRates(p[11:15], v.Rates)
		p[15] = v.Count
		return false, l.client.AppendSeries(l.prefix, s.Name, SuffixTimer, ColumnsTimer, p)
	case domain.HistogramSnapshot:
		p := l.histogramRow
		p[0], p[1] = t, v.Size
		fillDistribution(p[2:11], v.Distribution)
		p[11] = v.Count
		return false, l.client.AppendSeries(l.prefix, s.Name, SuffixHistogram, ColumnsHistogram, p)
	case domain.CounterSnapshot:
		p := l.countRow
		p[0], p[1] = t, v.Count
		return false, l.client.AppendSeries(l.prefix, s.Name, SuffixCount, ColumnsCount, p)
	case domain.GaugeSnapshot:
		p := l.gaugeRow
		p[0], p[1] = t, v.Value
		return false, l.client.AppendSeries(l.prefix, s.Name, SuffixGauge, ColumnsGauge, p)
	case domain.MeterSnapshot:
		p := l.meterRow
		p[0], p[1] = t, v.Count
		fillRates(p[2:6], v.Rates)
		return false, l.client.AppendSeries(l.prefix, s.Name, SuffixMeter, ColumnsMeter, p)
	default:
		return false, fmt.Errorf("unsupported snapshot %T", s.Snapshot)
	}
}

func fillDistribution(p []any, d domain.Distribution) {
	p[0], p[1], p[2], p[3] = d.Min, d.Max, d.Mean, d.StdDev
	p[4], p[5], p[6], p[7], p[8] = d.P50, d.P75, d.P95, d.P99, d.P999
}

func fillRates(p []any, r domain.Rates) {
	p[0], p[1], p[2], p[3] = r.OneMinute, r.FiveMinute, r.FifteenMinute, r.Mean
}

// canSkip reports whether an idle metric should be left out. The stored
// count only moves when skipping is enabled and the metric was not idle.
func (l *Legacy) canSkip(name string, count int64) bool {
	idle := l.delta(name, count) == 0
	if l.skipIdle && !idle {
		l.previous[name] = count
	}
	return l.skipIdle && idle
}

// delta is -1 for a metric never reported before so it is never idle on
// first sight. A count going backwards counts as idle.
func (l *Legacy) delta(name string, count int64) int64 {
	prev, ok := l.previous[name]
	if !ok {
		return -1
	}
	if count < prev {
		l.log.Warn("saw a non-monotonically increasing value", zap.String("metric", name),
			zap.Int64("previous", prev), zap.Int64("current", count))
		return 0
	}
	return count - prev
}
