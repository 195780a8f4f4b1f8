// Package gometrics reads snapshots out of a github.com/rcrowley/go-metrics
// registry.
package gometrics

import (
	"context"
	"slices"
	"strings"

	metrics "github.com/rcrowley/go-metrics"

	"github.com/vshulcz/influxreporter/internal/domain"
	"github.com/vshulcz/influxreporter/internal/ports"
)

var percentiles = []float64{0.5, 0.75, 0.95, 0.99, 0.999}

// Source snapshots every supported metric of a registry.
type Source struct {
	reg metrics.Registry
}

var _ ports.Source = (*Source)(nil)

// New wraps reg; nil means metrics.DefaultRegistry.
func New(reg metrics.Registry) *Source {
	if reg == nil {
		reg = metrics.DefaultRegistry
	}
	return &Source{reg: reg}
}

// Snapshot returns one entry per counter, gauge, meter, histogram and
// timer, sorted by name. Other metric types are ignored.
func (s *Source) Snapshot(ctx context.Context) ([]domain.NamedSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domain.NamedSnapshot
	s.reg.Each(func(name string, i interface{}) {
		if snap, ok := Convert(i); ok {
			out = append(out, domain.NamedSnapshot{Name: name, Snapshot: snap})
		}
	})
	slices.SortFunc(out, func(a, b domain.NamedSnapshot) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

// Convert maps one go-metrics value onto a snapshot.
func Convert(i interface{}) (domain.Snapshot, bool) {
	switch m := i.(type) {
	case metrics.Counter:
		return domain.CounterSnapshot{Count: m.Count()}, true
	case metrics.Gauge:
		return domain.GaugeSnapshot{Value: m.Value()}, true
	case metrics.GaugeFloat64:
		return domain.GaugeSnapshot{Value: m.Value()}, true
	case metrics.Meter:
		ms := m.Snapshot()
		return domain.MeterSnapshot{Count: ms.Count(), Rates: rates(ms)}, true
	case metrics.Histogram:
		h := m.Snapshot()
		return domain.HistogramSnapshot{
			Count:        h.Count(),
			Distribution: distribution(h, int64(h.Sample().Size())),
		}, true
	case metrics.Timer:
		t := m.Snapshot()
		// go-metrics does not expose the timer sample, so its size is the count.
		return domain.TimerSnapshot{
			Count:        t.Count(),
			Distribution: distribution(t, t.Count()),
			Rates:        rates(t),
		}, true
	default:
		return nil, false
	}
}

type rated interface {
	Rate1() float64
	Rate5() float64
	Rate15() float64
	RateMean() float64
}

func rates(r rated) domain.Rates {
	return domain.Rates{
		OneMinute:     r.Rate1(),
		FiveMinute:    r.Rate5(),
		FifteenMinute: r.Rate15(),
		Mean:          r.RateMean(),
	}
}

type sampled interface {
	Min() int64
	Max() int64
	Mean() float64
	StdDev() float64
	Percentiles([]float64) []float64
}

func distribution(s sampled, size int64) domain.Distribution {
	ps := s.Percentiles(percentiles)
	return domain.Distribution{
		Size:   size,
		Min:    float64(s.Min()),
		Max:    float64(s.Max()),
		Mean:   s.Mean(),
		StdDev: s.StdDev(),
		P50:    ps[0],
		P75:    ps[1],
		P95:    ps[2],
		P99:    ps[3],
		P999:   ps[4],
	}
}
