// Package promgather reads snapshots out of a prometheus Gatherer so that
// collectors registered with client_golang can be reported to InfluxDB.
//
// Label pairs are folded in front of the family name as dotted key.value
// tokens, which the key-value transformer turns back into tags:
//
//	http_requests_total{code="200",method="get"} -> code.200.method.get.http_requests_total
package promgather

import (
	"context"
	"math"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/vshulcz/influxreporter/internal/domain"
	"github.com/vshulcz/influxreporter/internal/ports"
)

var quantiles = []float64{0.5, 0.75, 0.95, 0.99, 0.999}

// Source reads snapshots from a prometheus Gatherer.
type Source struct {
	g prometheus.Gatherer
}

var _ ports.Source = (*Source)(nil)

// New wraps g; nil means prometheus.DefaultGatherer.
func New(g prometheus.Gatherer) *Source {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return &Source{g: g}
}

// Snapshot gathers all families. A partial gather error is returned
// together with nothing so a cycle never reports half a registry.
func (s *Source) Snapshot(ctx context.Context) ([]domain.NamedSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	families, err := s.g.Gather()
	if err != nil {
		return nil, err
	}
	var out []domain.NamedSnapshot
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			snap, ok := Convert(mf.GetType(), m)
			if !ok {
				continue
			}
			out = append(out, domain.NamedSnapshot{Name: Name(mf.GetName(), m.GetLabel()), Snapshot: snap})
		}
	}
	slices.SortFunc(out, func(a, b domain.NamedSnapshot) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

// Name folds labels into a dotted registry name. Dots inside label names
// or values become underscores.
func Name(family string, labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return family
	}
	var b strings.Builder
	for _, lp := range labels {
		b.WriteString(undot(lp.GetName()))
		b.WriteByte('.')
		b.WriteString(undot(lp.GetValue()))
		b.WriteByte('.')
	}
	b.WriteString(family)
	return b.String()
}

func undot(s string) string { return strings.ReplaceAll(s, ".", "_") }

// Convert maps one metric of the given family type onto a snapshot.
// Gauge histograms and native histograms without buckets are skipped.
func Convert(t dto.MetricType, m *dto.Metric) (domain.Snapshot, bool) {
	switch t {
	case dto.MetricType_COUNTER:
		return domain.CounterSnapshot{Count: int64(m.GetCounter().GetValue())}, true
	case dto.MetricType_GAUGE:
		return domain.GaugeSnapshot{Value: m.GetGauge().GetValue()}, true
	case dto.MetricType_UNTYPED:
		return domain.GaugeSnapshot{Value: m.GetUntyped().GetValue()}, true
	case dto.MetricType_SUMMARY:
		return summary(m.GetSummary()), true
	case dto.MetricType_HISTOGRAM:
		h := m.GetHistogram()
		if len(h.GetBucket()) == 0 {
			return nil, false
		}
		return histogram(h), true
	default:
		return nil, false
	}
}

func mean(sum float64, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func summary(s *dto.Summary) domain.HistogramSnapshot {
	count := s.GetSampleCount()
	d := domain.Distribution{Size: int64(count), Mean: mean(s.GetSampleSum(), count)}
	qs := s.GetQuantile()
	if len(qs) > 0 {
		d.Min = finite(qs[0].GetValue())
		d.Max = finite(qs[len(qs)-1].GetValue())
	}
	at := func(q float64) float64 {
		for _, sq := range qs {
			if sq.GetQuantile() >= q {
				return finite(sq.GetValue())
			}
		}
		return d.Max
	}
	d.P50, d.P75, d.P95, d.P99, d.P999 = at(quantiles[0]), at(quantiles[1]), at(quantiles[2]), at(quantiles[3]), at(quantiles[4])
	return domain.HistogramSnapshot{Count: int64(count), Distribution: d}
}

func histogram(h *dto.Histogram) domain.HistogramSnapshot {
	count := h.GetSampleCount()
	buckets := h.GetBucket()
	d := domain.Distribution{Size: int64(count), Mean: mean(h.GetSampleSum(), count)}

	var prev uint64
	lower := 0.0
	minSet := false
	for _, b := range buckets {
		ub := b.GetUpperBound()
		if math.IsInf(ub, 1) {
			break
		}
		if b.GetCumulativeCount() > prev {
			if !minSet {
				d.Min, minSet = lower, true
			}
			d.Max = ub
		}
		prev, lower = b.GetCumulativeCount(), ub
	}
	d.P50 = bucketQuantile(quantiles[0], count, buckets)
	d.P75 = bucketQuantile(quantiles[1], count, buckets)
	d.P95 = bucketQuantile(quantiles[2], count, buckets)
	d.P99 = bucketQuantile(quantiles[3], count, buckets)
	d.P999 = bucketQuantile(quantiles[4], count, buckets)
	return domain.HistogramSnapshot{Count: int64(count), Distribution: d}
}

// bucketQuantile interpolates linearly inside the bucket holding rank q*count.
// Ranks that land in the +Inf bucket report the highest finite bound.
func bucketQuantile(q float64, count uint64, buckets []*dto.Bucket) float64 {
	if count == 0 {
		return 0
	}
	rank := q * float64(count)
	lower, below := 0.0, 0.0
	for _, b := range buckets {
		ub := b.GetUpperBound()
		cum := float64(b.GetCumulativeCount())
		if math.IsInf(ub, 1) {
			return lower
		}
		if cum >= rank {
			inBucket := cum - below
			if inBucket == 0 {
				return ub
			}
			return lower + (ub-lower)*(rank-below)/inBucket
		}
		lower, below = ub, cum
	}
	return lower
}
