// Package observability exports the reporter's own health as prometheus
// metrics.
package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vshulcz/influxreporter/internal/ports"
	"github.com/vshulcz/influxreporter/internal/services/audit"
)

const namespace = "influxreporter"

const (
	resultOK    = "ok"
	resultError = "error"
)

// Metrics groups the collectors updated by senders and cycle events.
type Metrics struct {
	Cycles        *prometheus.CounterVec
	Measurements  *prometheus.CounterVec
	CycleDuration *prometheus.HistogramVec
	LastSuccess   prometheus.Gauge

	Flushes       *prometheus.CounterVec
	FlushedLines  *prometheus.CounterVec
	FlushedBytes  *prometheus.CounterVec
	FlushDuration *prometheus.HistogramVec
}

var (
	_ ports.FlushObserver = (*Metrics)(nil)
	_ audit.Observer      = (*Metrics)(nil)
)

// NewMetrics registers every collector with reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Reporting cycles by protocol version and result.",
		}, []string{"version", "result"}),
		Measurements: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measurements_total",
			Help:      "Measurements handled per cycle by outcome.",
		}, []string{"version", "outcome"}),
		CycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one reporting cycle.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"version"}),
		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last cycle that finished without error.",
		}),
		Flushes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Transport writes by transport and result.",
		}, []string{"transport", "result"}),
		FlushedLines: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushed_lines_total",
			Help:      "Lines or series handed to a transport.",
		}, []string{"transport"}),
		FlushedBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushed_bytes_total",
			Help:      "Payload bytes handed to a transport.",
		}, []string{"transport"}),
		FlushDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Transport write latency.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		}, []string{"transport"}),
	}
}

func result(failed bool) string {
	if failed {
		return resultError
	}
	return resultOK
}

// ObserveFlush records one transport write.
func (m *Metrics) ObserveFlush(transport string, lines, bytes int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.Flushes.WithLabelValues(transport, result(err != nil)).Inc()
	m.FlushDuration.WithLabelValues(transport).Observe(elapsed.Seconds())
	if err == nil {
		m.FlushedLines.WithLabelValues(transport).Add(float64(lines))
		m.FlushedBytes.WithLabelValues(transport).Add(float64(bytes))
	}
}

// Notify records a finished cycle.
func (m *Metrics) Notify(_ context.Context, evt audit.Event) error {
	if m == nil {
		return nil
	}
	m.Cycles.WithLabelValues(evt.Version, result(!evt.OK())).Inc()
	m.CycleDuration.WithLabelValues(evt.Version).Observe((time.Duration(evt.DurationMs) * time.Millisecond).Seconds())
	m.Measurements.WithLabelValues(evt.Version, "sent").Add(float64(evt.Measurements))
	m.Measurements.WithLabelValues(evt.Version, "skipped").Add(float64(evt.Skipped))
	m.Measurements.WithLabelValues(evt.Version, "failed").Add(float64(evt.Failed))
	if evt.OK() {
		m.LastSuccess.Set(float64(evt.Timestamp) / 1000)
	}
	return nil
}

// Handler serves g in the prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
