// Package domain holds the immutable metric snapshots harvested from a
// registry and the points stored by the sink.
package domain

// Kind names a snapshot variant.
type Kind string

const (
	KindCounter   Kind = "counter"
	KindGauge     Kind = "gauge"
	KindMeter     Kind = "meter"
	KindHistogram Kind = "histogram"
	KindTimer     Kind = "timer"
)

// Snapshot is a closed union of metric snapshots. Only the types declared in
// this package implement it.
type Snapshot interface {
	Kind() Kind
	snapshot()
}

// CounterSnapshot is a point-in-time read of a counter.
type CounterSnapshot struct {
	Count int64
}

// GaugeSnapshot carries an arbitrary boxed gauge value. Nil means "no value".
type GaugeSnapshot struct {
	Value any
}

// Rates are exponentially weighted moving averages, per second.
type Rates struct {
	OneMinute     float64
	FiveMinute    float64
	FifteenMinute float64
	Mean          float64
}

// MeterSnapshot is a point-in-time read of a meter.
type MeterSnapshot struct {
	Count int64
	Rates
}

// Distribution holds the statistics of a sampled distribution.
type Distribution struct {
	// Size is the number of values in the sample.
	Size int64
	Min  float64
	Max  float64
	Mean float64
	// StdDev is the standard deviation of the sample.
	StdDev float64
	P50    float64
	P75    float64
	P95    float64
	P99    float64
	P999   float64
}

// HistogramSnapshot is a point-in-time read of a histogram. Count is the
// cumulative number of updates and differs from the sample size.
type HistogramSnapshot struct {
	Count int64
	Distribution
}

// TimerSnapshot combines a histogram of durations with meter rates.
type TimerSnapshot struct {
	Count int64
	Distribution
	Rates
}

func (CounterSnapshot) Kind() Kind   { return KindCounter }
func (GaugeSnapshot) Kind() Kind     { return KindGauge }
func (MeterSnapshot) Kind() Kind     { return KindMeter }
func (HistogramSnapshot) Kind() Kind { return KindHistogram }
func (TimerSnapshot) Kind() Kind     { return KindTimer }

func (CounterSnapshot) snapshot()   {}
func (GaugeSnapshot) snapshot()     {}
func (MeterSnapshot) snapshot()     {}
func (HistogramSnapshot) snapshot() {}
func (TimerSnapshot) snapshot()     {}

// NamedSnapshot pairs a registry name with its snapshot.
type NamedSnapshot struct {
	Name     string
	Snapshot Snapshot
}

// CumulativeCount returns the running count of counter-like snapshots
// (meter, histogram, timer). ok is false for counters and gauges.
func CumulativeCount(s Snapshot) (count int64, ok bool) {
	switch v := s.(type) {
	case MeterSnapshot:
		return v.Count, true
	case HistogramSnapshot:
		return v.Count, true
	case TimerSnapshot:
		return v.Count, true
	default:
		return 0, false
	}
}
