package measurement

import (
	"fmt"
	"maps"
	"math"

	"github.com/vshulcz/influxreporter/internal/domain"
)

// Field keys written by the builder.
const (
	FieldCount         = "count"
	FieldValue         = "value"
	FieldOneMinute     = "one-minute"
	FieldFiveMinute    = "five-minute"
	FieldFifteenMinute = "fifteen-minute"
	FieldMeanMinute    = "mean-minute"
	FieldMin           = "min"
	FieldMax           = "max"
	FieldMean          = "mean"
	FieldStdDev        = "std-dev"
	FieldP50           = "50-percentile"
	FieldP75           = "75-percentile"
	FieldP95           = "95-percentile"
	FieldP99           = "99-percentile"
	FieldP999          = "999-percentile"
	FieldRunCount      = "run-count"
)

// Builder turns registry snapshots into measurements.
type Builder struct {
	baseTags    map[string]string
	transformer Transformer
}

// NewBuilder copies baseTags; a nil transformer means Noop.
func NewBuilder(baseTags map[string]string, t Transformer) *Builder {
	if t == nil {
		t = Noop{}
	}
	return &Builder{baseTags: maps.Clone(baseTags), transformer: t}
}

// Build converts one snapshot taken at tsMillis. ok is false when the
// snapshot carries nothing reportable (nil or non-finite gauge).
func (b *Builder) Build(name string, s domain.Snapshot, tsMillis int64) (Measurement, bool) {
	m := New(b.transformer.MeasurementName(name))
	m.AddTags(b.baseTags)
	m.AddTags(b.transformer.Tags(name))
	m.At(tsMillis)

	switch v := s.(type) {
	case domain.CounterSnapshot:
		m.SetField(FieldCount, Int(v.Count))
	case domain.GaugeSnapshot:
		val, ok := gaugeValue(v.Value)
		if !ok {
			return Measurement{}, false
		}
		m.SetField(FieldValue, val)
	case domain.MeterSnapshot:
		m.SetField(FieldCount, Int(v.Count))
		addRates(m, v.Rates)
	case domain.HistogramSnapshot:
		addDistribution(m, v.Distribution, v.Count)
	case domain.TimerSnapshot:
		addDistribution(m, v.Distribution, v.Count)
		addRates(m, v.Rates)
	default:
		return Measurement{}, false
	}
	return *m, m.Valid()
}

func addRates(m *Measurement, r domain.Rates) {
	m.SetField(FieldOneMinute, Float(r.OneMinute)).
		SetField(FieldFiveMinute, Float(r.FiveMinute)).
		SetField(FieldFifteenMinute, Float(r.FifteenMinute)).
		SetField(FieldMeanMinute, Float(r.Mean))
}

func addDistribution(m *Measurement, d domain.Distribution, runCount int64) {
	m.SetField(FieldCount, Int(d.Size)).
		SetField(FieldMin, Float(d.Min)).
		SetField(FieldMax, Float(d.Max)).
		SetField(FieldMean, Float(d.Mean)).
		SetField(FieldStdDev, Float(d.StdDev)).
		SetField(FieldP50, Float(d.P50)).
		SetField(FieldP75, Float(d.P75)).
		SetField(FieldP95, Float(d.P95)).
		SetField(FieldP99, Float(d.P99)).
		SetField(FieldP999, Float(d.P999)).
		SetField(FieldRunCount, Int(runCount))
}

func gaugeValue(x any) (Value, bool) {
	switch n := x.(type) {
	case nil:
		return Value{}, false
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return Value{}, false
		}
		return Float(n), true
	case float32:
		f := float64(n)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, false
		}
		return Float32(n), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, string:
		return ValueOf(n), true
	default:
		return String(fmt.Sprint(n)), true
	}
}
