// Package lineproto encodes measurements into the InfluxDB line protocol
// and parses it back.
package lineproto

import (
	"bytes"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/vshulcz/influxreporter/internal/domain"
	"github.com/vshulcz/influxreporter/internal/measurement"
	"github.com/vshulcz/influxreporter/internal/misc"
)

var escaper = strings.NewReplacer(" ", `\ `, ",", `\,`)

var bufPool = misc.NewBufferPool(64 << 10)

// Encoder renders measurements as line-protocol text.
type Encoder struct {
	now       func() time.Time
	precision Precision
}

// Option customizes an Encoder.
type Option func(*Encoder)

// WithClock replaces the clock used for measurements without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Encoder) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEncoder returns an Encoder writing timestamps in p.
func NewEncoder(p Precision, opts ...Option) *Encoder {
	e := &Encoder{precision: p, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Precision reports the timestamp unit.
func (e *Encoder) Precision() Precision { return e.precision }

// Encode renders a single line.
func (e *Encoder) Encode(m measurement.Measurement) (string, error) {
	buf := bufPool.Get()
	defer bufPool.Put(buf)
	if err := e.write(buf, m); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// EncodeBatch renders every measurement and joins the lines with "\n".
func (e *Encoder) EncodeBatch(ms []measurement.Measurement) (string, error) {
	buf := bufPool.Get()
	defer bufPool.Put(buf)
	for i, m := range ms {
		if i > 0 {
			buf.WriteByte('\n')
		}
		if err := e.write(buf, m); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func (e *Encoder) write(buf *bytes.Buffer, m measurement.Measurement) error {
	if !m.Valid() {
		return domain.ErrNoFields
	}

	buf.WriteString(escaper.Replace(m.Name))

	tagKeys := make([]string, 0, len(m.Tags))
	for k := range m.Tags {
		tagKeys = append(tagKeys, k)
	}
	slices.Sort(tagKeys)
	for _, k := range tagKeys {
		buf.WriteByte(',')
		buf.WriteString(escaper.Replace(k))
		buf.WriteByte('=')
		buf.WriteString(escaper.Replace(m.Tags[k]))
	}

	fields := slices.Clone(m.Fields)
	slices.SortStableFunc(fields, func(a, b measurement.Field) int {
		return strings.Compare(a.Key, b.Key)
	})
	for i, f := range fields {
		if i == 0 {
			buf.WriteByte(' ')
		} else {
			buf.WriteByte(',')
		}
		buf.WriteString(f.Key)
		buf.WriteByte('=')
		writeValue(buf, f.Value)
	}

	ts := m.Timestamp
	if !m.HasTime {
		ts = e.now().UnixMilli()
	}
	buf.WriteByte(' ')
	buf.WriteString(strconv.FormatInt(e.precision.FromMillis(ts), 10))
	return nil
}

func writeValue(buf *bytes.Buffer, v measurement.Value) {
	switch v.Type() {
	case measurement.TypeInteger:
		buf.WriteString(strconv.FormatInt(v.Integer(), 10))
		buf.WriteByte('i')
	case measurement.TypeFloat:
		f, bits := v.Float()
		s := strconv.FormatFloat(f, 'f', -1, bits)
		buf.WriteString(s)
		if !strings.ContainsRune(s, '.') {
			buf.WriteString(".0")
		}
	case measurement.TypeBoolean:
		buf.WriteString(strconv.FormatBool(v.Boolean()))
	default:
		buf.WriteByte('"')
		buf.WriteString(v.Str())
		buf.WriteByte('"')
	}
}
