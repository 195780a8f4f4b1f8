package lineproto

import (
	"fmt"
	"strings"
	"time"

	"github.com/vshulcz/influxreporter/internal/domain"
)

// Precision is the unit of encoded timestamps. The zero value means
// milliseconds.
type Precision string

const (
	Seconds      Precision = "s"
	Milliseconds Precision = "ms"
	Microseconds Precision = "u"
	Nanoseconds  Precision = "ns"
)

// ParsePrecision accepts the InfluxDB query parameter names and a few long forms.
func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ms", "millisecond", "milliseconds":
		return Milliseconds, nil
	case "s", "second", "seconds":
		return Seconds, nil
	case "u", "us", "µs", "microsecond", "microseconds":
		return Microseconds, nil
	case "n", "ns", "nanosecond", "nanoseconds":
		return Nanoseconds, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownPrecision, s)
	}
}

// Param is the value of the "precision" query parameter.
func (p Precision) Param() string {
	if p == "" {
		return string(Milliseconds)
	}
	return string(p)
}

// FromMillis converts a millisecond timestamp into p units.
func (p Precision) FromMillis(ms int64) int64 {
	switch p {
	case Seconds:
		return ms / 1000
	case Microseconds:
		return ms * 1000
	case Nanoseconds:
		return ms * 1_000_000
	default:
		return ms
	}
}

// Time interprets v as a timestamp in p units.
func (p Precision) Time(v int64) time.Time {
	switch p {
	case Seconds:
		return time.Unix(v, 0)
	case Microseconds:
		return time.UnixMicro(v)
	case Nanoseconds:
		return time.Unix(0, v)
	default:
		return time.UnixMilli(v)
	}
}

func (p Precision) String() string { return p.Param() }
