// Package columnclient speaks the InfluxDB 0.8 series protocol: column
// names plus point rows, aggregated into one JSON document per cycle.
package columnclient

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/valyala/fastjson"

	"github.com/vshulcz/influxreporter/internal/lineproto"
	"github.com/vshulcz/influxreporter/internal/ports"
)

type deliverFunc func(ctx context.Context, payload []byte) error

type series struct {
	points *fastjson.Value
	n      int
}

// Client accumulates series in a fastjson arena that is reset every
// cycle. It is safe for concurrent use.
type Client struct {
	deliver   deliverFunc
	closeFn   func() error
	observer  ports.FlushObserver
	transport string
	precision lineproto.Precision

	mu     sync.Mutex
	arena  fastjson.Arena
	doc    *fastjson.Value
	index  map[string]*series
	count  int
	out    []byte
	points int
}

var _ ports.ColumnClient = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithObserver reports every delivered document to o.
func WithObserver(o ports.FlushObserver) Option {
	return func(c *Client) { c.observer = o }
}

func newClient(transport string, p lineproto.Precision, deliver deliverFunc, closeFn func() error, opts []Option) (*Client, error) {
	switch p {
	case "", lineproto.Seconds, lineproto.Milliseconds, lineproto.Microseconds:
	default:
		return nil, fmt.Errorf("v08 time precision %q is not supported", p)
	}
	if p == "" {
		p = lineproto.Milliseconds
	}
	c := &Client{
		deliver:   deliver,
		closeFn:   closeFn,
		transport: transport,
		precision: p,
	}
	for _, o := range opts {
		o(c)
	}
	c.Reset()
	return c, nil
}

// Reset drops every appended series.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Client) resetLocked() {
	c.arena.Reset()
	c.doc = c.arena.NewArray()
	c.index = make(map[string]*series, len(c.index))
	c.count = 0
	c.points = 0
}

// ConvertTimestamp converts milliseconds into the client time precision.
func (c *Client) ConvertTimestamp(millis int64) int64 {
	return c.precision.FromMillis(millis)
}

// AppendSeries adds row to the series prefix+name+suffix. Values are copied
// into the arena before returning, so the caller may reuse row.
func (c *Client) AppendSeries(prefix, name, suffix string, columns []string, row []any) error {
	if len(columns) != len(row) {
		return fmt.Errorf("series %s%s%s: %d columns but %d values", prefix, name, suffix, len(columns), len(row))
	}
	full := prefix + name + suffix

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.index[full]
	if !ok {
		obj := c.arena.NewObject()
		obj.Set("name", c.arena.NewString(full))
		cols := c.arena.NewArray()
		for i, col := range columns {
			cols.SetArrayItem(i, c.arena.NewString(col))
		}
		obj.Set("columns", cols)
		s = &series{points: c.arena.NewArray()}
		obj.Set("points", s.points)
		c.doc.SetArrayItem(c.count, obj)
		c.count++
		c.index[full] = s
	}

	point := c.arena.NewArray()
	for i, v := range row {
		point.SetArrayItem(i, c.value(v))
	}
	s.points.SetArrayItem(s.n, point)
	s.n++
	c.points++
	return nil
}

// HasSeriesData reports whether anything was appended since Reset.
func (c *Client) HasSeriesData() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count > 0
}

// Payload renders the current document.
func (c *Client) Payload() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.MarshalTo(nil)
}

// Send delivers the aggregated document and resets the client whatever
// the outcome.
func (c *Client) Send(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count == 0 {
		return nil
	}
	c.out = c.doc.MarshalTo(c.out[:0])
	points := c.points
	c.resetLocked()

	start := time.Now()
	err := c.deliver(ctx, c.out)
	if c.observer != nil {
		c.observer.ObserveFlush(c.transport, points, len(c.out), time.Since(start), err)
	}
	if err != nil {
		return fmt.Errorf("send %d v08 points: %w", points, err)
	}
	return nil
}

func (c *Client) Close() error {
	if c.closeFn == nil {
		return nil
	}
	return c.closeFn()
}

func (c *Client) value(v any) *fastjson.Value {
	a := &c.arena
	switch n := v.(type) {
	case nil:
		return a.NewNull()
	case bool:
		if n {
			return a.NewTrue()
		}
		return a.NewFalse()
	case string:
		return a.NewString(n)
	case int:
		return a.NewNumberInt(n)
	case int8, int16, int32, int64:
		return a.NewNumberString(fmt.Sprint(n))
	case uint, uint8, uint16, uint32, uint64:
		return a.NewNumberString(fmt.Sprint(n))
	case float32:
		return finite(a, float64(n), 32)
	case float64:
		return finite(a, n, 64)
	case fmt.Stringer:
		return a.NewString(n.String())
	default:
		return a.NewString(fmt.Sprint(n))
	}
}

func finite(a *fastjson.Arena, f float64, bits int) *fastjson.Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return a.NewNull()
	}
	return a.NewNumberString(strconv.FormatFloat(f, 'g', -1, bits))
}
