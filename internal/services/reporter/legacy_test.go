package reporter

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vshulcz/influxreporter/internal/domain"
)

type appended struct {
	series  string
	columns []string
	row     []any
}

type fakeColumnClient struct {
	mu        sync.Mutex
	appendErr func(name string) error
	sendErr   error
	pending   []appended
	sent      [][]appended
	resets    int
}

func (c *fakeColumnClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
	c.pending = nil
}

func (c *fakeColumnClient) ConvertTimestamp(millis int64) int64 { return millis }

func (c *fakeColumnClient) AppendSeries(prefix, name, suffix string, columns []string, row []any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.appendErr != nil {
		if err := c.appendErr(name); err != nil {
			return err
		}
	}
	c.pending = append(c.pending, appended{series: prefix + name + suffix, columns: columns, row: slices.Clone(row)})
	return nil
}

func (c *fakeColumnClient) HasSeriesData() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) > 0
}

func (c *fakeColumnClient) Send(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, c.pending)
	c.pending = nil
	return c.sendErr
}

func (c *fakeColumnClient) lastSent(t *testing.T) []appended {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.sent)
	return c.sent[len(c.sent)-1]
}

func (c *fakeColumnClient) sends() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func seriesNames(rows []appended) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.series)
	}
	return out
}

func TestLegacy_RowsPerKind(t *testing.T) {
	t.Parallel()

	dist := domain.Distribution{Size: 3, Min: 1, Max: 9, Mean: 4, StdDev: 2, P50: 5, P75: 6, P95: 7, P99: 8, P999: 9}
	rates := domain.Rates{OneMinute: 0.1, FiveMinute: 0.2, FifteenMinute: 0.3, Mean: 0.4}
	src := &staticSource{snaps: []domain.NamedSnapshot{
		named("hits", domain.CounterSnapshot{Count: 12}),
		named("load", domain.GaugeSnapshot{Value: 0.75}),
		named("requests", domain.MeterSnapshot{Count: 8, Rates: rates}),
		named("sizes", domain.HistogramSnapshot{Count: 40, Distribution: dist}),
		named("latency", domain.TimerSnapshot{Count: 50, Distribution: dist, Rates: rates}),
	}}
	client := &fakeColumnClient{}
	l := NewLegacy(src, client, LegacyConfig{Prefix: "  app "}, WithClock(fixedClock(1234)))

	require.NoError(t, l.RunOnce(context.Background()))

	rows := client.lastSent(t)
	assert.Equal(t, []string{
		"app.hits.count", "app.load.value", "app.requests.meter", "app.sizes.histogram", "app.latency.timer",
	}, seriesNames(rows))

	assert.Equal(t, ColumnsCount, rows[0].columns)
	assert.Equal(t, []any{int64(1234), int64(12)}, rows[0].row)

	assert.Equal(t, []any{int64(1234), 0.75}, rows[1].row)

	assert.Equal(t, ColumnsMeter, rows[2].columns)
	assert.Equal(t, []any{int64(1234), int64(8), 0.1, 0.2, 0.3, 0.4}, rows[2].row)

	assert.Equal(t, ColumnsHistogram, rows[3].columns)
	assert.Equal(t, []any{
		int64(1234), int64(3),
		1.0, 9.0, 4.0, 2.0,
		5.0, 6.0, 7.0, 8.0, 9.0,
		int64(40),
	}, rows[3].row)

	assert.Equal(t, ColumnsTimer, rows[4].columns)
	assert.Equal(t, []any{
		int64(1234), int64(3),
		1.0, 9.0, 4.0, 2.0,
		5.0, 6.0, 7.0, 8.0, 9.0,
		0.1, 0.2, 0.3, 0.4,
		int64(50),
	}, rows[4].row)

	for _, r := range rows {
		assert.Len(t, r.row, len(r.columns), r.series)
	}
}

func TestLegacy_EmptyPrefix(t *testing.T) {
	t.Parallel()

	src := &staticSource{snaps: []domain.NamedSnapshot{named("hits", domain.CounterSnapshot{Count: 1})}}
	client := &fakeColumnClient{}
	require.NoError(t, NewLegacy(src, client, LegacyConfig{}).RunOnce(context.Background()))
	assert.Equal(t, []string{"hits.count"}, seriesNames(client.lastSent(t)))
}

func TestLegacy_SkipIdle(t *testing.T) {
	t.Parallel()

	src := &staticSource{}
	client := &fakeColumnClient{}
	l := NewLegacy(src, client, LegacyConfig{SkipIdle: true})
	ctx := context.Background()

	cycle := func(timerCount int64) []string {
		src.snaps = []domain.NamedSnapshot{
			named("gauge", domain.GaugeSnapshot{Value: int64(1)}),
			named("hits", domain.CounterSnapshot{Count: 1}),
			named("latency", domain.TimerSnapshot{Count: timerCount}),
		}
		require.NoError(t, l.RunOnce(ctx))
		return seriesNames(client.lastSent(t))
	}

	assert.Equal(t, []string{"gauge.value", "hits.count", "latency.timer"}, cycle(5))
	assert.Equal(t, []string{"gauge.value", "hits.count"}, cycle(5), "unchanged timer is idle")
	assert.Equal(t, []string{"gauge.value", "hits.count", "latency.timer"}, cycle(6))
}

func TestLegacy_FirstSightNeverSkipped(t *testing.T) {
	t.Parallel()

	src := &staticSource{snaps: []domain.NamedSnapshot{named("fresh", domain.MeterSnapshot{Count: 0})}}
	client := &fakeColumnClient{}
	pub := &recordingPublisher{}
	l := NewLegacy(src, client, LegacyConfig{SkipIdle: true}, WithPublisher(pub))

	require.NoError(t, l.RunOnce(context.Background()))
	assert.Equal(t, []string{"fresh.meter"}, seriesNames(client.lastSent(t)))

	require.NoError(t, l.RunOnce(context.Background()))
	assert.Equal(t, 1, client.sends(), "nothing appended, nothing sent")
	evt := pub.last(t)
	assert.Equal(t, 1, evt.Skipped)
	assert.Equal(t, "v08", evt.Version)
}

func TestLegacy_NonMonotonicCountIsIdle(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	src := &staticSource{}
	client := &fakeColumnClient{}
	l := NewLegacy(src, client, LegacyConfig{SkipIdle: true}, WithLogger(zap.New(core)))
	ctx := context.Background()

	run := func(count int64) {
		src.snaps = []domain.NamedSnapshot{named("sizes", domain.HistogramSnapshot{Count: count})}
		require.NoError(t, l.RunOnce(ctx))
	}

	run(5)
	assert.Equal(t, 1, client.sends())

	run(3)
	assert.Equal(t, 1, client.sends(), "regression is treated as idle")
	assert.Equal(t, 1, logs.FilterMessage("saw a non-monotonically increasing value").Len())

	run(4)
	assert.Equal(t, 1, client.sends(), "still below the last reported count")

	run(6)
	assert.Equal(t, 2, client.sends())
}

func TestLegacy_SkipIdleDisabled(t *testing.T) {
	t.Parallel()

	src := &staticSource{snaps: []domain.NamedSnapshot{named("latency", domain.TimerSnapshot{Count: 5})}}
	client := &fakeColumnClient{}
	l := NewLegacy(src, client, LegacyConfig{})

	for range 3 {
		require.NoError(t, l.RunOnce(context.Background()))
	}
	assert.Equal(t, 3, client.sends())
	assert.Empty(t, l.previous)
}

func TestLegacy_PerMetricFailureContinues(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	src := &staticSource{snaps: []domain.NamedSnapshot{
		named("a", domain.CounterSnapshot{Count: 1}),
		named("b", domain.CounterSnapshot{Count: 2}),
		named("c", domain.CounterSnapshot{Count: 3}),
	}}
	client := &fakeColumnClient{appendErr: func(name string) error {
		if name == "b" {
			return errors.New("column mismatch")
		}
		return nil
	}}
	pub := &recordingPublisher{}
	l := NewLegacy(src, client, LegacyConfig{}, WithLogger(zap.New(core)), WithPublisher(pub))

	require.NoError(t, l.RunOnce(context.Background()))
	assert.Equal(t, []string{"a.count", "c.count"}, seriesNames(client.lastSent(t)))

	entries := logs.FilterField(zap.String("metric", "b")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "unable to report metric", entries[0].Message)

	evt := pub.last(t)
	assert.Equal(t, 2, evt.Measurements)
	assert.Equal(t, 1, evt.Failed)
}

func TestLegacy_PanicInOneMetricContinues(t *testing.T) {
	t.Parallel()

	src := &staticSource{snaps: []domain.NamedSnapshot{
		named("a", domain.CounterSnapshot{Count: 1}),
		named("b", domain.CounterSnapshot{Count: 2}),
	}}
	client := &fakeColumnClient{appendErr: func(name string) error {
		if name == "a" {
			panic("bad row")
		}
		return nil
	}}
	l := NewLegacy(src, client, LegacyConfig{})

	require.NotPanics(t, func() { require.NoError(t, l.RunOnce(context.Background())) })
	assert.Equal(t, []string{"b.count"}, seriesNames(client.lastSent(t)))
}

func TestLegacy_ResetAtCycleStart(t *testing.T) {
	t.Parallel()

	client := &fakeColumnClient{}
	l := NewLegacy(&staticSource{}, client, LegacyConfig{})

	require.NoError(t, l.RunOnce(context.Background()))
	require.NoError(t, l.RunOnce(context.Background()))
	assert.Equal(t, 2, client.resets)
	assert.Zero(t, client.sends())
}

func TestLegacy_SendError(t *testing.T) {
	t.Parallel()

	boom := errors.New("503")
	src := &staticSource{snaps: []domain.NamedSnapshot{named("a", domain.CounterSnapshot{Count: 1})}}
	client := &fakeColumnClient{sendErr: boom}
	l := NewLegacy(src, client, LegacyConfig{})

	require.ErrorIs(t, l.RunOnce(context.Background()), boom)
}

func TestLegacy_SnapshotError(t *testing.T) {
	t.Parallel()

	boom := errors.New("gather failed")
	client := &fakeColumnClient{}
	l := NewLegacy(&staticSource{err: boom}, client, LegacyConfig{})

	require.ErrorIs(t, l.RunOnce(context.Background()), boom)
	assert.Zero(t, client.sends())
}
