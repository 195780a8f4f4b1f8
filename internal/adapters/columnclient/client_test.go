package columnclient

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"

	"github.com/vshulcz/influxreporter/internal/adapters/influxhttp"
	"github.com/vshulcz/influxreporter/internal/lineproto"
)

func captureClient(t *testing.T, p lineproto.Precision) (*Client, *[][]byte) {
	t.Helper()
	var got [][]byte
	c, err := newClient("test", p, func(_ context.Context, payload []byte) error {
		got = append(got, append([]byte(nil), payload...))
		return nil
	}, nil, nil)
	require.NoError(t, err)
	return c, &got
}

func TestClient_AppendAndSend(t *testing.T) {
	t.Parallel()

	c, sent := captureClient(t, lineproto.Milliseconds)
	assert.False(t, c.HasSeriesData())

	row := []any{int64(1000), int64(3)}
	require.NoError(t, c.AppendSeries("app.", "requests", ".count", []string{"time", "count"}, row))
	row[0], row[1] = int64(2000), int64(4)
	require.NoError(t, c.AppendSeries("app.", "requests", ".count", []string{"time", "count"}, row))
	require.NoError(t, c.AppendSeries("app.", "heap", ".value", []string{"time", "value"}, []any{int64(2000), 1.5}))
	assert.True(t, c.HasSeriesData())

	require.NoError(t, c.Send(context.Background()))
	require.Len(t, *sent, 1)
	assert.JSONEq(t, `[
		{"name":"app.requests.count","columns":["time","count"],"points":[[1000,3],[2000,4]]},
		{"name":"app.heap.value","columns":["time","value"],"points":[[2000,1.5]]}
	]`, string((*sent)[0]))

	assert.False(t, c.HasSeriesData(), "send resets the client")
	require.NoError(t, c.Send(context.Background()))
	assert.Len(t, *sent, 1, "nothing to send after reset")
}

func TestClient_Values(t *testing.T) {
	t.Parallel()

	c, sent := captureClient(t, "")
	cols := []string{"time", "nil", "nan", "inf", "f32", "b", "s", "u", "i", "d"}
	row := []any{int64(1), nil, math.NaN(), math.Inf(1), float32(0.5), true, "up", uint8(7), 42, time.Second}
	require.NoError(t, c.AppendSeries("", "g", ".value", cols, row))
	require.NoError(t, c.Send(context.Background()))

	var p fastjson.Parser
	v, err := p.ParseBytes((*sent)[0])
	require.NoError(t, err)
	point := v.GetArray("0", "points", "0")
	require.Len(t, point, len(cols))
	assert.Equal(t, fastjson.TypeNull, point[1].Type())
	assert.Equal(t, fastjson.TypeNull, point[2].Type())
	assert.Equal(t, fastjson.TypeNull, point[3].Type())
	assert.Equal(t, 0.5, point[4].GetFloat64())
	assert.Equal(t, fastjson.TypeTrue, point[5].Type())
	assert.Equal(t, "up", string(point[6].GetStringBytes()))
	assert.Equal(t, int64(7), point[7].GetInt64())
	assert.Equal(t, int64(42), point[8].GetInt64())
	assert.Equal(t, "1s", string(point[9].GetStringBytes()))
}

func TestClient_ColumnMismatch(t *testing.T) {
	t.Parallel()

	c, _ := captureClient(t, lineproto.Milliseconds)
	err := c.AppendSeries("", "x", ".count", []string{"time", "count"}, []any{int64(1)})
	require.Error(t, err)
	assert.False(t, c.HasSeriesData())
}

func TestClient_ResetAndConvert(t *testing.T) {
	t.Parallel()

	c, sent := captureClient(t, lineproto.Seconds)
	assert.Equal(t, int64(12), c.ConvertTimestamp(12_345))
	require.NoError(t, c.AppendSeries("", "x", ".count", []string{"time", "count"}, []any{int64(1), int64(1)}))
	c.Reset()
	assert.False(t, c.HasSeriesData())
	assert.Equal(t, "[]", string(c.Payload()))
	require.NoError(t, c.Send(context.Background()))
	assert.Empty(t, *sent)

	us, _ := captureClient(t, lineproto.Microseconds)
	assert.Equal(t, int64(5_000), us.ConvertTimestamp(5))

	_, err := newClient("test", lineproto.Nanoseconds, nil, nil, nil)
	require.Error(t, err)
}

func TestClient_SendErrorResets(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	c, err := newClient("test", lineproto.Milliseconds, func(context.Context, []byte) error { return boom }, nil, nil)
	require.NoError(t, err)
	require.NoError(t, c.AppendSeries("", "x", ".count", []string{"time", "count"}, []any{int64(1), int64(1)}))
	assert.ErrorIs(t, c.Send(context.Background()), boom)
	assert.False(t, c.HasSeriesData())
}

func TestNewHTTP(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		path  string
		query string
		body  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		path, query, body = r.URL.Path, r.URL.RawQuery, string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewHTTP(HTTPConfig{
		URL:      srv.URL,
		Database: "metrics",
		Options:  influxhttp.Options{HTTPClient: srv.Client(), User: "root", Password: "root"},
	})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	require.NoError(t, c.AppendSeries("", "x", ".count", []string{"time", "count"}, []any{int64(1), int64(2)}))
	require.NoError(t, c.Send(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/db/metrics/series", path)
	assert.Equal(t, "p=root&time_precision=ms&u=root", query)
	assert.JSONEq(t, `[{"name":"x.count","columns":["time","count"],"points":[[1,2]]}]`, body)

	_, err = NewHTTP(HTTPConfig{URL: srv.URL})
	require.Error(t, err, "database is required")
}

func TestNewUDP(t *testing.T) {
	t.Parallel()

	pc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer func() { _ = pc.Close() }()

	c, err := NewUDP(pc.LocalAddr().String(), lineproto.Milliseconds)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	require.NoError(t, c.AppendSeries("p.", "x", ".meter", []string{"time", "count"}, []any{int64(1), int64(2)}))
	require.NoError(t, c.Send(context.Background()))

	buf := make([]byte, 4096)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := pc.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"p.x.meter","columns":["time","count"],"points":[[1,2]]}]`, string(buf[:n]))

	_, err = NewUDP("bad", lineproto.Milliseconds)
	require.Error(t, err)
}
