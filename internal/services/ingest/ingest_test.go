package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vshulcz/influxreporter/internal/adapters/repository/memory"
	"github.com/vshulcz/influxreporter/internal/domain"
)

var receivedAt = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *memory.Repo, *[][]domain.Point) {
	t.Helper()
	repo := memory.New(0)
	var changes [][]domain.Point
	s := New(repo, func(_ context.Context, all []domain.Point) { changes = append(changes, all) })
	s.now = func() time.Time { return receivedAt }
	return s, repo, &changes
}

func TestWriteLines(t *testing.T) {
	s, repo, changes := newService(t)
	ctx := context.Background()

	body := "# comment\ncpu,host=a value=0.5,count=3i 1700000000000\n\nstate ok=true,msg=\"up\"\n"
	n, err := s.WriteLines(ctx, "metrics", "ms", []byte(body))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, *changes, 1)
	assert.Len(t, (*changes)[0], 2)

	cpu, err := repo.Last(ctx, "metrics", "cpu")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"host": "a"}, cpu.Tags)
	assert.Equal(t, map[string]any{"value": 0.5, "count": int64(3)}, cpu.Fields)
	assert.True(t, cpu.Time.Equal(time.UnixMilli(1700000000000)))

	state, err := repo.Last(ctx, "metrics", "state")
	require.NoError(t, err)
	assert.Nil(t, state.Tags)
	assert.Equal(t, map[string]any{"ok": true, "msg": "up"}, state.Fields)
	assert.Equal(t, receivedAt, state.Time)
}

func TestWriteLines_Precision(t *testing.T) {
	s, repo, _ := newService(t)
	ctx := context.Background()

	_, err := s.WriteLines(ctx, "metrics", "s", []byte("hits count=1i 1700000000"))
	require.NoError(t, err)
	p, err := repo.Last(ctx, "metrics", "hits")
	require.NoError(t, err)
	assert.True(t, p.Time.Equal(time.Unix(1700000000, 0)))

	_, err = s.WriteLines(ctx, "metrics", "ns", []byte("hits count=2i 1700000000000000001"))
	require.NoError(t, err)
	p, err = repo.Last(ctx, "metrics", "hits")
	require.NoError(t, err)
	assert.True(t, p.Time.Equal(time.Unix(0, 1700000000000000001)))
}

func TestWriteLines_Errors(t *testing.T) {
	tests := []struct {
		name      string
		db        string
		precision string
		body      string
		want      error
	}{
		{"no database", " ", "", "a value=1", domain.ErrDatabaseRequired},
		{"bad precision", "metrics", "h", "a value=1", domain.ErrUnknownPrecision},
		{"bad line", "metrics", "", "a value=1\nbroken", domain.ErrInvalidLine},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, repo, changes := newService(t)
			_, err := s.WriteLines(context.Background(), tt.db, tt.precision, []byte(tt.body))
			require.ErrorIs(t, err, tt.want)
			series, _ := repo.Series(context.Background())
			assert.Empty(t, series, "nothing stored on error")
			assert.Empty(t, *changes)
		})
	}
}

func TestWriteLines_EmptyBody(t *testing.T) {
	s, _, changes := newService(t)
	n, err := s.WriteLines(context.Background(), "metrics", "", []byte("\n# only a comment\n"))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, *changes)
}

func TestWriteSeries(t *testing.T) {
	s, repo, _ := newService(t)
	ctx := context.Background()

	body := `[
	  {"name":"app.hits.count","columns":["time","count"],"points":[[1700000000000,12]]},
	  {"name":"app.latency.timer","columns":["time","count","mean","state","ok","missing"],
	   "points":[[1700000001000,5,1.5,"warm",false,null]]},
	  {"name":"app.seq","columns":["time","sequence_number","value"],"points":[[1700000002000,7,2]]}
	]`
	n, err := s.WriteSeries(ctx, "metrics", "ms", []byte(body))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, err := repo.Last(ctx, "metrics", "app.hits.count")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": int64(12)}, hits.Fields)
	assert.True(t, hits.Time.Equal(time.UnixMilli(1700000000000)))

	timer, err := repo.Last(ctx, "metrics", "app.latency.timer")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": int64(5), "mean": 1.5, "state": "warm", "ok": false}, timer.Fields)

	seq, err := repo.Last(ctx, "metrics", "app.seq")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"value": int64(2)}, seq.Fields)
}

func TestWriteSeries_NoTimeColumn(t *testing.T) {
	s, repo, _ := newService(t)
	_, err := s.WriteSeries(context.Background(), "metrics", "", []byte(`[{"name":"g","columns":["value"],"points":[[0.25]]}]`))
	require.NoError(t, err)
	p, err := repo.Last(context.Background(), "metrics", "g")
	require.NoError(t, err)
	assert.Equal(t, receivedAt, p.Time)
}

func TestWriteSeries_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"not an array", `{"name":"x"}`},
		{"missing name", `[{"columns":["value"],"points":[[1]]}]`},
		{"missing columns", `[{"name":"x","points":[[1]]}]`},
		{"column not a string", `[{"name":"x","columns":[1],"points":[[1]]}]`},
		{"width mismatch", `[{"name":"x","columns":["time","value"],"points":[[1]]}]`},
		{"row not an array", `[{"name":"x","columns":["value"],"points":[1]}]`},
		{"bad time", `[{"name":"x","columns":["time","value"],"points":[["soon",1]]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newService(t)
			_, err := s.WriteSeries(context.Background(), "metrics", "", []byte(tt.body))
			require.ErrorIs(t, err, domain.ErrInvalidSeries)
		})
	}

	s, _, _ := newService(t)
	_, err := s.WriteSeries(context.Background(), "", "", []byte(`[]`))
	require.ErrorIs(t, err, domain.ErrDatabaseRequired)
}

type failingRepo struct {
	*memory.Repo
	err error
}

func (r failingRepo) Write(context.Context, []domain.Point) error { return r.err }

func TestWrite_RepoError(t *testing.T) {
	boom := errors.New("disk full")
	called := false
	s := New(failingRepo{Repo: memory.New(0), err: boom}, func(context.Context, []domain.Point) { called = true })

	_, err := s.WriteLines(context.Background(), "metrics", "", []byte("a value=1 1"))
	require.ErrorIs(t, err, boom)
	assert.False(t, called)
}

func TestSeriesAndLast(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()
	_, err := s.WriteLines(ctx, "metrics", "", []byte("b value=1 1\na value=2 2\na value=3 3"))
	require.NoError(t, err)

	series, err := s.Series(ctx)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "a", series[0].Measurement)
	assert.Equal(t, int64(2), series[0].Points)

	last, err := s.Last(ctx, "metrics", " a ")
	require.NoError(t, err)
	assert.Equal(t, 3.0, last.Fields["value"])

	_, err = s.Last(ctx, "", "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.Last(ctx, "metrics", "zzz")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, s.Ping(ctx))
}
