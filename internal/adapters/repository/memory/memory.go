// Package memory implements an in-memory points repository.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/vshulcz/influxreporter/internal/domain"
	"github.com/vshulcz/influxreporter/internal/ports"
)

// DefaultLimit is the number of points kept per series.
const DefaultLimit = 1000

type seriesKey struct {
	database    string
	measurement string
}

type series struct {
	points []domain.Point
	total  int64
}

// Repo keeps the newest points of every series with coarse-grained RW
// locking.
type Repo struct {
	series map[seriesKey]*series
	limit  int
	mu     sync.RWMutex
}

var _ ports.PointsRepo = (*Repo)(nil)

// New returns an empty repository keeping at most limit points per series;
// limit <= 0 means DefaultLimit.
func New(limit int) *Repo {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Repo{series: make(map[seriesKey]*series), limit: limit}
}

// Write appends points, dropping the oldest ones of a series over the limit.
func (r *Repo) Write(_ context.Context, points []domain.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range points {
		k := seriesKey{p.Database, p.Measurement}
		s, ok := r.series[k]
		if !ok {
			s = &series{}
			r.series[k] = s
		}
		s.points = append(s.points, clonePoint(p))
		s.total++
		if over := len(s.points) - r.limit; over > 0 {
			s.points = slices.Delete(s.points, 0, over)
		}
	}
	return nil
}

// Series summarises every series, ordered by database then measurement.
func (r *Repo) Series(_ context.Context) ([]domain.SeriesSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.SeriesSummary, 0, len(r.series))
	for k, s := range r.series {
		sum := domain.SeriesSummary{Database: k.database, Measurement: k.measurement, Points: s.total}
		if n := len(s.points); n > 0 {
			sum.Last = s.points[n-1].Time
		}
		out = append(out, sum)
	}
	slices.SortFunc(out, func(a, b domain.SeriesSummary) int {
		return cmp.Or(cmp.Compare(a.Database, b.Database), cmp.Compare(a.Measurement, b.Measurement))
	})
	return out, nil
}

// Last returns the newest point of a series or domain.ErrNotFound.
func (r *Repo) Last(_ context.Context, database, measurement string) (domain.Point, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.series[seriesKey{database, measurement}]
	if !ok || len(s.points) == 0 {
		return domain.Point{}, domain.ErrNotFound
	}
	return clonePoint(s.points[len(s.points)-1]), nil
}

// Points copies every retained point to avoid exposing internal state.
func (r *Repo) Points(_ context.Context) ([]domain.Point, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := slices.SortedFunc(maps.Keys(r.series), func(a, b seriesKey) int {
		return cmp.Or(cmp.Compare(a.database, b.database), cmp.Compare(a.measurement, b.measurement))
	})
	var out []domain.Point
	for _, k := range keys {
		for _, p := range r.series[k].points {
			out = append(out, clonePoint(p))
		}
	}
	return out, nil
}

// Ping always succeeds.
func (*Repo) Ping(context.Context) error { return nil }

func clonePoint(p domain.Point) domain.Point {
	p.Tags = maps.Clone(p.Tags)
	p.Fields = maps.Clone(p.Fields)
	return p
}
