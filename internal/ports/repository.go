package ports

import (
	"context"

	"github.com/vshulcz/influxreporter/internal/domain"
)

// PointsRepo stores the points received by the sink.
type PointsRepo interface {
	Write(ctx context.Context, points []domain.Point) error
	Series(ctx context.Context) ([]domain.SeriesSummary, error)
	Last(ctx context.Context, database, measurement string) (domain.Point, error)
	Points(ctx context.Context) ([]domain.Point, error)
	Ping(ctx context.Context) error
}

// Persister saves sink points between restarts when no database is used.
type Persister interface {
	Save(ctx context.Context, points []domain.Point) error
	Restore(ctx context.Context, repo PointsRepo) error
}
