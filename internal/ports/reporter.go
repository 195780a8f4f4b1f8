package ports

import (
	"context"
	"time"

	"github.com/vshulcz/influxreporter/internal/domain"
)

// Source yields the current snapshots of a metrics registry, sorted by name.
type Source interface {
	Snapshot(ctx context.Context) ([]domain.NamedSnapshot, error)
}

// Sender buffers encoded line-protocol lines and ships them to InfluxDB.
type Sender interface {
	Send(ctx context.Context, line string) error
	Flush(ctx context.Context) error
	Close() error
}

// ColumnClient aggregates v08 series for one outbound request per cycle.
// The row slice passed to AppendSeries is only valid during the call.
type ColumnClient interface {
	Reset()
	ConvertTimestamp(millis int64) int64
	AppendSeries(prefix, name, suffix string, columns []string, row []any) error
	HasSeriesData() bool
	Send(ctx context.Context) error
}

// FlushObserver is told about every batch a sender tries to deliver.
type FlushObserver interface {
	ObserveFlush(transport string, lines, bytes int, elapsed time.Duration, err error)
}
