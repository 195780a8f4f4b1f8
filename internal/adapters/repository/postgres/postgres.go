// Package postgres stores sink points in Postgres.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/vshulcz/influxreporter/internal/domain"
	"github.com/vshulcz/influxreporter/internal/misc"
	"github.com/vshulcz/influxreporter/internal/ports"
)

// Repo persists points in Postgres with retryable operations.
type Repo struct {
	db *sql.DB
}

var _ ports.PointsRepo = (*Repo)(nil)

var retryablePGCodes = map[string]struct{}{
	pgerrcode.ConnectionException:                           {},
	pgerrcode.ConnectionDoesNotExist:                        {},
	pgerrcode.ConnectionFailure:                             {},
	pgerrcode.SQLClientUnableToEstablishSQLConnection:       {},
	pgerrcode.SQLServerRejectedEstablishmentOfSQLConnection: {},
	pgerrcode.TransactionResolutionUnknown:                  {},
	pgerrcode.ProtocolViolation:                             {},
	pgerrcode.SerializationFailure:                          {},
	pgerrcode.DeadlockDetected:                              {},
	pgerrcode.LockNotAvailable:                              {},
	pgerrcode.TooManyConnections:                            {},
	pgerrcode.AdminShutdown:                                 {},
	pgerrcode.CrashShutdown:                                 {},
	pgerrcode.CannotConnectNow:                              {},
	pgerrcode.QueryCanceled:                                 {},
}

// New returns a Postgres-backed repository.
func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

const (
	qInsert = `
INSERT INTO points (db, measurement, tags, fields, ts)
VALUES ($1, $2, $3, $4, $5);`
	qSeries = `
SELECT db, measurement, count(*), max(ts)
FROM points
GROUP BY db, measurement
ORDER BY db, measurement;`
	qLast = `
SELECT tags, fields, ts
FROM points
WHERE db=$1 AND measurement=$2
ORDER BY ts DESC, id DESC
LIMIT 1;`
	qPoints = `
SELECT db, measurement, tags, fields, ts
FROM points
ORDER BY db, measurement, id;`
)

// Write inserts a batch of points inside one transaction.
func (r *Repo) Write(ctx context.Context, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}
	rows := make([]insertArgs, 0, len(points))
	for _, p := range points {
		args, err := encodePoint(p)
		if err != nil {
			return err
		}
		rows = append(rows, args)
	}

	attempt := func() error {
		tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
		if err != nil {
			return err
		}
		defer func() {
			_ = tx.Rollback()
		}()

		for _, a := range rows {
			if _, err := tx.ExecContext(ctx, qInsert, a.db, a.measurement, a.tags, a.fields, a.ts); err != nil {
				return err
			}
		}
		return tx.Commit()
	}
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, attempt)
}

// Series summarises stored points per measurement.
func (r *Repo) Series(ctx context.Context) ([]domain.SeriesSummary, error) {
	var out []domain.SeriesSummary
	op := func() error {
		rows, err := r.db.QueryContext(ctx, qSeries)
		if err != nil {
			return err
		}
		defer func() {
			_ = rows.Close()
		}()

		res := []domain.SeriesSummary{}
		for rows.Next() {
			var s domain.SeriesSummary
			if err := rows.Scan(&s.Database, &s.Measurement, &s.Points, &s.Last); err != nil {
				return err
			}
			res = append(res, s)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		out = res
		return nil
	}
	if err := misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op); err != nil {
		return nil, err
	}
	return out, nil
}

// Last reads the newest point of a measurement.
func (r *Repo) Last(ctx context.Context, database, measurement string) (domain.Point, error) {
	var (
		tags, fields []byte
		ts           time.Time
	)
	op := func() error {
		return r.db.QueryRowContext(ctx, qLast, database, measurement).Scan(&tags, &fields, &ts)
	}
	if err := misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Point{}, domain.ErrNotFound
		}
		return domain.Point{}, err
	}
	return decodePoint(database, measurement, tags, fields, ts)
}

// Points loads every stored point.
func (r *Repo) Points(ctx context.Context) ([]domain.Point, error) {
	var out []domain.Point
	op := func() error {
		rows, err := r.db.QueryContext(ctx, qPoints)
		if err != nil {
			return err
		}
		defer func() {
			_ = rows.Close()
		}()

		var res []domain.Point
		for rows.Next() {
			var (
				db, m        string
				tags, fields []byte
				ts           time.Time
			)
			if err := rows.Scan(&db, &m, &tags, &fields, &ts); err != nil {
				return err
			}
			p, err := decodePoint(db, m, tags, fields, ts)
			if err != nil {
				return err
			}
			res = append(res, p)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		out = res
		return nil
	}
	if err := misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op); err != nil {
		return nil, err
	}
	return out, nil
}

type insertArgs struct {
	db, measurement string
	tags, fields    string
	ts              time.Time
}

func encodePoint(p domain.Point) (insertArgs, error) {
	tags := p.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	tb, err := json.Marshal(tags)
	if err != nil {
		return insertArgs{}, fmt.Errorf("encode tags: %w", err)
	}
	fb, err := json.Marshal(domain.EncodeFields(p.Fields))
	if err != nil {
		return insertArgs{}, fmt.Errorf("encode fields: %w", err)
	}
	return insertArgs{
		db:          p.Database,
		measurement: p.Measurement,
		tags:        string(tb),
		fields:      string(fb),
		ts:          p.Time.UTC(),
	}, nil
}

func decodePoint(db, measurement string, tags, fields []byte, ts time.Time) (domain.Point, error) {
	p := domain.Point{Database: db, Measurement: measurement, Time: ts}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &p.Tags); err != nil {
			return domain.Point{}, fmt.Errorf("decode tags: %w", err)
		}
		if len(p.Tags) == 0 {
			p.Tags = nil
		}
	}
	var typed []domain.TypedField
	if err := json.Unmarshal(fields, &typed); err != nil {
		return domain.Point{}, fmt.Errorf("decode fields: %w", err)
	}
	p.Fields = domain.DecodeFields(typed)
	return p, nil
}

// Ping verifies the database connection using a short-lived context.
func (r *Repo) Ping(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	op := func() error {
		return r.db.PingContext(ctx)
	}
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op)
}

// IsRetryable reports whether the error should trigger a retry according to Postgres semantics.
func IsRetryable(err error) bool {
	return isRetryablePG(err)
}

func isRetryablePG(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return isRetryablePGCode(string(pqe.Code))
	}
	return false
}

func isRetryablePGCode(code string) bool {
	if _, ok := retryablePGCodes[code]; ok {
		return true
	}
	if strings.HasPrefix(code, "08") {
		return true
	}
	if strings.HasPrefix(code, "40") {
		return true
	}
	return false
}
