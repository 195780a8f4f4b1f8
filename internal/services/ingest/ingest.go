// Package ingest turns InfluxDB write payloads into stored points.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fastjson"

	"github.com/vshulcz/influxreporter/internal/domain"
	"github.com/vshulcz/influxreporter/internal/lineproto"
	"github.com/vshulcz/influxreporter/internal/measurement"
	"github.com/vshulcz/influxreporter/internal/ports"
)

type Service struct {
	repo      ports.PointsRepo
	onChanged func(context.Context, []domain.Point)
	now       func() time.Time
	parsers   fastjson.ParserPool
}

// New returns a service writing to repo. onChanged, when set, receives every
// stored point after each successful write.
func New(repo ports.PointsRepo, onChanged func(context.Context, []domain.Point)) *Service {
	return &Service{repo: repo, onChanged: onChanged, now: time.Now}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// WriteLines stores a line-protocol body. Lines without a timestamp are
// stamped with the receive time.
func (s *Service) WriteLines(ctx context.Context, db, precision string, body []byte) (int, error) {
	db = strings.TrimSpace(db)
	if db == "" {
		return 0, domain.ErrDatabaseRequired
	}
	p, err := lineproto.ParsePrecision(precision)
	if err != nil {
		return 0, err
	}
	ms, err := lineproto.ParseBatch(string(body))
	if err != nil {
		return 0, err
	}

	now := s.now().UTC()
	points := make([]domain.Point, 0, len(ms))
	for _, m := range ms {
		points = append(points, toPoint(db, p, m, now))
	}
	return s.write(ctx, points)
}

// WriteSeries stores a v08 JSON document: an array of
// {"name", "columns", "points"} objects. A "time" column is read in the given
// precision; "sequence_number" is dropped.
func (s *Service) WriteSeries(ctx context.Context, db, precision string, body []byte) (int, error) {
	db = strings.TrimSpace(db)
	if db == "" {
		return 0, domain.ErrDatabaseRequired
	}
	p, err := lineproto.ParsePrecision(precision)
	if err != nil {
		return 0, err
	}

	parser := s.parsers.Get()
	defer s.parsers.Put(parser)
	doc, err := parser.ParseBytes(body)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidSeries, err)
	}
	list, err := doc.Array()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidSeries, err)
	}

	now := s.now().UTC()
	var points []domain.Point
	for i, series := range list {
		ps, err := seriesPoints(db, p, series, now)
		if err != nil {
			return 0, fmt.Errorf("%w: series %d: %v", domain.ErrInvalidSeries, i, err)
		}
		points = append(points, ps...)
	}
	return s.write(ctx, points)
}

func (s *Service) Series(ctx context.Context) ([]domain.SeriesSummary, error) {
	return s.repo.Series(ctx)
}

func (s *Service) Last(ctx context.Context, db, measurement string) (domain.Point, error) {
	db, measurement = strings.TrimSpace(db), strings.TrimSpace(measurement)
	if db == "" || measurement == "" {
		return domain.Point{}, domain.ErrNotFound
	}
	return s.repo.Last(ctx, db, measurement)
}

func (s *Service) write(ctx context.Context, points []domain.Point) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}
	if err := s.repo.Write(ctx, points); err != nil {
		return 0, err
	}
	if s.onChanged != nil {
		if all, err := s.repo.Points(ctx); err == nil {
			s.onChanged(ctx, all)
		}
	}
	return len(points), nil
}

func toPoint(db string, p lineproto.Precision, m measurement.Measurement, now time.Time) domain.Point {
	fields := make(map[string]any, len(m.Fields))
	for _, f := range m.Fields {
		fields[f.Key] = f.Value.Any()
	}
	ts := now
	if m.HasTime {
		ts = p.Time(m.Timestamp).UTC()
	}
	var tags map[string]string
	if len(m.Tags) > 0 {
		tags = m.Tags
	}
	return domain.Point{Database: db, Measurement: m.Name, Tags: tags, Fields: fields, Time: ts}
}

func seriesPoints(db string, p lineproto.Precision, series *fastjson.Value, now time.Time) ([]domain.Point, error) {
	name := string(series.GetStringBytes("name"))
	if name == "" {
		return nil, errors.New("missing name")
	}
	rawCols := series.GetArray("columns")
	if len(rawCols) == 0 {
		return nil, fmt.Errorf("%s: missing columns", name)
	}
	cols := make([]string, len(rawCols))
	for i, c := range rawCols {
		b, err := c.StringBytes()
		if err != nil {
			return nil, fmt.Errorf("%s: column %d: %w", name, i, err)
		}
		cols[i] = string(b)
	}

	rows := series.GetArray("points")
	out := make([]domain.Point, 0, len(rows))
	for r, row := range rows {
		vals, err := row.Array()
		if err != nil {
			return nil, fmt.Errorf("%s: point %d: %w", name, r, err)
		}
		if len(vals) != len(cols) {
			return nil, fmt.Errorf("%s: point %d has %d values for %d columns", name, r, len(vals), len(cols))
		}
		pt := domain.Point{Database: db, Measurement: name, Fields: map[string]any{}, Time: now}
		for i, v := range vals {
			switch cols[i] {
			case "time":
				ts, err := v.Int64()
				if err != nil {
					return nil, fmt.Errorf("%s: point %d: time: %w", name, r, err)
				}
				pt.Time = p.Time(ts).UTC()
			case "sequence_number":
			default:
				if fv, ok := jsonValue(v); ok {
					pt.Fields[cols[i]] = fv
				}
			}
		}
		if len(pt.Fields) > 0 {
			out = append(out, pt)
		}
	}
	return out, nil
}

// jsonValue maps a JSON scalar onto a field value. Nulls are dropped.
func jsonValue(v *fastjson.Value) (any, bool) {
	switch v.Type() {
	case fastjson.TypeNumber:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		f, err := v.Float64()
		return f, err == nil
	case fastjson.TypeString:
		return string(v.GetStringBytes()), true
	case fastjson.TypeTrue:
		return true, true
	case fastjson.TypeFalse:
		return false, true
	default:
		return nil, false
	}
}
