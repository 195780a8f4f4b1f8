// Package file snapshots sink points to a JSON file and restores them on
// start.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vshulcz/influxreporter/internal/domain"
	"github.com/vshulcz/influxreporter/internal/ports"
)

type Persister struct {
	path string
}

var _ ports.Persister = (*Persister)(nil)

func New(path string) *Persister {
	return &Persister{path: path}
}

type record struct {
	Database    string              `json:"database"`
	Measurement string              `json:"measurement"`
	Tags        map[string]string   `json:"tags,omitempty"`
	Time        time.Time           `json:"time"`
	Fields      []domain.TypedField `json:"fields"`
}

func (p *Persister) Save(_ context.Context, points []domain.Point) error {
	records := make([]record, 0, len(points))
	for _, pt := range points {
		records = append(records, toRecord(pt))
	}
	return writeJSONAtomic(p.path, records)
}

func (p *Persister) Restore(ctx context.Context, repo ports.PointsRepo) (retErr error) {
	f, err := os.Open(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close: %w", cerr)
		}
	}()

	var records []record
	if err := json.NewDecoder(f).Decode(&records); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	points := make([]domain.Point, 0, len(records))
	for _, r := range records {
		points = append(points, r.point())
	}
	return repo.Write(ctx, points)
}

func toRecord(p domain.Point) record {
	return record{
		Database:    p.Database,
		Measurement: p.Measurement,
		Tags:        p.Tags,
		Time:        p.Time,
		Fields:      domain.EncodeFields(p.Fields),
	}
}

func (r record) point() domain.Point {
	return domain.Point{
		Database:    r.Database,
		Measurement: r.Measurement,
		Tags:        r.Tags,
		Fields:      domain.DecodeFields(r.Fields),
		Time:        r.Time,
	}
}

func writeJSONAtomic(path string, records []record) (retErr error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(dir, ".points-*")
	if err != nil {
		return fmt.Errorf("create tmp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := true
	closed := false
	defer func() {
		if !closed {
			if cerr := tmp.Close(); cerr != nil && retErr == nil {
				retErr = fmt.Errorf("close tmp: %w", cerr)
			}
		}
		if cleanup {
			if err := os.Remove(tmpName); err != nil && retErr == nil {
				retErr = fmt.Errorf("remove tmp: %w", err)
			}
		}
	}()
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close tmp: %w", err)
	}
	closed = true
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	cleanup = false
	return nil
}
