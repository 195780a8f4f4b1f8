// Package registry combines snapshot sources.
package registry

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/vshulcz/influxreporter/internal/domain"
	"github.com/vshulcz/influxreporter/internal/ports"
)

type chain []ports.Source

// Chain returns a source that concatenates the snapshots of every source,
// sorted by name. Nil sources are skipped.
func Chain(sources ...ports.Source) ports.Source {
	out := make(chain, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (c chain) Snapshot(ctx context.Context) ([]domain.NamedSnapshot, error) {
	var all []domain.NamedSnapshot
	for i, s := range c {
		snaps, err := s.Snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		all = append(all, snaps...)
	}
	slices.SortStableFunc(all, func(a, b domain.NamedSnapshot) int {
		return strings.Compare(a.Name, b.Name)
	})
	return all, nil
}
