// Package memory is an in-process Sender that records lines and flushes.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/vshulcz/influxreporter/internal/domain"
	"github.com/vshulcz/influxreporter/internal/ports"
)

// Sender keeps every line it is given. Batches holds one entry per
// non-empty flush, the lines joined by "\n".
type Sender struct {
	// SendErr, when set, is consulted for every line before it is recorded.
	SendErr func(line string) error
	// FlushErr is returned by Flush after the batch has been recorded.
	FlushErr error

	mu      sync.Mutex
	pending []string
	frames  []string
	batches []string
	flushes int
	closed  bool
}

var _ ports.Sender = (*Sender)(nil)

func New() *Sender { return &Sender{} }

func (s *Sender) Send(_ context.Context, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSenderClosed
	}
	if s.SendErr != nil {
		if err := s.SendErr(line); err != nil {
			return err
		}
	}
	s.pending = append(s.pending, line)
	s.frames = append(s.frames, line)
	return nil
}

func (s *Sender) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	if len(s.pending) > 0 {
		s.batches = append(s.batches, strings.Join(s.pending, "\n"))
		s.pending = s.pending[:0]
	}
	return s.FlushErr
}

func (s *Sender) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Frames returns every line sent so far.
func (s *Sender) Frames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...)
}

func (s *Sender) Batches() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.batches...)
}

func (s *Sender) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

func (s *Sender) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Reset forgets everything recorded.
func (s *Sender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending, s.frames, s.batches = nil, nil, nil
	s.flushes = 0
}
