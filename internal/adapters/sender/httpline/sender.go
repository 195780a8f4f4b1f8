// Package httpline buffers line-protocol lines and posts them to the
// InfluxDB /write endpoint.
package httpline

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/vshulcz/influxreporter/internal/adapters/influxhttp"
	"github.com/vshulcz/influxreporter/internal/domain"
	"github.com/vshulcz/influxreporter/internal/lineproto"
	"github.com/vshulcz/influxreporter/internal/ports"
)

const (
	// Transport labels flushes reported to a FlushObserver.
	Transport = "http"

	DefaultBatchSize = 5000
	DefaultMaxBytes  = 4 << 20

	contentType = "text/plain; charset=utf-8"
)

// Config describes the /write endpoint and the buffer limits.
type Config struct {
	URL       string
	Database  string
	Precision lineproto.Precision
	BatchSize int
	MaxBytes  int
	influxhttp.Options
}

// Sender accumulates lines and posts them in one request per flush. It is
// safe for concurrent use.
type Sender struct {
	client   *influxhttp.Client
	observer ports.FlushObserver
	query    url.Values
	buf      bytes.Buffer

	batchSize int
	maxBytes  int
	lines     int

	mu     sync.Mutex
	closed bool
}

var _ ports.Sender = (*Sender)(nil)

// Option customizes a Sender.
type Option func(*Sender)

// WithObserver reports every flush to o.
func WithObserver(o ports.FlushObserver) Option {
	return func(s *Sender) { s.observer = o }
}

// New returns a Sender posting to cfg.URL.
func New(cfg Config, opts ...Option) (*Sender, error) {
	client, err := influxhttp.New(cfg.URL, cfg.Options)
	if err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	s := &Sender{
		client:    client,
		query:     url.Values{"db": {cfg.Database}, "precision": {cfg.Precision.Param()}},
		batchSize: cfg.BatchSize,
		maxBytes:  cfg.MaxBytes,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Send appends line to the buffer, flushing first when it would overflow
// the batch size or byte budget. The flush error is returned even though
// line was buffered.
func (s *Sender) Send(ctx context.Context, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSenderClosed
	}

	var err error
	if s.lines > 0 && (s.lines+1 > s.batchSize || s.buf.Len()+1+len(line) > s.maxBytes) {
		// A failed flush drops only the old batch; line still goes in.
		err = s.flushLocked(ctx)
	}
	if s.lines > 0 {
		s.buf.WriteByte('\n')
	}
	s.buf.WriteString(line)
	s.lines++
	return err
}

// Flush posts the buffered lines. The buffer is emptied before the request
// goes out, so a failed batch is dropped.
func (s *Sender) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

func (s *Sender) flushLocked(ctx context.Context) error {
	if s.lines == 0 {
		return nil
	}
	payload := bytes.Clone(s.buf.Bytes())
	lines := s.lines
	s.buf.Reset()
	s.lines = 0

	start := time.Now()
	err := s.client.Post(ctx, "/write", s.query, contentType, payload)
	if s.observer != nil {
		s.observer.ObserveFlush(Transport, lines, len(payload), time.Since(start), err)
	}
	if err != nil {
		return fmt.Errorf("flush %d lines: %w", lines, err)
	}
	return nil
}

// Buffered returns the number of lines waiting for the next flush.
func (s *Sender) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines
}

// Close discards anything still buffered and releases idle connections.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.buf.Reset()
	s.lines = 0
	s.client.CloseIdleConnections()
	return nil
}
