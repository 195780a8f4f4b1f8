// Package udpline writes every line-protocol line as its own UDP datagram.
package udpline

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/vshulcz/influxreporter/internal/domain"
	"github.com/vshulcz/influxreporter/internal/ports"
)

// Transport labels datagrams reported to a FlushObserver.
const Transport = "udp"

// Sender has no buffer: Send transmits and Flush does nothing.
type Sender struct {
	conn     net.Conn
	observer ports.FlushObserver
	mu       sync.Mutex
	closed   bool
}

var _ ports.Sender = (*Sender)(nil)

// Option customizes a Sender.
type Option func(*Sender)

// WithObserver reports every datagram to o.
func WithObserver(o ports.FlushObserver) Option {
	return func(s *Sender) { s.observer = o }
}

// New dials addr so that resolution errors surface at configuration time.
func New(addr string, opts ...Option) (*Sender, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve udp %q: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial udp %q: %w", addr, err)
	}
	s := &Sender{conn: conn}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Sender) Send(_ context.Context, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSenderClosed
	}
	start := time.Now()
	_, err := s.conn.Write([]byte(line))
	if s.observer != nil {
		s.observer.ObserveFlush(Transport, 1, len(line), time.Since(start), err)
	}
	if err != nil {
		return fmt.Errorf("udp write: %w", err)
	}
	return nil
}

func (s *Sender) Flush(context.Context) error { return nil }

func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}
