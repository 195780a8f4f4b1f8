// Package file appends cycle events to a newline-delimited JSON file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vshulcz/influxreporter/internal/services/audit"
)

// ErrClosed is returned by Notify after Close.
var ErrClosed = errors.New("audit file closed")

// Writer opens the file on the first event and keeps it open until Close.
// It is safe for concurrent use.
type Writer struct {
	path string

	mu     sync.Mutex
	f      *os.File
	enc    *json.Encoder
	closed bool
}

var _ audit.Observer = (*Writer)(nil)

func New(path string) *Writer {
	return &Writer{path: path}
}

// Notify appends evt as one JSON line. A Writer without a path drops events.
func (w *Writer) Notify(_ context.Context, evt audit.Event) error {
	if w == nil || w.path == "" {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.f == nil {
		if err := w.open(); err != nil {
			return err
		}
	}
	if err := w.enc.Encode(evt); err != nil {
		return fmt.Errorf("write audit file: %w", err)
	}
	return nil
}

func (w *Writer) open() error {
	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create audit dir: %w", err)
		}
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	w.f = f
	w.enc = json.NewEncoder(f)
	return nil
}

// Close releases the file. Later events fail with ErrClosed.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f, w.enc = nil, nil
	if err != nil {
		return fmt.Errorf("close audit file: %w", err)
	}
	return nil
}
