// Package observer is a small generic publish/subscribe helper.
package observer

import (
	"context"
	"fmt"
	"sync"
)

// Observer receives published events of type T.
type Observer[T any] interface {
	Notify(context.Context, T) error
}

// ObserverFunc adapts a standalone function into an Observer.
//
//revive:disable-next-line:exported
type ObserverFunc[T any] func(context.Context, T) error

// Notify executes the wrapped function.
func (f ObserverFunc[T]) Notify(ctx context.Context, evt T) error {
	if f == nil {
		return nil
	}
	return f(ctx, evt)
}

// Publisher publishes events to downstream observers.
type Publisher[T any] interface {
	Publish(context.Context, T)
}

// NotifyError names the observer that failed.
type NotifyError struct {
	Observer any
	Err      error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("observer %T: %v", e.Observer, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }

// Subject fans events out to its observers in registration order. A failing
// or panicking observer does not stop the others.
type Subject[T any] struct {
	mu        sync.RWMutex
	observers []Observer[T]
	onError   func(error)
}

// NewSubject constructs a Subject with optional initial observers.
func NewSubject[T any](observers ...Observer[T]) *Subject[T] {
	s := &Subject[T]{}
	s.Attach(observers...)
	return s
}

// Publish invokes every observer with evt. Failures reach the error handler
// as *NotifyError.
func (s *Subject[T]) Publish(ctx context.Context, evt T) {
	if s == nil {
		return
	}

	s.mu.RLock()
	observers := append([]Observer[T](nil), s.observers...)
	errHandler := s.onError
	s.mu.RUnlock()

	for _, obs := range observers {
		if err := notify(ctx, obs, evt); err != nil && errHandler != nil {
			errHandler(&NotifyError{Observer: obs, Err: err})
		}
	}
}

func notify[T any](ctx context.Context, obs Observer[T], evt T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return obs.Notify(ctx, evt)
}

// Attach registers observers; nil entries are ignored.
func (s *Subject[T]) Attach(observers ...Observer[T]) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range observers {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// Len returns the number of registered observers.
func (s *Subject[T]) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers)
}

// SetErrorHandler configures a callback for observer failures.
func (s *Subject[T]) SetErrorHandler(fn func(error)) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}
