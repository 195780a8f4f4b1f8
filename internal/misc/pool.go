package misc

import (
	"bytes"
	"sync"
)

// Resetter is implemented by values that can be reused after Reset.
type Resetter interface {
	Reset()
}

// Pool is a typed sync.Pool. Put resets values before pooling them.
type Pool[T Resetter] struct {
	p       sync.Pool
	discard func(T) bool
}

// NewPool creates a Pool whose empty Get calls newFn.
func NewPool[T Resetter](newFn func() T) *Pool[T] {
	pl := &Pool[T]{}
	pl.p.New = func() any {
		if newFn != nil {
			return newFn()
		}
		var zero T
		return zero
	}
	return pl
}

// WithDiscard makes Put drop values for which fn returns true.
func (pl *Pool[T]) WithDiscard(fn func(T) bool) *Pool[T] {
	pl.discard = fn
	return pl
}

// Get retrieves a value from the pool.
func (pl *Pool[T]) Get() T {
	if value, ok := pl.p.Get().(T); ok {
		return value
	}
	var zero T
	return zero
}

// Put resets v and returns it to the pool unless the discard predicate
// rejects it.
func (pl *Pool[T]) Put(v T) {
	if pl.discard != nil && pl.discard(v) {
		return
	}
	v.Reset()
	pl.p.Put(v)
}

// NewBufferPool pools buffers and drops those that grew beyond maxCap, so one
// oversized batch does not pin its memory.
func NewBufferPool(maxCap int) *Pool[*bytes.Buffer] {
	return NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }).
		WithDiscard(func(b *bytes.Buffer) bool { return b == nil || b.Cap() > maxCap })
}
