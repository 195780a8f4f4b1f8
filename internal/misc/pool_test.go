package misc

import (
	"bytes"
	"sync"
	"testing"
)

type mockResetter struct {
	resetCalled bool
	size        int
}

func (m *mockResetter) Reset() {
	m.resetCalled = true
}

func TestPoolGet(t *testing.T) {
	pool := NewPool(func() *mockResetter { return &mockResetter{} })
	if item := pool.Get(); item == nil {
		t.Fatal("expected item to be non-nil, got nil")
	}
}

func TestPoolGet_NilConstructor(t *testing.T) {
	pool := NewPool[*mockResetter](nil)
	if item := pool.Get(); item != nil {
		t.Fatalf("expected zero value, got %+v", item)
	}
}

func TestPoolPut(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		wantReset bool
	}{
		{name: "small value is reset and pooled", size: 10, wantReset: true},
		{name: "large value is discarded untouched", size: 1000, wantReset: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewPool(func() *mockResetter { return &mockResetter{} }).
				WithDiscard(func(m *mockResetter) bool { return m.size > 100 })

			item := &mockResetter{size: tt.size}
			pool.Put(item)
			if item.resetCalled != tt.wantReset {
				t.Fatalf("resetCalled = %v, want %v", item.resetCalled, tt.wantReset)
			}
		})
	}
}

func TestNewBufferPool(t *testing.T) {
	pool := NewBufferPool(64)

	buf := pool.Get()
	buf.WriteString("cpu value=1")
	pool.Put(buf)
	if buf.Len() != 0 {
		t.Fatalf("pooled buffer not reset, len=%d", buf.Len())
	}

	big := bytes.NewBuffer(make([]byte, 0, 1024))
	big.WriteString("mem used=2i")
	pool.Put(big)
	if big.Len() == 0 {
		t.Fatal("oversized buffer was reset instead of dropped")
	}

	pool.Put(nil)
}

func TestPoolConcurrency(t *testing.T) {
	pool := NewBufferPool(1 << 10)

	var wg sync.WaitGroup
	const numGoroutines = 100

	wg.Add(numGoroutines)
	for i := range numGoroutines {
		go func() {
			defer wg.Done()
			buf := pool.Get()
			buf.WriteByte(byte(i))
			pool.Put(buf)
		}()
	}

	wg.Wait()
}
