package parallel

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPoolWorkers(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{"explicit", 4, 4},
		{"zero", 0, runtime.GOMAXPROCS(0)},
		{"negative", -3, runtime.GOMAXPROCS(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPool(tt.workers)
			defer p.Close()
			if got := p.Workers(); got != tt.want {
				t.Errorf("Workers() = %d, want %d", got, tt.want)
			}
			if !p.Running() {
				t.Error("new pool should be running")
			}
		})
	}
}

func TestPoolRunVisitsEveryIndex(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	for _, n := range []int{0, 1, 7, 128, 1000} {
		seen := make([]atomic.Int32, n)
		if err := p.Run(context.Background(), n, func(i int) { seen[i].Add(1) }); err != nil {
			t.Fatalf("Run(%d) = %v", n, err)
		}
		for i := range seen {
			if got := seen[i].Load(); got != 1 {
				t.Fatalf("Run(%d): index %d ran %d times, want 1", n, i, got)
			}
		}
	}
}

func TestPoolRunUneven(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	// Index 0 is slow; stealing lets the rest finish on other workers.
	var done atomic.Int32
	err := p.Run(context.Background(), 64, func(i int) {
		if i == 0 {
			time.Sleep(20 * time.Millisecond)
		}
		done.Add(1)
	})
	if err != nil {
		t.Fatal(err)
	}
	if done.Load() != 64 {
		t.Errorf("done = %d, want 64", done.Load())
	}
}

func TestPoolRunCanceled(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	err := p.Run(ctx, 10, func(int) { calls.Add(1) })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
	if calls.Load() != 0 {
		t.Errorf("calls = %d, want 0 for a canceled context", calls.Load())
	}
}

func TestPoolClose(t *testing.T) {
	p := NewPool(2)
	p.Close()
	p.Close() // idempotent
	if p.Running() {
		t.Error("closed pool should not be running")
	}

	// A closed pool still runs work, inline.
	sum := 0
	if err := p.Run(context.Background(), 4, func(i int) { sum += i }); err != nil {
		t.Fatal(err)
	}
	if sum != 6 {
		t.Errorf("sum = %d, want 6", sum)
	}
}

func TestPoolConcurrentRunAndClose(t *testing.T) {
	p := NewPool(4)
	var wg sync.WaitGroup
	var total atomic.Int64
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Run(context.Background(), 50, func(int) { total.Add(1) })
		}()
	}
	p.Close()
	wg.Wait()
	if total.Load() != 400 {
		t.Errorf("total = %d, want 400", total.Load())
	}
}

func TestPoolNoGoroutineLeak(t *testing.T) {
	before := runtime.NumGoroutine()
	for range 10 {
		p := NewPool(4)
		_ = p.Run(context.Background(), 16, func(int) {})
		p.Close()
	}
	time.Sleep(10 * time.Millisecond)
	if after := runtime.NumGoroutine(); after > before+2 {
		t.Errorf("goroutines: before=%d after=%d", before, after)
	}
}
