// Package parallel runs indexed work across a fixed set of goroutines.
//
// The software backend uses it to reduce tile rows concurrently, the way
// the GPU reduction runs one work-group row per dispatch row.
package parallel

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a set of workers with one queue each. An idle worker steals
// from the other queues, so uneven rows still finish together.
//
// Pool is safe for concurrent use.
type Pool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup

	// mu keeps Close from stopping workers while Run is queueing.
	mu      sync.RWMutex
	running atomic.Bool
}

// NewPool starts a pool of workers goroutines. workers <= 0 selects
// GOMAXPROCS.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := max(workers*4, 8)

	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]
	for {
		select {
		case <-p.done:
			drain(own)
			return
		case fn := <-own:
			fn()
		default:
			if fn := p.steal(id); fn != nil {
				fn()
				continue
			}
			select {
			case <-p.done:
				drain(own)
				return
			case fn := <-own:
				fn()
			}
		}
	}
}

func drain(q chan func()) {
	for {
		select {
		case fn := <-q:
			fn()
		default:
			return
		}
	}
}

func (p *Pool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case fn := <-p.queues[i]:
			return fn
		default:
		}
	}
	return nil
}

// Run calls fn(i) for every i in [0, n) and waits for all calls. Items
// are dealt round-robin to the worker queues. Once ctx is done no further
// items are queued and Run returns ctx.Err() after the queued ones finish.
// On a closed pool the items run on the caller's goroutine.
func (p *Pool) Run(ctx context.Context, n int, fn func(i int)) error {
	if n <= 0 {
		return ctx.Err()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running.Load() {
		for i := range n {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(i)
		}
		return nil
	}

	var wg sync.WaitGroup
	var err error
	for i := range n {
		if err = ctx.Err(); err != nil {
			break
		}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			fn(i)
		}
		select {
		case p.queues[i%p.workers] <- task:
		case <-ctx.Done():
			wg.Done()
			err = ctx.Err()
		}
		if err != nil {
			break
		}
	}
	wg.Wait()
	return err
}

// Close stops the workers after the queued items ran. It is safe to call
// more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.running.CompareAndSwap(true, false) {
		p.mu.Unlock()
		return
	}
	close(p.done)
	p.mu.Unlock()
	p.wg.Wait()
}

// Workers returns the number of workers.
func (p *Pool) Workers() int { return p.workers }

// Running reports whether the pool still has workers.
func (p *Pool) Running() bool { return p.running.Load() }
