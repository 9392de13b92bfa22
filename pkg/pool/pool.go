package pool

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/kgl-go/kglflow/pkg/logging"
	"github.com/kgl-go/kglflow/pkg/queue"
)

// ErrPoolStopped is returned by Enqueue/Submit once the pool has begun or
// finished shutting down.
var ErrPoolStopped = errors.New("pool: stopped")

// state mirrors spec.md §3's Thread-Pool ACTIVE/STOPPED pair.
type state int32

const (
	active state = iota
	stopped
)

// Pool is a fixed set of worker goroutines consuming Callables off an
// internal MTSafeQueue, per spec.md §4.4. A nil Callable is the internal
// stop token: on dequeue a worker re-enqueues it before exiting, so a
// single nil shuts down every worker regardless of pool size (the
// "cascade" in spec.md §4.4's invariant).
type Pool struct {
	queue   *queue.MTSafeQueue[Callable]
	wg      sync.WaitGroup
	state   atomic.Int32
	log     logging.Sink
	metrics *promMetrics

	completed atomic.Int64
}

// New starts n worker goroutines immediately. n < 1 is treated as 1. Pass
// a MetricsOption built with WithPrometheus to export queue-depth and
// completed-task counters; omit it to run without metrics.
func New(n int, log logging.Sink, metrics ...MetricsOption) *Pool {
	if n < 1 {
		n = 1
	}
	if log == nil {
		log = logging.Noop()
	}
	p := &Pool{queue: queue.NewMTSafe[Callable](), log: log}
	if len(metrics) > 0 {
		p.metrics = metrics[0].build()
	}

	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		f, ok := p.queue.WaitAndPop()
		if !ok {
			return // queue closed out from under us; nothing left to run
		}
		if f == nil {
			p.queue.Push(nil) // cascade: wake the next worker in line
			return
		}
		p.metrics.observeDepth(p.queue.Size())
		f.Run()
		p.completed.Add(1)
		p.metrics.recordCompleted()
	}
}

// EnqueueVoid submits f for fire-and-forget execution.
func (p *Pool) EnqueueVoid(f func()) error {
	if state(p.state.Load()) == stopped {
		return ErrPoolStopped
	}
	p.queue.Push(Func(f))
	p.metrics.observeDepth(p.queue.Size())
	return nil
}

// Submit wraps f in a one-shot task that fulfills the returned Future once
// f completes, per spec.md §4.4's "enqueue_future". A generic function
// rather than a generic method, since Go does not allow a method to
// introduce type parameters the receiver type does not already have.
func Submit[R any](p *Pool, f func() R) (*Future[R], error) {
	if state(p.state.Load()) == stopped {
		return nil, ErrPoolStopped
	}
	fut := newFuture[R]()
	p.queue.Push(Func(func() {
		fut.fulfill(f(), nil)
	}))
	p.metrics.observeDepth(p.queue.Size())
	return fut, nil
}

// SubmitErr is Submit for functions that can fail; the error surfaces
// through Future.Wait's second return value.
func SubmitErr[R any](p *Pool, f func() (R, error)) (*Future[R], error) {
	if state(p.state.Load()) == stopped {
		return nil, ErrPoolStopped
	}
	fut := newFuture[R]()
	p.queue.Push(Func(func() {
		v, err := f()
		fut.fulfill(v, err)
	}))
	p.metrics.observeDepth(p.queue.Size())
	return fut, nil
}

// Completed returns the number of callables that have finished running.
func (p *Pool) Completed() int64 { return p.completed.Load() }

// Close pushes the stop token and blocks until every worker has exited.
// Safe to call more than once.
func (p *Pool) Close() {
	if !p.state.CompareAndSwap(int32(active), int32(stopped)) {
		p.wg.Wait()
		return
	}
	p.queue.Push(nil)
	p.wg.Wait()
	p.log.Log(logging.InfoLevel, "pool", "thread pool stopped", map[string]any{
		"completed": p.completed.Load(),
	})
}
