package workflow

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/kgl-go/kglflow/pkg/logging"
)

// ErrAlreadyActive is returned by Activate when the workflow has already
// been started.
var ErrAlreadyActive = errors.New("workflow: already active")

type workflowState int32

const (
	wfActive workflowState = iota
	wfShutdown
	wfStopped
)

// Async is Workflow-Async from spec.md §4.5: many worker goroutines
// consume items in arbitrary order, outputs are unordered, and a
// designated stop token — guaranteed to be the last item any worker
// observes — flushes the pipeline.
type Async[T comparable] struct {
	queue     WorkQueue[T]
	stopToken T
	f         func(T)
	log       logging.Sink

	activeThreads atomic.Int32
	state         atomic.Int32

	stoppedMu sync.Mutex
	stoppedCh chan struct{}
	active    bool
}

// NewAsync constructs an Async workflow over q, with stopToken as the
// designated terminator value. f is shared read-only across every worker
// (spec.md §3's ownership rule), so it must be safe for concurrent calls
// or operate on effectively-immutable captured state.
func NewAsync[T comparable](q WorkQueue[T], stopToken T, f func(T), log logging.Sink) *Async[T] {
	if log == nil {
		log = logging.Noop()
	}
	return &Async[T]{queue: q, stopToken: stopToken, f: f, log: log, stoppedCh: make(chan struct{})}
}

// Activate spawns n worker goroutines. Returns ErrAlreadyActive if called
// more than once on the same workflow.
func (a *Async[T]) Activate(n int) error {
	a.stoppedMu.Lock()
	if a.active {
		a.stoppedMu.Unlock()
		return ErrAlreadyActive
	}
	a.active = true
	a.stoppedMu.Unlock()

	if n < 1 {
		n = 1
	}
	a.activeThreads.Store(int32(n))
	for i := 0; i < n; i++ {
		go a.worker()
	}
	return nil
}

func (a *Async[T]) worker() {
	for {
		item, ok := a.queue.WaitAndPop()
		if !ok {
			return
		}
		if item == a.stopToken {
			if a.activeThreads.Add(-1) != 0 {
				a.queue.Push(a.stopToken) // cascade to the next waiting worker
				return
			}
			a.f(a.stopToken) // flush hook, exactly once, by the last worker standing
			a.markStopped()
			return
		}
		a.f(item)
	}
}

func (a *Async[T]) markStopped() {
	a.state.Store(int32(wfStopped))
	close(a.stoppedCh)
	a.log.Log(logging.InfoLevel, "workflow.async", "workflow stopped", nil)
}

// Push forwards item to the underlying queue.
func (a *Async[T]) Push(item T) { a.queue.Push(item) }

// WaitUntilStopped blocks until every worker has observed the stop token
// and exited.
func (a *Async[T]) WaitUntilStopped() { <-a.stoppedCh }

// State reports ACTIVE, SHUTDOWN, or STOPPED — exposed mostly for tests
// and diagnostics.
func (a *Async[T]) State() string {
	switch workflowState(a.state.Load()) {
	case wfShutdown:
		return "SHUTDOWN"
	case wfStopped:
		return "STOPPED"
	default:
		return "ACTIVE"
	}
}
