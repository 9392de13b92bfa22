package workflow

import (
	"sync"

	"github.com/kgl-go/kglflow/pkg/logging"
	"github.com/kgl-go/kglflow/pkg/queue"
)

// Handle is a one-shot result slot handed back by Pipeline.Submit, in the
// spirit of spec.md §4.7's "callable carrying a one-shot result slot".
// Unlike pool.Future it is constructed and fulfilled entirely within this
// package, since Pipeline owns the pairing of item and handle.
type Handle[R any] struct {
	done chan struct{}
	val  R
	err  error
}

func newHandle[R any]() *Handle[R] {
	return &Handle[R]{done: make(chan struct{})}
}

func (h *Handle[R]) fulfill(val R, err error) {
	h.val, h.err = val, err
	close(h.done)
}

// Wait blocks until the handle's item has been processed.
func (h *Handle[R]) Wait() (R, error) {
	<-h.done
	return h.val, h.err
}

// Done reports readiness without blocking.
func (h *Handle[R]) Done() <-chan struct{} { return h.done }

type job[T any, R any] struct {
	item   T
	handle *Handle[R]
}

// Pipeline is Workflow-Pipeline from spec.md §4.7: a fixed pool of workers
// drains a bounded input queue of (item, handle) pairs, while handles are
// pushed onto a separate output queue in submission order. A consumer that
// drains the output queue and Waits on each handle in turn observes results
// in enqueue order, at the cost of head-of-line blocking when an early item
// takes longer than a later one.
type Pipeline[T any, R any] struct {
	input  *queue.TidalQueue[*job[T, R]]
	output WorkQueue[*Handle[R]]
	f      func(T) (R, error)
	log    logging.Sink
	wg     sync.WaitGroup
}

// NewPipeline constructs a Pipeline with a tidal (bounded, hysteresis)
// input queue and a caller-supplied output queue for handles. f is shared
// read-only across every worker, matching the ownership rule Async and
// Sync already follow.
func NewPipeline[T any, R any](inputHighTide, inputLowTide int, output WorkQueue[*Handle[R]], f func(T) (R, error), log logging.Sink) *Pipeline[T, R] {
	if log == nil {
		log = logging.Noop()
	}
	return &Pipeline[T, R]{
		input:  queue.NewTidal[*job[T, R]](inputHighTide, inputLowTide),
		output: output,
		f:      f,
		log:    log,
	}
}

// Activate spawns n worker goroutines.
func (p *Pipeline[T, R]) Activate(n int) {
	if n < 1 {
		n = 1
	}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker()
	}
}

func (p *Pipeline[T, R]) worker() {
	defer p.wg.Done()
	for {
		j, ok := p.input.WaitAndPop()
		if !ok {
			return
		}
		if j == nil { // cascade shutdown token, mirrors pool.Pool's nil convention
			p.input.Push(nil)
			return
		}
		result, err := p.f(j.item)
		j.handle.fulfill(result, err)
	}
}

// Submit enqueues item for processing and returns a handle for its result.
// The handle is pushed onto the output queue immediately, before the item
// is necessarily processed, so that a single-producer caller sees handles
// on the output queue in the same order it called Submit.
func (p *Pipeline[T, R]) Submit(item T) *Handle[R] {
	h := newHandle[R]()
	p.input.Push(&job[T, R]{item: item, handle: h})
	p.output.Push(h)
	return h
}

// Close pushes the shutdown token, waits for every worker to exit, then
// closes the output queue.
func (p *Pipeline[T, R]) Close() {
	p.input.Push(nil)
	p.wg.Wait()
	p.output.Close()
	p.log.Log(logging.InfoLevel, "workflow.pipeline", "pipeline closed", nil)
}
