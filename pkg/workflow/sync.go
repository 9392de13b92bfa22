package workflow

import (
	"sync"
	"sync/atomic"

	"github.com/kgl-go/kglflow/pkg/logging"
)

// syncEnvelope carries a registered sequence number alongside the item,
// or marks the stop token, as it travels through Sync's input queue.
type syncEnvelope[T any] struct {
	seq    uint64
	item   T
	isStop bool
}

// Sync is Workflow-Sync (order-preserving) from spec.md §4.6: a sequence
// number is assigned at Push, workers run f outside the process mutex,
// and a pair of min-heaps keyed by sequence restore input order on
// output even though workers complete out of order.
type Sync[T any, R any] struct {
	input  WorkQueue[syncEnvelope[T]]
	output WorkQueue[R]
	f      func(T) (R, bool)
	log    logging.Sink

	seqCounter    atomic.Uint64
	activeThreads atomic.Int32
	state         atomic.Int32
	stoppedCh     chan struct{}

	mu            sync.Mutex
	requestHeap   seqHeap
	processedHeap processedHeap[R]
}

// NewSync constructs a Sync workflow. f may return (zero, false) to skip
// emitting an output for a given input, per spec.md §4.6's edge case —
// the sequence is still consumed from the request heap.
func NewSync[T any, R any](input WorkQueue[syncEnvelope[T]], output WorkQueue[R], f func(T) (R, bool), log logging.Sink) *Sync[T, R] {
	if log == nil {
		log = logging.Noop()
	}
	return &Sync[T, R]{input: input, output: output, f: f, log: log, stoppedCh: make(chan struct{})}
}

// Activate spawns n worker goroutines.
func (s *Sync[T, R]) Activate(n int) {
	if n < 1 {
		n = 1
	}
	s.activeThreads.Store(int32(n))
	for i := 0; i < n; i++ {
		go s.worker()
	}
}

// Push assigns the next sequence number and enqueues item. The sequence
// is registered in the request heap before the (possibly blocking) queue
// push, so ordering is correct even if this call blocks on a tidal input
// queue, matching spec.md §4.6's per-push state machine.
func (s *Sync[T, R]) Push(item T) {
	seq := s.seqCounter.Add(1)

	s.mu.Lock()
	s.requestHeap.push(seq)
	s.mu.Unlock()

	s.input.Push(syncEnvelope[T]{seq: seq, item: item})
}

// PushStop enqueues the stop token. Callers must ensure every Push that
// should be processed has already returned before calling PushStop, since
// the stop token is guaranteed to be the last item any worker observes.
func (s *Sync[T, R]) PushStop() {
	s.input.Push(syncEnvelope[T]{isStop: true})
}

func (s *Sync[T, R]) worker() {
	for {
		env, ok := s.input.WaitAndPop()
		if !ok {
			return
		}
		if env.isStop {
			if s.activeThreads.Add(-1) != 0 {
				s.input.Push(syncEnvelope[T]{isStop: true})
				return
			}
			s.markStopped()
			return
		}

		result, produced := s.f(env.item) // outside the process mutex

		s.mu.Lock()
		top, hasTop := s.requestHeap.peek()
		if hasTop && top == env.seq {
			s.requestHeap.pop()
			if produced {
				s.output.Push(result)
			}
			s.drainProcessed()
		} else {
			s.processedHeap.push(processedEntry[R]{seq: env.seq, result: result, has: produced})
		}
		s.mu.Unlock()
	}
}

// drainProcessed must be called with s.mu held. It repeatedly emits
// already-completed results whose sequence now matches the new request
// heap top, exactly as spec.md §4.6 describes.
func (s *Sync[T, R]) drainProcessed() {
	for {
		reqTop, hasReq := s.requestHeap.peek()
		procTop, hasProc := s.processedHeap.peekSeq()
		if !hasReq || !hasProc || reqTop != procTop {
			return
		}
		entry, _ := s.processedHeap.pop()
		s.requestHeap.pop()
		if entry.has {
			s.output.Push(entry.result)
		}
	}
}

func (s *Sync[T, R]) markStopped() {
	s.state.Store(int32(wfStopped))
	close(s.stoppedCh)
	s.log.Log(logging.InfoLevel, "workflow.sync", "workflow stopped", nil)
}

// WaitUntilStopped blocks until every worker has observed the stop token.
func (s *Sync[T, R]) WaitUntilStopped() { <-s.stoppedCh }
