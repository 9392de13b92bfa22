package streamio

import (
	"sync"

	"github.com/kgl-go/kglflow/pkg/logging"
	"github.com/kgl-go/kglflow/pkg/queue"
)

// lineItem is what LineBuffer's internal tidal queue carries: either a
// Record or the terminal EOF marker.
type lineItem struct {
	rec Record
	eof bool
}

// LineBuffer is the multi-threaded line buffer from spec.md §4.10: it
// wraps any Stream, spawning one reader goroutine that drains records
// into a bounded tidal queue so a slow consumer applies backpressure to
// the underlying decoder rather than letting it run unbounded ahead.
type LineBuffer struct {
	src   Stream
	log   logging.Sink
	queue *queue.TidalQueue[lineItem]

	closeOnce sync.Once
	stopCh    chan struct{}
	done      chan struct{}

	goodMu sync.Mutex
	good   bool
}

// NewLineBuffer wraps src and immediately starts the background reader.
func NewLineBuffer(src Stream, highTide, lowTide int, log logging.Sink) *LineBuffer {
	if log == nil {
		log = logging.Noop()
	}
	lb := &LineBuffer{
		src:   src,
		log:   log,
		queue:  queue.NewTidal[lineItem](highTide, lowTide),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		good:   true,
	}
	go lb.run()
	return lb
}

func (lb *LineBuffer) run() {
	defer close(lb.done)
	for {
		select {
		case <-lb.stopCh:
			return
		default:
		}

		rec, ok := lb.src.ReadLine()
		if !ok {
			lb.goodMu.Lock()
			lb.good = lb.src.Good()
			lb.goodMu.Unlock()
			lb.queue.Push(lineItem{eof: true})
			return
		}
		lb.queue.Push(lineItem{rec: rec})
	}
}

// ReadLine dequeues the next record. Safe for a single consumer; with
// multiple consumers, order across consumers is not defined, matching
// spec.md §4.10.
func (lb *LineBuffer) ReadLine() (Record, bool) {
	item, ok := lb.queue.WaitAndPop()
	if !ok || item.eof {
		return Record{}, false
	}
	return item.rec, true
}

// Good reports whether the underlying stream ended cleanly.
func (lb *LineBuffer) Good() bool {
	lb.goodMu.Lock()
	defer lb.goodMu.Unlock()
	return lb.good
}

// Close sets the EOF flag, joins the reader thread, and clears the queue.
// Closing the queue first wakes a reader that is currently blocked pushing
// into a flooded queue, so this is safe to call before the source has run
// to completion.
func (lb *LineBuffer) Close() error {
	lb.closeOnce.Do(func() {
		close(lb.stopCh)
		lb.queue.Close()
		<-lb.done
		lb.queue.Clear()
	})
	return lb.src.Close()
}
