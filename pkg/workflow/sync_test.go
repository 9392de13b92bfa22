package workflow

import (
	"sync"
	"testing"

	"github.com/kgl-go/kglflow/pkg/queue"
	"github.com/stretchr/testify/require"
)

// collectingQueue adapts a plain mutex-guarded slice to the WorkQueue
// interface for tests that only need to observe emission order, without
// the blocking semantics of queue.MTSafeQueue.
type collectingQueue[T any] struct {
	mu    sync.Mutex
	items []T
}

func (c *collectingQueue[T]) Push(item T) {
	c.mu.Lock()
	c.items = append(c.items, item)
	c.mu.Unlock()
}
func (c *collectingQueue[T]) WaitAndPop() (T, bool) {
	var zero T
	return zero, false
}
func (c *collectingQueue[T]) Close() {}

func (c *collectingQueue[T]) snapshot() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func TestSyncPreservesOrderUnderConcurrentWorkers(t *testing.T) {
	const n = 2000

	input := queue.NewMTSafe[syncEnvelope[int]]()
	output := &collectingQueue[int]{}

	sw := NewSync[int, int](input, output, func(x int) (int, bool) {
		return x, true
	}, nil)
	sw.Activate(20)

	for i := 1; i <= n; i++ {
		sw.Push(i)
	}
	sw.PushStop()
	sw.WaitUntilStopped()

	got := output.snapshot()
	require.Len(t, got, n)
	for i, v := range got {
		require.Equal(t, i+1, v, "output must be strictly ascending at index %d", i)
	}
}

func TestSyncSkipsWhenFDeclinesToProduce(t *testing.T) {
	input := queue.NewMTSafe[syncEnvelope[int]]()
	output := &collectingQueue[int]{}

	sw := NewSync[int, int](input, output, func(x int) (int, bool) {
		if x%2 == 0 {
			return 0, false
		}
		return x, true
	}, nil)
	sw.Activate(4)

	for i := 1; i <= 10; i++ {
		sw.Push(i)
	}
	sw.PushStop()
	sw.WaitUntilStopped()

	require.Equal(t, []int{1, 3, 5, 7, 9}, output.snapshot())
}

func TestSyncSingleWorkerPreservesOrderTrivially(t *testing.T) {
	input := queue.NewMTSafe[syncEnvelope[int]]()
	output := &collectingQueue[int]{}

	sw := NewSync[int, int](input, output, func(x int) (int, bool) { return x * x, true }, nil)
	sw.Activate(1)

	for i := 1; i <= 50; i++ {
		sw.Push(i)
	}
	sw.PushStop()
	sw.WaitUntilStopped()

	got := output.snapshot()
	require.Len(t, got, 50)
	for i, v := range got {
		require.Equal(t, (i+1)*(i+1), v)
	}
}
