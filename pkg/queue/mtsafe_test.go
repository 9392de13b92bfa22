package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMTSafePushPop(t *testing.T) {
	q := NewMTSafe[int]()
	q.Push(1)
	q.Push(2)
	q.Push(3)

	v, ok := q.WaitAndPop()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = q.TryPop()
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestMTSafeTryPopEmpty(t *testing.T) {
	q := NewMTSafe[string]()
	_, ok := q.TryPop()
	assert.False(t, ok)
}

func TestMTSafeWaitAndPopBlocksUntilPush(t *testing.T) {
	q := NewMTSafe[int]()
	result := make(chan int, 1)

	go func() {
		v, ok := q.WaitAndPop()
		if ok {
			result <- v
		}
	}()

	time.Sleep(20 * time.Millisecond) // give the goroutine a chance to block
	q.Push(42)

	select {
	case v := <-result:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("WaitAndPop never returned")
	}
}

func TestMTSafeCloseWakesWaiters(t *testing.T) {
	q := NewMTSafe[int]()
	done := make(chan bool, 1)

	go func() {
		_, ok := q.WaitAndPop()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Close did not wake blocked WaitAndPop")
	}
}

// TestMTSafeCounters verifies invariant 2 from spec.md §8: for any
// interleaving, size == pushes - pops and activity == pushes + pops at a
// quiescent point.
func TestMTSafeCounters(t *testing.T) {
	q := NewMTSafe[int]()
	const producers = 5
	const perProducer = 2000

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()

	pushes := int64(producers * perProducer)
	assert.Equal(t, pushes, q.Size())
	assert.Equal(t, pushes, q.Activity())

	pops := int64(0)
	for {
		_, ok := q.TryPop()
		if !ok {
			break
		}
		pops++
	}
	assert.Equal(t, pushes, pops)
	assert.Equal(t, int64(0), q.Size())
	assert.Equal(t, pushes+pops, q.Activity())
}

// TestMTSafeNoLeaksAfterClose verifies invariant 9: queue size is 0 after
// everything has been drained and closed.
func TestMTSafeNoLeaksAfterClose(t *testing.T) {
	q := NewMTSafe[int]()
	for i := 0; i < 10; i++ {
		q.Push(i)
	}
	for i := 0; i < 10; i++ {
		_, ok := q.TryPop()
		require.True(t, ok)
	}
	q.Close()
	assert.True(t, q.Empty())
}
