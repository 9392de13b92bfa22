package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueVoidRunsAllTasks(t *testing.T) {
	p := New(4, nil)
	defer p.Close()

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.NoError(t, p.EnqueueVoid(func() {
			defer wg.Done()
			count.Add(1)
		}))
	}
	wg.Wait()
	assert.EqualValues(t, 100, count.Load())
}

func TestSubmitReturnsResult(t *testing.T) {
	p := New(2, nil)
	defer p.Close()

	fut, err := Submit(p, func() int { return 21 * 2 })
	require.NoError(t, err)

	v, err := fut.Wait()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestSubmitErrPropagatesError(t *testing.T) {
	p := New(1, nil)
	defer p.Close()

	boom := assert.AnError
	fut, err := SubmitErr(p, func() (int, error) { return 0, boom })
	require.NoError(t, err)

	_, err = fut.Wait()
	assert.ErrorIs(t, err, boom)
}

func TestCloseIsIdempotentAndJoinsWorkers(t *testing.T) {
	p := New(8, nil)
	p.Close()
	p.Close() // must not panic or double-push the stop token
}

func TestEnqueueAfterCloseFails(t *testing.T) {
	p := New(1, nil)
	p.Close()
	err := p.EnqueueVoid(func() {})
	assert.ErrorIs(t, err, ErrPoolStopped)
}

func TestMetricsTrackCompletedCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := New(2, nil, WithPrometheus(reg, "metrics-test"))
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.NoError(t, p.EnqueueVoid(func() { defer wg.Done() }))
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(p.metrics.completed) == 10
	}, time.Second, time.Millisecond)
}

// TestCascadeShutdownRegardlessOfPoolSize exercises spec.md §4.4's
// invariant: exactly one nil callable in flight during shutdown still
// wakes every worker via cascade re-enqueue.
func TestCascadeShutdownRegardlessOfPoolSize(t *testing.T) {
	for _, n := range []int{1, 2, 16} {
		p := New(n, nil)
		p.Close()
	}
}
