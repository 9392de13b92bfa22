package pool

// Future is the handle returned by Submit: a one-shot result slot that
// Wait blocks on until the owning worker fulfills it. This is the
// "submission returning a handle" half of spec.md §4.4, and the same
// one-shot-slot shape Workflow-Pipeline (pkg/workflow) builds its ordering
// guarantee on top of.
type Future[R any] struct {
	done chan struct{}
	val  R
	err  error
}

func newFuture[R any]() *Future[R] {
	return &Future[R]{done: make(chan struct{})}
}

func (f *Future[R]) fulfill(val R, err error) {
	f.val = val
	f.err = err
	close(f.done)
}

// Wait blocks until the future is fulfilled and returns its result.
func (f *Future[R]) Wait() (R, error) {
	<-f.done
	return f.val, f.err
}

// Done returns a channel that closes once the future is fulfilled, for
// callers that want to select over multiple futures or a cancellation
// signal instead of blocking outright.
func (f *Future[R]) Done() <-chan struct{} {
	return f.done
}
