// Package pool implements the fixed-size Thread-Pool from spec.md §4.4: a
// queue of type-erased Callables consumed by a fixed set of worker
// goroutines, supporting both fire-and-forget submission and submission
// that returns a Future yielding the eventual result.
package pool

// Callable is the move-only callable wrapper named in spec.md §4/§9 item
// 11. In C++ this exists to let a queue carry state with unique
// ownership; in Go a closure already owns whatever it captures by value
// or by the only live reference, so Callable is a thin interface rather
// than a bespoke erasure type — but it keeps the same role: the thread
// pool's queue only ever knows how to call Run, never what's inside it.
type Callable interface {
	Run()
}

// Func adapts a plain func() into a Callable.
type Func func()

func (f Func) Run() { f() }
