package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// cacheLineSize is a safe stride for current CPUs.
const cacheLineSize = 64

// A Padded value occupies its own cache line, so
// per-thread hot state laid out in a slice does not false
// share with its neighbors.
type Padded[T any] struct {
	V T
	_ [cacheLineSize]byte
}

// A Worker is one team member's view of a team run.
type Worker struct {
	// Index is the thread's index, 0 .. Threads-1.
	Index int

	// Sub is the thread's piece of the team's range.
	Sub Range

	abort *atomic.Bool
}

// Aborted reports whether another team member has already
// failed. Long loop bodies should poll it occasionally and
// return early; its own partial is discarded anyway.
func (w *Worker) Aborted() bool {
	return w.abort.Load()
}

// A Team runs a data-parallel loop over a fixed number of
// threads.
type Team struct {
	// Threads is the team size. Zero or negative means
	// GOMAXPROCS.
	Threads int
}

// Size returns the effective team size.
func (t Team) Size() int {
	if t.Threads > 0 {
		return t.Threads
	}
	return runtime.GOMAXPROCS(0)
}

// Run splits r across the team and invokes body on every
// thread with that thread's piece. After its body returns
// without error, each thread runs finish exactly once
// (finish may be nil). Run blocks until the whole team is
// done: the return is the barrier.
//
// The first error in thread order is returned. Any error
// marks the run aborted, which other threads observe via
// Worker.Aborted; their finishers are skipped.
func (t Team) Run(r Range, body func(w *Worker) error, finish func(w *Worker) error) error {
	threads := t.Size()

	var abort atomic.Bool
	errs := make([]error, threads)
	var wg sync.WaitGroup

	for i := 0; i < threads; i++ {
		w := &Worker{
			Index: i,
			Sub:   r.Subrange(threads, i),
			abort: &abort,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := body(w); err != nil {
				errs[w.Index] = err
				abort.Store(true)
				return
			}
			if finish == nil || abort.Load() {
				return
			}
			if err := finish(w); err != nil {
				errs[w.Index] = err
				abort.Store(true)
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
