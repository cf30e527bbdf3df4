package parallel

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/parclust/reduce-sys/cluster"
	"github.com/parclust/reduce-sys/mp"
	"github.com/parclust/reduce-sys/prng"
	"github.com/parclust/reduce-sys/reduce"
	"github.com/parclust/reduce-sys/simulator"
)

// A Job describes one reduction over the index space
// [0, N): every index is evaluated by Body with a
// pseudorandom generator positioned exactly where a
// sequential run would have it, and the per-index results
// are combined with Op.
type Job[T any] struct {
	// N is the size of the global index space.
	N int64

	// Seed seeds every worker's generator; sequence
	// splitting does the rest.
	Seed uint64

	// Threads is the thread team size per process. Zero
	// or negative means GOMAXPROCS.
	Threads int

	// DrawsPerItem is how many generator draws Body
	// consumes per index. It positions each worker's
	// stream at DrawsPerItem * firstIndex. Zero means 1.
	DrawsPerItem int

	// Op combines per-index results, thread partials, and
	// process partials. It must be associative and
	// commutative.
	Op reduce.Op[T]

	// Codec fixes the wire representation for the
	// cross-process reduce. Its kind must match Op's.
	Codec mp.Codec[T]

	// Body evaluates one index. It must draw exactly
	// DrawsPerItem values from g per call.
	Body func(i int64, g *prng.LCG) (T, error)
}

// A Result is one process's outcome of a reduction.
//
// Only the root holds the aggregate. Non-root processes
// hold their own process-local partial, so callers must
// check Root before trusting Value globally.
type Result[T any] struct {
	Value T
	Rank  int
	Root  bool
}

// An Executor runs reduction jobs over a thread team and
// the cluster's collective reduce.
type Executor[T any] struct {
	// Log receives phase-transition events.
	Log zerolog.Logger

	// Reducer drives the cross-process phase. Nil means
	// the default tree reduction.
	Reducer cluster.Reducer[T]
}

// NewExecutor creates an executor logging to log. Use
// zerolog.Nop() to silence it.
func NewExecutor[T any](log zerolog.Logger) *Executor[T] {
	return &Executor[T]{Log: log}
}

// Run evaluates the job and reduces all partials to the
// cluster's root.
//
// Phases: partition the index space across processes and
// threads, run the thread team with private accumulators
// and split generators, merge thread partials into a
// process-local shared cell, then stream that cell through
// the collective reduce. Any thread error aborts the team
// and withdraws the process from the collective, failing
// the other ranks with ErrCollectiveFailure; a transport
// failure likewise yields ErrCollectiveFailure and no
// aggregate.
func (e *Executor[T]) Run(c *cluster.Comms, job Job[T]) (Result[T], error) {
	var zero Result[T]
	if err := e.validate(job); err != nil {
		return zero, err
	}
	draws := job.DrawsPerItem
	if draws <= 0 {
		draws = 1
	}

	log := e.Log.With().Int("rank", c.Rank()).Logger()

	procRange := Range{Lb: 0, Ub: job.N - 1}.Subrange(c.Size(), c.Rank())
	team := Team{Threads: job.Threads}
	log.Debug().
		Int64("lb", procRange.Lb).
		Int64("ub", procRange.Ub).
		Int("threads", team.Size()).
		Msg("partitioned")

	cell := reduce.NewShared(job.Op.Identity)
	slots := make([]Padded[T], team.Size())

	err := team.Run(procRange,
		func(w *Worker) error {
			slots[w.Index].V = job.Op.Identity
			g := prng.New(job.Seed)
			g.Skip(uint64(draws) * uint64(w.Sub.Lb))

			acc := job.Op.Identity
			for i := w.Sub.Lb; i <= w.Sub.Ub; i++ {
				v, err := job.Body(i, g)
				if err != nil {
					return fmt.Errorf("index %d: %w", i, err)
				}
				acc = job.Op.Combine(acc, v)
				if i&0xffff == 0 && w.Aborted() {
					return nil
				}
			}
			slots[w.Index].V = acc
			return nil
		},
		func(w *Worker) error {
			// The single merge point; one combine per
			// thread under the cell's lock.
			cell.Reduce(slots[w.Index].V, job.Op)
			return nil
		})
	if err != nil {
		// Peers are waiting on this process's contribution;
		// tell them it will never arrive so they fail fast
		// instead of stranding the collective.
		for rank, port := range c.Ports {
			if rank != c.Rank() {
				c.SendNote(port, simulator.Downed{Node: c.Port.Node})
			}
		}
		return zero, err
	}
	log.Debug().Msg("thread partials merged")

	reducer := e.Reducer
	if reducer == nil {
		reducer = cluster.TreeReducer[T]{}
	}
	buf := mp.NewSharedBuf(cell, job.Codec)
	if err := reducer.ReduceToRoot(c, buf, job.Op); err != nil {
		return zero, err
	}

	res := Result[T]{Value: cell.Get(), Rank: c.Rank(), Root: c.Root()}
	log.Debug().Bool("root", res.Root).Msg("reduction done")
	return res, nil
}

func (e *Executor[T]) validate(job Job[T]) error {
	if err := job.Op.Valid(); err != nil {
		return err
	}
	if job.Body == nil {
		return fmt.Errorf("%w: job has no body", reduce.ErrInvalidArgument)
	}
	if job.N < 0 {
		return fmt.Errorf("%w: negative index space (%d)", reduce.ErrInvalidArgument, job.N)
	}
	if job.Codec.Kind != job.Op.Kind {
		return fmt.Errorf("%w: %v operator over %v elements",
			reduce.ErrTypeMismatch, job.Op.Kind, job.Codec.Kind)
	}
	return nil
}
