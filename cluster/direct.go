package cluster

import (
	"github.com/parclust/reduce-sys/mp"
	"github.com/parclust/reduce-sys/reduce"
)

// A DirectReducer has every non-root process stream its
// contribution straight to the root. Simple and fine for
// small clusters; the root's port is the bottleneck at
// scale.
type DirectReducer[T any] struct {
	// ChunkSize bounds each wire message's payload.
	// Zero means the package default.
	ChunkSize int
}

// ReduceToRoot sends every contribution to rank 0, which
// combines them in arrival order.
func (d DirectReducer[T]) ReduceToRoot(c *Comms, buf mp.TypedBuf[T], op reduce.Op[T]) error {
	if err := op.Valid(); err != nil {
		return err
	}
	if c.Size() == 1 {
		return nil
	}

	if !c.Root() {
		sendChunked[T](c, buf, c.Ports[0], d.ChunkSize)
		return nil
	}

	rb, err := buf.ReductionBuf(op)
	if err != nil {
		return err
	}
	return drainContributors(c, rb, c.Ports[1:], buf.Length())
}
