package cluster

import (
	"github.com/parclust/reduce-sys/mp"
	"github.com/parclust/reduce-sys/reduce"
	"github.com/parclust/reduce-sys/simulator"
)

// A TreeReducer arranges the processes in a binary tree
// rooted at rank 0 and reduces up the tree. Interior
// processes combine their children's streams into a
// scratch copy of their own contribution and forward one
// payload, so each link carries exactly one buffer's worth
// of data.
type TreeReducer[T any] struct {
	// ChunkSize bounds each wire message's payload.
	// Zero means the package default.
	ChunkSize int
}

// ReduceToRoot streams contributions up the tree. On
// return, the root's buffer holds the aggregate; other
// processes' buffers are untouched.
func (t TreeReducer[T]) ReduceToRoot(c *Comms, buf mp.TypedBuf[T], op reduce.Op[T]) error {
	if err := op.Valid(); err != nil {
		return err
	}
	if c.Size() == 1 {
		return nil
	}

	parent, children := treePosition(c)

	if parent == nil {
		rb, err := buf.ReductionBuf(op)
		if err != nil {
			return err
		}
		return drainContributors(c, rb, children, buf.Length())
	}

	send := buf
	if len(children) > 0 {
		// Combine the children into a scratch copy so the
		// local partial survives the collective.
		scratch := mp.NewItemBuf(buf.Snapshot(), buf.Codec())
		rb, err := scratch.ReductionBuf(op)
		if err != nil {
			return err
		}
		if err := drainContributors(c, rb, children, buf.Length()); err != nil {
			// Let the rest of the tree fail fast instead
			// of waiting on a contribution that will never
			// arrive.
			c.SendNote(parent, simulator.Downed{})
			return err
		}
		send = scratch
	}

	sendChunked[T](c, send, parent, t.ChunkSize)
	return nil
}

// treePosition returns the parent port and child ports for
// the current process in the reduction tree. The root has
// no parent; leaves have no children.
func treePosition(c *Comms) (parent *simulator.Port, children []*simulator.Port) {
	idx := c.Rank()
	for depth := uint(0); true; depth++ {
		rowSize := 1 << depth
		rowStart := rowSize - 1
		if idx >= rowStart+rowSize {
			continue
		}
		rowIdx := idx - rowStart
		if depth > 0 {
			parent = c.Ports[rowIdx/2+(rowSize/2-1)]
		}
		firstChild := rowIdx*2 + (rowSize*2 - 1)
		for i := 0; i < 2; i++ {
			if firstChild+i < len(c.Ports) {
				children = append(children, c.Ports[firstChild+i])
			}
		}
		return
	}
	panic("unreachable")
}
