package cluster

import (
	"bytes"
	"fmt"

	"github.com/parclust/reduce-sys/mp"
	"github.com/parclust/reduce-sys/reduce"
	"github.com/parclust/reduce-sys/simulator"
)

// defaultChunkSize bounds the payload of a single wire
// message. It is deliberately not a multiple of the wider
// codec widths so that multi-byte elements straddle chunk
// boundaries and receivers exercise their short-read path.
const defaultChunkSize = 12

// A Reducer drives a cross-process reduce that leaves the
// combined aggregate in the root process's buffer. Every
// process's contribution reaches the root exactly once;
// non-root buffers keep only their local value.
//
// It is not safe to run two collectives over the same
// Comms object; use fresh ports per operation.
type Reducer[T any] interface {
	ReduceToRoot(c *Comms, buf mp.TypedBuf[T], op reduce.Op[T]) error
}

// ReduceToRoot runs the default tree reduction.
func ReduceToRoot[T any](c *Comms, buf mp.TypedBuf[T], op reduce.Op[T]) error {
	return TreeReducer[T]{}.ReduceToRoot(c, buf, op)
}

// sendChunked streams buf's full encoding to dst in
// bounded chunks. Chunk boundaries ignore element
// boundaries on purpose. Reassembly relies on the
// transport preserving per-link order.
func sendChunked[T any](c *Comms, buf mp.TypedBuf[T], dst *simulator.Port, chunkSize int) {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	var wire bytes.Buffer
	buf.Encode(0, &wire)
	raw := wire.Bytes()
	for len(raw) > 0 {
		n := chunkSize
		if n > len(raw) {
			n = len(raw)
		}
		c.SendBytes(dst, raw[:n])
		chunksSent.Inc()
		bytesSent.Add(float64(n))
		raw = raw[n:]
	}
}

// drainContributors feeds arriving wire bytes through rb's
// DecodeAndCombine until perSource items have been
// consumed from each of the sources. Arrival order across
// sources is arbitrary; the operator's commutativity makes
// it irrelevant. A Downed note aborts with
// ErrCollectiveFailure.
func drainContributors(c *Comms, rb mp.Buf, sources []*simulator.Port, perSource int) error {
	type sourceState struct {
		pending  []byte
		consumed int
	}
	states := map[*simulator.Port]*sourceState{}
	for _, src := range sources {
		states[src] = &sourceState{}
	}

	elemSize := rb.ElemSize()
	remaining := len(sources) * perSource
	for remaining > 0 {
		msg := c.Recv()
		if down, ok := msg.Note.(simulator.Downed); ok {
			if rank := c.rankOfNode(down.Node); rank >= 0 {
				return fmt.Errorf("%w: rank %d down",
					reduce.ErrCollectiveFailure, rank)
			}
			return fmt.Errorf("%w: contributor down", reduce.ErrCollectiveFailure)
		}
		st, ok := states[msg.Source]
		if !ok {
			// Traffic from outside this collective.
			continue
		}
		st.pending = append(st.pending, msg.Payload...)

		// The receive path must never wait for bytes: feed
		// it whatever has arrived and keep the remainder
		// for the next poll.
		r := bytes.NewReader(st.pending)
		n := rb.DecodeAndCombine(st.consumed, perSource-st.consumed, r)
		st.pending = st.pending[n*elemSize:]
		st.consumed += n
		remaining -= n
		combinesApplied.Add(float64(n))
	}
	return nil
}

// rankOfNode maps a node back to its rank, or -1 for a
// node outside the cluster.
func (c *Comms) rankOfNode(n *simulator.Node) int {
	for i, port := range c.Ports {
		if port.Node == n {
			return i
		}
	}
	return -1
}
