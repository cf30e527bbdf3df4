// Package cluster provides each process's view of the
// cluster and the collective reduce-to-root operation that
// streams every process's contribution into the root's
// reduction buffer.
package cluster

import (
	"github.com/parclust/reduce-sys/simulator"
)

// A Comms is one process's handle on the cluster during a
// single collective operation.
//
// A fresh Comms (with fresh ports) should be used for each
// operation, which automatically handles multiplexing.
// Rank, size, and the transport handle travel through this
// object; there is no ambient global state.
type Comms struct {
	// Handle is the process's main goroutine's handle on
	// the event loop.
	Handle *simulator.Handle

	// Port is the current process's port.
	Port *simulator.Port

	// Ports contains ports to all the processes in the
	// cluster, indexed by rank. Rank 0 is the root.
	Ports []*simulator.Port

	// Network is the transport connecting the processes.
	Network simulator.Network
}

// SpawnCluster creates Comms objects for every node and
// calls f for each in its own goroutine.
func SpawnCluster(loop *simulator.EventLoop, network simulator.Network,
	nodes []*simulator.Node, f func(c *Comms)) {
	ports := make([]*simulator.Port, len(nodes))
	for i, node := range nodes {
		ports[i] = node.Port(loop)
	}
	for i := range nodes {
		port := ports[i]
		loop.Go(func(h *simulator.Handle) {
			f(&Comms{
				Handle:  h,
				Port:    port,
				Ports:   ports,
				Network: network,
			})
		})
	}
}

// Size gets the number of processes.
func (c *Comms) Size() int {
	return len(c.Ports)
}

// Rank returns the current process's index in the cluster.
func (c *Comms) Rank() int {
	return c.RankOf(c.Port)
}

// Root reports whether the current process is the root.
func (c *Comms) Root() bool {
	return c.Rank() == 0
}

// RankOf returns any port's rank.
func (c *Comms) RankOf(p *simulator.Port) int {
	for i, port := range c.Ports {
		if port == p {
			return i
		}
	}
	panic("unreachable")
}

// SendBytes schedules a payload to be sent to dst.
func (c *Comms) SendBytes(dst *simulator.Port, payload []byte) {
	c.Network.Send(c.Handle, &simulator.Message{
		Source:  c.Port,
		Dest:    dst,
		Payload: payload,
	})
}

// SendNote schedules an out-of-band note to be sent to
// dst.
func (c *Comms) SendNote(dst *simulator.Port, note interface{}) {
	c.Network.Send(c.Handle, &simulator.Message{
		Source: c.Port,
		Dest:   dst,
		Note:   note,
	})
}

// Recv receives the next message on the process's port.
func (c *Comms) Recv() *simulator.Message {
	return c.Port.Recv(c.Handle)
}
