package simulator

import (
	"math/rand"
	"sync"

	"github.com/unixpickle/essentials"
)

// A Node represents one process's machine on the virtual
// cluster.
type Node struct {
	// Nonzero size so each allocation gets a distinct
	// address; nodes are compared by pointer identity.
	_ [1]byte
}

// NewNode creates a new, unique Node.
func NewNode() *Node {
	return &Node{}
}

// Port creates a new Port attached to the Node.
func (n *Node) Port(loop *EventLoop) *Port {
	return &Port{Node: n, Incoming: loop.Stream()}
}

// A Port is a point of communication on a Node. Wire
// traffic is sent from Ports and received on Ports.
type Port struct {
	Node *Node

	// A stream of *Message objects.
	Incoming *EventStream
}

// Recv receives the next message.
func (p *Port) Recv(h *Handle) *Message {
	return h.Poll(p.Incoming).Message.(*Message)
}

// A Message is a chunk of wire bytes sent between nodes.
type Message struct {
	Source *Port
	Dest   *Port

	// Payload holds the wire bytes. It may be nil for
	// control messages.
	Payload []byte

	// Note carries an out-of-band marker, such as a Downed
	// notice or a protocol control value, instead of
	// payload bytes.
	Note interface{}
}

// headerSize is the framing overhead charged to every
// message in the timing model.
const headerSize = 1

// Size returns the message's size for transfer timing.
func (m *Message) Size() float64 {
	return float64(len(m.Payload)) + headerSize
}

// A Downed note tells a peer that a node failed while
// traffic to or from it may have been in flight.
type Downed struct {
	Node *Node
}

// A Network is an abstract way of communicating between
// nodes.
type Network interface {
	// Send delivers messages to their destination ports'
	// incoming streams.
	//
	// This is a non-blocking operation.
	Send(h *Handle, msgs ...*Message)
}

// A RandomNetwork assigns an independent random delay to
// every message. Delivery order between messages is
// arbitrary even on one link.
type RandomNetwork struct{}

// Send sends the messages with random delays.
func (r RandomNetwork) Send(h *Handle, msgs ...*Message) {
	for _, msg := range msgs {
		h.Schedule(msg.Dest.Incoming, msg, rand.Float64())
	}
}

// A LinkNetwork delivers messages to each destination in
// order, at a fixed byte rate plus a bounded random
// latency. Nodes can be failed, which cancels their
// in-flight traffic and notifies peers with Downed notes.
type LinkNetwork struct {
	Rate             float64
	MaxRandomLatency float64

	lock      sync.Mutex
	nextTimes map[*Node]float64
	downNodes map[*Node]bool
	timers    map[*Node][]*Timer
}

// NewLinkNetwork creates a LinkNetwork with the given byte
// rate and maximum random latency.
func NewLinkNetwork(rate, maxRandomLatency float64) *LinkNetwork {
	return &LinkNetwork{
		Rate:             rate,
		MaxRandomLatency: maxRandomLatency,
		nextTimes:        map[*Node]float64{},
		downNodes:        map[*Node]bool{},
		timers:           map[*Node][]*Timer{},
	}
}

// Send sends the messages, preserving per-destination
// order. A message touching a downed node is not
// delivered; the sender's port gets a Downed note instead.
func (o *LinkNetwork) Send(h *Handle, msgs ...*Message) {
	o.lock.Lock()
	defer o.lock.Unlock()

	o.cleanupTimers(h)

	curTime := h.Time()

	for _, msg := range msgs {
		src := msg.Source.Node
		dest := msg.Dest.Node
		if down := o.firstDown(src, dest); down != nil {
			h.Schedule(msg.Source.Incoming, &Message{
				Source: msg.Dest,
				Dest:   msg.Source,
				Note:   Downed{Node: down},
			}, 0)
			continue
		}
		latency := rand.Float64() * o.MaxRandomLatency
		delay := latency + msg.Size()/o.Rate

		var timer *Timer
		if t, ok := o.nextTimes[dest]; !ok || t <= curTime {
			timer = h.Schedule(msg.Dest.Incoming, msg, delay)
			o.nextTimes[dest] = curTime + delay
		} else {
			timer = h.Schedule(msg.Dest.Incoming, msg, delay+(t-curTime))
			o.nextTimes[dest] = delay + t
		}
		o.timers[dest] = append(o.timers[dest], timer)
		o.timers[src] = append(o.timers[src], timer)
	}
}

// Fail marks a node as down, cancels all of its in-flight
// traffic, and delivers a Downed note to every peer port.
// Peer ports on the failed node itself are skipped.
func (o *LinkNetwork) Fail(h *Handle, node *Node, peers ...*Port) {
	o.lock.Lock()
	defer o.lock.Unlock()

	o.downNodes[node] = true
	delete(o.nextTimes, node)

	o.cleanupTimers(h)
	canceled := map[*Timer]bool{}
	for _, t := range o.timers[node] {
		canceled[t] = true
		h.Cancel(t)
	}
	delete(o.timers, node)
	o.filterTimers(func(t *Timer) bool {
		return !canceled[t]
	})

	for _, peer := range peers {
		if peer.Node == node {
			continue
		}
		h.Schedule(peer.Incoming, &Message{
			Dest: peer,
			Note: Downed{Node: node},
		}, rand.Float64()*o.MaxRandomLatency)
	}
}

func (o *LinkNetwork) firstDown(nodes ...*Node) *Node {
	for _, n := range nodes {
		if o.downNodes[n] {
			return n
		}
	}
	return nil
}

func (o *LinkNetwork) cleanupTimers(h *Handle) {
	time := h.Time()
	o.filterTimers(func(t *Timer) bool {
		return t.Time() >= time
	})
}

func (o *LinkNetwork) filterTimers(f func(t *Timer) bool) {
	for k, timers := range o.timers {
		for i := 0; i < len(timers); i++ {
			if !f(timers[i]) {
				essentials.UnorderedDelete(&timers, i)
				i--
			}
		}
		o.timers[k] = timers
	}
}
