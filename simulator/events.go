// Package simulator provides a virtual-time event loop and
// virtual networks for running a multi-process computation
// inside one test process. Each simulated process runs in
// its own goroutine; the loop advances the clock only when
// every goroutine is polling, so compute phases take zero
// virtual time and message timing is fully controlled.
package simulator

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/unixpickle/essentials"
)

// An EventStream is a uni-directional channel of events
// delivered through an EventLoop. A stream may only be
// used with the loop that created it.
type EventStream struct {
	loop    *EventLoop
	pending []interface{}
}

// An Event is a message received on some EventStream.
type Event struct {
	Message interface{}
	Stream  *EventStream
}

// A Timer is a single scheduled future delivery of an
// event.
type Timer struct {
	time float64
	seq  uint64
	idx  int

	event *Event
}

// Time gets the virtual time at which the timer fires. If
// the loop's clock is below this, the timer has not fired.
func (t *Timer) Time() float64 {
	return t.time
}

// timerQueue is a heap of pending timers ordered by fire
// time, with scheduling order breaking ties.
type timerQueue []*Timer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].time != q[j].time {
		return q[i].time < q[j].time
	}
	return q[i].seq < q[j].seq
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].idx = i
	q[j].idx = j
}

func (q *timerQueue) Push(x interface{}) {
	t := x.(*Timer)
	t.idx = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() interface{} {
	old := *q
	t := old[len(old)-1]
	old[len(old)-1] = nil
	t.idx = -1
	*q = old[:len(old)-1]
	return t
}

// A Handle is one goroutine's view of an EventLoop.
// Handles must not be shared between goroutines.
type Handle struct {
	*EventLoop

	// Empty while the goroutine is not polling.
	pollStreams []*EventStream
	pollChan    chan<- *Event
}

// Poll waits for the next event on any of the streams.
func (h *Handle) Poll(streams ...*EventStream) *Event {
	ch := make(chan *Event, 1)
	h.modifyHandles(func() {
		if h.pollStreams != nil {
			panic("Handle is shared between goroutines")
		}
		for _, stream := range streams {
			if len(stream.pending) > 0 {
				msg := stream.pending[0]
				essentials.OrderedDelete(&stream.pending, 0)
				ch <- &Event{Message: msg, Stream: stream}
				return
			}
		}
		h.pollStreams = streams
		h.pollChan = ch
	})
	return <-ch
}

// Schedule creates a Timer that delivers msg on stream
// after delay units of virtual time.
func (h *Handle) Schedule(stream *EventStream, msg interface{}, delay float64) *Timer {
	if stream.loop != h.EventLoop {
		panic("EventStream belongs to a different EventLoop")
	}
	var timer *Timer
	h.modify(func() {
		timer = &Timer{
			time:  h.time + delay,
			seq:   h.nextSeq,
			event: &Event{Message: msg, Stream: stream},
		}
		h.nextSeq++
		if math.IsInf(timer.time, 0) || math.IsNaN(timer.time) {
			panic(fmt.Sprintf("invalid deadline: %f", timer.time))
		}
		heap.Push(&h.timers, timer)
	})
	return timer
}

// Cancel stops a timer that has not fired. Cancelling a
// fired or already-cancelled timer has no effect.
func (h *Handle) Cancel(t *Timer) {
	h.modify(func() {
		if t.idx >= 0 && t.idx < len(h.timers) && h.timers[t.idx] == t {
			heap.Remove(&h.timers, t.idx)
		}
	})
}

// Sleep blocks the goroutine for a span of virtual time.
func (h *Handle) Sleep(delay float64) {
	stream := h.Stream()
	h.Schedule(stream, nil, delay)
	h.Poll(stream)
}

// An EventLoop is the global scheduler for a simulation.
//
// All goroutines touching a loop must be started through
// its Go method. The clock advances only when every active
// goroutine is polling, and it jumps straight to the next
// pending timer.
type EventLoop struct {
	lock    sync.Mutex
	timers  timerQueue
	nextSeq uint64
	handles []*Handle

	time float64

	running  bool
	notifyCh chan struct{}
}

// NewEventLoop creates an event loop with its clock at 0.
func NewEventLoop() *EventLoop {
	return &EventLoop{notifyCh: make(chan struct{}, 1)}
}

// Stream creates a new EventStream on the loop.
func (e *EventLoop) Stream() *EventStream {
	return &EventStream{loop: e}
}

// Go runs f in its own goroutine with a fresh Handle.
func (e *EventLoop) Go(f func(h *Handle)) {
	h := &Handle{EventLoop: e}
	e.lock.Lock()
	e.handles = append(e.handles, h)
	e.lock.Unlock()
	go func() {
		f(h)
		e.modifyHandles(func() {
			for i, handle := range e.handles {
				if handle == h {
					essentials.UnorderedDelete(&e.handles, i)
					return
				}
			}
			panic("freeing a handle that does not exist")
		})
	}()
}

// Run drives the loop until every handle has exited. It
// must not be called from more than one goroutine at once.
// Returns an error if the simulation deadlocks.
func (e *EventLoop) Run() error {
	e.lock.Lock()
	if e.running {
		e.lock.Unlock()
		panic("EventLoop is already running")
	}
	e.running = true
	e.lock.Unlock()

	defer func() {
		e.lock.Lock()
		e.running = false
		e.lock.Unlock()
	}()

	for range e.notifyCh {
		if shouldContinue, err := e.step(); !shouldContinue {
			return err
		}
	}

	panic("unreachable")
}

// MustRun is like Run but panics on deadlock.
func (e *EventLoop) MustRun() {
	if err := e.Run(); err != nil {
		panic(err)
	}
}

// Time gets the current virtual time.
func (e *EventLoop) Time() float64 {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.time
}

// modify runs f under the loop lock, for state changes
// that cannot affect scheduling.
func (e *EventLoop) modify(f func()) {
	e.lock.Lock()
	defer e.lock.Unlock()
	f()
}

// modifyHandles is like modify but wakes the loop, for
// changes that may unblock a scheduling step.
func (e *EventLoop) modifyHandles(f func()) {
	e.lock.Lock()
	defer func() {
		e.lock.Unlock()
		select {
		case e.notifyCh <- struct{}{}:
		default:
		}
	}()
	f()
}

// step fires the next timer if every goroutine is idle.
// The first return value is false once the loop can make
// no more progress; the error reports a deadlock.
func (e *EventLoop) step() (bool, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if len(e.handles) == 0 {
		return false, nil
	}

	for _, h := range e.handles {
		if len(h.pollStreams) == 0 {
			// A goroutine is computing in real time; let
			// it reach its next poll first.
			return true, nil
		}
	}

	for len(e.timers) > 0 {
		timer := heap.Pop(&e.timers).(*Timer)
		e.time = math.Max(e.time, timer.time)
		if e.deliver(timer.event) {
			return true, nil
		}
	}

	return false, errors.New("deadlock: all handles are polling")
}

// deliver hands the event to a handle polling on its
// stream, or buffers it on the stream otherwise. Returns
// whether a handle woke up.
//
// Handles are tried in random order so that concurrent
// receivers on one stream do not see a fixed schedule; a
// correct reduction must not depend on arrival order.
func (e *EventLoop) deliver(event *Event) bool {
	for _, i := range rand.Perm(len(e.handles)) {
		h := e.handles[i]
		for _, stream := range h.pollStreams {
			if stream == event.Stream {
				h.pollChan <- event
				h.pollChan = nil
				h.pollStreams = nil
				return true
			}
		}
	}
	event.Stream.pending = append(event.Stream.pending, event.Message)
	return false
}
