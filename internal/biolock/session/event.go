package session

import (
	"sync"
	"time"

	"github.com/adiprasetyo/biolock/internal/biolock/types"
)

// Event is one item on the controller's input queue. The queue is the
// only way anything — pollers, timers, admin tooling — influences
// session state.
type Event interface {
	isEvent()
}

// FingerprintEvent is a completed sensor scan. OK=false means the sensor
// finished a read but matched no stored template.
type FingerprintEvent struct {
	TemplateID int
	OK         bool
	At         time.Time
}

// FrameEvent is one camera capture.
type FrameEvent struct {
	Frame types.Frame
}

// TickEvent asks the controller to check the live session's deadline.
// Ticks are idempotent: a tick arriving after the session closed is a
// no-op.
type TickEvent struct {
	At time.Time
}

// AbortEvent administratively cancels the live session. A no-op when no
// session is open.
type AbortEvent struct {
	Reason string
	At     time.Time
}

func (FingerprintEvent) isEvent() {}
func (FrameEvent) isEvent()       {}
func (TickEvent) isEvent()        {}
func (AbortEvent) isEvent()       {}

// queue is an unbounded FIFO with a single-slot wake channel. Producers
// push without ever blocking; the controller is the sole consumer.
type queue struct {
	mu    sync.Mutex
	items []Event
	wake  chan struct{}
}

func newQueue() *queue {
	return &queue{wake: make(chan struct{}, 1)}
}

func (q *queue) push(ev Event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// pop removes and returns the oldest event, or ok=false when empty.
func (q *queue) pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	ev := q.items[0]
	q.items = q.items[1:]
	return ev, true
}
