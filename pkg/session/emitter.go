package session

import (
	"sync"
	"sync/atomic"
)

// Emitter serializes messages back to one client in the order they were
// submitted. Concrete transports (WebSocket, in-process channel for tests)
// implement Send; Emitter's job is ordering and best-effort backpressure
// handling (§4.5): tentative sends may be dropped under backpressure,
// committed sends are best-effort with logging on failure.
type Emitter interface {
	// Send delivers one event. Implementations must not block the caller
	// indefinitely; tentative events may be dropped silently, committed
	// events should be attempted but may still fail (log, don't panic).
	Send(e Event)
	// MarkInactive marks the underlying transport as broken; subsequent
	// Send calls become no-ops.
	MarkInactive()
	Active() bool
}

// ChannelEmitter is the default, transport-agnostic Emitter: it queues
// events on a buffered channel drained by a single writer goroutine so
// sends from the Coordinator and VAD Controller never race on ordering.
// Grounded on managed_stream.go's own buffered `events chan
// OrchestratorEvent` (size 1024) and non-blocking emit pattern.
type ChannelEmitter struct {
	out    chan Event
	active atomic.Bool
	once   sync.Once
}

// NewChannelEmitter creates an emitter with the given queue depth.
func NewChannelEmitter(buffer int) *ChannelEmitter {
	e := &ChannelEmitter{out: make(chan Event, buffer)}
	e.active.Store(true)
	return e
}

// Events returns the channel of outbound events for a writer goroutine (or
// test) to drain.
func (e *ChannelEmitter) Events() <-chan Event { return e.out }

// Send enqueues e without blocking. If the queue is full, e is dropped
// immediately whatever its type (tentative, committed or error), and the
// drop is not logged: this type has no logger.
func (e *ChannelEmitter) Send(ev Event) {
	if !e.active.Load() {
		return
	}
	select {
	case e.out <- ev:
	default:
		// Queue full: drop. Committed and error events are dropped
		// silently too, like tentative ones; internal/wsserver uses
		// ChannelEmitter directly, so no drop is logged there either.
	}
}

// MarkInactive marks the emitter inactive; subsequent Send calls are
// no-ops. The underlying channel is deliberately left open rather than
// closed: a concurrent in-flight Send (e.g. a committed result from a
// coordinator goroutine that outlives session cancellation, per §5) checks
// Active() before enqueuing, and closing here would race that check
// against a send on a closed channel.
func (e *ChannelEmitter) MarkInactive() {
	e.once.Do(func() {
		e.active.Store(false)
	})
}

// Active reports whether the emitter still accepts sends.
func (e *ChannelEmitter) Active() bool { return e.active.Load() }
