package session

import (
	"testing"
	"time"
)

func TestChannelEmitter_SendThenDrain(t *testing.T) {
	e := NewChannelEmitter(4)
	e.Send(Event{Type: EventTentativeOutput})
	e.Send(Event{Type: EventCommittedOutput})

	first := <-e.Events()
	second := <-e.Events()

	if first.Type != EventTentativeOutput || second.Type != EventCommittedOutput {
		t.Fatalf("expected events drained in send order, got %v then %v", first.Type, second.Type)
	}
}

func TestChannelEmitter_DropsWhenQueueFull(t *testing.T) {
	e := NewChannelEmitter(1)
	e.Send(Event{Type: EventTentativeOutput})
	e.Send(Event{Type: EventCommittedOutput}) // dropped: queue already full, never drained

	select {
	case ev := <-e.Events():
		if ev.Type != EventTentativeOutput {
			t.Fatalf("expected only the first event to survive, got %v", ev.Type)
		}
	default:
		t.Fatalf("expected the first event to be queued")
	}

	select {
	case ev := <-e.Events():
		t.Fatalf("expected no second event, got %v", ev.Type)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestChannelEmitter_MarkInactiveStopsSends(t *testing.T) {
	e := NewChannelEmitter(4)
	e.MarkInactive()

	if e.Active() {
		t.Fatalf("expected emitter inactive after MarkInactive")
	}

	e.Send(Event{Type: EventTentativeOutput})

	select {
	case ev := <-e.Events():
		t.Fatalf("expected no events after MarkInactive, got %v", ev.Type)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestChannelEmitter_MarkInactiveIsIdempotent(t *testing.T) {
	e := NewChannelEmitter(1)
	e.MarkInactive()
	e.MarkInactive()

	if e.Active() {
		t.Fatalf("expected emitter to remain inactive")
	}
}
