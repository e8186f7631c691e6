package session

import (
	"errors"
	"testing"

	"github.com/foxseedlab/kikitori/internal/transcript"
)

type recordingHandler struct {
	name   string
	events []transcript.Event
	err    error
	panics bool
}

func (h *recordingHandler) HandleTranscriptEvent(ev transcript.Event) error {
	h.events = append(h.events, ev)
	if h.panics {
		panic("listener blew up")
	}
	return h.err
}

func lineEvent(id int64) transcript.Event {
	return transcript.Event{
		Type:     transcript.EventLineStarted,
		StreamID: "stream-1",
		Line:     &transcript.Line{ID: id, Text: "hello"},
	}
}

func TestListenerRegistry_DeliversInSubscriptionOrder(t *testing.T) {
	r := NewListenerRegistry()
	var order []string
	first := &recordingHandler{name: "first"}
	r.Subscribe(first)
	r.SubscribeFunc(func(transcript.Event) error {
		order = append(order, "second")
		return nil
	})
	r.SubscribeFunc(func(transcript.Event) error {
		order = append(order, "third")
		return nil
	})

	r.Dispatch(lineEvent(1))

	if len(first.events) != 1 {
		t.Fatalf("expected handler to receive the event, got %d", len(first.events))
	}
	if len(order) != 2 || order[0] != "second" || order[1] != "third" {
		t.Fatalf("unexpected delivery order: %v", order)
	}
}

func TestListenerRegistry_UnsubscribeByIdentity(t *testing.T) {
	r := NewListenerRegistry()
	a := &recordingHandler{name: "a"}
	b := &recordingHandler{name: "b"}
	r.Subscribe(a)
	r.Subscribe(b)

	if !r.Unsubscribe(a) {
		t.Fatal("expected Unsubscribe to find the handler")
	}
	if r.Unsubscribe(a) {
		t.Fatal("expected second Unsubscribe to report false")
	}

	r.Dispatch(lineEvent(1))
	if len(a.events) != 0 {
		t.Fatalf("unsubscribed handler still received %d events", len(a.events))
	}
	if len(b.events) != 1 {
		t.Fatalf("remaining handler expected 1 event, got %d", len(b.events))
	}
}

func TestListenerRegistry_UnsubscribeFuncRemovesMostRecent(t *testing.T) {
	r := NewListenerRegistry()
	r.SubscribeFunc(func(transcript.Event) error { return nil })
	r.SubscribeFunc(func(transcript.Event) error { return nil })
	r.Subscribe(&recordingHandler{})

	if !r.UnsubscribeFunc(nil) {
		t.Fatal("expected a callback to be removed")
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", r.Len())
	}
	if !r.UnsubscribeFunc(nil) {
		t.Fatal("expected a second callback to be removed")
	}
	if r.UnsubscribeFunc(nil) {
		t.Fatal("expected no callbacks left")
	}
	if r.Len() != 1 {
		t.Fatalf("expected the handler entry to survive, got %d", r.Len())
	}
}

func TestListenerRegistry_FailureDoesNotStopDelivery(t *testing.T) {
	r := NewListenerRegistry()
	failing := &recordingHandler{name: "failing", err: errors.New("listener failed")}
	healthy := &recordingHandler{name: "healthy"}
	r.Subscribe(failing)
	r.Subscribe(healthy)

	r.Dispatch(lineEvent(1))

	// The failing entry saw only the original event; it never receives the
	// error event derived from its own failure.
	if len(failing.events) != 1 {
		t.Fatalf("failing handler expected 1 event, got %d", len(failing.events))
	}
	// The healthy entry saw the original event plus the redelivered error.
	if len(healthy.events) != 2 {
		t.Fatalf("healthy handler expected 2 events, got %d", len(healthy.events))
	}
	if healthy.events[0].Type != transcript.EventLineStarted {
		t.Fatalf("expected original event first, got %v", healthy.events[0].Type)
	}
	errEvent := healthy.events[1]
	if errEvent.Type != transcript.EventError || errEvent.Err == nil {
		t.Fatalf("expected error event, got %+v", errEvent)
	}
	if errEvent.StreamID != "stream-1" {
		t.Fatalf("error event lost stream id: %q", errEvent.StreamID)
	}
}

func TestListenerRegistry_NestedFailuresAreSwallowed(t *testing.T) {
	r := NewListenerRegistry()
	alwaysFailingA := &recordingHandler{name: "a", err: errors.New("a failed")}
	alwaysFailingB := &recordingHandler{name: "b", err: errors.New("b failed")}
	r.Subscribe(alwaysFailingA)
	r.Subscribe(alwaysFailingB)

	// Both fail on the original event; each failure is redelivered once to
	// the other entry and the redelivery failures go nowhere.
	r.Dispatch(lineEvent(1))

	if len(alwaysFailingA.events) != 2 {
		t.Fatalf("entry a expected original + one error event, got %d", len(alwaysFailingA.events))
	}
	if len(alwaysFailingB.events) != 2 {
		t.Fatalf("entry b expected original + one error event, got %d", len(alwaysFailingB.events))
	}
}

func TestListenerRegistry_PanicIsIsolated(t *testing.T) {
	r := NewListenerRegistry()
	panicking := &recordingHandler{name: "panicking", panics: true}
	healthy := &recordingHandler{name: "healthy"}
	r.Subscribe(panicking)
	r.Subscribe(healthy)

	r.Dispatch(lineEvent(1))

	if len(healthy.events) != 2 {
		t.Fatalf("healthy handler expected original + error event, got %d", len(healthy.events))
	}
	if healthy.events[1].Type != transcript.EventError {
		t.Fatalf("expected panic converted to error event, got %v", healthy.events[1].Type)
	}
}

func TestListenerRegistry_SubscribersDuringDispatchNotDelivered(t *testing.T) {
	r := NewListenerRegistry()
	late := &recordingHandler{name: "late"}
	r.SubscribeFunc(func(transcript.Event) error {
		r.Subscribe(late)
		return nil
	})

	r.Dispatch(lineEvent(1))
	if len(late.events) != 0 {
		t.Fatalf("entry added mid-dispatch must wait for the next event, got %d", len(late.events))
	}

	r.Dispatch(lineEvent(2))
	if len(late.events) != 1 {
		t.Fatalf("expected late entry to receive the next event, got %d", len(late.events))
	}
}
