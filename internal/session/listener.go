package session

import (
	"fmt"

	"github.com/foxseedlab/kikitori/internal/transcript"
)

// Handler receives transcript events. Implementations are compared by
// identity for unsubscription, so they should be pointer types.
type Handler interface {
	HandleTranscriptEvent(ev transcript.Event) error
}

// Callback is a single-purpose listener function.
type Callback func(ev transcript.Event) error

type listenerEntry struct {
	handler  Handler
	callback Callback
}

// ListenerRegistry holds the observers of one session in subscription order.
// It is safe to mutate between dispatches but not concurrently with one.
type ListenerRegistry struct {
	entries []listenerEntry
}

func NewListenerRegistry() *ListenerRegistry {
	return &ListenerRegistry{}
}

func (r *ListenerRegistry) Subscribe(h Handler) {
	if h == nil {
		return
	}
	r.entries = append(r.entries, listenerEntry{handler: h})
}

func (r *ListenerRegistry) SubscribeFunc(cb Callback) {
	if cb == nil {
		return
	}
	r.entries = append(r.entries, listenerEntry{callback: cb})
}

// Unsubscribe removes the entry registered for exactly this handler and
// reports whether one was found. Other entries keep their positions.
func (r *ListenerRegistry) Unsubscribe(h Handler) bool {
	for i, e := range r.entries {
		if e.handler != nil && e.handler == h {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// UnsubscribeFunc removes one callback entry. Function values carry no
// usable identity, so this is best-effort: the most recently subscribed
// callback is removed, which may not be the one passed in.
func (r *ListenerRegistry) UnsubscribeFunc(Callback) bool {
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].callback != nil {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (r *ListenerRegistry) Clear() {
	r.entries = nil
}

func (r *ListenerRegistry) Len() int {
	return len(r.entries)
}

// Dispatch delivers ev to every current entry in subscription order, on the
// calling goroutine. A failing entry never stops delivery to later entries
// and never receives the event twice. Delivery runs in two phases: every
// entry receives the original event first, then each collected failure is
// converted into an error event and redelivered once to all other entries.
// Failures during that redelivery are swallowed, so error delivery cannot
// recurse.
func (r *ListenerRegistry) Dispatch(ev transcript.Event) {
	entries := make([]listenerEntry, len(r.entries))
	copy(entries, r.entries)

	type dispatchFailure struct {
		entry int
		cause error
	}
	var failures []dispatchFailure
	for i := range entries {
		if err := invokeListener(entries[i], ev); err != nil {
			failures = append(failures, dispatchFailure{entry: i, cause: err})
		}
	}

	for _, f := range failures {
		errEvent := transcript.Event{
			Type:     transcript.EventError,
			StreamID: ev.StreamID,
			Err:      f.cause,
		}
		for j := range entries {
			if j == f.entry {
				continue
			}
			_ = invokeListener(entries[j], errEvent)
		}
	}
}

func invokeListener(e listenerEntry, ev transcript.Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("listener panicked: %v", rec)
		}
	}()
	if e.handler != nil {
		return e.handler.HandleTranscriptEvent(ev)
	}
	return e.callback(ev)
}
