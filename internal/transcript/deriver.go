package transcript

// DeriveEvents computes the ordered event sequence for one snapshot.
//
// The engine reports per-line stability flags (New, Updated, Complete,
// TextChanged) relative to the snapshot it produced before this one, and
// those flags are authoritative; no text re-diffing happens here. Events are
// emitted in snapshot line order, and within a line in the fixed order
// started, updated, text-changed, completed. A line that the engine keeps
// reporting as complete and not updated produces no further events, so
// completion is terminal.
func DeriveEvents(snapshot Transcript, streamID string) []Event {
	var events []Event
	for i := range snapshot.Lines {
		line := &snapshot.Lines[i]
		switch {
		case line.New:
			events = append(events, Event{Type: EventLineStarted, StreamID: streamID, Line: line})
		case line.Updated && !line.Complete:
			events = append(events, Event{Type: EventLineUpdated, StreamID: streamID, Line: line})
		}
		if line.TextChanged {
			events = append(events, Event{Type: EventLineTextChanged, StreamID: streamID, Line: line})
		}
		if line.Updated && line.Complete {
			events = append(events, Event{Type: EventLineCompleted, StreamID: streamID, Line: line})
		}
	}
	return events
}
