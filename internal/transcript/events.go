package transcript

// EventType tags the variants of Event.
type EventType int

const (
	EventLineStarted EventType = iota
	EventLineUpdated
	EventLineTextChanged
	EventLineCompleted
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventLineStarted:
		return "line_started"
	case EventLineUpdated:
		return "line_updated"
	case EventLineTextChanged:
		return "line_text_changed"
	case EventLineCompleted:
		return "line_completed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one semantic change between two successive snapshots, or an
// out-of-band failure notification. Events are ephemeral: they are consumed
// synchronously by listeners at emission time and never persisted.
type Event struct {
	Type     EventType
	StreamID string
	// Line carries the affected line. It is nil only for EventError events
	// that are not tied to a particular line.
	Line *Line
	// Err carries the failure cause for EventError events.
	Err error
}
