package transcript

import "testing"

func eventTypes(events []Event) []EventType {
	types := make([]EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func assertTypes(t *testing.T, got []Event, want ...EventType) {
	t.Helper()
	gotTypes := eventTypes(got)
	if len(gotTypes) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(gotTypes), gotTypes)
	}
	for i := range want {
		if gotTypes[i] != want[i] {
			t.Fatalf("event %d: expected %v, got %v", i, want[i], gotTypes[i])
		}
	}
}

func TestDeriveEvents_NewLine(t *testing.T) {
	snap := Transcript{Lines: []Line{
		{ID: 1, Text: "hello", New: true, Updated: true, TextChanged: true},
	}}
	events := DeriveEvents(snap, "s1")
	assertTypes(t, events, EventLineStarted, EventLineTextChanged)
	if events[0].StreamID != "s1" {
		t.Fatalf("unexpected stream id: %s", events[0].StreamID)
	}
	if events[0].Line == nil || events[0].Line.ID != 1 {
		t.Fatal("started event does not carry the line")
	}
}

func TestDeriveEvents_UpdatedLine(t *testing.T) {
	snap := Transcript{Lines: []Line{
		{ID: 1, Text: "hello there", Updated: true, TextChanged: true},
	}}
	assertTypes(t, DeriveEvents(snap, "s1"), EventLineUpdated, EventLineTextChanged)
}

func TestDeriveEvents_UpdatedWithoutTextChange(t *testing.T) {
	snap := Transcript{Lines: []Line{
		{ID: 1, Text: "hello", Updated: true},
	}}
	assertTypes(t, DeriveEvents(snap, "s1"), EventLineUpdated)
}

func TestDeriveEvents_CompletedLine(t *testing.T) {
	snap := Transcript{Lines: []Line{
		{ID: 1, Text: "hello.", Updated: true, Complete: true, TextChanged: true},
	}}
	assertTypes(t, DeriveEvents(snap, "s1"), EventLineTextChanged, EventLineCompleted)
}

func TestDeriveEvents_NewAndCompletedInOnePass(t *testing.T) {
	snap := Transcript{Lines: []Line{
		{ID: 3, Text: "short utterance", New: true, Updated: true, Complete: true, TextChanged: true},
	}}
	assertTypes(t, DeriveEvents(snap, "s1"),
		EventLineStarted, EventLineTextChanged, EventLineCompleted)
}

func TestDeriveEvents_CompletionIsTerminal(t *testing.T) {
	// After completion the engine reports the line as complete and not
	// updated; it must be silent from then on.
	snap := Transcript{Lines: []Line{
		{ID: 1, Text: "done.", Complete: true},
	}}
	if events := DeriveEvents(snap, "s1"); len(events) != 0 {
		t.Fatalf("expected no events for a settled line, got %v", eventTypes(events))
	}
}

func TestDeriveEvents_SnapshotOrderPreserved(t *testing.T) {
	snap := Transcript{Lines: []Line{
		{ID: 1, Text: "first.", StartSeconds: 0, Updated: true, Complete: true},
		{ID: 2, Text: "second", StartSeconds: 1.5, Updated: true, TextChanged: true},
		{ID: 3, Text: "third", StartSeconds: 3.0, New: true, Updated: true, TextChanged: true},
	}}
	events := DeriveEvents(snap, "s1")
	assertTypes(t, events,
		EventLineCompleted,
		EventLineUpdated, EventLineTextChanged,
		EventLineStarted, EventLineTextChanged)
	if events[0].Line.ID != 1 || events[1].Line.ID != 2 || events[3].Line.ID != 3 {
		t.Fatal("events are not in snapshot line order")
	}
}

func TestDeriveEvents_EmptySnapshot(t *testing.T) {
	if events := DeriveEvents(Transcript{}, "s1"); len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}
