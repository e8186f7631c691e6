package session

import (
	"strings"
	"testing"
	"time"

	"github.com/foxseedlab/kikitori/internal/repository"
	"github.com/foxseedlab/kikitori/internal/webhook"
)

func formatterFixtures() (*repository.Session, time.Time, []repository.TranscriptLine) {
	startedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	sess := &repository.Session{
		ID:        "sess-1",
		Language:  "ja-JP",
		Backend:   "stub",
		StartedAt: startedAt,
	}
	lines := []repository.TranscriptLine{
		{LineID: 1, Content: "first line", StartSeconds: 0, DurationSeconds: 2},
		{LineID: 2, Content: "second line", StartSeconds: 65, DurationSeconds: 3},
	}
	return sess, startedAt.Add(90 * time.Second), lines
}

func TestBuildTranscriptText(t *testing.T) {
	sess, endedAt, lines := formatterFixtures()
	text := string(buildTranscriptText(sess, endedAt, lines))

	if !strings.Contains(text, "Session: sess-1") {
		t.Fatalf("missing session header:\n%s", text)
	}
	if !strings.Contains(text, "00:00:00 first line") {
		t.Fatalf("missing first line:\n%s", text)
	}
	if !strings.Contains(text, "00:01:05 second line") {
		t.Fatalf("missing offset line:\n%s", text)
	}
}

func TestBuildTranscriptWebhookPayload(t *testing.T) {
	sess, endedAt, lines := formatterFixtures()
	payload := buildTranscriptWebhookPayload(sess, endedAt, lines)

	if payload.SchemaVersion != webhook.TranscriptWebhookSchemaVersion {
		t.Fatalf("unexpected schema version: %s", payload.SchemaVersion)
	}
	if payload.SessionID != "sess-1" || payload.Backend != "stub" {
		t.Fatalf("unexpected identity fields: %+v", payload)
	}
	if payload.DurationSeconds != 90 {
		t.Fatalf("unexpected duration: %d", payload.DurationSeconds)
	}
	if payload.LineCount != 2 || len(payload.Lines) != 2 {
		t.Fatalf("unexpected line count: %+v", payload)
	}
	if payload.Lines[1].LineID != 2 || payload.Lines[1].StartSeconds != 65 {
		t.Fatalf("unexpected line payload: %+v", payload.Lines[1])
	}
	if payload.TranscriptText != "first line\nsecond line" {
		t.Fatalf("unexpected transcript text: %q", payload.TranscriptText)
	}
}
