package webhook

import "context"

const TranscriptWebhookSchemaVersion = "2026-08-30"

type TranscriptWebhookLine struct {
	LineID          int64   `json:"line_id"`
	Content         string  `json:"content"`
	StartSeconds    float64 `json:"start_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type TranscriptWebhookPayload struct {
	SchemaVersion   string                  `json:"schema_version"`
	SessionID       string                  `json:"session_id"`
	Language        string                  `json:"language"`
	Backend         string                  `json:"backend"`
	StartAt         string                  `json:"start_at"`
	EndAt           string                  `json:"end_at"`
	DurationSeconds int64                   `json:"duration_seconds"`
	LineCount       int                     `json:"line_count"`
	Lines           []TranscriptWebhookLine `json:"lines"`
	TranscriptText  string                  `json:"transcript_text"`
}

type Sender interface {
	SendTranscript(ctx context.Context, payload TranscriptWebhookPayload) error
}
