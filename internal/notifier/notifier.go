package notifier

import "context"

// Notifier pushes human-readable transcription output to a chat channel.
type Notifier interface {
	PostLine(ctx context.Context, content string) error
	PostTranscript(ctx context.Context, filename string, body []byte) error
}
