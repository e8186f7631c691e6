package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/kikitori/internal/repository"
	"github.com/foxseedlab/kikitori/internal/webhook"
)

const transcriptTimeLayout = "2006-01-02 15:04:05"

func buildTranscriptText(sess *repository.Session, endedAt time.Time, lines []repository.TranscriptLine) []byte {
	header := []string{
		fmt.Sprintf("Session: %s", sess.ID),
		fmt.Sprintf("Language: %s", sess.Language),
		fmt.Sprintf("Period: %s ~ %s", sess.StartedAt.UTC().Format(transcriptTimeLayout), endedAt.UTC().Format(transcriptTimeLayout)),
		"",
	}
	body := make([]string, 0, len(header)+len(lines))
	body = append(body, header...)
	for _, l := range lines {
		offset := time.Duration(l.StartSeconds * float64(time.Second))
		if offset < 0 {
			offset = 0
		}
		body = append(body, fmt.Sprintf("%s %s", formatElapsedHMS(offset), l.Content))
	}
	return []byte(strings.Join(body, "\n"))
}

func buildTranscriptWebhookPayload(sess *repository.Session, endedAt time.Time, lines []repository.TranscriptLine) webhook.TranscriptWebhookPayload {
	payloadLines := make([]webhook.TranscriptWebhookLine, 0, len(lines))
	texts := make([]string, 0, len(lines))
	for _, l := range lines {
		payloadLines = append(payloadLines, webhook.TranscriptWebhookLine{
			LineID:          l.LineID,
			Content:         l.Content,
			StartSeconds:    l.StartSeconds,
			DurationSeconds: l.DurationSeconds,
		})
		texts = append(texts, l.Content)
	}

	durationSeconds := int64(endedAt.Sub(sess.StartedAt).Seconds())
	if durationSeconds < 0 {
		durationSeconds = 0
	}

	return webhook.TranscriptWebhookPayload{
		SchemaVersion:   webhook.TranscriptWebhookSchemaVersion,
		SessionID:       sess.ID,
		Language:        sess.Language,
		Backend:         sess.Backend,
		StartAt:         sess.StartedAt.UTC().Format(time.RFC3339),
		EndAt:           endedAt.UTC().Format(time.RFC3339),
		DurationSeconds: durationSeconds,
		LineCount:       len(lines),
		Lines:           payloadLines,
		TranscriptText:  strings.Join(texts, "\n"),
	}
}

func formatElapsedHMS(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
