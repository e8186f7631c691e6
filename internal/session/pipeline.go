package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/notifier"
	"github.com/foxseedlab/kikitori/internal/repository"
	"github.com/foxseedlab/kikitori/internal/transcript"
	"github.com/foxseedlab/kikitori/internal/webhook"
)

// feedChunkSeconds is the granularity at which the pipeline feeds decoded
// audio into a session, so interval-based updates fire while a long file
// plays through.
const feedChunkSeconds = 0.1

// Pipeline drives one full transcription: create a repository session,
// stream audio through a fresh transcription session, persist completed
// lines, then deliver the final transcript to the webhook and notifier.
type Pipeline struct {
	cfg            *config.Config
	repo           repository.Repository
	webhook        webhook.Sender
	notifier       notifier.Notifier
	transcriber    *Transcriber
	decoderFactory audio.PacketDecoderFactory
}

func NewPipeline(cfg *config.Config, repo repository.Repository, wh webhook.Sender, nt notifier.Notifier, tr *Transcriber, df audio.PacketDecoderFactory) *Pipeline {
	return &Pipeline{
		cfg:            cfg,
		repo:           repo,
		webhook:        wh,
		notifier:       nt,
		transcriber:    tr,
		decoderFactory: df,
	}
}

// RunFile decodes a WAV container from disk and runs it through the
// streaming pipeline.
func (p *Pipeline) RunFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read audio file: %w", err)
	}
	samples, sampleRate, err := audio.DecodeWAV(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	slog.Info("decoded audio file",
		"path", path,
		"samples", len(samples),
		"sample_rate", sampleRate,
		"duration_seconds", float64(len(samples))/float64(sampleRate),
	)
	return p.Run(ctx, samples, sampleRate)
}

// RunPackets decodes a live capture packet stream through the configured
// packet decoder and runs the resulting PCM through the streaming pipeline.
func (p *Pipeline) RunPackets(ctx context.Context, packets [][]byte) error {
	if p.decoderFactory == nil {
		return fmt.Errorf("no packet decoder configured")
	}
	dec, err := p.decoderFactory()
	if err != nil {
		return fmt.Errorf("create packet decoder: %w", err)
	}
	defer func() {
		_ = dec.Close()
	}()

	var samples []float32
	for _, pkt := range packets {
		pcm, err := dec.DecodePacket(pkt)
		if err != nil {
			return fmt.Errorf("decode packet: %w", err)
		}
		samples = append(samples, pcm...)
	}
	if len(samples) == 0 {
		slog.Info("packet stream carried no audio")
		return nil
	}
	return p.Run(ctx, samples, dec.SampleRate())
}

// Run streams samples through a dedicated session in small chunks and
// finalizes the transcript when the audio is exhausted.
func (p *Pipeline) Run(ctx context.Context, samples []float32, sampleRate int) error {
	created, err := p.repo.CreateSession(ctx, repository.CreateSessionInput{
		Language:  p.cfg.Language,
		Backend:   p.cfg.GatewayBackend,
		StartedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("create session record: %w", err)
	}
	slog.Info("session created", "session_id", created.ID)

	sess, err := p.transcriber.NewStream()
	if err != nil {
		return fmt.Errorf("start streaming session: %w", err)
	}
	sess.Listeners().Subscribe(&lineRecorder{
		repo:      p.repo,
		notifier:  p.notifier,
		sessionID: created.ID,
	})

	chunk := int(float64(sampleRate) * feedChunkSeconds)
	if chunk < 1 {
		chunk = 1
	}
	for start := 0; start < len(samples); start += chunk {
		if err := ctx.Err(); err != nil {
			_ = sess.Stop()
			_ = sess.Close()
			return err
		}
		end := start + chunk
		if end > len(samples) {
			end = len(samples)
		}
		if err := sess.AddAudio(samples[start:end], sampleRate); err != nil {
			_ = sess.Stop()
			_ = sess.Close()
			return fmt.Errorf("add audio: %w", err)
		}
	}

	_ = sess.Stop()
	_ = sess.Close()

	p.finalize(created)
	return nil
}

// finalize mirrors the session-teardown path: best effort end to end,
// failures are logged but never abort the pipeline.
func (p *Pipeline) finalize(sess *repository.Session) {
	ctx := context.Background()
	endedAt := time.Now()

	lines, err := p.repo.ListLinesBySessionID(ctx, sess.ID)
	if err != nil {
		slog.Error("failed to list transcript lines", "error", err, "session_id", sess.ID)
		return
	}

	if err := p.repo.UpdateSessionCompleted(ctx, repository.CompleteSessionInput{
		SessionID: sess.ID,
		EndedAt:   endedAt,
		LineCount: len(lines),
	}); err != nil {
		slog.Error("failed to complete session", "error", err, "session_id", sess.ID)
	}

	payload := buildTranscriptWebhookPayload(sess, endedAt, lines)
	if err := p.webhook.SendTranscript(ctx, payload); err != nil {
		slog.Error("failed to send webhook transcript", "error", err, "session_id", sess.ID)
	}

	filename := fmt.Sprintf("transcript-%s.txt", sess.ID)
	if err := p.notifier.PostTranscript(ctx, filename, buildTranscriptText(sess, endedAt, lines)); err != nil {
		slog.Error("failed to post transcript", "error", err, "session_id", sess.ID)
	}
	slog.Info("session finalized", "session_id", sess.ID, "lines", len(lines))
}

// lineRecorder persists completed lines as they finish and forwards them to
// the notifier. Errors are reported back to the dispatcher so other
// listeners learn about them, without ever destabilizing the audio feed.
type lineRecorder struct {
	repo      repository.Repository
	notifier  notifier.Notifier
	sessionID string
}

func (r *lineRecorder) HandleTranscriptEvent(ev transcript.Event) error {
	switch ev.Type {
	case transcript.EventLineCompleted:
		ctx := context.Background()
		if err := r.repo.InsertLine(ctx, repository.InsertLineInput{
			SessionID:       r.sessionID,
			LineID:          ev.Line.ID,
			Content:         ev.Line.Text,
			StartSeconds:    ev.Line.StartSeconds,
			DurationSeconds: ev.Line.Duration,
		}); err != nil {
			return fmt.Errorf("insert line: %w", err)
		}
		if err := r.notifier.PostLine(ctx, ev.Line.Text); err != nil {
			slog.Warn("failed to post line", "error", err, "session_id", r.sessionID)
		}
	case transcript.EventError:
		slog.Error("transcription error event",
			"error", ev.Err,
			"stream_id", ev.StreamID,
			"session_id", r.sessionID,
		)
	}
	return nil
}
