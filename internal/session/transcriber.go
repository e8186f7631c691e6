package session

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/gateway"
	"github.com/foxseedlab/kikitori/internal/transcript"
)

// Transcriber is the top-level entry point. It loads the model once, hands
// out streaming sessions and offers the one-shot path for batch input. The
// default session is created lazily on first use and reused thereafter; it
// lives inside the transcriber value, never in process-wide state.
type Transcriber struct {
	cfg   *config.Config
	gw    gateway.Gateway
	log   *slog.Logger
	model gateway.ModelHandle

	defaultSession *Session
	closed         bool
}

func NewTranscriber(cfg *config.Config, gw gateway.Gateway, logger *slog.Logger) (*Transcriber, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var options []string
	if cfg.Language != "" {
		options = append(options, "language="+cfg.Language)
	}
	model, err := gw.LoadModel(cfg.ModelPath, cfg.ModelArchitecture, options)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	logger.Info("model loaded",
		"backend", cfg.GatewayBackend,
		"model_path", cfg.ModelPath,
		"architecture", cfg.ModelArchitecture,
	)
	return &Transcriber{
		cfg:   cfg,
		gw:    gw,
		log:   logger.With("component", "transcriber"),
		model: model,
	}, nil
}

// Stream returns the default streaming session, constructing and starting
// it on first use.
func (t *Transcriber) Stream() (*Session, error) {
	if t.closed {
		return nil, ErrSessionClosed
	}
	if t.defaultSession == nil {
		s, err := t.newStartedSession()
		if err != nil {
			return nil, err
		}
		t.defaultSession = s
	}
	return t.defaultSession, nil
}

// NewStream creates and starts a fresh session independent of the default
// one. The caller owns it and must Close it.
func (t *Transcriber) NewStream() (*Session, error) {
	if t.closed {
		return nil, ErrSessionClosed
	}
	return t.newStartedSession()
}

func (t *Transcriber) newStartedSession() (*Session, error) {
	s, err := NewSession(t.gw, t.model, t.cfg.UpdateInterval(), t.log)
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// TranscribeSamples transcribes a complete buffer in one shot, bypassing
// sessions. Zero-length input yields an empty transcript, not an error.
func (t *Transcriber) TranscribeSamples(samples []float32, sampleRate int) (transcript.Transcript, error) {
	if t.closed {
		return transcript.Transcript{}, ErrSessionClosed
	}
	return t.gw.TranscribeOneShot(t.model, samples, sampleRate, gateway.FlagNone)
}

// TranscribeFile reads and decodes a WAV container, then transcribes it in
// one shot.
func (t *Transcriber) TranscribeFile(path string) (transcript.Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return transcript.Transcript{}, fmt.Errorf("read audio file: %w", err)
	}
	samples, sampleRate, err := audio.DecodeWAV(data)
	if err != nil {
		return transcript.Transcript{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return t.TranscribeSamples(samples, sampleRate)
}

// Close releases the default session and then the model handle, exactly
// once. Idempotent; release errors are logged and swallowed.
func (t *Transcriber) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	if t.defaultSession != nil {
		_ = t.defaultSession.Close()
		t.defaultSession = nil
	}
	if err := t.gw.FreeModel(t.model); err != nil {
		t.log.Warn("failed to free model", "error", err)
	}
	return nil
}
