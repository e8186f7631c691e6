package session

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/kikitori/internal/gateway"
	"github.com/foxseedlab/kikitori/internal/transcript"
)

const defaultUpdateInterval = 500 * time.Millisecond

var (
	// ErrSessionClosed is returned for any operation on a stopped or closed
	// session; a closed session never reuses its stale stream handle.
	ErrSessionClosed = errors.New("session: not accepting audio")
	ErrNotStarted    = errors.New("session: not started")
)

// Session is one streaming transcription context bound to one gateway
// stream handle. It buffers stream-time accounting, triggers snapshot
// updates, diffs snapshots into events and dispatches them to listeners.
//
// A session is not safe for concurrent use: audio ingestion, updates and
// dispatch all run synchronously on the calling goroutine, and callers that
// feed audio from a capture thread must serialize access themselves.
type Session struct {
	gw       gateway.Gateway
	model    gateway.ModelHandle
	stream   gateway.StreamHandle
	streamID string
	log      *slog.Logger

	listeners *ListenerRegistry

	// updateInterval caps the latency before listeners see fresh partial
	// results; it is fixed at construction.
	updateInterval float64
	streamTime     float64
	lastUpdateTime float64

	latest transcript.Transcript

	started bool
	stopped bool
	closed  bool
}

// NewSession allocates a gateway stream for the given model. The returned
// session owns the stream handle exclusively and releases it exactly once,
// on Close. A non-positive updateInterval selects the 500 ms default.
func NewSession(gw gateway.Gateway, model gateway.ModelHandle, updateInterval time.Duration, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if updateInterval <= 0 {
		updateInterval = defaultUpdateInterval
	}
	stream, err := gw.CreateStream(model, gateway.FlagNone)
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}
	streamID := fmt.Sprintf("stream-%d", stream)
	return &Session{
		gw:             gw,
		model:          model,
		stream:         stream,
		streamID:       streamID,
		log:            logger.With("component", "session", "stream_id", streamID),
		listeners:      NewListenerRegistry(),
		updateInterval: updateInterval.Seconds(),
	}, nil
}

// StreamID identifies this session's stream in emitted events.
func (s *Session) StreamID() string {
	return s.streamID
}

// Listeners exposes the session's observer registry.
func (s *Session) Listeners() *ListenerRegistry {
	return s.listeners
}

// Current returns the latest snapshot seen by this session.
func (s *Session) Current() transcript.Transcript {
	return s.latest
}

// StreamTime is the cumulative duration, in seconds, of audio submitted
// since the session started.
func (s *Session) StreamTime() float64 {
	return s.streamTime
}

// Start asks the gateway to begin accepting audio on this stream. Calling
// Start on an already started session is a no-op; no second underlying
// resource is ever allocated.
func (s *Session) Start() error {
	if s.closed || s.stopped {
		return ErrSessionClosed
	}
	if s.started {
		s.log.Debug("start ignored; session already started")
		return nil
	}
	if err := s.gw.StartStream(s.model, s.stream); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	s.started = true
	return nil
}

// AddAudio forwards mono float samples to the gateway and advances stream
// time by len(samples)/sampleRate. When the time since the last update
// reaches the configured interval, a transcription update runs
// automatically; failures of such auto-updates surface as error events
// rather than as a returned error.
func (s *Session) AddAudio(samples []float32, sampleRate int) error {
	if s.closed || s.stopped {
		return ErrSessionClosed
	}
	if !s.started {
		return ErrNotStarted
	}
	if sampleRate <= 0 {
		return fmt.Errorf("add audio: %w: sample rate %d", gateway.ErrInvalidArgument, sampleRate)
	}
	if err := s.gw.PushAudio(s.model, s.stream, samples, sampleRate, gateway.FlagNone); err != nil {
		return fmt.Errorf("push audio: %w", err)
	}
	s.streamTime += float64(len(samples)) / float64(sampleRate)

	if s.streamTime-s.lastUpdateTime >= s.updateInterval {
		if _, err := s.UpdateTranscription(false); err != nil {
			s.dispatchError(err)
		}
	}
	return nil
}

// UpdateTranscription fetches a fresh snapshot regardless of elapsed
// stream time, derives events against the engine-reported stability flags,
// dispatches them in snapshot order and stores the snapshot as the new
// baseline. forceUpdate is passed through to the gateway to request
// recomputation even when the engine would defer it.
func (s *Session) UpdateTranscription(forceUpdate bool) (transcript.Transcript, error) {
	if s.closed {
		return transcript.Transcript{}, ErrSessionClosed
	}
	if !s.started {
		return transcript.Transcript{}, ErrNotStarted
	}
	flags := gateway.FlagNone
	if forceUpdate {
		flags = gateway.FlagForceUpdate
	}
	snapshot, err := s.gw.TranscribeStream(s.model, s.stream, flags)
	if err != nil {
		return transcript.Transcript{}, fmt.Errorf("transcribe stream: %w", err)
	}
	s.lastUpdateTime = s.streamTime
	s.latest = snapshot
	for _, ev := range transcript.DeriveEvents(snapshot, s.streamID) {
		s.listeners.Dispatch(ev)
	}
	return snapshot, nil
}

// Stop finalizes the stream: the gateway flushes buffered audio and one
// last update surfaces completion events for lines not yet complete. From
// the caller's point of view stopping always succeeds; flush failures are
// reported as error events, never returned. Further audio is rejected.
func (s *Session) Stop() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.stopped {
		return nil
	}
	s.stopped = true
	if !s.started {
		return nil
	}
	if err := s.gw.StopStream(s.model, s.stream); err != nil {
		s.dispatchError(fmt.Errorf("stop stream: %w", err))
	}
	if _, err := s.UpdateTranscription(true); err != nil {
		s.dispatchError(fmt.Errorf("final update: %w", err))
	}
	return nil
}

// Close releases the gateway stream and clears all listeners. Cleanup never
// fails loudly: release errors are logged and swallowed. Close is
// idempotent; second and later calls are no-ops and trigger no second
// release attempt.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.gw.FreeStream(s.model, s.stream); err != nil {
		s.log.Warn("failed to free stream", "error", err)
	}
	s.listeners.Clear()
	return nil
}

func (s *Session) dispatchError(err error) {
	s.log.Error("session error", "error", err)
	s.listeners.Dispatch(transcript.Event{
		Type:     transcript.EventError,
		StreamID: s.streamID,
		Err:      err,
	})
}
