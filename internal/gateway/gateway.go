package gateway

import "github.com/foxseedlab/kikitori/internal/transcript"

// ModelHandle identifies a loaded model inside a gateway. Handles are opaque
// and owned by exactly one high-level object, which releases them exactly
// once via FreeModel.
type ModelHandle int64

// StreamHandle identifies one transcription stream bound to a model.
type StreamHandle int64

// Flags is passed through to the engine on stream and transcribe calls.
type Flags uint32

const (
	FlagNone Flags = 0
	// FlagForceUpdate requests a fresh snapshot even if the engine would
	// otherwise defer recomputation.
	FlagForceUpdate Flags = 1 << iota
)

// Gateway is the boundary to an opaque speech-inference engine. Audio goes
// in as mono float32 samples in [-1, 1]; transcripts come back as full
// snapshots whose per-line stability flags are authoritative.
//
// Teardown calls (StopStream, FreeStream, FreeModel) may fail, but such
// failures are non-fatal: callers log and continue.
type Gateway interface {
	LoadModel(path, architecture string, options []string) (ModelHandle, error)
	FreeModel(model ModelHandle) error

	CreateStream(model ModelHandle, flags Flags) (StreamHandle, error)
	StartStream(model ModelHandle, stream StreamHandle) error
	PushAudio(model ModelHandle, stream StreamHandle, samples []float32, sampleRate int, flags Flags) error
	TranscribeStream(model ModelHandle, stream StreamHandle, flags Flags) (transcript.Transcript, error)
	StopStream(model ModelHandle, stream StreamHandle) error
	FreeStream(model ModelHandle, stream StreamHandle) error

	// TranscribeOneShot transcribes a complete buffer without a stream.
	// Zero-length input yields an empty transcript, not an error.
	TranscribeOneShot(model ModelHandle, samples []float32, sampleRate int, flags Flags) (transcript.Transcript, error)
}
