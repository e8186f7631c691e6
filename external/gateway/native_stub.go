//go:build !whispercpp

package gateway

import (
	"log/slog"

	"github.com/foxseedlab/kikitori/internal/gateway"
	"github.com/foxseedlab/kikitori/internal/transcript"
)

// NativeAvailable reports whether the whisper.cpp backend is compiled in.
func NativeAvailable() bool { return false }

func NewNativeGateway(logger *slog.Logger) *NativeGateway {
	return &NativeGateway{}
}

// NativeGateway is a placeholder that satisfies the Gateway interface when
// the whisper.cpp backend is absent.
type NativeGateway struct{}

func (g *NativeGateway) LoadModel(path, architecture string, options []string) (gateway.ModelHandle, error) {
	return 0, ErrNativeUnavailable
}

func (g *NativeGateway) FreeModel(model gateway.ModelHandle) error {
	return ErrNativeUnavailable
}

func (g *NativeGateway) CreateStream(model gateway.ModelHandle, flags gateway.Flags) (gateway.StreamHandle, error) {
	return 0, ErrNativeUnavailable
}

func (g *NativeGateway) StartStream(model gateway.ModelHandle, stream gateway.StreamHandle) error {
	return ErrNativeUnavailable
}

func (g *NativeGateway) PushAudio(model gateway.ModelHandle, stream gateway.StreamHandle, samples []float32, sampleRate int, flags gateway.Flags) error {
	return ErrNativeUnavailable
}

func (g *NativeGateway) TranscribeStream(model gateway.ModelHandle, stream gateway.StreamHandle, flags gateway.Flags) (transcript.Transcript, error) {
	return transcript.Transcript{}, ErrNativeUnavailable
}

func (g *NativeGateway) StopStream(model gateway.ModelHandle, stream gateway.StreamHandle) error {
	return ErrNativeUnavailable
}

func (g *NativeGateway) FreeStream(model gateway.ModelHandle, stream gateway.StreamHandle) error {
	return ErrNativeUnavailable
}

func (g *NativeGateway) TranscribeOneShot(model gateway.ModelHandle, samples []float32, sampleRate int, flags gateway.Flags) (transcript.Transcript, error) {
	return transcript.Transcript{}, ErrNativeUnavailable
}
