//go:build !opus

package audio

import "github.com/foxseedlab/kikitori/internal/audio"

type noopDecoder struct{}

func NewOpusDecoder() (audio.PacketDecoder, error) {
	return &noopDecoder{}, nil
}

func (d *noopDecoder) DecodePacket(_ []byte) ([]float32, error) {
	return nil, nil
}

func (d *noopDecoder) SampleRate() int {
	return 48000
}

func (d *noopDecoder) Close() error { return nil }
