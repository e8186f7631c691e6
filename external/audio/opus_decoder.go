//go:build opus

package audio

import (
	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/hraban/opus"
)

const (
	sampleRate      = 48000
	channels        = 2
	frameSizeMs     = 60
	samplesPerFrame = sampleRate * frameSizeMs * channels / 1000
)

// OpusDecoder turns opus packets into normalized mono samples ready to
// feed a transcription session.
type OpusDecoder struct {
	dec    *opus.Decoder
	closed bool
}

func NewOpusDecoder() (audio.PacketDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, err
	}
	return &OpusDecoder{dec: dec}, nil
}

func (d *OpusDecoder) DecodePacket(packet []byte) ([]float32, error) {
	if d.closed || len(packet) == 0 {
		return nil, nil
	}
	pcm := make([]int16, samplesPerFrame)
	n, err := d.dec.Decode(packet, pcm)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	// Downmix interleaved stereo to mono by arithmetic mean, then
	// normalize to [-1, 1).
	mono := make([]float32, n)
	for i := 0; i < n; i++ {
		sum := int32(pcm[i*channels]) + int32(pcm[i*channels+1])
		mono[i] = float32(sum) / float32(channels) / 32768.0
	}
	return mono, nil
}

func (d *OpusDecoder) SampleRate() int {
	return sampleRate
}

func (d *OpusDecoder) Close() error {
	d.closed = true
	return nil
}
