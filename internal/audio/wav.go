package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrInvalidContainer    = errors.New("audio: not a RIFF/WAVE container")
	ErrTruncatedChunk      = errors.New("audio: truncated chunk")
	ErrMissingFormatChunk  = errors.New("audio: missing format chunk")
	ErrMissingDataChunk    = errors.New("audio: missing data chunk")
	ErrUnsupportedEncoding = errors.New("audio: unsupported sample encoding")
	ErrUnsupportedBitDepth = errors.New("audio: unsupported bit depth")
)

const wavEncodingPCM = 1

// DecodeWAV parses a RIFF/WAVE container and returns mono float32 samples in
// [-1, 1] together with the declared sample rate. Only integer PCM at 16, 24
// or 32 bits per sample is supported. Multi-channel audio is downmixed to
// mono by arithmetic mean per frame. Unknown chunks are skipped by their
// declared length; scanning stops once the data chunk has been decoded.
//
// The decode is pure: the same bytes always produce the same samples. No
// partial result is ever returned on failure.
func DecodeWAV(data []byte) ([]float32, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, ErrInvalidContainer
	}

	var (
		formatSeen bool
		channels   int
		sampleRate int
		bitDepth   int
	)

	offset := 12
	for offset < len(data) {
		if offset+8 > len(data) {
			return nil, 0, fmt.Errorf("%w: chunk header at offset %d", ErrTruncatedChunk, offset)
		}
		tag := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		offset += 8
		if offset+size > len(data) {
			return nil, 0, fmt.Errorf("%w: %q chunk declares %d bytes, %d remain", ErrTruncatedChunk, tag, size, len(data)-offset)
		}
		payload := data[offset : offset+size]

		switch tag {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("%w: format chunk has %d bytes", ErrTruncatedChunk, size)
			}
			encoding := int(binary.LittleEndian.Uint16(payload[0:2]))
			if encoding != wavEncodingPCM {
				return nil, 0, fmt.Errorf("%w: encoding code %d", ErrUnsupportedEncoding, encoding)
			}
			channels = int(binary.LittleEndian.Uint16(payload[2:4]))
			if channels < 1 {
				return nil, 0, fmt.Errorf("%w: zero channels", ErrInvalidContainer)
			}
			sampleRate = int(binary.LittleEndian.Uint32(payload[4:8]))
			bitDepth = int(binary.LittleEndian.Uint16(payload[14:16]))
			if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
				return nil, 0, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedBitDepth, bitDepth)
			}
			formatSeen = true
		case "data":
			if !formatSeen {
				return nil, 0, ErrMissingFormatChunk
			}
			return decodePCMFrames(payload, channels, bitDepth), sampleRate, nil
		}
		offset += size
	}

	if !formatSeen {
		return nil, 0, ErrMissingFormatChunk
	}
	return nil, 0, ErrMissingDataChunk
}

func decodePCMFrames(payload []byte, channels, bitDepth int) []float32 {
	bytesPerSample := bitDepth / 8
	frameBytes := bytesPerSample * channels
	frameCount := len(payload) / frameBytes

	samples := make([]float32, frameCount)
	for frame := 0; frame < frameCount; frame++ {
		base := frame * frameBytes
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += decodeSample(payload[base+ch*bytesPerSample:], bitDepth)
		}
		samples[frame] = sum / float32(channels)
	}
	return samples
}

func decodeSample(b []byte, bitDepth int) float32 {
	switch bitDepth {
	case 16:
		v := int16(binary.LittleEndian.Uint16(b))
		return float32(v) / 32768.0
	case 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v -= 1 << 24
		}
		return float32(v) / 8388608.0
	default: // 32
		v := int32(binary.LittleEndian.Uint32(b))
		return float32(v) / 2147483648.0
	}
}
