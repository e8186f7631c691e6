package audio

// PacketDecoder turns compressed audio packets from a live capture source
// into mono float32 PCM ready for a transcription session.
type PacketDecoder interface {
	// DecodePacket decodes one packet. The returned slice may be empty when
	// the packet carries no audio.
	DecodePacket(packet []byte) ([]float32, error)
	// SampleRate reports the rate of the decoded samples.
	SampleRate() int
	Close() error
}

type PacketDecoderFactory func() (PacketDecoder, error)
