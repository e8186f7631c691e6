package audio

import (
	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.ProvideValue(injector, audio.PacketDecoderFactory(func() (audio.PacketDecoder, error) {
		return NewOpusDecoder()
	}))
}
