package session

import (
	"log/slog"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/gateway"
	"github.com/foxseedlab/kikitori/internal/notifier"
	"github.com/foxseedlab/kikitori/internal/repository"
	"github.com/foxseedlab/kikitori/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Transcriber, error) {
		cfg := do.MustInvoke[*config.Config](i)
		gw := do.MustInvoke[gateway.Gateway](i)
		return NewTranscriber(cfg, gw, slog.Default())
	})
	do.Provide(injector, func(i do.Injector) (*Pipeline, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		wh := do.MustInvoke[webhook.Sender](i)
		nt := do.MustInvoke[notifier.Notifier](i)
		tr := do.MustInvoke[*Transcriber](i)
		df := do.MustInvoke[audio.PacketDecoderFactory](i)
		return NewPipeline(cfg, repo, wh, nt, tr, df), nil
	})
}
