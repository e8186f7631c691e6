package gateway

import (
	"log/slog"

	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/gateway"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (gateway.Gateway, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return New(cfg, slog.Default())
	})
}
