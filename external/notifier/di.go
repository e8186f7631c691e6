package notifier

import (
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/notifier"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (notifier.Notifier, error) {
		c := do.MustInvoke[*config.Config](i)
		if c.DiscordToken == "" {
			return NewNoopNotifier(), nil
		}
		return NewDiscordNotifier(c.DiscordToken, c.DiscordChannelID)
	})
}
