package bot

import (
	"time"

	"github.com/araucarialabs/presenca/internal/config"
	"github.com/araucarialabs/presenca/internal/discord"
	"github.com/araucarialabs/presenca/internal/event"
	"github.com/araucarialabs/presenca/internal/notify"
	"github.com/araucarialabs/presenca/internal/report"
	"github.com/araucarialabs/presenca/internal/rooms"
	"github.com/araucarialabs/presenca/internal/store"
	"github.com/araucarialabs/presenca/internal/tracking"
	"github.com/araucarialabs/presenca/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*event.Scheduler, error) {
		st := do.MustInvoke[store.Store](i)
		dc := do.MustInvoke[discord.Client](i)
		return event.NewScheduler(st, dc), nil
	})
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		st := do.MustInvoke[store.Store](i)
		dc := do.MustInvoke[discord.Client](i)
		wh := do.MustInvoke[webhook.Sender](i)
		scheduler := do.MustInvoke[*event.Scheduler](i)

		registry := rooms.NewRegistry(st)
		tracker := tracking.NewTracker(registry, st)
		reports := report.NewAggregator(st, cfg.Location())
		throttle := notify.NewThrottle(time.Duration(cfg.DMCooldownMin) * time.Minute)
		return NewManager(cfg, dc, st, registry, tracker, scheduler, reports, throttle, wh), nil
	})
}
