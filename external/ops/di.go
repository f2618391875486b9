package ops

import (
	"github.com/araucarialabs/presenca/internal/config"
	"github.com/araucarialabs/presenca/internal/store"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		st := do.MustInvoke[store.Store](i)
		return NewServer(cfg.OpsListenAddr, st), nil
	})
}
