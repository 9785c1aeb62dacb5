package pairing

import (
	"github.com/pairloop/pairloop/internal/config"
	"github.com/pairloop/pairloop/internal/mailer"
	"github.com/pairloop/pairloop/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Engine, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		sender := do.MustInvoke[mailer.Sender](i)
		return NewEngine(cfg, repo, sender), nil
	})
}
