package httpserver

import (
	"github.com/pairloop/pairloop/internal/config"
	"github.com/pairloop/pairloop/internal/pairing"
	"github.com/pairloop/pairloop/internal/pipeline"
	"github.com/pairloop/pairloop/internal/video"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (TokenVerifier, error) {
		return NewGoogleTokenVerifier(), nil
	})
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		manager := do.MustInvoke[*pipeline.Manager](i)
		engine := do.MustInvoke[*pairing.Engine](i)
		vc := do.MustInvoke[video.Client](i)
		verifier := do.MustInvoke[TokenVerifier](i)
		return NewServer(cfg, manager, engine, vc, verifier), nil
	})
}
