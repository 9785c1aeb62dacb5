package analyzer

import (
	"github.com/pairloop/pairloop/internal/analyzer"
	"github.com/pairloop/pairloop/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (analyzer.Analyzer, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewGeminiClient(GeminiClientConfig{
			APIKey: c.GeminiAPIKey,
			Model:  c.GeminiModel,
		}), nil
	})
}
