package analytics

import (
	"github.com/pairloop/pairloop/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Aggregator, error) {
		repo := do.MustInvoke[repository.Repository](i)
		return NewAggregator(repo), nil
	})
}
