package pipeline

import (
	"github.com/pairloop/pairloop/internal/analytics"
	"github.com/pairloop/pairloop/internal/analyzer"
	"github.com/pairloop/pairloop/internal/config"
	"github.com/pairloop/pairloop/internal/repository"
	"github.com/pairloop/pairloop/internal/tasks"
	"github.com/pairloop/pairloop/internal/transcriber"
	"github.com/pairloop/pairloop/internal/video"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		vc := do.MustInvoke[video.Client](i)
		stt := do.MustInvoke[transcriber.Transcriber](i)
		queue := do.MustInvoke[tasks.Queue](i)
		an := do.MustInvoke[analyzer.Analyzer](i)
		agg := do.MustInvoke[*analytics.Aggregator](i)
		return NewManager(cfg, repo, vc, stt, queue, an, agg), nil
	})
}
