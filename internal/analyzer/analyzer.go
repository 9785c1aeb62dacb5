package analyzer

import (
	"context"

	"github.com/pairloop/pairloop/internal/repository"
)

// PromptContext carries the session details the model needs beyond the raw
// transcript text.
type PromptContext struct {
	TeamID    string
	Questions []string
}

// Analyzer turns transcript text into a structured analysis. A malformed
// model response is an error, never a defaulted result: fabricated numbers
// must not reach analytics.
type Analyzer interface {
	Analyze(ctx context.Context, transcriptText string, promptCtx PromptContext) (*repository.Analysis, error)
}
