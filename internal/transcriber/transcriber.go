package transcriber

import (
	"context"
	"errors"

	"github.com/pairloop/pairloop/internal/repository"
)

// ErrUnsupportedSource is returned by the managed provider when it cannot
// transcribe the given media source. Callers treat it as the planned branch
// into the batch fallback, not as a failure.
var ErrUnsupportedSource = errors.New("media source not supported by provider")

// ErrOperationFailed marks a long-running operation that finished with a
// terminal error. Retrying the check cannot change the outcome.
var ErrOperationFailed = errors.New("transcription operation failed")

type Provider string

const (
	// ProviderManaged jobs complete via the provider's webhook callback.
	ProviderManaged Provider = "managed"
	// ProviderBatch jobs complete via long-running operation polling.
	ProviderBatch Provider = "batch"
)

// StartResult is a discriminated start outcome. Callers must branch on
// Provider: managed carries JobID only, batch carries OperationName and
// OutputURI only.
type StartResult struct {
	Provider      Provider
	JobID         string
	OperationName string
	OutputURI     string
}

type JobRef struct {
	Provider      Provider
	JobID         string
	OperationName string
	OutputURI     string
}

// Result of a fetch. Done=false means the job is still running, which is a
// normal outcome and not an error.
type Result struct {
	Done       bool
	Transcript *repository.Transcript
}

type Transcriber interface {
	Start(ctx context.Context, mediaSID, roomSID string) (*StartResult, error)
	Fetch(ctx context.Context, ref JobRef) (*Result, error)
}
