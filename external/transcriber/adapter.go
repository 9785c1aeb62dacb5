package transcriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pairloop/pairloop/internal/repository"
	"github.com/pairloop/pairloop/internal/storage"
	"github.com/pairloop/pairloop/internal/transcriber"
)

// ManagedClient is the synchronous-style provider keyed by a media SID.
type ManagedClient interface {
	StartTranscript(ctx context.Context, mediaSID string) (string, error)
	ListSentences(ctx context.Context, jobID string) ([]repository.TranscriptSentence, error)
}

// BatchClient is the polling-style provider keyed by a blob URI.
type BatchClient interface {
	StartAnnotation(ctx context.Context, inputURI, outputURI string) (string, error)
	CheckOperation(ctx context.Context, operationName string) (bool, error)
}

// MediaResolver resolves a signed direct download URL for a media SID.
type MediaResolver interface {
	ResolveMediaURL(ctx context.Context, mediaSID string) (string, error)
}

// Adapter implements the provider decision logic: managed first, batch as
// the planned fallback when the managed provider rejects the source.
type Adapter struct {
	managed ManagedClient
	batch   BatchClient
	blobs   storage.BlobStore
	media   MediaResolver
	now     func() time.Time
}

func NewAdapter(managed ManagedClient, batch BatchClient, blobs storage.BlobStore, media MediaResolver) transcriber.Transcriber {
	return &Adapter{
		managed: managed,
		batch:   batch,
		blobs:   blobs,
		media:   media,
		now:     time.Now,
	}
}

func (a *Adapter) Start(ctx context.Context, mediaSID, roomSID string) (*transcriber.StartResult, error) {
	jobID, err := a.managed.StartTranscript(ctx, mediaSID)
	if err == nil {
		slog.Info("managed transcription started", "media_sid", mediaSID, "job_id", jobID)
		return &transcriber.StartResult{Provider: transcriber.ProviderManaged, JobID: jobID}, nil
	}
	if !errors.Is(err, transcriber.ErrUnsupportedSource) {
		return nil, fmt.Errorf("start managed transcription: %w", err)
	}
	slog.Info("managed provider rejected source; falling back to batch provider", "media_sid", mediaSID)

	mediaURL, err := a.media.ResolveMediaURL(ctx, mediaSID)
	if err != nil {
		return nil, fmt.Errorf("resolve media url for %s: %w", mediaSID, err)
	}
	inputURI, err := a.blobs.UploadFromURL(ctx, mediaURL, "compositions/"+mediaSID+".mp4")
	if err != nil {
		return nil, fmt.Errorf("upload media %s: %w", mediaSID, err)
	}
	outputURI := a.blobs.OutputURI("transcripts/" + mediaSID + ".json")

	operationName, err := a.batch.StartAnnotation(ctx, inputURI, outputURI)
	if err != nil {
		return nil, fmt.Errorf("start batch transcription: %w", err)
	}
	return &transcriber.StartResult{
		Provider:      transcriber.ProviderBatch,
		OperationName: operationName,
		OutputURI:     outputURI,
	}, nil
}

func (a *Adapter) Fetch(ctx context.Context, ref transcriber.JobRef) (*transcriber.Result, error) {
	switch ref.Provider {
	case transcriber.ProviderManaged:
		return a.fetchManaged(ctx, ref.JobID)
	case transcriber.ProviderBatch:
		return a.fetchBatch(ctx, ref)
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", ref.Provider)
	}
}

func (a *Adapter) fetchManaged(ctx context.Context, jobID string) (*transcriber.Result, error) {
	sentences, err := a.managed.ListSentences(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("fetch managed transcript %s: %w", jobID, err)
	}

	parts := make([]string, 0, len(sentences))
	for _, s := range sentences {
		parts = append(parts, strings.TrimSpace(s.Transcript))
	}
	return &transcriber.Result{
		Done: true,
		Transcript: &repository.Transcript{
			Provider:    string(transcriber.ProviderManaged),
			Text:        strings.Join(parts, " "),
			Sentences:   sentences,
			CompletedAt: a.now(),
		},
	}, nil
}

func (a *Adapter) fetchBatch(ctx context.Context, ref transcriber.JobRef) (*transcriber.Result, error) {
	done, err := a.batch.CheckOperation(ctx, ref.OperationName)
	if err != nil {
		return nil, err
	}
	if !done {
		return &transcriber.Result{Done: false}, nil
	}

	data, err := a.blobs.DownloadBytes(ctx, ref.OutputURI)
	if err != nil {
		return nil, fmt.Errorf("download batch result %s: %w", ref.OutputURI, err)
	}
	t, err := transcriber.NormalizeBatchResult(data)
	if err != nil {
		return nil, err
	}
	t.Provider = string(transcriber.ProviderBatch)
	t.CompletedAt = a.now()
	return &transcriber.Result{Done: true, Transcript: t}, nil
}
