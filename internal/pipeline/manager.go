package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pairloop/pairloop/internal/analytics"
	"github.com/pairloop/pairloop/internal/analyzer"
	"github.com/pairloop/pairloop/internal/config"
	"github.com/pairloop/pairloop/internal/repository"
	"github.com/pairloop/pairloop/internal/tasks"
	"github.com/pairloop/pairloop/internal/transcriber"
	"github.com/pairloop/pairloop/internal/video"
)

const (
	EventRoomEnded            = "room-ended"
	EventCompositionAvailable = "composition-available"
	EventRecordingCompleted   = "recording-completed"
)

// RoomEvent is one platform status callback. Events arrive unordered and
// may repeat; every handler below is replay-safe.
type RoomEvent struct {
	Type            string
	RoomName        string
	RoomSID         string
	CompositionSID  string
	DurationSeconds int64
	OccurredAt      time.Time
}

// Manager advances a connection through the media pipeline: room ended →
// composition → transcription → analysis → analytics. There is no central
// orchestrator; each handler validates the state the previous step left
// behind and no-ops when it is absent.
type Manager struct {
	cfg         *config.Config
	repo        repository.Repository
	video       video.Client
	transcriber transcriber.Transcriber
	queue       tasks.Queue
	analyzer    analyzer.Analyzer
	aggregator  *analytics.Aggregator
	now         func() time.Time
}

func NewManager(
	cfg *config.Config,
	repo repository.Repository,
	vc video.Client,
	stt transcriber.Transcriber,
	queue tasks.Queue,
	an analyzer.Analyzer,
	agg *analytics.Aggregator,
) *Manager {
	return &Manager{
		cfg:         cfg,
		repo:        repo,
		video:       vc,
		transcriber: stt,
		queue:       queue,
		analyzer:    an,
		aggregator:  agg,
		now:         time.Now,
	}
}

func (m *Manager) HandleRoomEvent(ctx context.Context, event RoomEvent) error {
	switch event.Type {
	case EventRoomEnded:
		return m.handleRoomEnded(ctx, event)
	case EventCompositionAvailable:
		return m.handleCompositionAvailable(ctx, event)
	case EventRecordingCompleted:
		// Per-participant recordings are superseded by the composition.
		slog.Debug("ignoring recording-completed event", "room_sid", event.RoomSID)
		return nil
	default:
		slog.Debug("ignoring unhandled room event", "event", event.Type, "room_name", event.RoomName)
		return nil
	}
}

func (m *Manager) handleRoomEnded(ctx context.Context, event RoomEvent) error {
	conn, err := m.repo.GetConnectionByRoomName(ctx, event.RoomName)
	if err != nil {
		return fmt.Errorf("lookup connection by room name: %w", err)
	}
	if conn == nil {
		slog.Warn("room-ended for unknown room; ignoring", "room_name", event.RoomName)
		return nil
	}

	endedAt := event.OccurredAt
	if endedAt.IsZero() {
		endedAt = m.now()
	}
	applied, err := m.repo.MarkConnectionCompleted(ctx, repository.MarkConnectionCompletedInput{
		ConnectionID:    conn.ID,
		RoomSID:         event.RoomSID,
		EndedAt:         endedAt,
		DurationSeconds: event.DurationSeconds,
	})
	if err != nil {
		return fmt.Errorf("mark connection %s completed: %w", conn.ID, err)
	}
	if !applied {
		slog.Info("room-ended replay for already-completed connection; ignoring", "connection_id", conn.ID)
		return nil
	}
	slog.Info("connection completed", "connection_id", conn.ID, "room_sid", event.RoomSID, "duration_sec", event.DurationSeconds)

	compositionSID, err := m.video.CreateComposition(ctx, event.RoomSID, m.cfg.RoomWebhookURL())
	if err != nil {
		return fmt.Errorf("create composition for connection %s: %w", conn.ID, err)
	}
	if err := m.repo.SetComposition(ctx, conn.ID, compositionSID); err != nil {
		return fmt.Errorf("store composition for connection %s: %w", conn.ID, err)
	}
	return nil
}

func (m *Manager) handleCompositionAvailable(ctx context.Context, event RoomEvent) error {
	conn, err := m.repo.GetConnectionByRoomSID(ctx, event.RoomSID)
	if err != nil {
		return fmt.Errorf("lookup connection by room sid: %w", err)
	}
	if conn == nil {
		slog.Warn("composition-available for unknown room sid; ignoring", "room_sid", event.RoomSID)
		return nil
	}
	if conn.TranscriptStatus != repository.TranscriptStatusComposing {
		slog.Info("composition-available out of order or replayed; ignoring",
			"connection_id", conn.ID, "transcript_status", conn.TranscriptStatus)
		return nil
	}

	start, err := m.transcriber.Start(ctx, event.CompositionSID, event.RoomSID)
	if err != nil {
		return fmt.Errorf("start transcription for connection %s: %w", conn.ID, err)
	}

	jobInput := repository.SetTranscriptJobInput{
		ConnectionID: conn.ID,
		Provider:     string(start.Provider),
	}
	switch start.Provider {
	case transcriber.ProviderManaged:
		jobInput.JobID = start.JobID
	case transcriber.ProviderBatch:
		jobInput.Operation = start.OperationName
		jobInput.OutputURI = start.OutputURI
	}
	if err := m.repo.SetTranscriptJob(ctx, jobInput); err != nil {
		return fmt.Errorf("store transcript job for connection %s: %w", conn.ID, err)
	}
	slog.Info("transcription started",
		"connection_id", conn.ID,
		"provider", start.Provider,
		"job_id", start.JobID,
		"operation", start.OperationName)

	if start.Provider == transcriber.ProviderBatch {
		err := m.queue.EnqueueOperationCheck(ctx, tasks.OperationCheckPayload{
			ConnectionID:  conn.ID,
			OperationName: start.OperationName,
			Attempt:       1,
		}, m.cfg.OperationCheckDelay())
		if err != nil {
			return fmt.Errorf("enqueue first operation check for connection %s: %w", conn.ID, err)
		}
	}
	return nil
}

// HandleTranscriptionCallback finishes a managed-provider job once the
// provider reports completion.
func (m *Manager) HandleTranscriptionCallback(ctx context.Context, jobID string) error {
	conn, err := m.repo.GetConnectionByTranscriptJobID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("lookup connection by transcript job: %w", err)
	}
	if conn == nil {
		slog.Warn("transcription callback for unknown job; ignoring", "job_id", jobID)
		return nil
	}

	result, err := m.transcriber.Fetch(ctx, transcriber.JobRef{
		Provider: transcriber.ProviderManaged,
		JobID:    jobID,
	})
	if err != nil {
		return fmt.Errorf("fetch managed transcript for connection %s: %w", conn.ID, err)
	}
	return m.persistAndFinalize(ctx, conn, result.Transcript)
}

// HandleTranscriptionFailed records a managed-provider job failure.
func (m *Manager) HandleTranscriptionFailed(ctx context.Context, jobID, reason string) error {
	conn, err := m.repo.GetConnectionByTranscriptJobID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("lookup connection by transcript job: %w", err)
	}
	if conn == nil {
		slog.Warn("transcription failure callback for unknown job; ignoring", "job_id", jobID)
		return nil
	}
	slog.Error("managed transcription failed", "connection_id", conn.ID, "job_id", jobID, "reason", reason)
	return m.repo.MarkTranscriptFailed(ctx, conn.ID, reason)
}

// HandleOperationCheck is one delivery of the durable poll loop. The queue
// delivers at least once, so everything here must be safe to repeat.
func (m *Manager) HandleOperationCheck(ctx context.Context, payload tasks.OperationCheckPayload) error {
	conn, err := m.repo.GetConnection(ctx, payload.ConnectionID)
	if err != nil {
		return fmt.Errorf("lookup connection %s: %w", payload.ConnectionID, err)
	}
	if conn == nil {
		slog.Warn("operation check for unknown connection; dropping", "connection_id", payload.ConnectionID)
		return nil
	}
	if conn.TranscriptStatus != repository.TranscriptStatusProcessing {
		slog.Info("operation check for non-processing transcript; dropping",
			"connection_id", conn.ID, "transcript_status", conn.TranscriptStatus)
		return nil
	}

	result, err := m.transcriber.Fetch(ctx, transcriber.JobRef{
		Provider:      transcriber.ProviderBatch,
		OperationName: payload.OperationName,
		OutputURI:     conn.TranscriptOutputURI,
	})
	if err != nil {
		if errors.Is(err, transcriber.ErrOperationFailed) {
			slog.Error("transcription operation failed", "error", err, "connection_id", conn.ID, "operation", payload.OperationName)
			return m.repo.MarkTranscriptFailed(ctx, conn.ID, err.Error())
		}
		return fmt.Errorf("check operation for connection %s: %w", conn.ID, err)
	}

	if !result.Done {
		if payload.Attempt >= m.cfg.OperationCheckMaxAttempts {
			slog.Warn("operation check attempts exhausted; abandoning transcript",
				"connection_id", conn.ID, "operation", payload.OperationName, "attempts", payload.Attempt)
			return m.repo.MarkTranscriptAbandoned(ctx, conn.ID)
		}
		return m.queue.EnqueueOperationCheck(ctx, tasks.OperationCheckPayload{
			ConnectionID:  payload.ConnectionID,
			OperationName: payload.OperationName,
			Attempt:       payload.Attempt + 1,
		}, m.cfg.OperationCheckDelay())
	}

	return m.persistAndFinalize(ctx, conn, result.Transcript)
}

func (m *Manager) persistAndFinalize(ctx context.Context, conn *repository.Connection, transcript *repository.Transcript) error {
	if transcript == nil {
		return fmt.Errorf("connection %s: fetch returned done without transcript", conn.ID)
	}
	transcript.ConnectionID = conn.ID

	applied, err := m.repo.SaveTranscript(ctx, repository.SaveTranscriptInput{
		ConnectionID: conn.ID,
		Transcript:   *transcript,
	})
	if err != nil {
		return fmt.Errorf("save transcript for connection %s: %w", conn.ID, err)
	}
	if !applied {
		slog.Info("transcript already persisted; skipping duplicate delivery", "connection_id", conn.ID)
		return nil
	}
	slog.Info("transcript persisted", "connection_id", conn.ID, "provider", transcript.Provider, "chars", len(transcript.Text))

	analysis, err := m.analyzer.Analyze(ctx, transcript.Text, analyzer.PromptContext{
		TeamID:    conn.TeamID,
		Questions: conn.Questions,
	})
	if err != nil {
		// The transcript is saved; the analysis stays unset rather than
		// feeding fabricated numbers into analytics.
		return fmt.Errorf("analyze connection %s: %w", conn.ID, err)
	}
	if err := m.repo.SaveAnalysis(ctx, conn.ID, analysis); err != nil {
		return fmt.Errorf("save analysis for connection %s: %w", conn.ID, err)
	}
	return m.aggregator.ApplyCompletedConnection(ctx, conn, analysis)
}
