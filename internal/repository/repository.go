package repository

import (
	"context"
	"time"
)

type NewConnectionInput struct {
	ID         string
	ScheduleID string
	TeamID     string
	AccountID  string
	ProposerID string
	ConfirmerID string
	RoomName   string
	RoomURL    string
	Questions  []string
}

// CreatePairingBatchInput is applied in a single transaction: either all
// connections are created and the schedule advances, or nothing happens.
type CreatePairingBatchInput struct {
	Connections []NewConnectionInput
	ScheduleID  string
	NextRunAt   time.Time
}

type MarkConnectionCompletedInput struct {
	ConnectionID    string
	RoomSID         string
	EndedAt         time.Time
	DurationSeconds int64
}

type SetTranscriptJobInput struct {
	ConnectionID string
	Provider     string
	JobID        string
	Operation    string
	OutputURI    string
}

type SaveTranscriptInput struct {
	ConnectionID string
	Transcript   Transcript
}

type ApplyCompletedConnectionInput struct {
	ConnectionID   string
	TeamID         string
	AccountID      string
	Period         string
	PairKey        string
	UserA          string
	UserB          string
	SentimentScore float64
	Topics         []string
	CompletedAt    time.Time
}

type ConnectionRepository interface {
	GetConnection(ctx context.Context, id string) (*Connection, error)
	GetConnectionByRoomName(ctx context.Context, roomName string) (*Connection, error)
	GetConnectionByRoomSID(ctx context.Context, roomSID string) (*Connection, error)
	GetConnectionByTranscriptJobID(ctx context.Context, jobID string) (*Connection, error)
	// MarkConnectionCompleted applies the scheduled->completed transition.
	// It reports false without error when the connection is already
	// completed, which makes webhook replays a no-op.
	MarkConnectionCompleted(ctx context.Context, input MarkConnectionCompletedInput) (bool, error)
	SetComposition(ctx context.Context, connectionID, compositionSID string) error
	SetTranscriptJob(ctx context.Context, input SetTranscriptJobInput) error
	// SaveTranscript persists the transcript and flips transcript status to
	// completed, conditional on the current status still being processing.
	// A duplicate delivery reports false and writes nothing.
	SaveTranscript(ctx context.Context, input SaveTranscriptInput) (bool, error)
	MarkTranscriptFailed(ctx context.Context, connectionID, reason string) error
	MarkTranscriptAbandoned(ctx context.Context, connectionID string) error
	SaveAnalysis(ctx context.Context, connectionID string, analysis *Analysis) error
}

type ScheduleRepository interface {
	GetSchedule(ctx context.Context, id string) (*Schedule, error)
	ListDueSchedules(ctx context.Context, now time.Time) ([]Schedule, error)
	// CreatePairingBatch inserts the run's connections and advances the
	// schedule's next run time atomically.
	CreatePairingBatch(ctx context.Context, input CreatePairingBatchInput) error
}

type TeamRepository interface {
	ListTeamMemberIDs(ctx context.Context, teamID string) ([]string, error)
	GetTeamMember(ctx context.Context, teamID, userID string) (*TeamMember, error)
}

type AnalyticsRepository interface {
	// ApplyCompletedConnection folds one analyzed connection into the
	// team and account snapshots, the pairwise relationship and both
	// members' stats in a single transaction of additive upserts.
	ApplyCompletedConnection(ctx context.Context, input ApplyCompletedConnectionInput) error
	GetRelationship(ctx context.Context, teamID, pairKey string) (*Relationship, error)
	GetSnapshot(ctx context.Context, entityType SnapshotEntityType, entityID, period string) (*AnalyticsSnapshot, error)
}

type Repository interface {
	ConnectionRepository
	ScheduleRepository
	TeamRepository
	AnalyticsRepository
}
