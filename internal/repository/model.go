package repository

import (
	"sort"
	"time"
)

type ConnectionStatus string

const (
	ConnectionStatusScheduling ConnectionStatus = "scheduling"
	ConnectionStatusProposed   ConnectionStatus = "proposed"
	ConnectionStatusScheduled  ConnectionStatus = "scheduled"
	ConnectionStatusCompleted  ConnectionStatus = "completed"
	ConnectionStatusCancelled  ConnectionStatus = "cancelled"
)

// connectionTransitions is the table of legal status moves. Completed and
// cancelled are terminal; a connection never regresses.
var connectionTransitions = map[ConnectionStatus][]ConnectionStatus{
	ConnectionStatusScheduling: {ConnectionStatusProposed, ConnectionStatusCancelled},
	ConnectionStatusProposed:   {ConnectionStatusScheduled, ConnectionStatusCancelled},
	ConnectionStatusScheduled:  {ConnectionStatusCompleted, ConnectionStatusCancelled},
}

func (s ConnectionStatus) CanTransitionTo(next ConnectionStatus) bool {
	for _, allowed := range connectionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s ConnectionStatus) IsTerminal() bool {
	return s == ConnectionStatusCompleted || s == ConnectionStatusCancelled
}

type TranscriptStatus string

const (
	TranscriptStatusNone       TranscriptStatus = "none"
	TranscriptStatusComposing  TranscriptStatus = "composing"
	TranscriptStatusProcessing TranscriptStatus = "processing"
	TranscriptStatusCompleted  TranscriptStatus = "completed"
	TranscriptStatusFailed     TranscriptStatus = "failed"
	TranscriptStatusAbandoned  TranscriptStatus = "abandoned"
)

var transcriptTransitions = map[TranscriptStatus][]TranscriptStatus{
	TranscriptStatusNone:       {TranscriptStatusComposing},
	TranscriptStatusComposing:  {TranscriptStatusProcessing, TranscriptStatusFailed},
	TranscriptStatusProcessing: {TranscriptStatusCompleted, TranscriptStatusFailed, TranscriptStatusAbandoned},
}

func (s TranscriptStatus) CanTransitionTo(next TranscriptStatus) bool {
	for _, allowed := range transcriptTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s TranscriptStatus) IsTerminal() bool {
	switch s {
	case TranscriptStatusCompleted, TranscriptStatusFailed, TranscriptStatusAbandoned:
		return true
	}
	return false
}

type ScheduleFrequency string

const (
	ScheduleFrequencyWeekly   ScheduleFrequency = "weekly"
	ScheduleFrequencyBiweekly ScheduleFrequency = "biweekly"
	ScheduleFrequencyMonthly  ScheduleFrequency = "monthly"
)

// NextRun advances from a previous run time by one schedule period.
func (f ScheduleFrequency) NextRun(from time.Time) time.Time {
	switch f {
	case ScheduleFrequencyBiweekly:
		return from.AddDate(0, 0, 14)
	case ScheduleFrequencyMonthly:
		return from.AddDate(0, 1, 0)
	default:
		return from.AddDate(0, 0, 7)
	}
}

type Schedule struct {
	ID        string
	TeamID    string
	AccountID string
	Frequency ScheduleFrequency
	Questions []string
	NextRunAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Connection struct {
	ID                  string
	ScheduleID          string
	TeamID              string
	AccountID           string
	Status              ConnectionStatus
	ProposerID          string
	ConfirmerID         string
	ProposedAt          *time.Time
	ConfirmedAt         *time.Time
	RoomName            string
	RoomURL             string
	RoomSID             string
	CompositionSID      string
	TranscriptProvider  string
	TranscriptJobID     string
	TranscriptOperation string
	TranscriptOutputURI string
	TranscriptStatus    TranscriptStatus
	Questions           []string
	HasAnalysis         bool
	DurationSeconds     int64
	StartedAt           *time.Time
	EndedAt             *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type Transcript struct {
	ConnectionID string
	Provider     string
	Text         string
	Sentences    []TranscriptSentence
	CompletedAt  time.Time
}

type TranscriptSentence struct {
	Transcript string           `json:"transcript"`
	Confidence float64          `json:"confidence"`
	Words      []TranscriptWord `json:"words,omitempty"`
}

type TranscriptWord struct {
	Word       string  `json:"word"`
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime"`
	Confidence float64 `json:"confidence"`
}

type Analysis struct {
	Summary            string              `json:"summary"`
	SentimentScore     float64             `json:"sentimentScore"`
	BalanceScore       float64             `json:"balanceScore"`
	Topics             []string            `json:"topics"`
	KeyTakeaways       []string            `json:"keyTakeaways"`
	Vibe               string              `json:"vibe"`
	QuestionBreakdowns []QuestionBreakdown `json:"questionBreakdowns,omitempty"`
}

type QuestionBreakdown struct {
	Question       string   `json:"question"`
	SentimentScore float64  `json:"sentimentScore"`
	Topics         []string `json:"topics,omitempty"`
}

// Relationship is the undirected pairwise aggregate. UserA sorts before
// UserB; PairKey is derived from the sorted pair so A-B and B-A collapse
// to one row.
type Relationship struct {
	TeamID          string
	PairKey         string
	UserA           string
	UserB           string
	ConnectionCount int64
	LastConnectedAt time.Time
	Topics          []string
}

// PairKey computes the canonical storage key for an undirected user pair.
// Every writer must derive the key with this function and nothing else.
func PairKey(userID1, userID2 string) string {
	pair := []string{userID1, userID2}
	sort.Strings(pair)
	return pair[0] + ":" + pair[1]
}

// TeamMember carries per-(user, team) rolling sentiment as an additive
// (sum, count) pair. The average is derived at read time, which keeps
// every write a pure increment.
type TeamMember struct {
	TeamID          string
	UserID          string
	Email           string
	DisplayName     string
	ConnectionCount int64
	SentimentSum    float64
	SentimentCount  int64
}

func (m *TeamMember) AverageSentiment() float64 {
	if m.SentimentCount == 0 {
		return 0
	}
	return m.SentimentSum / float64(m.SentimentCount)
}

type SnapshotEntityType string

const (
	SnapshotEntityTeam    SnapshotEntityType = "team"
	SnapshotEntityAccount SnapshotEntityType = "account"
)

type AnalyticsSnapshot struct {
	EntityType           SnapshotEntityType
	EntityID             string
	Period               string
	TotalConnections     int64
	CompletedConnections int64
	SentimentSum         float64
	SentimentCount       int64
	TopicCounts          map[string]int64
}

// PeriodKey buckets a time into the monthly snapshot period, always UTC.
func PeriodKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
