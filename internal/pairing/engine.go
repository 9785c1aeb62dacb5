package pairing

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/pairloop/pairloop/internal/config"
	"github.com/pairloop/pairloop/internal/mailer"
	"github.com/pairloop/pairloop/internal/repository"
)

const roomNamePrefix = "pairloop-"

// Engine pairs team members into scheduled connections. Each run shuffles
// the roster uniformly, pops disjoint pairs, persists the new connections
// together with the schedule advance in one batch, and notifies proposers.
type Engine struct {
	cfg    *config.Config
	repo   repository.Repository
	mailer mailer.Sender
	now    func() time.Time
	intn   func(n int) int
}

func NewEngine(cfg *config.Config, repo repository.Repository, sender mailer.Sender) *Engine {
	return &Engine{
		cfg:    cfg,
		repo:   repo,
		mailer: sender,
		now:    time.Now,
		intn:   rand.IntN,
	}
}

// RunDueSchedules runs every schedule whose next run time has passed.
// One failing schedule does not block the rest.
func (e *Engine) RunDueSchedules(ctx context.Context) (int, error) {
	schedules, err := e.repo.ListDueSchedules(ctx, e.now())
	if err != nil {
		return 0, fmt.Errorf("list due schedules: %w", err)
	}
	ran := 0
	for i := range schedules {
		if err := e.RunSchedule(ctx, &schedules[i]); err != nil {
			slog.Error("schedule run failed", "error", err, "schedule_id", schedules[i].ID)
			continue
		}
		ran++
	}
	return ran, nil
}

func (e *Engine) RunSchedule(ctx context.Context, schedule *repository.Schedule) error {
	memberIDs, err := e.repo.ListTeamMemberIDs(ctx, schedule.TeamID)
	if err != nil {
		return fmt.Errorf("list members of team %s: %w", schedule.TeamID, err)
	}
	if len(memberIDs) < 2 {
		slog.Info("schedule run skipped: not enough members", "schedule_id", schedule.ID, "team_id", schedule.TeamID, "members", len(memberIDs))
		return nil
	}

	pairs := e.pairMembers(memberIDs)
	if len(memberIDs)%2 != 0 {
		slog.Info("odd roster: one member left unpaired this run", "schedule_id", schedule.ID, "members", len(memberIDs))
	}

	connections := make([]repository.NewConnectionInput, 0, len(pairs))
	for _, p := range pairs {
		id := uuid.NewString()
		connections = append(connections, repository.NewConnectionInput{
			ID:          id,
			ScheduleID:  schedule.ID,
			TeamID:      schedule.TeamID,
			AccountID:   schedule.AccountID,
			ProposerID:  p[0],
			ConfirmerID: p[1],
			RoomName:    roomNamePrefix + id,
			RoomURL:     e.joinURL(roomNamePrefix + id),
			Questions:   schedule.Questions,
		})
	}

	nextRunAt := schedule.Frequency.NextRun(e.now())
	err = e.repo.CreatePairingBatch(ctx, repository.CreatePairingBatchInput{
		Connections: connections,
		ScheduleID:  schedule.ID,
		NextRunAt:   nextRunAt,
	})
	if err != nil {
		return fmt.Errorf("create pairing batch for schedule %s: %w", schedule.ID, err)
	}
	slog.Info("schedule run completed",
		"schedule_id", schedule.ID,
		"team_id", schedule.TeamID,
		"pairs", len(pairs),
		"next_run_at", nextRunAt)

	// Notifications come after the committed batch. A mail failure is
	// logged only; the connections already exist.
	for _, conn := range connections {
		e.notifyProposer(ctx, conn)
	}
	return nil
}

// pairMembers shuffles the roster with Fisher-Yates and pops two IDs at a
// time. An odd roster leaves exactly one member unpaired for this run.
func (e *Engine) pairMembers(memberIDs []string) [][2]string {
	shuffled := make([]string, len(memberIDs))
	copy(shuffled, memberIDs)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := e.intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	pairs := make([][2]string, 0, len(shuffled)/2)
	for len(shuffled) >= 2 {
		pairs = append(pairs, [2]string{shuffled[0], shuffled[1]})
		shuffled = shuffled[2:]
	}
	return pairs
}

func (e *Engine) notifyProposer(ctx context.Context, conn repository.NewConnectionInput) {
	member, err := e.repo.GetTeamMember(ctx, conn.TeamID, conn.ProposerID)
	if err != nil {
		slog.Error("failed to load proposer for notification", "error", err, "connection_id", conn.ID, "user_id", conn.ProposerID)
		return
	}
	if member == nil || member.Email == "" {
		slog.Warn("proposer has no email; skipping notification", "connection_id", conn.ID, "user_id", conn.ProposerID)
		return
	}

	msg := mailer.Message{
		To:       member.Email,
		Subject:  pairingEmailSubject,
		HTMLBody: buildPairingEmailBody(member.DisplayName, e.proposeURL(conn.ID), conn.RoomURL),
	}
	if err := e.mailer.Send(ctx, msg); err != nil {
		slog.Error("failed to send pairing notification", "error", err, "connection_id", conn.ID, "to", member.Email)
	}
}

func (e *Engine) proposeURL(connectionID string) string {
	return e.cfg.PublicBaseURL + "/connections/" + connectionID + "/propose"
}

func (e *Engine) joinURL(roomName string) string {
	return e.cfg.PublicBaseURL + "/call/" + roomName
}
