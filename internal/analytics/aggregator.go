package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pairloop/pairloop/internal/repository"
)

// Aggregator folds completed, analyzed connections into the period
// snapshots, pairwise relationships and member stats. All arithmetic is
// expressed as additive increments so concurrent folds for the same team,
// pair or member never lose updates.
type Aggregator struct {
	repo repository.AnalyticsRepository
	now  func() time.Time
}

func NewAggregator(repo repository.AnalyticsRepository) *Aggregator {
	return &Aggregator{repo: repo, now: time.Now}
}

func (a *Aggregator) ApplyCompletedConnection(ctx context.Context, conn *repository.Connection, analysis *repository.Analysis) error {
	if analysis == nil {
		return fmt.Errorf("connection %s has no analysis to aggregate", conn.ID)
	}

	completedAt := a.now()
	if conn.EndedAt != nil {
		completedAt = *conn.EndedAt
	}
	userA, userB := orderPair(conn.ProposerID, conn.ConfirmerID)

	input := repository.ApplyCompletedConnectionInput{
		ConnectionID:   conn.ID,
		TeamID:         conn.TeamID,
		AccountID:      conn.AccountID,
		Period:         repository.PeriodKey(completedAt),
		PairKey:        repository.PairKey(conn.ProposerID, conn.ConfirmerID),
		UserA:          userA,
		UserB:          userB,
		SentimentScore: analysis.SentimentScore,
		Topics:         analysis.Topics,
		CompletedAt:    completedAt,
	}
	if err := a.repo.ApplyCompletedConnection(ctx, input); err != nil {
		return fmt.Errorf("aggregate connection %s: %w", conn.ID, err)
	}
	slog.Info("analytics updated",
		"connection_id", conn.ID,
		"team_id", conn.TeamID,
		"period", input.Period,
		"pair_key", input.PairKey,
		"sentiment", analysis.SentimentScore)
	return nil
}

func orderPair(u1, u2 string) (string, string) {
	if u2 < u1 {
		return u2, u1
	}
	return u1, u2
}
