package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pairloop/pairloop/internal/repository"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

const connectionColumns = `id, schedule_id, team_id, account_id, status, proposer_id, confirmer_id,
	proposed_at, confirmed_at, room_name, room_url, room_sid, composition_sid,
	transcript_provider, transcript_job_id, transcript_operation, transcript_output_uri,
	transcript_status, questions, analysis IS NOT NULL, duration_seconds,
	started_at, ended_at, created_at, updated_at`

func scanConnection(row pgx.Row) (*repository.Connection, error) {
	var c repository.Connection
	var questions []byte
	err := row.Scan(
		&c.ID, &c.ScheduleID, &c.TeamID, &c.AccountID, &c.Status, &c.ProposerID, &c.ConfirmerID,
		&c.ProposedAt, &c.ConfirmedAt, &c.RoomName, &c.RoomURL, &c.RoomSID, &c.CompositionSID,
		&c.TranscriptProvider, &c.TranscriptJobID, &c.TranscriptOperation, &c.TranscriptOutputURI,
		&c.TranscriptStatus, &questions, &c.HasAnalysis, &c.DurationSeconds,
		&c.StartedAt, &c.EndedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &c.Questions); err != nil {
			return nil, fmt.Errorf("decode connection questions: %w", err)
		}
	}
	return &c, nil
}

func (r *PostgresRepository) GetConnection(ctx context.Context, id string) (*repository.Connection, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE id = $1`, id)
	return scanConnection(row)
}

func (r *PostgresRepository) GetConnectionByRoomName(ctx context.Context, roomName string) (*repository.Connection, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE room_name = $1`, roomName)
	return scanConnection(row)
}

func (r *PostgresRepository) GetConnectionByRoomSID(ctx context.Context, roomSID string) (*repository.Connection, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE room_sid = $1 LIMIT 1`, roomSID)
	return scanConnection(row)
}

func (r *PostgresRepository) GetConnectionByTranscriptJobID(ctx context.Context, jobID string) (*repository.Connection, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE transcript_job_id = $1 LIMIT 1`, jobID)
	return scanConnection(row)
}

func (r *PostgresRepository) MarkConnectionCompleted(ctx context.Context, input repository.MarkConnectionCompletedInput) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE connections
		 SET status = 'completed', room_sid = $2, ended_at = $3,
		     started_at = COALESCE(started_at, $3 - make_interval(secs => $4::double precision)),
		     duration_seconds = $4, updated_at = NOW()
		 WHERE id = $1 AND status NOT IN ('completed', 'cancelled')`,
		input.ConnectionID, input.RoomSID, input.EndedAt, input.DurationSeconds)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) SetComposition(ctx context.Context, connectionID, compositionSID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE connections
		 SET composition_sid = $2, transcript_status = 'composing', updated_at = NOW()
		 WHERE id = $1 AND transcript_status = 'none' AND status = 'completed'`,
		connectionID, compositionSID)
	return err
}

func (r *PostgresRepository) SetTranscriptJob(ctx context.Context, input repository.SetTranscriptJobInput) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE connections
		 SET transcript_provider = $2, transcript_job_id = $3, transcript_operation = $4,
		     transcript_output_uri = $5, transcript_status = 'processing', updated_at = NOW()
		 WHERE id = $1 AND transcript_status = 'composing'`,
		input.ConnectionID, input.Provider, input.JobID, input.Operation, input.OutputURI)
	return err
}

func (r *PostgresRepository) SaveTranscript(ctx context.Context, input repository.SaveTranscriptInput) (bool, error) {
	sentences, err := json.Marshal(input.Transcript.Sentences)
	if err != nil {
		return false, fmt.Errorf("encode transcript sentences: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// The guarded transition is the idempotency gate: a second delivery of
	// the same terminal result updates zero rows and writes no transcript.
	tag, err := tx.Exec(ctx,
		`UPDATE connections SET transcript_status = 'completed', updated_at = NOW()
		 WHERE id = $1 AND transcript_status = 'processing'`,
		input.ConnectionID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO transcripts (connection_id, provider, full_text, sentences, completed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (connection_id) DO NOTHING`,
		input.ConnectionID, input.Transcript.Provider, input.Transcript.Text, sentences, input.Transcript.CompletedAt)
	if err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (r *PostgresRepository) MarkTranscriptFailed(ctx context.Context, connectionID, reason string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE connections SET transcript_status = 'failed', transcript_failure = $2, updated_at = NOW()
		 WHERE id = $1 AND transcript_status NOT IN ('completed', 'failed', 'abandoned')`,
		connectionID, reason)
	return err
}

func (r *PostgresRepository) MarkTranscriptAbandoned(ctx context.Context, connectionID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE connections SET transcript_status = 'abandoned', updated_at = NOW()
		 WHERE id = $1 AND transcript_status NOT IN ('completed', 'failed', 'abandoned')`,
		connectionID)
	return err
}

func (r *PostgresRepository) SaveAnalysis(ctx context.Context, connectionID string, analysis *repository.Analysis) error {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE connections SET analysis = $2, updated_at = NOW() WHERE id = $1`,
		connectionID, payload)
	return err
}

func (r *PostgresRepository) GetSchedule(ctx context.Context, id string) (*repository.Schedule, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, team_id, account_id, frequency, questions, next_run_at, created_at, updated_at
		 FROM schedules WHERE id = $1`, id)
	return scanSchedule(row)
}

func scanSchedule(row pgx.Row) (*repository.Schedule, error) {
	var s repository.Schedule
	var questions []byte
	err := row.Scan(&s.ID, &s.TeamID, &s.AccountID, &s.Frequency, &questions, &s.NextRunAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &s.Questions); err != nil {
			return nil, fmt.Errorf("decode schedule questions: %w", err)
		}
	}
	return &s, nil
}

func (r *PostgresRepository) ListDueSchedules(ctx context.Context, now time.Time) ([]repository.Schedule, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, team_id, account_id, frequency, questions, next_run_at, created_at, updated_at
		 FROM schedules WHERE next_run_at <= $1 ORDER BY next_run_at ASC`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) CreatePairingBatch(ctx context.Context, input repository.CreatePairingBatchInput) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, conn := range input.Connections {
		questions, err := json.Marshal(conn.Questions)
		if err != nil {
			return fmt.Errorf("encode connection questions: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO connections (id, schedule_id, team_id, account_id, status, proposer_id, confirmer_id, room_name, room_url, questions)
			 VALUES ($1, $2, $3, $4, 'scheduling', $5, $6, $7, $8, $9)`,
			conn.ID, conn.ScheduleID, conn.TeamID, conn.AccountID, conn.ProposerID, conn.ConfirmerID, conn.RoomName, conn.RoomURL, questions)
		if err != nil {
			return fmt.Errorf("insert connection %s: %w", conn.ID, err)
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE schedules SET next_run_at = $2, updated_at = NOW() WHERE id = $1`,
		input.ScheduleID, input.NextRunAt)
	if err != nil {
		return fmt.Errorf("advance schedule %s: %w", input.ScheduleID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("schedule %s not found", input.ScheduleID)
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) ListTeamMemberIDs(ctx context.Context, teamID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM team_members WHERE team_id = $1 ORDER BY user_id ASC`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PostgresRepository) GetTeamMember(ctx context.Context, teamID, userID string) (*repository.TeamMember, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT team_id, user_id, email, display_name, connection_count, sentiment_sum, sentiment_count
		 FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	var m repository.TeamMember
	err := row.Scan(&m.TeamID, &m.UserID, &m.Email, &m.DisplayName, &m.ConnectionCount, &m.SentimentSum, &m.SentimentCount)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *PostgresRepository) ApplyCompletedConnection(ctx context.Context, input repository.ApplyCompletedConnectionInput) error {
	topicCounts := make(map[string]int64, len(input.Topics))
	for _, topic := range input.Topics {
		topicCounts[topic]++
	}
	topicCountsJSON, err := json.Marshal(topicCounts)
	if err != nil {
		return fmt.Errorf("encode topic counts: %w", err)
	}
	topicsJSON, err := json.Marshal(input.Topics)
	if err != nil {
		return fmt.Errorf("encode topics: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Every statement below is a pure additive upsert, so the fold is safe
	// under concurrent completions without a prior read.
	snapshots := []struct {
		entityType repository.SnapshotEntityType
		entityID   string
	}{
		{repository.SnapshotEntityTeam, input.TeamID},
		{repository.SnapshotEntityAccount, input.AccountID},
	}
	for _, snap := range snapshots {
		_, err = tx.Exec(ctx,
			`INSERT INTO analytics_snapshots
			   (entity_type, entity_id, period, total_connections, completed_connections, sentiment_sum, sentiment_count, topic_counts)
			 VALUES ($1, $2, $3, 1, 1, $4, 1, $5)
			 ON CONFLICT (entity_type, entity_id, period) DO UPDATE SET
			   total_connections = analytics_snapshots.total_connections + 1,
			   completed_connections = analytics_snapshots.completed_connections + 1,
			   sentiment_sum = analytics_snapshots.sentiment_sum + EXCLUDED.sentiment_sum,
			   sentiment_count = analytics_snapshots.sentiment_count + 1,
			   topic_counts = (
			     SELECT COALESCE(jsonb_object_agg(key, total), '{}'::jsonb)
			     FROM (
			       SELECT key, SUM(value::bigint) AS total
			       FROM (
			         SELECT key, value FROM jsonb_each_text(analytics_snapshots.topic_counts)
			         UNION ALL
			         SELECT key, value FROM jsonb_each_text(EXCLUDED.topic_counts)
			       ) merged
			       GROUP BY key
			     ) agg
			   )`,
			snap.entityType, snap.entityID, input.Period, input.SentimentScore, topicCountsJSON)
		if err != nil {
			return fmt.Errorf("upsert %s snapshot: %w", snap.entityType, err)
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO relationships (team_id, pair_key, user_a, user_b, connection_count, last_connected_at, topics)
		 VALUES ($1, $2, $3, $4, 1, $5, $6)
		 ON CONFLICT (team_id, pair_key) DO UPDATE SET
		   connection_count = relationships.connection_count + 1,
		   last_connected_at = GREATEST(relationships.last_connected_at, EXCLUDED.last_connected_at),
		   topics = (
		     SELECT COALESCE(jsonb_agg(DISTINCT topic), '[]'::jsonb)
		     FROM (
		       SELECT jsonb_array_elements_text(relationships.topics) AS topic
		       UNION
		       SELECT jsonb_array_elements_text(EXCLUDED.topics) AS topic
		     ) merged
		   )`,
		input.TeamID, input.PairKey, input.UserA, input.UserB, input.CompletedAt, topicsJSON)
	if err != nil {
		return fmt.Errorf("upsert relationship: %w", err)
	}

	for _, userID := range []string{input.UserA, input.UserB} {
		_, err = tx.Exec(ctx,
			`INSERT INTO team_members (team_id, user_id, connection_count, sentiment_sum, sentiment_count)
			 VALUES ($1, $2, 1, $3, 1)
			 ON CONFLICT (team_id, user_id) DO UPDATE SET
			   connection_count = team_members.connection_count + 1,
			   sentiment_sum = team_members.sentiment_sum + EXCLUDED.sentiment_sum,
			   sentiment_count = team_members.sentiment_count + 1`,
			input.TeamID, userID, input.SentimentScore)
		if err != nil {
			return fmt.Errorf("update member stats for %s: %w", userID, err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepository) GetRelationship(ctx context.Context, teamID, pairKey string) (*repository.Relationship, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT team_id, pair_key, user_a, user_b, connection_count, last_connected_at, topics
		 FROM relationships WHERE team_id = $1 AND pair_key = $2`, teamID, pairKey)
	var rel repository.Relationship
	var topics []byte
	err := row.Scan(&rel.TeamID, &rel.PairKey, &rel.UserA, &rel.UserB, &rel.ConnectionCount, &rel.LastConnectedAt, &topics)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if len(topics) > 0 {
		if err := json.Unmarshal(topics, &rel.Topics); err != nil {
			return nil, fmt.Errorf("decode relationship topics: %w", err)
		}
	}
	return &rel, nil
}

func (r *PostgresRepository) GetSnapshot(ctx context.Context, entityType repository.SnapshotEntityType, entityID, period string) (*repository.AnalyticsSnapshot, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT entity_type, entity_id, period, total_connections, completed_connections, sentiment_sum, sentiment_count, topic_counts
		 FROM analytics_snapshots WHERE entity_type = $1 AND entity_id = $2 AND period = $3`,
		entityType, entityID, period)
	var snap repository.AnalyticsSnapshot
	var topicCounts []byte
	err := row.Scan(&snap.EntityType, &snap.EntityID, &snap.Period, &snap.TotalConnections, &snap.CompletedConnections, &snap.SentimentSum, &snap.SentimentCount, &topicCounts)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if len(topicCounts) > 0 {
		if err := json.Unmarshal(topicCounts, &snap.TopicCounts); err != nil {
			return nil, fmt.Errorf("decode snapshot topic counts: %w", err)
		}
	}
	return &snap, nil
}
