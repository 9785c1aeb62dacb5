package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`DO $$ BEGIN CREATE TYPE connection_status AS ENUM ('scheduling', 'proposed', 'scheduled', 'completed', 'cancelled'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`DO $$ BEGIN CREATE TYPE transcript_status AS ENUM ('none', 'composing', 'processing', 'completed', 'failed', 'abandoned'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`DO $$ BEGIN CREATE TYPE schedule_frequency AS ENUM ('weekly', 'biweekly', 'monthly'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS schedules (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		team_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		frequency schedule_frequency NOT NULL DEFAULT 'weekly',
		questions JSONB NOT NULL DEFAULT '[]',
		next_run_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_schedules_due ON schedules (next_run_at)`,
	`CREATE TABLE IF NOT EXISTS team_members (
		team_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		connection_count BIGINT NOT NULL DEFAULT 0,
		sentiment_sum DOUBLE PRECISION NOT NULL DEFAULT 0,
		sentiment_count BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (team_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS connections (
		id UUID PRIMARY KEY,
		schedule_id UUID NOT NULL REFERENCES schedules(id),
		team_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		status connection_status NOT NULL DEFAULT 'scheduling',
		proposer_id TEXT NOT NULL,
		confirmer_id TEXT NOT NULL,
		proposed_at TIMESTAMPTZ,
		confirmed_at TIMESTAMPTZ,
		room_name TEXT NOT NULL,
		room_url TEXT NOT NULL DEFAULT '',
		room_sid TEXT NOT NULL DEFAULT '',
		composition_sid TEXT NOT NULL DEFAULT '',
		transcript_provider TEXT NOT NULL DEFAULT '',
		transcript_job_id TEXT NOT NULL DEFAULT '',
		transcript_operation TEXT NOT NULL DEFAULT '',
		transcript_output_uri TEXT NOT NULL DEFAULT '',
		transcript_status transcript_status NOT NULL DEFAULT 'none',
		transcript_failure TEXT NOT NULL DEFAULT '',
		questions JSONB NOT NULL DEFAULT '[]',
		analysis JSONB,
		duration_seconds BIGINT NOT NULL DEFAULT 0,
		started_at TIMESTAMPTZ,
		ended_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (proposer_id <> confirmer_id),
		UNIQUE (room_name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_connections_room_sid ON connections (room_sid) WHERE room_sid <> ''`,
	`CREATE INDEX IF NOT EXISTS idx_connections_transcript_job ON connections (transcript_job_id) WHERE transcript_job_id <> ''`,
	`CREATE TABLE IF NOT EXISTS transcripts (
		connection_id UUID PRIMARY KEY REFERENCES connections(id) ON DELETE CASCADE,
		provider TEXT NOT NULL,
		full_text TEXT NOT NULL,
		sentences JSONB NOT NULL DEFAULT '[]',
		completed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS relationships (
		team_id TEXT NOT NULL,
		pair_key TEXT NOT NULL,
		user_a TEXT NOT NULL,
		user_b TEXT NOT NULL,
		connection_count BIGINT NOT NULL DEFAULT 0,
		last_connected_at TIMESTAMPTZ NOT NULL,
		topics JSONB NOT NULL DEFAULT '[]',
		PRIMARY KEY (team_id, pair_key)
	)`,
	`CREATE TABLE IF NOT EXISTS analytics_snapshots (
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		period TEXT NOT NULL,
		total_connections BIGINT NOT NULL DEFAULT 0,
		completed_connections BIGINT NOT NULL DEFAULT 0,
		sentiment_sum DOUBLE PRECISION NOT NULL DEFAULT 0,
		sentiment_count BIGINT NOT NULL DEFAULT 0,
		topic_counts JSONB NOT NULL DEFAULT '{}',
		PRIMARY KEY (entity_type, entity_id, period)
	)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
