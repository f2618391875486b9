package store

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS tracked_rooms (
		guild_id TEXT NOT NULL,
		room_id TEXT NOT NULL,
		PRIMARY KEY (guild_id, room_id)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY,
		guild_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		user_name TEXT NOT NULL,
		room_id TEXT NOT NULL,
		checkin_at TIMESTAMPTZ NOT NULL,
		checkout_at TIMESTAMPTZ,
		duration_minutes INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_open ON sessions (guild_id, user_id) WHERE checkout_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_range ON sessions (guild_id, checkin_at)`,
	`CREATE TABLE IF NOT EXISTS events (
		id UUID PRIMARY KEY,
		guild_id TEXT NOT NULL,
		name TEXT NOT NULL,
		room_id TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		expected_end_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_open ON events (guild_id) WHERE ended_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS event_participations (
		id UUID PRIMARY KEY,
		event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		user_name TEXT NOT NULL,
		joined_at TIMESTAMPTZ NOT NULL,
		left_at TIMESTAMPTZ,
		duration_minutes INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_participations_event ON event_participations (event_id, joined_at)`,
	`CREATE INDEX IF NOT EXISTS idx_participations_open ON event_participations (event_id, user_id) WHERE left_at IS NULL`,
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
