package store

import (
	"context"
	"fmt"
	"time"

	"github.com/araucarialabs/presenca/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) store.Store {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) TrackRoom(ctx context.Context, guildID, roomID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tracked_rooms (guild_id, room_id) VALUES ($1, $2)
		 ON CONFLICT (guild_id, room_id) DO NOTHING`,
		guildID, roomID)
	return err
}

func (s *PostgresStore) UntrackRoom(ctx context.Context, guildID, roomID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM tracked_rooms WHERE guild_id = $1 AND room_id = $2`,
		guildID, roomID)
	return err
}

func (s *PostgresStore) IsTracked(ctx context.Context, guildID, roomID string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM tracked_rooms WHERE guild_id = $1 AND room_id = $2`,
		guildID, roomID).Scan(&one)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) ListTrackedRooms(ctx context.Context, guildID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT room_id FROM tracked_rooms WHERE guild_id = $1 ORDER BY room_id ASC`,
		guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roomIDs []string
	for rows.Next() {
		var roomID string
		if err := rows.Scan(&roomID); err != nil {
			return nil, err
		}
		roomIDs = append(roomIDs, roomID)
	}
	return roomIDs, rows.Err()
}

func (s *PostgresStore) OpenSession(ctx context.Context, input store.OpenSessionInput) (*store.Session, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO sessions (id, guild_id, user_id, user_name, room_id, checkin_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, guild_id, user_id, user_name, room_id, checkin_at, checkout_at, duration_minutes`,
		uuid.NewString(), input.GuildID, input.UserID, input.UserName, input.RoomID, input.CheckinAt)
	return scanSession(row)
}

func (s *PostgresStore) GetOpenSession(ctx context.Context, guildID, userID string) (*store.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, guild_id, user_id, user_name, room_id, checkin_at, checkout_at, duration_minutes
		 FROM sessions
		 WHERE guild_id = $1 AND user_id = $2 AND checkout_at IS NULL
		 ORDER BY checkin_at DESC LIMIT 1`,
		guildID, userID)
	sess, err := scanSession(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return sess, nil
}

func (s *PostgresStore) CloseOpenSession(ctx context.Context, guildID, userID string, at time.Time) (*store.Session, error) {
	open, err := s.GetOpenSession(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, nil
	}
	duration := store.RoundedMinutes(open.CheckinAt, at)
	row := s.pool.QueryRow(ctx,
		`UPDATE sessions SET checkout_at = $2, duration_minutes = $3
		 WHERE id = $1 AND checkout_at IS NULL
		 RETURNING id, guild_id, user_id, user_name, room_id, checkin_at, checkout_at, duration_minutes`,
		open.ID, at, duration)
	closed, err := scanSession(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return closed, nil
}

func (s *PostgresStore) ListOpenSessions(ctx context.Context, guildID string) ([]store.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, guild_id, user_id, user_name, room_id, checkin_at, checkout_at, duration_minutes
		 FROM sessions WHERE guild_id = $1 AND checkout_at IS NULL
		 ORDER BY checkin_at ASC`,
		guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func (s *PostgresStore) ListSessionsBetween(ctx context.Context, guildID string, start, end time.Time) ([]store.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, guild_id, user_id, user_name, room_id, checkin_at, checkout_at, duration_minutes
		 FROM sessions
		 WHERE guild_id = $1
		   AND checkin_at >= $2
		   AND COALESCE(checkout_at, checkin_at) <= $3
		 ORDER BY checkin_at ASC`,
		guildID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func (s *PostgresStore) CreateEvent(ctx context.Context, input store.CreateEventInput) (*store.Event, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO events (id, guild_id, name, room_id, started_at, expected_end_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, guild_id, name, room_id, started_at, expected_end_at, ended_at`,
		uuid.NewString(), input.GuildID, input.Name, input.RoomID, input.StartedAt, input.ExpectedEndAt)
	return scanEvent(row)
}

func (s *PostgresStore) GetEvent(ctx context.Context, eventID string) (*store.Event, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, guild_id, name, room_id, started_at, expected_end_at, ended_at
		 FROM events WHERE id = $1`,
		eventID)
	event, err := scanEvent(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return event, nil
}

func (s *PostgresStore) GetOpenEvent(ctx context.Context, guildID string) (*store.Event, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, guild_id, name, room_id, started_at, expected_end_at, ended_at
		 FROM events WHERE guild_id = $1 AND ended_at IS NULL
		 ORDER BY started_at ASC LIMIT 1`,
		guildID)
	event, err := scanEvent(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return event, nil
}

func (s *PostgresStore) ListOpenEvents(ctx context.Context) ([]store.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, guild_id, name, room_id, started_at, expected_end_at, ended_at
		 FROM events WHERE ended_at IS NULL
		 ORDER BY started_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []store.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

// FinalizeEvent closes the event and its open participations in one
// transaction so a failure never leaves a closed event with dangling
// open rows.
func (s *PostgresStore) FinalizeEvent(ctx context.Context, eventID string, at time.Time) (*store.Event, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin finalize transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx,
		`UPDATE event_participations
		 SET left_at = $2,
		     duration_minutes = GREATEST(0, ROUND(EXTRACT(EPOCH FROM ($2 - joined_at)) / 60))
		 WHERE event_id = $1 AND left_at IS NULL`,
		eventID, at)
	if err != nil {
		return nil, fmt.Errorf("close open participations: %w", err)
	}

	row := tx.QueryRow(ctx,
		`UPDATE events SET ended_at = $2 WHERE id = $1 AND ended_at IS NULL
		 RETURNING id, guild_id, name, room_id, started_at, expected_end_at, ended_at`,
		eventID, at)
	event, err := scanEvent(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("close event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit finalize transaction: %w", err)
	}
	return event, nil
}

func (s *PostgresStore) OpenParticipation(ctx context.Context, input store.OpenParticipationInput) (*store.Participation, error) {
	existing, err := s.getOpenParticipation(ctx, input.EventID, input.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO event_participations (id, event_id, user_id, user_name, joined_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, event_id, user_id, user_name, joined_at, left_at, duration_minutes`,
		uuid.NewString(), input.EventID, input.UserID, input.UserName, input.JoinedAt)
	return scanParticipation(row)
}

func (s *PostgresStore) getOpenParticipation(ctx context.Context, eventID, userID string) (*store.Participation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, event_id, user_id, user_name, joined_at, left_at, duration_minutes
		 FROM event_participations
		 WHERE event_id = $1 AND user_id = $2 AND left_at IS NULL
		 LIMIT 1`,
		eventID, userID)
	p, err := scanParticipation(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) CloseParticipation(ctx context.Context, eventID, userID string, at time.Time) (*store.Participation, error) {
	open, err := s.getOpenParticipation(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, nil
	}
	duration := store.RoundedMinutes(open.JoinedAt, at)
	row := s.pool.QueryRow(ctx,
		`UPDATE event_participations SET left_at = $2, duration_minutes = $3
		 WHERE id = $1 AND left_at IS NULL
		 RETURNING id, event_id, user_id, user_name, joined_at, left_at, duration_minutes`,
		open.ID, at, duration)
	closed, err := scanParticipation(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return closed, nil
}

func (s *PostgresStore) ListParticipations(ctx context.Context, eventID string) ([]store.Participation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, user_id, user_name, joined_at, left_at, duration_minutes
		 FROM event_participations WHERE event_id = $1
		 ORDER BY joined_at ASC, id ASC`,
		eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var participations []store.Participation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		participations = append(participations, *p)
	}
	return participations, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*store.Session, error) {
	var s store.Session
	var checkoutAt *time.Time
	var duration *int
	err := row.Scan(&s.ID, &s.GuildID, &s.UserID, &s.UserName, &s.RoomID, &s.CheckinAt, &checkoutAt, &duration)
	if err != nil {
		return nil, err
	}
	s.CheckoutAt = checkoutAt
	s.DurationMinutes = duration
	return &s, nil
}

func collectSessions(rows pgx.Rows) ([]store.Session, error) {
	var sessions []store.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func scanEvent(row rowScanner) (*store.Event, error) {
	var e store.Event
	var endedAt *time.Time
	err := row.Scan(&e.ID, &e.GuildID, &e.Name, &e.RoomID, &e.StartedAt, &e.ExpectedEndAt, &endedAt)
	if err != nil {
		return nil, err
	}
	e.EndedAt = endedAt
	return &e, nil
}

func scanParticipation(row rowScanner) (*store.Participation, error) {
	var p store.Participation
	var leftAt *time.Time
	var duration *int
	err := row.Scan(&p.ID, &p.EventID, &p.UserID, &p.UserName, &p.JoinedAt, &leftAt, &duration)
	if err != nil {
		return nil, err
	}
	p.LeftAt = leftAt
	p.DurationMinutes = duration
	return &p, nil
}
