package store

import (
	"context"
	"time"
)

type OpenSessionInput struct {
	GuildID   string
	UserID    string
	UserName  string
	RoomID    string
	CheckinAt time.Time
}

type CreateEventInput struct {
	GuildID       string
	Name          string
	RoomID        string
	StartedAt     time.Time
	ExpectedEndAt time.Time
}

type OpenParticipationInput struct {
	EventID  string
	UserID   string
	UserName string
	JoinedAt time.Time
}

// RoomStore is the persisted set of tracked rooms. Track and Untrack are
// idempotent.
type RoomStore interface {
	TrackRoom(ctx context.Context, guildID, roomID string) error
	UntrackRoom(ctx context.Context, guildID, roomID string) error
	IsTracked(ctx context.Context, guildID, roomID string) (bool, error)
	ListTrackedRooms(ctx context.Context, guildID string) ([]string, error)
}

// SessionStore persists attendance sessions. Lookups for a missing open
// session return (nil, nil); absence is a result, not an error.
type SessionStore interface {
	OpenSession(ctx context.Context, input OpenSessionInput) (*Session, error)
	GetOpenSession(ctx context.Context, guildID, userID string) (*Session, error)
	// CloseOpenSession closes the user's open session at the given
	// instant, stamping the rounded duration. Returns (nil, nil) when no
	// session is open.
	CloseOpenSession(ctx context.Context, guildID, userID string, at time.Time) (*Session, error)
	ListOpenSessions(ctx context.Context, guildID string) ([]Session, error)
	ListSessionsBetween(ctx context.Context, guildID string, start, end time.Time) ([]Session, error)
}

// EventStore persists bounded events and their participations.
type EventStore interface {
	CreateEvent(ctx context.Context, input CreateEventInput) (*Event, error)
	GetEvent(ctx context.Context, eventID string) (*Event, error)
	GetOpenEvent(ctx context.Context, guildID string) (*Event, error)
	// ListOpenEvents returns every event with no end time, ordered by
	// started_at ascending.
	ListOpenEvents(ctx context.Context) ([]Event, error)
	// FinalizeEvent atomically closes the event and every open
	// participation under it at the given instant. Partial failure must
	// leave the pre-state intact. Returns (nil, nil) when the event is
	// missing or already closed, so a double finalize cannot rewrite the
	// end time or emit a second report.
	FinalizeEvent(ctx context.Context, eventID string, at time.Time) (*Event, error)
	// OpenParticipation is idempotent: when the user already has an open
	// participation in the event, that row is returned unchanged.
	OpenParticipation(ctx context.Context, input OpenParticipationInput) (*Participation, error)
	// CloseParticipation returns (nil, nil) when the user has no open
	// participation in the event.
	CloseParticipation(ctx context.Context, eventID, userID string, at time.Time) (*Participation, error)
	ListParticipations(ctx context.Context, eventID string) ([]Participation, error)
}

type Store interface {
	RoomStore
	SessionStore
	EventStore
}
