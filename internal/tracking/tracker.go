package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/araucarialabs/presenca/internal/rooms"
	"github.com/araucarialabs/presenca/internal/store"
)

// Transition classifies what a membership change meant for attendance.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionCheckIn
	TransitionCheckOut
	TransitionRoomSwitch
)

// Change is one membership-change notification, already normalized by
// the gateway adapter.
type Change struct {
	GuildID        string
	UserID         string
	DisplayName    string
	PreviousRoomID string
	NewRoomID      string
}

// Outcome reports what the tracker did with a change so callers can
// drive side effects (log messages, DM reminders) without re-deriving
// the transition.
type Outcome struct {
	Transition Transition
	Closed     *store.Session
	Opened     *store.Session
}

// Tracker maintains at most one open attendance session per
// (guild, user) and reacts to membership transitions into and out of
// tracked rooms.
type Tracker struct {
	registry *rooms.Registry
	store    store.SessionStore
	now      func() time.Time
}

func NewTracker(registry *rooms.Registry, s store.SessionStore) *Tracker {
	return &Tracker{
		registry: registry,
		store:    s,
		now:      time.Now,
	}
}

func (t *Tracker) OnMembershipChanged(ctx context.Context, change Change) (Outcome, error) {
	wasTracked, err := t.registry.IsTracked(ctx, change.GuildID, change.PreviousRoomID)
	if err != nil {
		return Outcome{}, fmt.Errorf("lookup previous room: %w", err)
	}
	isTrackedNow, err := t.registry.IsTracked(ctx, change.GuildID, change.NewRoomID)
	if err != nil {
		return Outcome{}, fmt.Errorf("lookup new room: %w", err)
	}

	switch {
	case wasTracked && isTrackedNow && change.PreviousRoomID != change.NewRoomID:
		return t.switchRoom(ctx, change)
	case !wasTracked && isTrackedNow:
		return t.checkIn(ctx, change)
	case wasTracked && !isTrackedNow:
		return t.checkOut(ctx, change)
	default:
		return Outcome{Transition: TransitionNone}, nil
	}
}

// switchRoom closes the old session and opens the new one at the same
// instant, so the user's attendance has no gap.
func (t *Tracker) switchRoom(ctx context.Context, change Change) (Outcome, error) {
	at := t.now()
	closed, err := t.store.CloseOpenSession(ctx, change.GuildID, change.UserID, at)
	if err != nil {
		return Outcome{}, fmt.Errorf("close session on room switch: %w", err)
	}
	opened, err := t.openSession(ctx, change, at)
	if err != nil {
		return Outcome{}, err
	}
	slog.Info("room switch", "guild_id", change.GuildID, "user_id", change.UserID, "from_room_id", change.PreviousRoomID, "to_room_id", change.NewRoomID)
	return Outcome{Transition: TransitionRoomSwitch, Closed: closed, Opened: opened}, nil
}

func (t *Tracker) checkIn(ctx context.Context, change Change) (Outcome, error) {
	at := t.now()
	// A stray open session should not exist here; close it defensively
	// so the one-open-session invariant holds.
	closed, err := t.store.CloseOpenSession(ctx, change.GuildID, change.UserID, at)
	if err != nil {
		return Outcome{}, fmt.Errorf("close stray session on check-in: %w", err)
	}
	if closed != nil {
		slog.Warn("closed stray open session on check-in", "guild_id", change.GuildID, "user_id", change.UserID, "session_id", closed.ID)
	}
	opened, err := t.openSession(ctx, change, at)
	if err != nil {
		return Outcome{}, err
	}
	slog.Info("check-in", "guild_id", change.GuildID, "user_id", change.UserID, "room_id", change.NewRoomID, "session_id", opened.ID)
	return Outcome{Transition: TransitionCheckIn, Closed: closed, Opened: opened}, nil
}

func (t *Tracker) checkOut(ctx context.Context, change Change) (Outcome, error) {
	closed, err := t.store.CloseOpenSession(ctx, change.GuildID, change.UserID, t.now())
	if err != nil {
		return Outcome{}, fmt.Errorf("close session on check-out: %w", err)
	}
	if closed == nil {
		return Outcome{Transition: TransitionNone}, nil
	}
	slog.Info("check-out", "guild_id", change.GuildID, "user_id", change.UserID, "room_id", change.PreviousRoomID, "session_id", closed.ID, "duration_minutes", *closed.DurationMinutes)
	return Outcome{Transition: TransitionCheckOut, Closed: closed}, nil
}

func (t *Tracker) openSession(ctx context.Context, change Change, at time.Time) (*store.Session, error) {
	opened, err := t.store.OpenSession(ctx, store.OpenSessionInput{
		GuildID:   change.GuildID,
		UserID:    change.UserID,
		UserName:  change.DisplayName,
		RoomID:    change.NewRoomID,
		CheckinAt: at,
	})
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return opened, nil
}

// ElapsedMinutes reports the whole minutes since check-in of the user's
// open session, computed fresh on every call. The second return is false
// when no session is open.
func (t *Tracker) ElapsedMinutes(ctx context.Context, guildID, userID string) (int, bool, error) {
	open, err := t.store.GetOpenSession(ctx, guildID, userID)
	if err != nil {
		return 0, false, err
	}
	if open == nil {
		return 0, false, nil
	}
	return store.FlooredMinutes(open.CheckinAt, t.now()), true, nil
}

// OpenSession exposes the user's open session, if any, for command
// handlers (status, checkout).
func (t *Tracker) OpenSession(ctx context.Context, guildID, userID string) (*store.Session, error) {
	return t.store.GetOpenSession(ctx, guildID, userID)
}

// Checkout closes the user's open session at "now". Returns (nil, nil)
// when none is open; callers treat that as "nothing to do".
func (t *Tracker) Checkout(ctx context.Context, guildID, userID string) (*store.Session, error) {
	return t.store.CloseOpenSession(ctx, guildID, userID, t.now())
}
