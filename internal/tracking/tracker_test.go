package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/araucarialabs/presenca/internal/rooms"
	"github.com/araucarialabs/presenca/internal/store"
)

var checkinTime = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

func newTestTracker(t *testing.T) (*Tracker, *store.Memory, *time.Time) {
	t.Helper()
	mem := store.NewMemory()
	if err := mem.TrackRoom(context.Background(), "guild-1", "room-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mem.TrackRoom(context.Background(), "guild-1", "room-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tracker := NewTracker(rooms.NewRegistry(mem), mem)
	now := checkinTime
	tracker.now = func() time.Time { return now }
	return tracker, mem, &now
}

func TestOnMembershipChanged_CheckInAndOut(t *testing.T) {
	tracker, mem, now := newTestTracker(t)
	ctx := context.Background()

	outcome, err := tracker.OnMembershipChanged(ctx, Change{
		GuildID: "guild-1", UserID: "user-1", DisplayName: "Ana",
		PreviousRoomID: "", NewRoomID: "room-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Transition != TransitionCheckIn || outcome.Opened == nil {
		t.Fatalf("expected check-in, got %+v", outcome)
	}

	*now = checkinTime.Add(47 * time.Minute)
	outcome, err = tracker.OnMembershipChanged(ctx, Change{
		GuildID: "guild-1", UserID: "user-1", DisplayName: "Ana",
		PreviousRoomID: "room-1", NewRoomID: "",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Transition != TransitionCheckOut || outcome.Closed == nil {
		t.Fatalf("expected check-out, got %+v", outcome)
	}
	if !outcome.Closed.CheckinAt.Equal(checkinTime) || *outcome.Closed.DurationMinutes != 47 {
		t.Fatalf("unexpected closed session: %+v", outcome.Closed)
	}
	open, _ := mem.GetOpenSession(ctx, "guild-1", "user-1")
	if open != nil {
		t.Fatal("expected no open session after check-out")
	}
}

func TestOnMembershipChanged_SwitchBetweenTrackedRooms(t *testing.T) {
	tracker, mem, now := newTestTracker(t)
	ctx := context.Background()

	_, _ = tracker.OnMembershipChanged(ctx, Change{GuildID: "guild-1", UserID: "user-1", NewRoomID: "room-1"})
	*now = checkinTime.Add(30 * time.Minute)

	outcome, err := tracker.OnMembershipChanged(ctx, Change{
		GuildID: "guild-1", UserID: "user-1",
		PreviousRoomID: "room-1", NewRoomID: "room-2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Transition != TransitionRoomSwitch {
		t.Fatalf("expected room switch, got %v", outcome.Transition)
	}
	if outcome.Closed == nil || *outcome.Closed.DurationMinutes != 30 {
		t.Fatalf("expected the old session closed at 30 minutes, got %+v", outcome.Closed)
	}
	if outcome.Opened == nil || outcome.Opened.RoomID != "room-2" {
		t.Fatalf("expected a new session in room-2, got %+v", outcome.Opened)
	}
	if !outcome.Opened.CheckinAt.Equal(*outcome.Closed.CheckoutAt) {
		t.Fatal("expected the new session to open at the same instant the old one closed")
	}
	open, _ := mem.GetOpenSession(ctx, "guild-1", "user-1")
	if open == nil || open.ID != outcome.Opened.ID {
		t.Fatalf("expected exactly the new session open, got %+v", open)
	}
}

func TestOnMembershipChanged_UntrackedMovementIsNoop(t *testing.T) {
	tracker, mem, _ := newTestTracker(t)
	ctx := context.Background()

	outcome, err := tracker.OnMembershipChanged(ctx, Change{
		GuildID: "guild-1", UserID: "user-1",
		PreviousRoomID: "untracked-a", NewRoomID: "untracked-b",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Transition != TransitionNone {
		t.Fatalf("expected no-op, got %v", outcome.Transition)
	}
	open, _ := mem.GetOpenSession(ctx, "guild-1", "user-1")
	if open != nil {
		t.Fatal("expected no session for untracked movement")
	}
}

func TestOnMembershipChanged_CheckOutWithoutOpenSession(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	outcome, err := tracker.OnMembershipChanged(context.Background(), Change{
		GuildID: "guild-1", UserID: "user-1",
		PreviousRoomID: "room-1", NewRoomID: "",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Transition != TransitionNone || outcome.Closed != nil {
		t.Fatalf("expected nothing to do, got %+v", outcome)
	}
}

func TestOnMembershipChanged_CheckInClosesStraySession(t *testing.T) {
	tracker, mem, now := newTestTracker(t)
	ctx := context.Background()

	_, _ = tracker.OnMembershipChanged(ctx, Change{GuildID: "guild-1", UserID: "user-1", NewRoomID: "room-1"})
	// Simulate a missed check-out: the user re-enters tracking while a
	// session is still open.
	*now = checkinTime.Add(10 * time.Minute)
	outcome, err := tracker.OnMembershipChanged(ctx, Change{
		GuildID: "guild-1", UserID: "user-1",
		PreviousRoomID: "", NewRoomID: "room-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Transition != TransitionCheckIn || outcome.Closed == nil {
		t.Fatalf("expected check-in closing the stray session, got %+v", outcome)
	}

	sessions, _ := mem.ListOpenSessions(ctx, "guild-1")
	if len(sessions) != 1 {
		t.Fatalf("expected exactly one open session, got %d", len(sessions))
	}
}

func TestElapsedMinutes_FloorsAndRecomputes(t *testing.T) {
	tracker, _, now := newTestTracker(t)
	ctx := context.Background()

	_, _ = tracker.OnMembershipChanged(ctx, Change{GuildID: "guild-1", UserID: "user-1", NewRoomID: "room-1"})

	*now = checkinTime.Add(119 * time.Second)
	elapsed, ok, err := tracker.ElapsedMinutes(ctx, "guild-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || elapsed != 1 {
		t.Fatalf("expected floored 1 minute, got %d (open=%v)", elapsed, ok)
	}

	*now = checkinTime.Add(3 * time.Minute)
	elapsed, ok, _ = tracker.ElapsedMinutes(ctx, "guild-1", "user-1")
	if !ok || elapsed != 3 {
		t.Fatalf("expected fresh read of 3 minutes, got %d", elapsed)
	}
}

func TestElapsedMinutes_NoOpenSession(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	_, ok, err := tracker.ElapsedMinutes(context.Background(), "guild-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected no open session")
	}
}

func TestCheckout_RoundsDuration(t *testing.T) {
	tracker, _, now := newTestTracker(t)
	ctx := context.Background()

	_, _ = tracker.OnMembershipChanged(ctx, Change{GuildID: "guild-1", UserID: "user-1", NewRoomID: "room-1"})
	*now = checkinTime.Add(90 * time.Second)

	closed, err := tracker.Checkout(ctx, "guild-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed == nil || *closed.DurationMinutes != 2 {
		t.Fatalf("expected 90s to round to 2 minutes, got %+v", closed)
	}
}
