package store

import (
	"context"
	"testing"
	"time"
)

var baseTime = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

func TestTrackRoom_Idempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.TrackRoom(ctx, "guild-1", "room-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.TrackRoom(ctx, "guild-1", "room-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rooms, err := m.ListTrackedRooms(ctx, "guild-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rooms) != 1 || rooms[0] != "room-1" {
		t.Fatalf("unexpected tracked rooms: %v", rooms)
	}

	tracked, err := m.IsTracked(ctx, "guild-1", "room-1")
	if err != nil || !tracked {
		t.Fatalf("expected room-1 tracked, got %v %v", tracked, err)
	}
	tracked, err = m.IsTracked(ctx, "guild-2", "room-1")
	if err != nil || tracked {
		t.Fatalf("expected room-1 untracked elsewhere, got %v %v", tracked, err)
	}
}

func TestUntrackRoom_Idempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.UntrackRoom(ctx, "guild-1", "missing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = m.TrackRoom(ctx, "guild-1", "room-1")
	if err := m.UntrackRoom(ctx, "guild-1", "room-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tracked, _ := m.IsTracked(ctx, "guild-1", "room-1")
	if tracked {
		t.Fatal("expected room to be untracked")
	}
}

func TestCloseOpenSession_RoundsDuration(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.OpenSession(ctx, OpenSessionInput{
		GuildID: "guild-1", UserID: "user-1", UserName: "Ana", RoomID: "room-1",
		CheckinAt: baseTime,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	closed, err := m.CloseOpenSession(ctx, "guild-1", "user-1", baseTime.Add(90*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed == nil || closed.DurationMinutes == nil {
		t.Fatal("expected a closed session with a duration")
	}
	if *closed.DurationMinutes != 2 {
		t.Fatalf("expected 90s to round to 2 minutes, got %d", *closed.DurationMinutes)
	}
}

func TestCloseOpenSession_NoneOpen(t *testing.T) {
	m := NewMemory()
	closed, err := m.CloseOpenSession(context.Background(), "guild-1", "user-1", baseTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed != nil {
		t.Fatalf("expected nil for no open session, got %+v", closed)
	}
}

func TestGetOpenSession_ReturnsLatestOpen(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, _ = m.OpenSession(ctx, OpenSessionInput{GuildID: "guild-1", UserID: "user-1", RoomID: "room-1", CheckinAt: baseTime})
	_, _ = m.CloseOpenSession(ctx, "guild-1", "user-1", baseTime.Add(10*time.Minute))
	second, _ := m.OpenSession(ctx, OpenSessionInput{GuildID: "guild-1", UserID: "user-1", RoomID: "room-2", CheckinAt: baseTime.Add(20 * time.Minute)})

	open, err := m.GetOpenSession(ctx, "guild-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if open == nil || open.ID != second.ID {
		t.Fatalf("expected latest open session %s, got %+v", second.ID, open)
	}
}

func TestListSessionsBetween_FiltersAndOrders(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, _ = m.OpenSession(ctx, OpenSessionInput{GuildID: "guild-1", UserID: "user-2", RoomID: "room-1", CheckinAt: baseTime.Add(2 * time.Hour)})
	_, _ = m.CloseOpenSession(ctx, "guild-1", "user-2", baseTime.Add(3*time.Hour))
	_, _ = m.OpenSession(ctx, OpenSessionInput{GuildID: "guild-1", UserID: "user-1", RoomID: "room-1", CheckinAt: baseTime})
	_, _ = m.CloseOpenSession(ctx, "guild-1", "user-1", baseTime.Add(time.Hour))
	// outside the window
	_, _ = m.OpenSession(ctx, OpenSessionInput{GuildID: "guild-1", UserID: "user-3", RoomID: "room-1", CheckinAt: baseTime.Add(30 * time.Hour)})

	rows, err := m.ListSessionsBetween(ctx, "guild-1", baseTime.Add(-time.Hour), baseTime.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(rows))
	}
	if rows[0].UserID != "user-1" || rows[1].UserID != "user-2" {
		t.Fatalf("expected checkin order, got %s then %s", rows[0].UserID, rows[1].UserID)
	}
}

func TestOpenParticipation_Idempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	event, _ := m.CreateEvent(ctx, CreateEventInput{
		GuildID: "guild-1", Name: "Standup", RoomID: "room-1",
		StartedAt: baseTime, ExpectedEndAt: baseTime.Add(30 * time.Minute),
	})

	first, err := m.OpenParticipation(ctx, OpenParticipationInput{EventID: event.ID, UserID: "user-1", JoinedAt: baseTime})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := m.OpenParticipation(ctx, OpenParticipationInput{EventID: event.ID, UserID: "user-1", JoinedAt: baseTime.Add(time.Minute)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("expected duplicate open to return the existing participation")
	}
	rows, _ := m.ListParticipations(ctx, event.ID)
	if len(rows) != 1 {
		t.Fatalf("expected one participation, got %d", len(rows))
	}
}

func TestFinalizeEvent_ClosesOpenParticipations(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	event, _ := m.CreateEvent(ctx, CreateEventInput{
		GuildID: "guild-1", Name: "Standup", RoomID: "room-1",
		StartedAt: baseTime, ExpectedEndAt: baseTime.Add(30 * time.Minute),
	})
	_, _ = m.OpenParticipation(ctx, OpenParticipationInput{EventID: event.ID, UserID: "user-1", JoinedAt: baseTime})
	_, _ = m.OpenParticipation(ctx, OpenParticipationInput{EventID: event.ID, UserID: "user-2", JoinedAt: baseTime.Add(5 * time.Minute)})
	_, _ = m.CloseParticipation(ctx, event.ID, "user-2", baseTime.Add(10*time.Minute))

	endAt := baseTime.Add(30 * time.Minute)
	finalized, err := m.FinalizeEvent(ctx, event.ID, endAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finalized == nil || finalized.EndedAt == nil || !finalized.EndedAt.Equal(endAt) {
		t.Fatalf("expected event closed at %v, got %+v", endAt, finalized)
	}

	rows, _ := m.ListParticipations(ctx, event.ID)
	for _, p := range rows {
		if p.IsOpen() {
			t.Fatalf("expected all participations closed, %s still open", p.UserID)
		}
	}
	if *rows[0].DurationMinutes != 30 {
		t.Fatalf("expected 30 minutes for user-1, got %d", *rows[0].DurationMinutes)
	}
	if *rows[1].DurationMinutes != 5 {
		t.Fatalf("expected the already-closed row untouched, got %d", *rows[1].DurationMinutes)
	}
}

func TestFinalizeEvent_SecondFinalizeReturnsNoRow(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	event, _ := m.CreateEvent(ctx, CreateEventInput{
		GuildID: "guild-1", Name: "Standup", RoomID: "room-1",
		StartedAt: baseTime, ExpectedEndAt: baseTime.Add(30 * time.Minute),
	})

	endAt := baseTime.Add(30 * time.Minute)
	if _, err := m.FinalizeEvent(ctx, event.ID, endAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	again, err := m.FinalizeEvent(ctx, event.ID, endAt.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again != nil {
		t.Fatalf("expected no row on second finalize, got %+v", again)
	}

	stored, _ := m.GetEvent(ctx, event.ID)
	if stored.EndedAt == nil || !stored.EndedAt.Equal(endAt) {
		t.Fatalf("expected original end time %v to stand, got %+v", endAt, stored.EndedAt)
	}
}

func TestListOpenEvents_OrderedByStart(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	later, _ := m.CreateEvent(ctx, CreateEventInput{GuildID: "guild-1", Name: "B", RoomID: "r", StartedAt: baseTime.Add(time.Hour), ExpectedEndAt: baseTime.Add(2 * time.Hour)})
	earlier, _ := m.CreateEvent(ctx, CreateEventInput{GuildID: "guild-2", Name: "A", RoomID: "r", StartedAt: baseTime, ExpectedEndAt: baseTime.Add(time.Hour)})

	open, err := m.ListOpenEvents(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(open) != 2 || open[0].ID != earlier.ID || open[1].ID != later.ID {
		t.Fatalf("unexpected order: %+v", open)
	}
}

func TestRoundedMinutes(t *testing.T) {
	if got := RoundedMinutes(baseTime, baseTime.Add(90*time.Second)); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := RoundedMinutes(baseTime, baseTime.Add(61*time.Second)); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := RoundedMinutes(baseTime, baseTime.Add(47*time.Minute)); got != 47 {
		t.Fatalf("expected 47, got %d", got)
	}
}

func TestFlooredMinutes(t *testing.T) {
	if got := FlooredMinutes(baseTime, baseTime.Add(119*time.Second)); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := FlooredMinutes(baseTime.Add(time.Minute), baseTime); got != 0 {
		t.Fatalf("expected 0 for negative interval, got %d", got)
	}
}
