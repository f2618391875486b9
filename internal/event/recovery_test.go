package event

import (
	"context"
	"testing"
	"time"

	"github.com/araucarialabs/presenca/internal/discord"
	"github.com/araucarialabs/presenca/internal/store"
)

func seedOpenEvent(t *testing.T, mem *store.Memory, guildID string, startedAt time.Time, duration time.Duration) *store.Event {
	t.Helper()
	e, err := mem.CreateEvent(context.Background(), store.CreateEventInput{
		GuildID: guildID, Name: "Standup", RoomID: "room-1",
		StartedAt: startedAt, ExpectedEndAt: startedAt.Add(duration),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return e
}

func TestRecovery_RearmsEventStillInWindow(t *testing.T) {
	s, mem, occ, now := newTestScheduler(t)
	ctx := context.Background()

	seeded := seedOpenEvent(t, mem, "guild-1", eventStart, 30*time.Minute)
	occ.set("guild-1", "room-1",
		discord.RoomOccupant{UserID: "user-1", DisplayName: "Ana"},
		discord.RoomOccupant{UserID: "bot-1", DisplayName: "Presença", IsBot: true},
	)

	// Restart at 09:20, ten minutes before the expected end.
	*now = eventStart.Add(20 * time.Minute)
	report, err := NewRecovery(s).Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Resumed) != 1 || report.Resumed[0].ID != seeded.ID {
		t.Fatalf("expected the event re-armed, got %+v", report.Resumed)
	}
	if len(report.Finalized) != 0 || len(report.Failures) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	active, ok := s.ActiveEvent("guild-1")
	if !ok || active.ID != seeded.ID {
		t.Fatal("expected scheduler handle re-derived from the store")
	}

	// A participation is re-opened for the user present through the
	// outage; the bot is skipped.
	rows, _ := mem.ListParticipations(ctx, seeded.ID)
	if len(rows) != 1 || rows[0].UserID != "user-1" {
		t.Fatalf("expected one repaired participation, got %+v", rows)
	}
	if !rows[0].JoinedAt.Equal(*now) {
		t.Fatalf("expected repair to open at recovery time, got %v", rows[0].JoinedAt)
	}
}

func TestRecovery_RepairSkipsExistingOpenParticipation(t *testing.T) {
	s, mem, occ, now := newTestScheduler(t)
	ctx := context.Background()

	seeded := seedOpenEvent(t, mem, "guild-1", eventStart, 30*time.Minute)
	existing, _ := mem.OpenParticipation(ctx, store.OpenParticipationInput{
		EventID: seeded.ID, UserID: "user-1", UserName: "Ana", JoinedAt: eventStart,
	})
	occ.set("guild-1", "room-1", discord.RoomOccupant{UserID: "user-1", DisplayName: "Ana"})

	*now = eventStart.Add(10 * time.Minute)
	if _, err := NewRecovery(s).Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows, _ := mem.ListParticipations(ctx, seeded.ID)
	if len(rows) != 1 || rows[0].ID != existing.ID || !rows[0].JoinedAt.Equal(eventStart) {
		t.Fatalf("expected the original participation untouched, got %+v", rows)
	}
}

func TestRecovery_FinalizesOverdueEventAtExpectedEnd(t *testing.T) {
	s, mem, _, now := newTestScheduler(t)
	ctx := context.Background()
	recorder := &closedRecorder{}
	s.SetClosedHandler(recorder.handler())

	seeded := seedOpenEvent(t, mem, "guild-1", eventStart, 30*time.Minute)
	_, _ = mem.OpenParticipation(ctx, store.OpenParticipationInput{
		EventID: seeded.ID, UserID: "user-1", UserName: "Ana", JoinedAt: eventStart,
	})

	// Restart at 09:45, past the 09:30 expected end.
	*now = eventStart.Add(45 * time.Minute)
	report, err := NewRecovery(s).Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Finalized) != 1 || len(report.Resumed) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	stored, _ := mem.GetEvent(ctx, seeded.ID)
	if stored.EndedAt == nil || !stored.EndedAt.Equal(eventStart.Add(30*time.Minute)) {
		t.Fatalf("expected close at 09:30, not recovery time, got %+v", stored.EndedAt)
	}
	rows, _ := mem.ListParticipations(ctx, seeded.ID)
	if *rows[0].DurationMinutes != 30 {
		t.Fatalf("expected participation capped at the expected end, got %d", *rows[0].DurationMinutes)
	}
	if recorder.count() != 1 || recorder.causes[0] != CloseCauseRecovery {
		t.Fatalf("expected one recovery-close emission, got %+v", recorder.causes)
	}
	if _, active := s.ActiveEvent("guild-1"); active {
		t.Fatal("expected no handle for a finalized event")
	}
}

func TestRecovery_DuplicateOpenEventsGuildFirstWins(t *testing.T) {
	s, mem, _, now := newTestScheduler(t)
	ctx := context.Background()

	older := seedOpenEvent(t, mem, "guild-1", eventStart, 60*time.Minute)
	newer := seedOpenEvent(t, mem, "guild-1", eventStart.Add(10*time.Minute), 20*time.Minute)

	*now = eventStart.Add(15 * time.Minute)
	report, err := NewRecovery(s).Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Resumed) != 1 || report.Resumed[0].ID != older.ID {
		t.Fatalf("expected the earlier event retained, got %+v", report.Resumed)
	}
	if len(report.Finalized) != 1 || report.Finalized[0].ID != newer.ID {
		t.Fatalf("expected the later event force-closed, got %+v", report.Finalized)
	}
	stored, _ := mem.GetEvent(ctx, newer.ID)
	if stored.EndedAt == nil || !stored.EndedAt.Equal(newer.ExpectedEndAt) {
		t.Fatalf("expected force-close at its own expected end, got %+v", stored.EndedAt)
	}

	active, ok := s.ActiveEvent("guild-1")
	if !ok || active.ID != older.ID {
		t.Fatal("expected the older event active after recovery")
	}

	open, _ := mem.ListOpenEvents(ctx)
	if len(open) != 1 {
		t.Fatalf("expected one open event per guild after recovery, got %d", len(open))
	}
}

func TestRecovery_OccupancyFailureIsIsolatedPerGuild(t *testing.T) {
	s, mem, occ, now := newTestScheduler(t)
	ctx := context.Background()

	seedOpenEvent(t, mem, "guild-1", eventStart, 30*time.Minute)
	seedOpenEvent(t, mem, "guild-2", eventStart, 30*time.Minute)
	occ.err = context.DeadlineExceeded

	*now = eventStart.Add(5 * time.Minute)
	report, err := NewRecovery(s).Run(ctx)
	if err != nil {
		t.Fatalf("expected recovery to finish despite guild failures, got %v", err)
	}
	if len(report.Resumed) != 2 {
		t.Fatalf("expected both guilds re-armed, got %d", len(report.Resumed))
	}
	if len(report.Failures) != 2 {
		t.Fatalf("expected repair failures collected for both guilds, got %+v", report.Failures)
	}
}

func TestRebuildFromStore_ReplacesStaleHandles(t *testing.T) {
	s, mem, _, now := newTestScheduler(t)
	ctx := context.Background()

	created, _ := s.CreateEvent(ctx, "guild-1", "room-1", "Standup", 30)
	// Close behind the scheduler's back, then rebuild.
	_, _ = mem.FinalizeEvent(ctx, created.ID, eventStart.Add(5*time.Minute))

	*now = eventStart.Add(6 * time.Minute)
	report, err := s.RebuildFromStore(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Resumed) != 0 || len(report.Finalized) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if _, active := s.ActiveEvent("guild-1"); active {
		t.Fatal("expected stale handle dropped by rebuild")
	}
}
