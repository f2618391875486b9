package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/araucarialabs/presenca/internal/discord"
	"github.com/araucarialabs/presenca/internal/store"
)

// CloseCause tells a closed-event subscriber why an event was finalized.
type CloseCause int

const (
	CloseCauseManual CloseCause = iota
	CloseCauseAuto
	CloseCauseRecovery
)

func (c CloseCause) String() string {
	switch c {
	case CloseCauseManual:
		return "manual"
	case CloseCauseAuto:
		return "auto"
	case CloseCauseRecovery:
		return "recovery"
	default:
		return "unknown"
	}
}

// MembershipChange mirrors the notification consumed by the session
// tracker; the scheduler only cares about the event room boundary.
type MembershipChange struct {
	GuildID        string
	UserID         string
	DisplayName    string
	PreviousRoomID string
	NewRoomID      string
}

// OccupancyLister is the live room-occupancy snapshot used to bootstrap
// participations at event start and to repair them during recovery.
type OccupancyLister interface {
	ListRoomOccupants(guildID, roomID string) ([]discord.RoomOccupant, error)
}

// ClosedHandler receives every event the scheduler finalizes on its own
// (auto-stop and recovery); manual stops return the closed event to the
// caller instead.
type ClosedHandler func(event store.Event, cause CloseCause)

type activeEvent struct {
	event *store.Event
	timer *time.Timer
}

// Scheduler owns the per-guild active-event handle and its single-shot
// end timer. The handle is a cache of the store, never the source of
// truth: RebuildFromStore re-derives it at any time.
type Scheduler struct {
	store     store.EventStore
	occupancy OccupancyLister
	now       func() time.Time

	mu       sync.Mutex
	active   map[string]*activeEvent
	onClosed ClosedHandler
}

func NewScheduler(s store.EventStore, occupancy OccupancyLister) *Scheduler {
	return &Scheduler{
		store:     s,
		occupancy: occupancy,
		now:       time.Now,
		active:    make(map[string]*activeEvent),
	}
}

// SetClosedHandler registers the subscriber for auto-stop and recovery
// closures. Must be called before handlers start firing.
func (s *Scheduler) SetClosedHandler(fn ClosedHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClosed = fn
}

func (s *Scheduler) emitClosed(event store.Event, cause CloseCause) {
	s.mu.Lock()
	fn := s.onClosed
	s.mu.Unlock()
	if fn != nil {
		fn(event, cause)
	}
}

// CreateEvent persists a new bounded event, bootstraps participations
// for members already inside the room, and arms the end timer.
func (s *Scheduler) CreateEvent(ctx context.Context, guildID, roomID, name string, durationMinutes int) (*store.Event, error) {
	open, err := s.store.GetOpenEvent(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("lookup open event: %w", err)
	}
	if open != nil {
		return nil, ErrEventActive
	}

	now := s.now()
	created, err := s.store.CreateEvent(ctx, store.CreateEventInput{
		GuildID:       guildID,
		Name:          name,
		RoomID:        roomID,
		StartedAt:     now,
		ExpectedEndAt: now.Add(time.Duration(durationMinutes) * time.Minute),
	})
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	slog.Info("event created", "event_id", created.ID, "guild_id", guildID, "room_id", roomID, "name", name, "expected_end_at", created.ExpectedEndAt)

	s.bootstrapParticipations(ctx, created, now)
	s.arm(created, created.ExpectedEndAt.Sub(now))
	return created, nil
}

// bootstrapParticipations opens a participation for every non-bot member
// already present in the event room.
func (s *Scheduler) bootstrapParticipations(ctx context.Context, event *store.Event, at time.Time) {
	if s.occupancy == nil {
		return
	}
	occupants, err := s.occupancy.ListRoomOccupants(event.GuildID, event.RoomID)
	if err != nil {
		slog.Error("failed to snapshot room occupants", "error", err, "event_id", event.ID, "room_id", event.RoomID)
		return
	}
	for _, o := range occupants {
		if o.IsBot {
			continue
		}
		if _, err := s.store.OpenParticipation(ctx, store.OpenParticipationInput{
			EventID:  event.ID,
			UserID:   o.UserID,
			UserName: o.DisplayName,
			JoinedAt: at,
		}); err != nil {
			slog.Error("failed to open bootstrap participation", "error", err, "event_id", event.ID, "user_id", o.UserID)
		}
	}
}

// arm installs the handle and its single-shot timer, cancelling any
// previous timer for the guild first so a stale fire cannot reanimate a
// replaced event.
func (s *Scheduler) arm(event *store.Event, remaining time.Duration) {
	if remaining < 0 {
		remaining = 0
	}
	guildID := event.GuildID
	eventID := event.ID
	s.mu.Lock()
	if prev, ok := s.active[guildID]; ok && prev.timer != nil {
		prev.timer.Stop()
	}
	s.active[guildID] = &activeEvent{
		event: event,
		timer: time.AfterFunc(remaining, func() { s.autoStop(guildID, eventID) }),
	}
	s.mu.Unlock()
}

// autoStop is the timer-fire path. The close instant is the persisted
// expected end, not the fire wall-clock time, so totals stay
// deterministic under scheduler jitter.
func (s *Scheduler) autoStop(guildID, eventID string) {
	s.mu.Lock()
	handle, ok := s.active[guildID]
	if !ok || handle.event.ID != eventID {
		s.mu.Unlock()
		return
	}
	delete(s.active, guildID)
	s.mu.Unlock()

	ctx := context.Background()
	closed, err := s.store.FinalizeEvent(ctx, eventID, handle.event.ExpectedEndAt)
	if err != nil {
		slog.Error("failed to finalize event on auto-stop", "error", err, "event_id", eventID, "guild_id", guildID)
		return
	}
	if closed == nil {
		slog.Warn("event vanished before auto-stop finalize", "event_id", eventID, "guild_id", guildID)
		return
	}
	slog.Info("event auto-stopped", "event_id", eventID, "guild_id", guildID, "ended_at", *closed.EndedAt)
	s.emitClosed(*closed, CloseCauseAuto)
}

// StopEvent finalizes the guild's active event now. The pending timer is
// cancelled in the same operation that clears the handle.
func (s *Scheduler) StopEvent(ctx context.Context, guildID string) (*store.Event, error) {
	s.mu.Lock()
	handle, ok := s.active[guildID]
	if ok {
		handle.timer.Stop()
		delete(s.active, guildID)
	}
	s.mu.Unlock()

	var eventID string
	if ok {
		eventID = handle.event.ID
	} else {
		// The handle is only a cache; fall back to the store before
		// declaring the guild idle.
		open, err := s.store.GetOpenEvent(ctx, guildID)
		if err != nil {
			return nil, fmt.Errorf("lookup open event: %w", err)
		}
		if open == nil {
			return nil, ErrNoActiveEvent
		}
		slog.Warn("open event found in store without an in-memory handle", "event_id", open.ID, "guild_id", guildID)
		eventID = open.ID
	}

	closed, err := s.store.FinalizeEvent(ctx, eventID, s.now())
	if err != nil {
		return nil, fmt.Errorf("finalize event: %w", err)
	}
	if closed == nil {
		return nil, ErrNoActiveEvent
	}
	slog.Info("event stopped", "event_id", closed.ID, "guild_id", guildID, "ended_at", *closed.EndedAt)
	return closed, nil
}

// ActiveEvent reports the cached active event for the guild, if any.
func (s *Scheduler) ActiveEvent(guildID string) (*store.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle, ok := s.active[guildID]
	if !ok {
		return nil, false
	}
	copied := *handle.event
	return &copied, true
}

// OnMembershipChanged opens or closes a participation when the change
// crosses the active event's room boundary. Opening is idempotent:
// duplicate "entered room" notifications must not fork accounting.
func (s *Scheduler) OnMembershipChanged(ctx context.Context, change MembershipChange) error {
	s.mu.Lock()
	handle, ok := s.active[change.GuildID]
	var event store.Event
	if ok {
		event = *handle.event
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}

	switch {
	case change.NewRoomID == event.RoomID:
		p, err := s.store.OpenParticipation(ctx, store.OpenParticipationInput{
			EventID:  event.ID,
			UserID:   change.UserID,
			UserName: change.DisplayName,
			JoinedAt: s.now(),
		})
		if err != nil {
			return fmt.Errorf("open participation: %w", err)
		}
		slog.Info("participation open", "event_id", event.ID, "user_id", change.UserID, "participation_id", p.ID)
	case change.PreviousRoomID == event.RoomID:
		p, err := s.store.CloseParticipation(ctx, event.ID, change.UserID, s.now())
		if err != nil {
			return fmt.Errorf("close participation: %w", err)
		}
		if p != nil {
			slog.Info("participation closed", "event_id", event.ID, "user_id", change.UserID, "duration_minutes", *p.DurationMinutes)
		}
	}
	return nil
}

// RebuildReport summarizes one rebuild pass over the persisted open
// events.
type RebuildReport struct {
	Resumed   []store.Event
	Finalized []store.Event
	Failures  []GuildFailure
}

type GuildFailure struct {
	GuildID string
	Err     error
}

// RebuildFromStore re-derives every in-memory handle from the persisted
// event table. For each guild the oldest open event wins; any later open
// rows (possible only after a crash mid-transition) are finalized using
// their own expected end. A retained event past its expected end is
// finalized at that instant; otherwise its timer is re-armed with the
// remaining time. A failure for one guild never aborts the others.
func (s *Scheduler) RebuildFromStore(ctx context.Context) (RebuildReport, error) {
	s.mu.Lock()
	for guildID, handle := range s.active {
		if handle.timer != nil {
			handle.timer.Stop()
		}
		delete(s.active, guildID)
	}
	s.mu.Unlock()

	openEvents, err := s.store.ListOpenEvents(ctx)
	if err != nil {
		return RebuildReport{}, fmt.Errorf("list open events: %w", err)
	}

	var report RebuildReport
	now := s.now()
	retained := make(map[string]bool, len(openEvents))
	for i := range openEvents {
		e := openEvents[i]
		if retained[e.GuildID] {
			// Guild-first-wins: the oldest event is the legitimate one.
			slog.Warn("duplicate open event found for guild; force-closing", "event_id", e.ID, "guild_id", e.GuildID)
			if closed, err := s.finalizeForRebuild(ctx, e.ID, e.ExpectedEndAt); err != nil {
				report.Failures = append(report.Failures, GuildFailure{GuildID: e.GuildID, Err: err})
			} else if closed != nil {
				report.Finalized = append(report.Finalized, *closed)
			}
			continue
		}
		retained[e.GuildID] = true

		if !now.Before(e.ExpectedEndAt) {
			// Should have auto-stopped while the process was down.
			slog.Info("finalizing overdue event from store", "event_id", e.ID, "guild_id", e.GuildID, "expected_end_at", e.ExpectedEndAt)
			if closed, err := s.finalizeForRebuild(ctx, e.ID, e.ExpectedEndAt); err != nil {
				report.Failures = append(report.Failures, GuildFailure{GuildID: e.GuildID, Err: err})
			} else if closed != nil {
				report.Finalized = append(report.Finalized, *closed)
			}
			continue
		}

		resumed := e
		s.arm(&resumed, e.ExpectedEndAt.Sub(now))
		slog.Info("re-armed open event", "event_id", e.ID, "guild_id", e.GuildID, "remaining", e.ExpectedEndAt.Sub(now))
		report.Resumed = append(report.Resumed, e)
	}
	return report, nil
}

func (s *Scheduler) finalizeForRebuild(ctx context.Context, eventID string, at time.Time) (*store.Event, error) {
	closed, err := s.store.FinalizeEvent(ctx, eventID, at)
	if err != nil {
		return nil, fmt.Errorf("finalize event %s: %w", eventID, err)
	}
	if closed != nil {
		s.emitClosed(*closed, CloseCauseRecovery)
	}
	return closed, nil
}

// RepairParticipations opens a participation for every non-bot member
// currently inside the event's room who lacks an open one. Used by
// recovery so members who sat through an outage are not undercounted.
func (s *Scheduler) RepairParticipations(ctx context.Context, event store.Event) error {
	if s.occupancy == nil {
		return nil
	}
	occupants, err := s.occupancy.ListRoomOccupants(event.GuildID, event.RoomID)
	if err != nil {
		return fmt.Errorf("snapshot room occupants: %w", err)
	}
	at := s.now()
	for _, o := range occupants {
		if o.IsBot {
			continue
		}
		if _, err := s.store.OpenParticipation(ctx, store.OpenParticipationInput{
			EventID:  event.ID,
			UserID:   o.UserID,
			UserName: o.DisplayName,
			JoinedAt: at,
		}); err != nil {
			return fmt.Errorf("open participation for %s: %w", o.UserID, err)
		}
	}
	return nil
}
