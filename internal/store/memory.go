package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store. It backs the engine tests and keeps the
// same semantics as the Postgres implementation: insertion order is
// preserved and IDs are generated the same way.
type Memory struct {
	mu             sync.Mutex
	trackedRooms   map[string]map[string]struct{}
	sessions       []*Session
	events         []*Event
	participations []*Participation
}

func NewMemory() *Memory {
	return &Memory{
		trackedRooms: make(map[string]map[string]struct{}),
	}
}

func (m *Memory) TrackRoom(_ context.Context, guildID, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rooms, ok := m.trackedRooms[guildID]
	if !ok {
		rooms = make(map[string]struct{})
		m.trackedRooms[guildID] = rooms
	}
	rooms[roomID] = struct{}{}
	return nil
}

func (m *Memory) UntrackRoom(_ context.Context, guildID, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rooms, ok := m.trackedRooms[guildID]; ok {
		delete(rooms, roomID)
	}
	return nil
}

func (m *Memory) IsTracked(_ context.Context, guildID, roomID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rooms, ok := m.trackedRooms[guildID]
	if !ok {
		return false, nil
	}
	_, tracked := rooms[roomID]
	return tracked, nil
}

func (m *Memory) ListTrackedRooms(_ context.Context, guildID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rooms := make([]string, 0, len(m.trackedRooms[guildID]))
	for roomID := range m.trackedRooms[guildID] {
		rooms = append(rooms, roomID)
	}
	sort.Strings(rooms)
	return rooms, nil
}

func (m *Memory) OpenSession(_ context.Context, input OpenSessionInput) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &Session{
		ID:        uuid.NewString(),
		GuildID:   input.GuildID,
		UserID:    input.UserID,
		UserName:  input.UserName,
		RoomID:    input.RoomID,
		CheckinAt: input.CheckinAt,
	}
	m.sessions = append(m.sessions, s)
	copied := *s
	return &copied, nil
}

func (m *Memory) GetOpenSession(_ context.Context, guildID, userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.openSessionLocked(guildID, userID)
	if s == nil {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (m *Memory) CloseOpenSession(_ context.Context, guildID, userID string, at time.Time) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.openSessionLocked(guildID, userID)
	if s == nil {
		return nil, nil
	}
	closeSession(s, at)
	copied := *s
	return &copied, nil
}

func (m *Memory) openSessionLocked(guildID, userID string) *Session {
	for i := len(m.sessions) - 1; i >= 0; i-- {
		s := m.sessions[i]
		if s.GuildID == guildID && s.UserID == userID && s.IsOpen() {
			return s
		}
	}
	return nil
}

func closeSession(s *Session, at time.Time) {
	checkout := at
	duration := RoundedMinutes(s.CheckinAt, at)
	s.CheckoutAt = &checkout
	s.DurationMinutes = &duration
}

func (m *Memory) ListOpenSessions(_ context.Context, guildID string) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Session
	for _, s := range m.sessions {
		if s.GuildID == guildID && s.IsOpen() {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *Memory) ListSessionsBetween(_ context.Context, guildID string, start, end time.Time) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Session
	for _, s := range m.sessions {
		if s.GuildID != guildID {
			continue
		}
		last := s.CheckinAt
		if s.CheckoutAt != nil {
			last = *s.CheckoutAt
		}
		if s.CheckinAt.Before(start) || last.After(end) {
			continue
		}
		out = append(out, *s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CheckinAt.Before(out[j].CheckinAt)
	})
	return out, nil
}

func (m *Memory) CreateEvent(_ context.Context, input CreateEventInput) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &Event{
		ID:            uuid.NewString(),
		GuildID:       input.GuildID,
		Name:          input.Name,
		RoomID:        input.RoomID,
		StartedAt:     input.StartedAt,
		ExpectedEndAt: input.ExpectedEndAt,
	}
	m.events = append(m.events, e)
	copied := *e
	return &copied, nil
}

func (m *Memory) GetEvent(_ context.Context, eventID string) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == eventID {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *Memory) GetOpenEvent(_ context.Context, guildID string) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.GuildID == guildID && e.IsOpen() {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListOpenEvents(_ context.Context) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.IsOpen() {
			out = append(out, *e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

func (m *Memory) FinalizeEvent(_ context.Context, eventID string, at time.Time) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID != eventID {
			continue
		}
		if !e.IsOpen() {
			// Already finalized; a second finalize is a no-row result.
			return nil, nil
		}
		ended := at
		e.EndedAt = &ended
		for _, p := range m.participations {
			if p.EventID == eventID && p.IsOpen() {
				closeParticipation(p, at)
			}
		}
		copied := *e
		return &copied, nil
	}
	return nil, nil
}

func (m *Memory) OpenParticipation(_ context.Context, input OpenParticipationInput) (*Participation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.participations {
		if p.EventID == input.EventID && p.UserID == input.UserID && p.IsOpen() {
			copied := *p
			return &copied, nil
		}
	}
	p := &Participation{
		ID:       uuid.NewString(),
		EventID:  input.EventID,
		UserID:   input.UserID,
		UserName: input.UserName,
		JoinedAt: input.JoinedAt,
	}
	m.participations = append(m.participations, p)
	copied := *p
	return &copied, nil
}

func (m *Memory) CloseParticipation(_ context.Context, eventID, userID string, at time.Time) (*Participation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.participations {
		if p.EventID == eventID && p.UserID == userID && p.IsOpen() {
			closeParticipation(p, at)
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func closeParticipation(p *Participation, at time.Time) {
	left := at
	duration := RoundedMinutes(p.JoinedAt, at)
	p.LeftAt = &left
	p.DurationMinutes = &duration
}

func (m *Memory) ListParticipations(_ context.Context, eventID string) ([]Participation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Participation
	for _, p := range m.participations {
		if p.EventID == eventID {
			out = append(out, *p)
		}
	}
	return out, nil
}
