package store

import (
	"math"
	"time"
)

// Session is one continuous interval a user spent inside tracked rooms.
// CheckoutAt and DurationMinutes stay nil while the session is open.
type Session struct {
	ID              string
	GuildID         string
	UserID          string
	UserName        string
	RoomID          string
	CheckinAt       time.Time
	CheckoutAt      *time.Time
	DurationMinutes *int
}

func (s *Session) IsOpen() bool {
	return s.CheckoutAt == nil
}

// Event is a bounded attendance window scoped to one room of one guild.
// EndedAt stays nil while the event is open.
type Event struct {
	ID            string
	GuildID       string
	Name          string
	RoomID        string
	StartedAt     time.Time
	ExpectedEndAt time.Time
	EndedAt       *time.Time
}

func (e *Event) IsOpen() bool {
	return e.EndedAt == nil
}

// Participation is one user's presence interval inside one event.
type Participation struct {
	ID              string
	EventID         string
	UserID          string
	UserName        string
	JoinedAt        time.Time
	LeftAt          *time.Time
	DurationMinutes *int
}

func (p *Participation) IsOpen() bool {
	return p.LeftAt == nil
}

// RoundedMinutes is the close-time duration rule: nearest whole minute,
// so an interval a few seconds past a boundary is not under-counted.
func RoundedMinutes(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Minutes()))
}

// FlooredMinutes is the in-progress elapsed rule: whole minutes only.
func FlooredMinutes(from, to time.Time) int {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}
