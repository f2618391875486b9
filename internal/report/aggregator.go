package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/araucarialabs/presenca/internal/store"
)

// ParticipantTotal is one row of an event summary: total presence
// minutes for a user.
type ParticipantTotal struct {
	UserID      string
	DisplayName string
	Minutes     int
}

// Aggregator is read-only: it sums participation and session minutes.
type Aggregator struct {
	store store.Store
	now   func() time.Time
	loc   *time.Location
}

func NewAggregator(s store.Store, loc *time.Location) *Aggregator {
	return &Aggregator{
		store: s,
		now:   time.Now,
		loc:   loc,
	}
}

// SummarizeEvent sums participation minutes per user, descending by
// minutes with ties kept in arrival order of the underlying rows. Open
// rows are skipped unless includeInProgress is set, in which case they
// count the rounded minutes since join.
func (a *Aggregator) SummarizeEvent(ctx context.Context, eventID string, includeInProgress bool) ([]ParticipantTotal, error) {
	participations, err := a.store.ListParticipations(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}

	totalsByUser := make(map[string]int)
	var order []ParticipantTotal
	for _, p := range participations {
		minutes := 0
		switch {
		case p.DurationMinutes != nil:
			minutes = *p.DurationMinutes
		case includeInProgress:
			minutes = store.RoundedMinutes(p.JoinedAt, a.now())
		default:
			continue
		}
		if _, seen := totalsByUser[p.UserID]; !seen {
			order = append(order, ParticipantTotal{UserID: p.UserID, DisplayName: p.UserName})
		}
		totalsByUser[p.UserID] += minutes
	}

	for i := range order {
		order[i].Minutes = totalsByUser[order[i].UserID]
	}
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].Minutes > order[j].Minutes
	})
	return order, nil
}

// SummarizeSessions lists the guild's sessions whose whole interval
// falls inside [start, end], ordered by check-in time.
func (a *Aggregator) SummarizeSessions(ctx context.Context, guildID string, start, end time.Time) ([]store.Session, error) {
	sessions, err := a.store.ListSessionsBetween(ctx, guildID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// SessionsCSV renders session rows as a CSV document, timestamps in the
// configured timezone.
func (a *Aggregator) SessionsCSV(sessions []store.Session) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"user_name", "user_id", "room_id", "checkin_at_iso", "checkout_at_iso", "duration_minutes"}); err != nil {
		return nil, err
	}
	for _, s := range sessions {
		checkout := ""
		if s.CheckoutAt != nil {
			checkout = s.CheckoutAt.In(a.loc).Format(time.RFC3339)
		}
		duration := ""
		if s.DurationMinutes != nil {
			duration = strconv.Itoa(*s.DurationMinutes)
		}
		record := []string{
			s.UserName,
			s.UserID,
			s.RoomID,
			s.CheckinAt.In(a.loc).Format(time.RFC3339),
			checkout,
			duration,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
