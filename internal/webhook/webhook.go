package webhook

import (
	"context"
	"time"
)

type ParticipantReport struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Minutes     int    `json:"minutes"`
}

// EventReportPayload is the final summary of a closed event, posted to
// the configured webhook.
type EventReportPayload struct {
	EventID      string              `json:"event_id"`
	GuildID      string              `json:"guild_id"`
	Name         string              `json:"name"`
	RoomID       string              `json:"room_id"`
	StartedAt    time.Time           `json:"started_at"`
	EndedAt      time.Time           `json:"ended_at"`
	Participants []ParticipantReport `json:"participants"`
}

type Sender interface {
	SendEventReport(ctx context.Context, payload EventReportPayload) error
}
