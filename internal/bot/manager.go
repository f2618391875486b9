package bot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/araucarialabs/presenca/internal/config"
	"github.com/araucarialabs/presenca/internal/discord"
	"github.com/araucarialabs/presenca/internal/event"
	"github.com/araucarialabs/presenca/internal/notify"
	"github.com/araucarialabs/presenca/internal/report"
	"github.com/araucarialabs/presenca/internal/rooms"
	"github.com/araucarialabs/presenca/internal/store"
	"github.com/araucarialabs/presenca/internal/tracking"
	"github.com/araucarialabs/presenca/internal/webhook"
)

// Manager glues the gateway to the engine: it routes membership changes
// into the session tracker and event scheduler, dispatches slash
// commands, and publishes log-channel, DM and webhook side effects.
//
// dispatchMu serializes every gateway entry point. The tracker's
// close-then-open and the scheduler's participation check-then-insert
// are not atomic across store calls; concurrent notifications for the
// same user could otherwise open two sessions.
type Manager struct {
	cfg       *config.Config
	discord   discord.Client
	store     store.Store
	registry  *rooms.Registry
	tracker   *tracking.Tracker
	scheduler *event.Scheduler
	reports   *report.Aggregator
	throttle  *notify.Throttle
	webhook   webhook.Sender

	dispatchMu sync.Mutex
}

func NewManager(
	cfg *config.Config,
	dc discord.Client,
	st store.Store,
	registry *rooms.Registry,
	tracker *tracking.Tracker,
	scheduler *event.Scheduler,
	reports *report.Aggregator,
	throttle *notify.Throttle,
	wh webhook.Sender,
) *Manager {
	m := &Manager{
		cfg:       cfg,
		discord:   dc,
		store:     st,
		registry:  registry,
		tracker:   tracker,
		scheduler: scheduler,
		reports:   reports,
		throttle:  throttle,
		webhook:   wh,
	}
	scheduler.SetClosedHandler(m.handleEventClosed)
	return m
}

func (m *Manager) HandleMembershipChange(change discord.MembershipChange) {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	slog.Debug("membership change received", "guild_id", change.GuildID, "user_id", change.UserID, "from_room_id", change.PreviousRoomID, "to_room_id", change.NewRoomID)
	if change.UserIsBot {
		return
	}
	if m.cfg.DiscordGuildID != "" && change.GuildID != m.cfg.DiscordGuildID {
		slog.Debug("ignoring membership change for different guild", "event_guild_id", change.GuildID, "configured_guild_id", m.cfg.DiscordGuildID)
		return
	}

	ctx := context.Background()
	outcome, err := m.tracker.OnMembershipChanged(ctx, tracking.Change{
		GuildID:        change.GuildID,
		UserID:         change.UserID,
		DisplayName:    change.DisplayName,
		PreviousRoomID: change.PreviousRoomID,
		NewRoomID:      change.NewRoomID,
	})
	if err != nil {
		slog.Error("failed to track membership change", "error", err, "guild_id", change.GuildID, "user_id", change.UserID)
	} else {
		m.notifyTransition(change, outcome)
	}

	if err := m.scheduler.OnMembershipChanged(ctx, event.MembershipChange{
		GuildID:        change.GuildID,
		UserID:         change.UserID,
		DisplayName:    change.DisplayName,
		PreviousRoomID: change.PreviousRoomID,
		NewRoomID:      change.NewRoomID,
	}); err != nil {
		slog.Error("failed to update event participation", "error", err, "guild_id", change.GuildID, "user_id", change.UserID)
	}
}

func (m *Manager) notifyTransition(change discord.MembershipChange, outcome tracking.Outcome) {
	switch outcome.Transition {
	case tracking.TransitionCheckIn:
		m.sendLog(logCheckin(change.UserID, change.NewRoomID))
		m.maybeSendCheckinDM(change.GuildID, change.UserID)
	case tracking.TransitionCheckOut:
		duration := 0
		if outcome.Closed != nil && outcome.Closed.DurationMinutes != nil {
			duration = *outcome.Closed.DurationMinutes
		}
		m.sendLog(logCheckout(change.UserID, change.PreviousRoomID, duration))
	case tracking.TransitionRoomSwitch:
		m.sendLog(logRoomSwitch(change.UserID, change.PreviousRoomID, change.NewRoomID))
		m.maybeSendCheckinDM(change.GuildID, change.UserID)
	}
}

func (m *Manager) sendLog(content string) {
	if m.cfg.LogChannelID == "" {
		return
	}
	if err := m.discord.SendChannelMessage(m.cfg.LogChannelID, content); err != nil {
		slog.Error("failed to post log channel message", "error", err, "channel_id", m.cfg.LogChannelID)
	}
}

func (m *Manager) maybeSendCheckinDM(guildID, userID string) {
	if !m.throttle.MayNotify(guildID, userID) {
		return
	}
	if err := m.discord.SendDirectMessage(userID, messageDMCheckin); err != nil {
		slog.Warn("failed to send check-in DM", "error", err, "user_id", userID)
		return
	}
	m.throttle.RecordNotified(guildID, userID)
}

func (m *Manager) HandleSlashCommand(ev discord.SlashCommandEvent) {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	ctx := context.Background()
	var err error
	switch ev.CommandName {
	case commandAddRoom:
		err = m.handleAddRoom(ctx, ev)
	case commandRemoveRoom:
		err = m.handleRemoveRoom(ctx, ev)
	case commandListRooms:
		err = m.handleListRooms(ctx, ev)
	case commandStatus:
		err = m.handleStatus(ctx, ev)
	case commandCheckout:
		err = m.handleCheckout(ctx, ev)
	case commandReport:
		err = m.handleReport(ctx, ev)
	case commandExportCSV:
		err = m.handleExportCSV(ctx, ev)
	case commandEventStart:
		err = m.handleEventStart(ctx, ev)
	case commandEventStatus:
		err = m.handleEventStatus(ctx, ev)
	case commandEventStop:
		err = m.handleEventStop(ctx, ev)
	case commandEventReport:
		err = m.handleEventReport(ctx, ev)
	default:
		err = ev.RespondEphemeral(messageEphemeralUnknownCommand)
	}
	if err != nil {
		slog.Error("slash command failed", "command", ev.CommandName, "guild_id", ev.GuildID, "user_id", ev.UserID, "error", err)
		_ = ev.RespondEphemeral(messageEphemeralInternalError)
	}
}

func (m *Manager) handleAddRoom(ctx context.Context, ev discord.SlashCommandEvent) error {
	if !ev.HasManageGuild {
		return ev.RespondEphemeral(messageEphemeralNeedManage)
	}
	roomID := ev.Options[optionRoom]
	if roomID == "" {
		return ev.RespondEphemeral(messageEphemeralNeedVoiceRoom)
	}
	if err := m.registry.Track(ctx, ev.GuildID, roomID); err != nil {
		return err
	}
	return ev.RespondEphemeral(roomAdded(roomID))
}

func (m *Manager) handleRemoveRoom(ctx context.Context, ev discord.SlashCommandEvent) error {
	if !ev.HasManageGuild {
		return ev.RespondEphemeral(messageEphemeralNeedManage)
	}
	roomID := ev.Options[optionRoom]
	if roomID == "" {
		return ev.RespondEphemeral(messageEphemeralNeedVoiceRoom)
	}
	if err := m.registry.Untrack(ctx, ev.GuildID, roomID); err != nil {
		return err
	}
	return ev.RespondEphemeral(roomRemoved(roomID))
}

func (m *Manager) handleListRooms(ctx context.Context, ev discord.SlashCommandEvent) error {
	tracked, err := m.registry.ListTracked(ctx, ev.GuildID)
	if err != nil {
		return err
	}
	if len(tracked) == 0 {
		return ev.RespondEphemeral(messageEphemeralNoTrackedRooms)
	}
	return ev.RespondEphemeral(trackedRoomsList(tracked))
}

func (m *Manager) handleStatus(ctx context.Context, ev discord.SlashCommandEvent) error {
	open, err := m.tracker.OpenSession(ctx, ev.GuildID, ev.UserID)
	if err != nil {
		return err
	}
	if open == nil {
		return ev.RespondEphemeral(messageEphemeralNoOpenSession)
	}
	elapsed, _, err := m.tracker.ElapsedMinutes(ctx, ev.GuildID, ev.UserID)
	if err != nil {
		return err
	}
	return ev.RespondEphemeral(statusReply(open.CheckinAt, elapsed, m.cfg.Location()))
}

func (m *Manager) handleCheckout(ctx context.Context, ev discord.SlashCommandEvent) error {
	elapsed, hasOpen, err := m.tracker.ElapsedMinutes(ctx, ev.GuildID, ev.UserID)
	if err != nil {
		return err
	}
	if !hasOpen {
		return ev.RespondEphemeral(messageEphemeralNoOpenSessionCheckout)
	}
	if elapsed < m.cfg.CheckoutMinMinutes {
		return ev.RespondEphemeral(checkoutTooEarly(m.cfg.CheckoutMinMinutes - elapsed))
	}
	closed, err := m.tracker.Checkout(ctx, ev.GuildID, ev.UserID)
	if err != nil {
		return err
	}
	if closed == nil {
		return ev.RespondEphemeral(messageEphemeralNoOpenSessionCheckout)
	}
	return ev.RespondEphemeral(messageEphemeralCheckoutDone)
}

func (m *Manager) parseDateRange(inicio, fim string) (time.Time, time.Time, error) {
	loc := m.cfg.Location()
	start, err := time.ParseInLocation(dateArgumentLayout, inicio, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endDay, err := time.ParseInLocation(dateArgumentLayout, fim, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	// fim is inclusive: the range covers the whole final day.
	return start, endDay.Add(24*time.Hour - time.Second), nil
}

func (m *Manager) handleReport(ctx context.Context, ev discord.SlashCommandEvent) error {
	inicio, fim := ev.Options[optionStart], ev.Options[optionEnd]
	start, end, err := m.parseDateRange(inicio, fim)
	if err != nil {
		return ev.RespondEphemeral(messageEphemeralBadDateFormat)
	}
	sessions, err := m.reports.SummarizeSessions(ctx, ev.GuildID, start, end)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return ev.RespondEphemeral(noRecordsBetween(inicio, fim))
	}
	return ev.RespondEphemeral(sessionsReport(inicio, fim, sessions, m.cfg.Location()))
}

func (m *Manager) handleExportCSV(ctx context.Context, ev discord.SlashCommandEvent) error {
	inicio, fim := ev.Options[optionStart], ev.Options[optionEnd]
	start, end, err := m.parseDateRange(inicio, fim)
	if err != nil {
		return ev.RespondEphemeral(messageEphemeralBadDateFormat)
	}
	sessions, err := m.reports.SummarizeSessions(ctx, ev.GuildID, start, end)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return ev.RespondEphemeral(noRecordsBetween(inicio, fim))
	}
	body, err := m.reports.SessionsCSV(sessions)
	if err != nil {
		return err
	}
	if err := m.discord.SendChannelMessageWithFile(discord.FileMessage{
		ChannelID: ev.ChannelID,
		Content:   messageEphemeralCSVSent,
		Filename:  csvFilename(inicio, fim),
		FileBody:  body,
	}); err != nil {
		return err
	}
	return ev.RespondEphemeral(messageEphemeralCSVPosted)
}

func (m *Manager) handleEventStart(ctx context.Context, ev discord.SlashCommandEvent) error {
	if !ev.HasManageGuild {
		return ev.RespondEphemeral(messageEphemeralNeedManage)
	}
	roomID := ev.Options[optionRoom]
	if roomID == "" {
		return ev.RespondEphemeral(messageEphemeralNeedVoiceRoom)
	}
	name := ev.Options[optionName]
	duration, err := strconv.Atoi(ev.Options[optionDuration])
	if err != nil || duration <= 0 {
		return ev.RespondEphemeral(messageEphemeralBadDuration)
	}
	created, err := m.scheduler.CreateEvent(ctx, ev.GuildID, roomID, name, duration)
	if errors.Is(err, event.ErrEventActive) {
		return ev.RespondEphemeral(messageEphemeralEventActive)
	}
	if err != nil {
		return err
	}
	m.sendLog(eventStarted(created, m.cfg.Location()))
	return ev.RespondEphemeral(eventStarted(created, m.cfg.Location()))
}

func (m *Manager) handleEventStatus(ctx context.Context, ev discord.SlashCommandEvent) error {
	open, err := m.store.GetOpenEvent(ctx, ev.GuildID)
	if err != nil {
		return err
	}
	if open == nil {
		return ev.RespondEphemeral(messageEphemeralNoActiveEvent)
	}
	return ev.RespondEphemeral(eventStatus(open, m.cfg.Location()))
}

func (m *Manager) handleEventStop(ctx context.Context, ev discord.SlashCommandEvent) error {
	if !ev.HasManageGuild {
		return ev.RespondEphemeral(messageEphemeralNeedManage)
	}
	closed, err := m.scheduler.StopEvent(ctx, ev.GuildID)
	if errors.Is(err, event.ErrNoActiveEvent) {
		return ev.RespondEphemeral(messageEphemeralNoActiveEvent)
	}
	if err != nil {
		return err
	}
	m.publishEventReport(ctx, closed, event.CloseCauseManual)
	return ev.RespondEphemeral(eventStopped(closed))
}

func (m *Manager) handleEventReport(ctx context.Context, ev discord.SlashCommandEvent) error {
	var (
		e   *store.Event
		err error
	)
	if id := ev.Options[optionEventID]; id != "" {
		e, err = m.store.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		if e == nil || e.GuildID != ev.GuildID {
			return ev.RespondEphemeral(messageEphemeralEventNotFound)
		}
	} else {
		e, err = m.store.GetOpenEvent(ctx, ev.GuildID)
		if err != nil {
			return err
		}
		if e == nil {
			return ev.RespondEphemeral(messageEphemeralNoActiveEvent)
		}
	}
	totals, err := m.reports.SummarizeEvent(ctx, e.ID, e.IsOpen())
	if err != nil {
		return err
	}
	return ev.RespondEphemeral(eventReport(e, totals))
}

func (m *Manager) handleEventClosed(e store.Event, cause event.CloseCause) {
	m.publishEventReport(context.Background(), &e, cause)
}

// publishEventReport posts the final summary to the log channel and the
// report webhook. Both are fire-and-forget: a delivery failure never
// affects the already-finalized event.
func (m *Manager) publishEventReport(ctx context.Context, e *store.Event, cause event.CloseCause) {
	slog.Info("publishing event report", "event_id", e.ID, "guild_id", e.GuildID, "cause", cause.String())
	totals, err := m.reports.SummarizeEvent(ctx, e.ID, false)
	if err != nil {
		slog.Error("failed to summarize closed event", "error", err, "event_id", e.ID)
		return
	}
	m.sendLog(logEventClosed(e, totals))
	if m.webhook == nil {
		return
	}
	payload := webhook.EventReportPayload{
		EventID:   e.ID,
		GuildID:   e.GuildID,
		Name:      e.Name,
		RoomID:    e.RoomID,
		StartedAt: e.StartedAt,
	}
	if e.EndedAt != nil {
		payload.EndedAt = *e.EndedAt
	}
	for _, t := range totals {
		payload.Participants = append(payload.Participants, webhook.ParticipantReport{
			UserID:      t.UserID,
			DisplayName: t.DisplayName,
			Minutes:     t.Minutes,
		})
	}
	if err := m.webhook.SendEventReport(ctx, payload); err != nil {
		slog.Error("failed to send event report webhook", "error", err, "event_id", e.ID)
	}
}
