package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/araucarialabs/presenca/internal/report"
	"github.com/araucarialabs/presenca/internal/store"
)

const (
	messageEphemeralUnknownCommand = ":warning: **Comando desconhecido.**"
	messageEphemeralInternalError  = "⚠️ Ocorreu um erro. Tente novamente."
	messageEphemeralNeedManage     = "❌ Você precisa da permissão **Gerenciar Servidor**."
	messageEphemeralNeedVoiceRoom  = "❌ Selecione um canal de **voz**."

	messageEphemeralNoTrackedRooms = "ℹ️ Nenhuma sala rastreada."

	messageEphemeralNoOpenSession         = "ℹ️ Você não tem um check-in aberto."
	messageEphemeralNoOpenSessionCheckout = "⚠️ Você não tem um check-in aberto em salas rastreadas."
	messageEphemeralCheckoutDone          = "✅ **Checkout concluído!** Sua presença foi contabilizada. 🙌"

	messageEphemeralBadDateFormat  = "❌ Formato de data inválido. Use **dd/mm/aaaa**."
	messageEphemeralBadDuration    = "❌ Duração inválida. Informe minutos maiores que zero."
	messageEphemeralCSVSent        = "📎 Aqui está o CSV:"
	messageEphemeralCSVPosted      = "📎 CSV enviado neste canal."
	messageEphemeralEventActive    = "⚠️ Já existe um evento ativo neste servidor."
	messageEphemeralNoActiveEvent  = "ℹ️ Nenhum evento ativo."
	messageEphemeralEventNotFound  = "❌ Evento não encontrado."
	messageEphemeralEventNoMembers = "📭 Nenhuma participação registrada neste evento."

	messageDMCheckin = "👋 **Check-in iniciado!**\n" +
		"Quando completar o tempo necessário, use /checkout para registrar sua presença.\n" +
		"_Se usar antes, eu aviso quanto tempo falta._"

	shortTimestampLayout = "02/01 15:04"
	dateArgumentLayout   = "02/01/2006"
	reportLineLimit      = 50
)

func roomAdded(roomID string) string {
	return fmt.Sprintf("✅ Sala adicionada: <#%s>", roomID)
}

func roomRemoved(roomID string) string {
	return fmt.Sprintf("🗑️ Sala removida: <#%s>", roomID)
}

func trackedRoomsList(roomIDs []string) string {
	lines := make([]string, 0, len(roomIDs))
	for _, id := range roomIDs {
		lines = append(lines, fmt.Sprintf("• <#%s>", id))
	}
	return "🎯 **Salas rastreadas:**\n" + strings.Join(lines, "\n")
}

func statusReply(checkinAt time.Time, elapsedMinutes int, loc *time.Location) string {
	return fmt.Sprintf("🕒 Check-in desde **%s** — **%d min** decorridos.\nUse /checkout quando completar o tempo necessário.",
		checkinAt.In(loc).Format(shortTimestampLayout), elapsedMinutes)
}

func checkoutTooEarly(remainingMinutes int) string {
	return fmt.Sprintf("⏳ Ainda não deu o tempo mínimo do seu check-in. Faltam **%d min**.", remainingMinutes)
}

func logCheckin(userID, roomID string) string {
	return fmt.Sprintf("🟢 **Check-in**: <@%s> em <#%s>", userID, roomID)
}

func logCheckout(userID, roomID string, durationMinutes int) string {
	return fmt.Sprintf("🔴 **Saída**: <@%s> de <#%s> (**%d min**)", userID, roomID, durationMinutes)
}

func logRoomSwitch(userID, fromRoomID, toRoomID string) string {
	return fmt.Sprintf("🔁 **Troca de sala**: <@%s> de <#%s> para <#%s>", userID, fromRoomID, toRoomID)
}

func noRecordsBetween(inicio, fim string) string {
	return fmt.Sprintf("📭 Sem registros entre **%s** e **%s**.", inicio, fim)
}

func sessionsReport(inicio, fim string, sessions []store.Session, loc *time.Location) string {
	shown := sessions
	if len(shown) > reportLineLimit {
		shown = shown[:reportLineLimit]
	}
	lines := make([]string, 0, len(shown))
	for _, s := range shown {
		out := "—"
		dur := "—"
		if s.CheckoutAt != nil {
			out = s.CheckoutAt.In(loc).Format(shortTimestampLayout)
		}
		if s.DurationMinutes != nil {
			dur = fmt.Sprintf("%d min", *s.DurationMinutes)
		}
		lines = append(lines, fmt.Sprintf("• **%s** — Sala: <#%s> | In: %s | Out: %s | Dur: %s",
			s.UserName, s.RoomID, s.CheckinAt.In(loc).Format(shortTimestampLayout), out, dur))
	}
	msg := fmt.Sprintf("📒 **Participações** (%s → %s)\n%s", inicio, fim, strings.Join(lines, "\n"))
	if len(sessions) > reportLineLimit {
		msg += fmt.Sprintf("\n… e mais %d linhas.", len(sessions)-reportLineLimit)
	}
	return msg
}

func csvFilename(inicio, fim string) string {
	return fmt.Sprintf("relatorio_%s_a_%s.csv",
		strings.ReplaceAll(inicio, "/", "-"), strings.ReplaceAll(fim, "/", "-"))
}

func eventStarted(e *store.Event, loc *time.Location) string {
	return fmt.Sprintf("📅 **Evento iniciado:** %s em <#%s> até **%s**.",
		e.Name, e.RoomID, e.ExpectedEndAt.In(loc).Format(shortTimestampLayout))
}

func eventStatus(e *store.Event, loc *time.Location) string {
	return fmt.Sprintf("📅 **Evento ativo:** %s em <#%s>\nInício: **%s** | Término previsto: **%s** | ID: `%s`",
		e.Name, e.RoomID,
		e.StartedAt.In(loc).Format(shortTimestampLayout),
		e.ExpectedEndAt.In(loc).Format(shortTimestampLayout),
		e.ID)
}

func eventStopped(e *store.Event) string {
	return fmt.Sprintf("🛑 **Evento encerrado:** %s", e.Name)
}

func participantLines(totals []report.ParticipantTotal) string {
	if len(totals) == 0 {
		return messageEphemeralEventNoMembers
	}
	lines := make([]string, 0, len(totals))
	for _, t := range totals {
		lines = append(lines, fmt.Sprintf("• **%s** — %d min", t.DisplayName, t.Minutes))
	}
	return strings.Join(lines, "\n")
}

func eventReport(e *store.Event, totals []report.ParticipantTotal) string {
	return fmt.Sprintf("🏅 **%s** — participações:\n%s", e.Name, participantLines(totals))
}

func logEventClosed(e *store.Event, totals []report.ParticipantTotal) string {
	return fmt.Sprintf("🏁 **Evento encerrado:** %s em <#%s>\n%s",
		e.Name, e.RoomID, participantLines(totals))
}
