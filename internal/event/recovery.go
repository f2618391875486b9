package event

import (
	"context"
	"log/slog"
)

// Recovery reconciles events left open in the store with reality after a
// restart. It runs once, before any notification is processed.
type Recovery struct {
	scheduler *Scheduler
}

func NewRecovery(scheduler *Scheduler) *Recovery {
	return &Recovery{scheduler: scheduler}
}

// Run rebuilds the scheduler state from the store, then repairs the
// participation ledger of every event that stayed open: members present
// through the outage get a participation re-opened from the live
// occupancy snapshot. Failures are collected per guild; one guild's
// stale event never aborts recovery for the rest.
func (r *Recovery) Run(ctx context.Context) (RebuildReport, error) {
	report, err := r.scheduler.RebuildFromStore(ctx)
	if err != nil {
		return RebuildReport{}, err
	}

	for _, e := range report.Resumed {
		if err := r.scheduler.RepairParticipations(ctx, e); err != nil {
			slog.Error("failed to repair participations", "error", err, "event_id", e.ID, "guild_id", e.GuildID)
			report.Failures = append(report.Failures, GuildFailure{GuildID: e.GuildID, Err: err})
		}
	}

	slog.Info("recovery finished",
		"resumed", len(report.Resumed),
		"finalized", len(report.Finalized),
		"failures", len(report.Failures))
	return report, nil
}
