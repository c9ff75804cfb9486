package enforcement

import (
	"context"

	"github.com/yungbote/forfeit-backend/internal/notify"
	"github.com/yungbote/forfeit-backend/internal/platform/dbctx"
)

type ReminderSummary struct {
	Locked     bool `json:"locked"`
	Considered int  `json:"considered"`
	Sent       int  `json:"sent"`
	// Suppressed counts opt-outs and reminders already sent for this tier.
	Suppressed int    `json:"suppressed"`
	Failed     int    `json:"failed"`
	Error      string `json:"error,omitempty"`
}

// RemindUpcoming warns users about deadlines inside the reminder window, once per
// urgency tier per item.
func (o *Orchestrator) RemindUpcoming(ctx context.Context) ReminderSummary {
	start := o.now()
	var sum ReminderSummary
	defer func() { o.metrics.ObserveRun("reminders", o.now().Sub(start)) }()

	release, ok, err := o.locker.TryLock(ctx, reminderLockKey, o.cfg.LockTTL)
	switch {
	case err != nil:
		o.log.Warn("Reminder lock unavailable; continuing without it", "error", err)
	case !ok:
		sum.Locked = true
		return sum
	default:
		defer func() { _ = release(context.WithoutCancel(ctx)) }()
	}

	upcoming, err := o.deadlines.ListUpcoming(dbctx.Context{Ctx: ctx}, start, o.cfg.ReminderWindow)
	if err != nil {
		o.log.Error("Listing upcoming deadlines failed", "error", err)
		sum.Error = err.Error()
		return sum
	}
	for _, up := range upcoming {
		urgency, ok := notify.UrgencyFor(up.Deadline, start)
		if !ok {
			continue
		}
		sum.Considered++
		switch o.notifier.DeadlineReminder(ctx, up, urgency, start) {
		case notify.ResultSent:
			sum.Sent++
		case notify.ResultFailed:
			sum.Failed++
		default:
			sum.Suppressed++
		}
	}
	o.log.Info("Reminder pass finished", "considered", sum.Considered, "sent", sum.Sent, "failed", sum.Failed)
	return sum
}
