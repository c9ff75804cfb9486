package enforcement

import (
	"context"
	"time"
)

// Start runs the enforcement and reminder passes on their intervals until ctx
// ends. A loop with a zero interval is not started.
func (o *Orchestrator) Start(ctx context.Context) {
	if o.cfg.EnforceInterval > 0 {
		o.log.Info("Starting enforcement loop", "interval", o.cfg.EnforceInterval.String())
		go o.loop(ctx, "enforcement", o.cfg.EnforceInterval, func(ctx context.Context) { o.Run(ctx) })
	}
	if o.cfg.RemindInterval > 0 {
		o.log.Info("Starting reminder loop", "interval", o.cfg.RemindInterval.String())
		go o.loop(ctx, "reminders", o.cfg.RemindInterval, func(ctx context.Context) { o.RemindUpcoming(ctx) })
	}
}

func (o *Orchestrator) loop(ctx context.Context, name string, every time.Duration, pass func(context.Context)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			o.log.Info("Loop stopped", "loop", name)
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						o.log.Error("Loop pass panic", "loop", name, "panic", r)
					}
				}()
				pass(ctx)
			}()
		}
	}
}
