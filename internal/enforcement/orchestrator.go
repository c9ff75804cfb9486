// Package enforcement runs the batch pass over lapsed deadlines and the reminder
// pass over upcoming ones.
package enforcement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/forfeit-backend/internal/consequence"
	"github.com/yungbote/forfeit-backend/internal/data/repos/deadlines"
	"github.com/yungbote/forfeit-backend/internal/data/repos/ledger"
	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/notify"
	"github.com/yungbote/forfeit-backend/internal/platform/dbctx"
	"github.com/yungbote/forfeit-backend/internal/platform/envutil"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
	"github.com/yungbote/forfeit-backend/internal/platform/observability"
	"github.com/yungbote/forfeit-backend/internal/platform/redislock"
)

const (
	enforcementLockKey = "enforcement-run"
	reminderLockKey    = "reminder-run"
)

type Config struct {
	// BatchLimit caps how many items of each kind one pass reads.
	BatchLimit     int
	LockTTL        time.Duration
	ReminderWindow time.Duration
	// EnforceInterval and RemindInterval drive Start; zero disables the loop.
	EnforceInterval time.Duration
	RemindInterval  time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		BatchLimit:      envutil.Int("ENFORCEMENT_BATCH_LIMIT", 200),
		LockTTL:         envutil.Duration("ENFORCEMENT_LOCK_TTL_SECONDS", 10*time.Minute),
		ReminderWindow:  24 * time.Hour,
		EnforceInterval: envutil.Duration("ENFORCEMENT_INTERVAL_SECONDS", 0),
		RemindInterval:  envutil.Duration("REMINDER_INTERVAL_SECONDS", 0),
	}
}

// Orchestrator turns each overdue item into exactly one ledger entry set. It
// never returns an error for an item; failures land in the Summary.
type Orchestrator struct {
	log       *logger.Logger
	cfg       Config
	deadlines deadlines.DeadlineRepo
	ledger    ledger.LedgerRepo
	roulette  *consequence.Roulette
	executor  consequence.Executor
	notifier  notify.Dispatcher
	locker    redislock.Locker
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewOrchestrator(
	log *logger.Logger,
	cfg Config,
	dl deadlines.DeadlineRepo,
	ledgerRepo ledger.LedgerRepo,
	roulette *consequence.Roulette,
	executor consequence.Executor,
	notifier notify.Dispatcher,
	locker redislock.Locker,
	metrics *observability.Metrics,
) *Orchestrator {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 200
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.ReminderWindow <= 0 {
		cfg.ReminderWindow = 24 * time.Hour
	}
	if locker == nil {
		locker = redislock.NewLocal()
	}
	return &Orchestrator{
		log:       log.With("component", "EnforcementOrchestrator"),
		cfg:       cfg,
		deadlines: dl,
		ledger:    ledgerRepo,
		roulette:  roulette,
		executor:  executor,
		notifier:  notifier,
		locker:    locker,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Stage names where an item stopped.
const (
	StageList    = "list"
	StageClaim   = "claim"
	StageDecide  = "decide"
	StageExecute = "execute"
	StageMark    = "mark"
	StageFinish  = "complete"
	StagePanic   = "panic"
)

type ItemError struct {
	Key   string `json:"key,omitempty"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

type Summary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	// Locked is set when another pass held the run lock and this one did nothing.
	Locked          bool        `json:"locked"`
	Processed       int         `json:"processed"`
	Succeeded       int         `json:"succeeded"`
	Failed          int         `json:"failed"`
	Skipped         int         `json:"skipped"`
	Spared          int         `json:"spared"`
	ChannelFailures int         `json:"channel_failures"`
	Errors          []ItemError `json:"errors,omitempty"`
}

type itemOutcome string

const (
	outcomeSucceeded itemOutcome = "succeeded"
	outcomeSpared    itemOutcome = "spared"
	outcomeSkipped   itemOutcome = "skipped"
	outcomeFailed    itemOutcome = "failed"
)

type itemResult struct {
	outcome         itemOutcome
	channelFailures int
	err             *ItemError
}

// Run performs one enforcement pass over everything overdue at call time.
func (o *Orchestrator) Run(ctx context.Context) (sum Summary) {
	start := o.now()
	sum = Summary{RunID: uuid.NewString(), StartedAt: start.UTC()}
	defer func() {
		sum.FinishedAt = o.now().UTC()
		o.metrics.ObserveRun("enforcement", sum.FinishedAt.Sub(start))
	}()

	release, ok, err := o.locker.TryLock(ctx, enforcementLockKey, o.cfg.LockTTL)
	switch {
	case err != nil:
		// Ledger claims still keep items exactly-once; the lock only saves work.
		o.log.Warn("Run lock unavailable; continuing without it", "error", err)
	case !ok:
		o.log.Info("Enforcement pass already running elsewhere; skipping", "run_id", sum.RunID)
		sum.Locked = true
		return sum
	default:
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				o.log.Warn("Run lock release failed", "error", err)
			}
		}()
	}

	items, err := o.deadlines.ListOverdue(dbctx.Context{Ctx: ctx}, start, o.cfg.BatchLimit)
	if err != nil {
		o.log.Error("Listing overdue items failed", "run_id", sum.RunID, "error", err)
		sum.Errors = append(sum.Errors, ItemError{Stage: StageList, Error: err.Error()})
		return sum
	}

	// Cancellation is honoured between items only.
	for _, item := range items {
		if ctx.Err() != nil {
			o.log.Warn("Enforcement pass cancelled between items", "run_id", sum.RunID, "remaining", len(items)-sum.Processed)
			break
		}
		res := o.processItem(ctx, sum.RunID, item)
		sum.Processed++
		sum.ChannelFailures += res.channelFailures
		switch res.outcome {
		case outcomeSucceeded:
			sum.Succeeded++
		case outcomeSpared:
			sum.Spared++
		case outcomeSkipped:
			sum.Skipped++
		default:
			sum.Failed++
		}
		if res.err != nil {
			sum.Errors = append(sum.Errors, *res.err)
		}
		o.metrics.IncEnforcementItem(string(item.FailureType), string(res.outcome))
	}

	o.log.Info("Enforcement pass finished",
		"run_id", sum.RunID,
		"processed", sum.Processed,
		"succeeded", sum.Succeeded,
		"spared", sum.Spared,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"channel_failures", sum.ChannelFailures,
	)
	return sum
}

// processItem runs detached from the caller's cancellation: once claimed, an
// item is executed, recorded, marked and completed. Rail timeouts bound it.
func (o *Orchestrator) processItem(ctx context.Context, runID string, item types.OverdueItem) (res itemResult) {
	ctx = context.WithoutCancel(ctx)
	key := item.IdempotencyKey()
	ctx, span := observability.Tracer("enforcement").Start(ctx, "enforcement.item")
	span.SetAttributes(
		attribute.String("item.kind", string(item.FailureType)),
		attribute.String("item.id", item.ItemID.String()),
	)
	dbc := dbctx.Context{Ctx: ctx}

	claimed, executed := false, false
	fail := func(stage string, err error) itemResult {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		o.log.Error("Enforcement item failed", "key", key, "stage", stage, "user_id", item.UserID, "error", err)
		return itemResult{outcome: outcomeFailed, err: &ItemError{Key: key, Stage: stage, Error: err.Error()}}
	}
	defer func() {
		if r := recover(); r != nil {
			if claimed && !executed {
				o.release(ctx, key)
			}
			res = fail(StagePanic, fmt.Errorf("panic: %v", r))
		}
		span.SetAttributes(attribute.String("item.outcome", string(res.outcome)))
		span.End()
	}()

	ok, err := o.ledger.Claim(dbc, item, key, runID)
	if err != nil {
		return fail(StageClaim, err)
	}
	if !ok {
		o.log.Debug("Item already claimed; skipping", "key", key)
		return itemResult{outcome: outcomeSkipped}
	}
	claimed = true

	triggered, err := o.roulette.Decide(item.FailureType)
	if err != nil {
		o.release(ctx, key)
		return fail(StageDecide, err)
	}
	span.SetAttributes(attribute.Bool("item.triggered", triggered))

	executed = true
	records, err := o.executor.Execute(ctx, item, key, triggered)
	if err != nil {
		// Some channels may already have fired. The claim stays open so nothing
		// re-runs them; the ledger shows what was recorded.
		return fail(StageExecute, err)
	}
	for _, rec := range records {
		if rec.ExecutionStatus == types.ExecutionFailed {
			res.channelFailures++
		}
	}

	res.outcome = outcomeSucceeded
	if !triggered {
		res.outcome = outcomeSpared
	}

	if moved, err := o.deadlines.MarkItem(dbc, item.FailureType, item.ItemID, triggered); err != nil {
		res = withError(res, fail(StageMark, err))
	} else if !moved {
		o.log.Warn("Item had already left its open state", "key", key)
	}

	if o.notifier != nil {
		o.notifier.ConsequenceNotice(ctx, item, key, triggered, records)
	}

	if err := o.ledger.Complete(dbc, key, string(res.outcome)); err != nil {
		res = withError(res, fail(StageFinish, err))
	}
	return res
}

// withError keeps the channel tally of res but marks the item failed.
func withError(res, failed itemResult) itemResult {
	failed.channelFailures = res.channelFailures
	return failed
}

func (o *Orchestrator) release(ctx context.Context, key string) {
	if err := o.ledger.Release(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, key); err != nil {
		o.log.Error("Releasing claim failed; item needs manual review", "key", key, "error", err)
	}
}
