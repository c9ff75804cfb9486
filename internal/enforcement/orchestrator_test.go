package enforcement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/forfeit-backend/internal/consequence"
	"github.com/yungbote/forfeit-backend/internal/data/db"
	"github.com/yungbote/forfeit-backend/internal/data/repos/deadlines"
	"github.com/yungbote/forfeit-backend/internal/data/repos/ledger"
	"github.com/yungbote/forfeit-backend/internal/data/repos/testutil"
	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/notify"
	"github.com/yungbote/forfeit-backend/internal/platform/dbctx"
	"github.com/yungbote/forfeit-backend/internal/platform/entropy"
	"github.com/yungbote/forfeit-backend/internal/platform/observability"
	"github.com/yungbote/forfeit-backend/internal/platform/redislock"
)

// countingAdapter succeeds, or fails with err, and counts side effects.
type countingAdapter struct {
	ch    types.ConsequenceType
	err   error
	hook  func()
	mu    sync.Mutex
	calls []string
	// ctxErrs holds ctx.Err() as each call saw it.
	ctxErrs []error
}

func (a *countingAdapter) Type() types.ConsequenceType { return a.ch }

func (a *countingAdapter) Execute(ctx context.Context, req consequence.Request) (*consequence.Details, error) {
	if a.hook != nil {
		a.hook()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, req.IdempotencyKey)
	a.ctxErrs = append(a.ctxErrs, ctx.Err())
	return &consequence.Details{Kind: a.ch}, a.err
}

func (a *countingAdapter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

type notice struct {
	key       string
	triggered bool
	records   int
}

type fakeNotifier struct {
	notify.Dispatcher
	mu        sync.Mutex
	notices   []notice
	reminders []notify.Urgency
	panicOnce bool
	reply     notify.Result
}

func (f *fakeNotifier) ConsequenceNotice(_ context.Context, _ types.OverdueItem, key string, triggered bool, records []*types.ConsequenceRecord) notify.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOnce {
		f.panicOnce = false
		panic("template exploded")
	}
	f.notices = append(f.notices, notice{key: key, triggered: triggered, records: len(records)})
	return notify.ResultSent
}

func (f *fakeNotifier) DeadlineReminder(_ context.Context, _ deadlines.Upcoming, urgency notify.Urgency, _ time.Time) notify.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminders = append(f.reminders, urgency)
	if f.reply != "" {
		return f.reply
	}
	return notify.ResultSent
}

type harness struct {
	db       *gorm.DB
	dl       deadlines.DeadlineRepo
	ledger   ledger.LedgerRepo
	money    *countingAdapter
	mail     *countingAdapter
	notifier *fakeNotifier
	locker   redislock.Locker
	metrics  *observability.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	return &harness{
		db:       gdb,
		dl:       deadlines.NewDeadlineRepo(gdb, log),
		ledger:   ledger.NewLedgerRepo(gdb, log),
		money:    &countingAdapter{ch: types.ConsequenceMonetary},
		mail:     &countingAdapter{ch: types.ConsequenceHumiliationEmail},
		notifier: &fakeNotifier{},
		locker:   redislock.NewLocal(),
		metrics:  observability.NewMetrics(),
	}
}

func (h *harness) orchestrator(t *testing.T, draws ...int) *Orchestrator {
	t.Helper()
	log := testutil.Logger(t)
	exec := consequence.NewExecutor(log, h.ledger, h.metrics, h.money, h.mail)
	return NewOrchestrator(log, Config{}, h.dl, h.ledger, consequence.NewRoulette(entropy.NewScripted(draws...)),
		exec, h.notifier, h.locker, h.metrics)
}

func (h *harness) goal(t *testing.T, deadline time.Time) *types.Goal {
	t.Helper()
	g := &types.Goal{
		UserID:               uuid.New(),
		Title:                "Ship the side project",
		Deadline:             deadline.UTC().Truncate(time.Second),
		StakeCents:           5000,
		CheckpointStakeCents: 1000,
		CharityID:            "givedirectly",
	}
	g.SetConsequenceTypes("monetary", "humiliation_email")
	require.NoError(t, h.db.Create(g).Error)
	return g
}

func (h *harness) checkpoint(t *testing.T, goalID uuid.UUID, deadline time.Time) *types.Checkpoint {
	t.Helper()
	cp := &types.Checkpoint{GoalID: goalID, Title: "Landing page", Deadline: deadline.UTC().Truncate(time.Second)}
	require.NoError(t, h.db.Create(cp).Error)
	return cp
}

func (h *harness) records(t *testing.T, kind types.FailureType, id uuid.UUID) []*types.ConsequenceRecord {
	t.Helper()
	recs, err := h.ledger.ListByItem(dbctx.Context{Ctx: context.Background()}, kind, id)
	require.NoError(t, err)
	return recs
}

func TestRunFinalDeadlineExecutesEveryChannel(t *testing.T) {
	h := newHarness(t)
	g := h.goal(t, time.Now().Add(-time.Hour))

	sum := h.orchestrator(t).Run(context.Background())

	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 1, sum.Succeeded)
	assert.Zero(t, sum.Failed)
	assert.False(t, sum.FinishedAt.Before(sum.StartedAt))
	assert.False(t, sum.FinishedAt.IsZero())
	assert.Equal(t, 1, h.money.count())
	assert.Equal(t, 1, h.mail.count())

	recs := h.records(t, types.FailureFinalDeadline, g.ID)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.True(t, r.Triggered)
		assert.Equal(t, types.ExecutionCompleted, r.ExecutionStatus)
		assert.NotNil(t, r.ExecutedAt)
	}

	stored, err := h.dl.GetGoal(dbctx.Context{Ctx: context.Background()}, g.ID)
	require.NoError(t, err)
	assert.Equal(t, types.GoalFailed, stored.Status)

	claim, err := h.ledger.GetClaim(dbctx.Context{Ctx: context.Background()}, recs[0].IdempotencyKey)
	require.NoError(t, err)
	assert.NotNil(t, claim.CompletedAt)
	assert.Equal(t, "succeeded", claim.Outcome)
	assert.Equal(t, sum.RunID, claim.RunID)

	require.Len(t, h.notifier.notices, 1)
	assert.True(t, h.notifier.notices[0].triggered)
	assert.Equal(t, 2, h.notifier.notices[0].records)
}

func TestRunSparedCheckpoint(t *testing.T) {
	h := newHarness(t)
	g := h.goal(t, time.Now().Add(72*time.Hour))
	cp := h.checkpoint(t, g.ID, time.Now().Add(-time.Minute))

	sum := h.orchestrator(t, 2).Run(context.Background())

	assert.Equal(t, 1, sum.Spared)
	assert.Zero(t, sum.Succeeded)
	assert.Zero(t, h.money.count()+h.mail.count())

	recs := h.records(t, types.FailureCheckpoint, cp.ID)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Triggered)
	assert.Equal(t, types.ConsequenceNone, recs[0].Type)
	assert.Equal(t, types.ExecutionSpared, recs[0].ExecutionStatus)
	assert.Nil(t, recs[0].ExecutedAt)

	stored, err := h.dl.GetCheckpoint(dbctx.Context{Ctx: context.Background()}, cp.ID)
	require.NoError(t, err)
	assert.Equal(t, types.CheckpointOverdue, stored.Status)

	require.Len(t, h.notifier.notices, 1)
	assert.False(t, h.notifier.notices[0].triggered)
}

func TestRunTriggeredCheckpointCountsChannelFailures(t *testing.T) {
	h := newHarness(t)
	h.mail.err = errors.New("sendgrid http 500")
	g := h.goal(t, time.Now().Add(72*time.Hour))
	cp := h.checkpoint(t, g.ID, time.Now().Add(-time.Minute))

	sum := h.orchestrator(t, 0).Run(context.Background())

	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, 1, sum.ChannelFailures)
	assert.Equal(t, 1, h.money.count(), "a failed sibling never blocks a channel")

	stored, err := h.dl.GetCheckpoint(dbctx.Context{Ctx: context.Background()}, cp.ID)
	require.NoError(t, err)
	assert.Equal(t, types.CheckpointFailed, stored.Status)
}

func TestRunIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.goal(t, time.Now().Add(-time.Hour))
	o := h.orchestrator(t)

	first := o.Run(context.Background())
	require.Equal(t, 1, first.Succeeded)
	second := o.Run(context.Background())
	assert.Zero(t, second.Processed)
	assert.Equal(t, 1, h.money.count())
	assert.Len(t, h.notifier.notices, 1)
}

// racingLedger lets another runner claim each item between listing and claiming.
type racingLedger struct {
	ledger.LedgerRepo
}

func (l racingLedger) Claim(dbc dbctx.Context, item types.OverdueItem, key, runID string) (bool, error) {
	if _, err := l.LedgerRepo.Claim(dbc, item, key, "other-run"); err != nil {
		return false, err
	}
	return l.LedgerRepo.Claim(dbc, item, key, runID)
}

func TestRunSkipsItemClaimedByAnotherRunner(t *testing.T) {
	h := newHarness(t)
	h.goal(t, time.Now().Add(-time.Hour))
	log := testutil.Logger(t)
	exec := consequence.NewExecutor(log, h.ledger, h.metrics, h.money, h.mail)
	o := NewOrchestrator(log, Config{}, h.dl, racingLedger{h.ledger}, consequence.NewRoulette(entropy.NewScripted()),
		exec, h.notifier, h.locker, h.metrics)

	sum := o.Run(context.Background())

	assert.Equal(t, 1, sum.Skipped)
	assert.Zero(t, h.money.count()+h.mail.count())
	assert.Empty(t, h.notifier.notices)

	// A held claim keeps the item out of later feeds.
	again := h.orchestrator(t).Run(context.Background())
	assert.Zero(t, again.Processed)
}

func TestRunFinishesItemWhenCallerCancels(t *testing.T) {
	h := newHarness(t)
	first := h.goal(t, time.Now().Add(-2*time.Hour))
	second := h.goal(t, time.Now().Add(-time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.money.hook = cancel

	sum := h.orchestrator(t).Run(ctx)

	assert.Equal(t, 1, sum.Processed, "cancellation stops the pass between items")
	assert.Equal(t, 1, sum.Succeeded)
	assert.Empty(t, sum.Errors)
	assert.False(t, sum.FinishedAt.IsZero())

	require.Equal(t, 1, h.mail.count(), "sibling channels still run after the caller is gone")
	assert.NoError(t, h.mail.ctxErrs[0])

	recs := h.records(t, types.FailureFinalDeadline, first.ID)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, types.ExecutionCompleted, r.ExecutionStatus)
	}
	stored, err := h.dl.GetGoal(dbctx.Context{Ctx: context.Background()}, first.ID)
	require.NoError(t, err)
	assert.Equal(t, types.GoalFailed, stored.Status)
	claim, err := h.ledger.GetClaim(dbctx.Context{Ctx: context.Background()}, recs[0].IdempotencyKey)
	require.NoError(t, err)
	assert.NotNil(t, claim.CompletedAt)
	require.Len(t, h.notifier.notices, 1)

	assert.Empty(t, h.records(t, types.FailureFinalDeadline, second.ID))
}

func TestRunReleasesClaimWhenDrawFails(t *testing.T) {
	h := newHarness(t)
	g := h.goal(t, time.Now().Add(72*time.Hour))
	cp := h.checkpoint(t, g.ID, time.Now().Add(-time.Minute))

	sum := h.orchestrator(t).Run(context.Background())
	assert.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Errors, 1)
	assert.Equal(t, StageDecide, sum.Errors[0].Stage)

	_, err := h.ledger.GetClaim(dbctx.Context{Ctx: context.Background()}, sum.Errors[0].Key)
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.Empty(t, h.records(t, types.FailureCheckpoint, cp.ID))

	retry := h.orchestrator(t, 1).Run(context.Background())
	assert.Equal(t, 1, retry.Spared)
}

func TestRunRecoversPanicAndContinues(t *testing.T) {
	h := newHarness(t)
	h.notifier.panicOnce = true
	h.goal(t, time.Now().Add(-2*time.Hour))
	h.goal(t, time.Now().Add(-time.Hour))

	sum := h.orchestrator(t).Run(context.Background())

	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Succeeded)
	require.Len(t, sum.Errors, 1)
	assert.Equal(t, StagePanic, sum.Errors[0].Stage)

	// The panicking item already executed, so its claim is kept.
	claim, err := h.ledger.GetClaim(dbctx.Context{Ctx: context.Background()}, sum.Errors[0].Key)
	require.NoError(t, err)
	assert.Nil(t, claim.CompletedAt)
}

func TestRunHonoursRunLock(t *testing.T) {
	h := newHarness(t)
	h.goal(t, time.Now().Add(-time.Hour))
	release, ok, err := h.locker.TryLock(context.Background(), enforcementLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	sum := h.orchestrator(t).Run(context.Background())
	assert.True(t, sum.Locked)
	assert.Zero(t, sum.Processed)
	assert.False(t, sum.FinishedAt.IsZero())

	require.NoError(t, release(context.Background()))
	sum = h.orchestrator(t).Run(context.Background())
	assert.Equal(t, 1, sum.Succeeded)
}

func TestRemindUpcoming(t *testing.T) {
	h := newHarness(t)
	g := h.goal(t, time.Now().Add(10*time.Hour))
	h.checkpoint(t, g.ID, time.Now().Add(30*time.Minute))
	h.checkpoint(t, g.ID, time.Now().Add(48*time.Hour))

	sum := h.orchestrator(t).RemindUpcoming(context.Background())

	assert.Equal(t, 2, sum.Considered)
	assert.Equal(t, 2, sum.Sent)
	assert.ElementsMatch(t, []notify.Urgency{notify.UrgencyHour, notify.UrgencyDay}, h.notifier.reminders)

	h.notifier.reply = notify.ResultDuplicate
	sum = h.orchestrator(t).RemindUpcoming(context.Background())
	assert.Equal(t, 2, sum.Suppressed)
	assert.Zero(t, sum.Sent)
}
