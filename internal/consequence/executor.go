package consequence

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/forfeit-backend/internal/data/repos/ledger"
	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/platform/dbctx"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
	"github.com/yungbote/forfeit-backend/internal/platform/observability"
)

// Executor runs every configured channel for a lapsed item and appends one
// record per attempt. Channels are independent: one failing never stops another.
type Executor interface {
	Execute(ctx context.Context, item types.OverdueItem, key string, triggered bool) ([]*types.ConsequenceRecord, error)
}

type executor struct {
	log      *logger.Logger
	ledger   ledger.LedgerRepo
	adapters map[types.ConsequenceType]Adapter
	metrics  *observability.Metrics
	now      func() time.Time
}

func NewExecutor(log *logger.Logger, ledgerRepo ledger.LedgerRepo, metrics *observability.Metrics, adapters ...Adapter) Executor {
	byType := make(map[types.ConsequenceType]Adapter, len(adapters))
	for _, a := range adapters {
		if a != nil {
			byType[a.Type()] = a
		}
	}
	return &executor{
		log:      log.With("service", "ConsequenceExecutor"),
		ledger:   ledgerRepo,
		adapters: byType,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (e *executor) Execute(ctx context.Context, item types.OverdueItem, key string, triggered bool) ([]*types.ConsequenceRecord, error) {
	triggeredAt := e.now().UTC()

	if !triggered {
		configured := make([]string, 0, len(item.ConsequenceTypes))
		for _, t := range item.ConsequenceTypes {
			configured = append(configured, string(t))
		}
		d := &Details{Kind: types.ConsequenceNone, Spared: &SparedDetails{FailureType: item.FailureType, Configured: configured}}
		rec := e.record(item, key, types.ConsequenceNone, false, triggeredAt, types.ExecutionSpared, d)
		if err := e.append(ctx, rec); err != nil {
			return nil, err
		}
		return []*types.ConsequenceRecord{rec}, nil
	}

	channels := dedupe(item.ConsequenceTypes)
	if len(channels) == 0 {
		d := &Details{Kind: types.ConsequenceNone, Failure: &FailureDetails{Class: FailurePrecondition, Reason: "no consequence configured"}}
		rec := e.record(item, key, types.ConsequenceNone, true, triggeredAt, types.ExecutionFailed, d)
		if err := e.append(ctx, rec); err != nil {
			return nil, err
		}
		return []*types.ConsequenceRecord{rec}, nil
	}

	out := make([]*types.ConsequenceRecord, 0, len(channels))
	for _, ch := range channels {
		rec := e.attempt(ctx, item, key, ch, triggeredAt)
		// Appending right after each attempt keeps what already happened on
		// record if a later channel takes the process down.
		if err := e.append(ctx, rec); err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (e *executor) attempt(ctx context.Context, item types.OverdueItem, key string, ch types.ConsequenceType, triggeredAt time.Time) *types.ConsequenceRecord {
	ctx, span := observability.Tracer("consequence").Start(ctx, "consequence."+string(ch))
	defer span.End()
	span.SetAttributes(
		attribute.String("item.kind", string(item.FailureType)),
		attribute.String("item.id", item.ItemID.String()),
	)

	adapter, ok := e.adapters[ch]
	if !ok {
		d := &Details{Kind: ch, Failure: &FailureDetails{Class: FailurePrecondition, Reason: "channel not available"}}
		span.SetStatus(codes.Error, "channel not available")
		return e.record(item, key, ch, true, triggeredAt, types.ExecutionFailed, d)
	}

	started := time.Now()
	d, err := e.run(ctx, adapter, Request{Item: item, IdempotencyKey: key})
	if d == nil {
		d = &Details{Kind: ch}
	}
	if err != nil {
		class := failureClass(err)
		d.Failure = &FailureDetails{Class: class, Reason: err.Error()}
		span.RecordError(err)
		span.SetStatus(codes.Error, class)
		e.metrics.ObserveRail(string(ch), "failed", time.Since(started))
		e.log.Warn("Consequence channel failed",
			"channel", ch, "item_kind", item.FailureType, "item_id", item.ItemID, "class", class, "error", err)
		return e.record(item, key, ch, true, triggeredAt, types.ExecutionFailed, d)
	}
	e.metrics.ObserveRail(string(ch), "completed", time.Since(started))
	rec := e.record(item, key, ch, true, triggeredAt, types.ExecutionCompleted, d)
	executedAt := e.now().UTC()
	rec.ExecutedAt = &executedAt
	return rec
}

func (e *executor) run(ctx context.Context, a Adapter, req Request) (d *Details, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Consequence channel panicked", "channel", a.Type(), "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	return a.Execute(ctx, req)
}

func (e *executor) record(item types.OverdueItem, key string, ch types.ConsequenceType, triggered bool, at time.Time, status types.ExecutionStatus, d *Details) *types.ConsequenceRecord {
	return &types.ConsequenceRecord{
		IdempotencyKey:  key,
		ItemKind:        item.FailureType,
		ItemID:          item.ItemID,
		GoalID:          item.GoalID,
		UserID:          item.UserID,
		Type:            ch,
		Triggered:       triggered,
		TriggeredAt:     at,
		ExecutionStatus: status,
		Details:         d.JSON(),
	}
}

func (e *executor) append(ctx context.Context, rec *types.ConsequenceRecord) error {
	if err := e.ledger.Append(dbctx.Context{Ctx: ctx}, rec); err != nil {
		return fmt.Errorf("append consequence record: %w", err)
	}
	e.metrics.IncConsequenceRecord(string(rec.Type), string(rec.ExecutionStatus))
	return nil
}

func dedupe(in []types.ConsequenceType) []types.ConsequenceType {
	seen := make(map[types.ConsequenceType]bool, len(in))
	out := make([]types.ConsequenceType, 0, len(in))
	for _, t := range in {
		if t == "" || t == types.ConsequenceNone || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
