package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/forfeit-backend/internal/data/db"
	"github.com/yungbote/forfeit-backend/internal/data/repos/testutil"
	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/platform/dbctx"
)

func testItem() types.OverdueItem {
	return types.OverdueItem{
		FailureType: types.FailureCheckpoint,
		ItemID:      uuid.New(),
		GoalID:      uuid.New(),
		UserID:      uuid.New(),
		Deadline:    time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestClaimIsExclusive(t *testing.T) {
	repo := NewLedgerRepo(testutil.DB(t), testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}
	item := testItem()
	key := item.IdempotencyKey()

	ok, err := repo.Claim(dbc, item, key, "run-1")
	if err != nil || !ok {
		t.Fatalf("first Claim: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Claim(dbc, item, key, "run-2")
	if err != nil {
		t.Fatalf("second Claim: %v", err)
	}
	if ok {
		t.Fatalf("second Claim: expected key to be taken")
	}
	claim, err := repo.GetClaim(dbc, key)
	if err != nil {
		t.Fatalf("GetClaim: %v", err)
	}
	if claim.RunID != "run-1" {
		t.Fatalf("claim owner: want=run-1 got=%s", claim.RunID)
	}
}

func TestReleaseOnlyUnfinishedClaims(t *testing.T) {
	repo := NewLedgerRepo(testutil.DB(t), testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}
	item := testItem()
	key := item.IdempotencyKey()

	if _, err := repo.Claim(dbc, item, key, "run-1"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := repo.Release(dbc, key); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := repo.GetClaim(dbc, key); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("GetClaim after release: want ErrNotFound, got %v", err)
	}

	if ok, _ := repo.Claim(dbc, item, key, "run-2"); !ok {
		t.Fatalf("re-Claim after release should succeed")
	}
	if err := repo.Complete(dbc, key, "succeeded"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := repo.Release(dbc, key); err != nil {
		t.Fatalf("Release completed: %v", err)
	}
	claim, err := repo.GetClaim(dbc, key)
	if err != nil {
		t.Fatalf("completed claim must survive Release: %v", err)
	}
	if claim.CompletedAt == nil || claim.Outcome != "succeeded" {
		t.Fatalf("completed claim: %+v", claim)
	}
}

func TestAppendAndList(t *testing.T) {
	repo := NewLedgerRepo(testutil.DB(t), testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}
	item := testItem()
	key := item.IdempotencyKey()
	now := time.Now().UTC()

	recs := []*types.ConsequenceRecord{
		{IdempotencyKey: key, ItemKind: item.FailureType, ItemID: item.ItemID, GoalID: item.GoalID, UserID: item.UserID,
			Type: types.ConsequenceMonetary, Triggered: true, TriggeredAt: now, ExecutionStatus: types.ExecutionFailed},
		{IdempotencyKey: key, ItemKind: item.FailureType, ItemID: item.ItemID, GoalID: item.GoalID, UserID: item.UserID,
			Type: types.ConsequenceHumiliationEmail, Triggered: true, TriggeredAt: now, ExecutedAt: &now, ExecutionStatus: types.ExecutionCompleted},
	}
	if err := repo.Append(dbc, recs...); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := repo.ListByItem(dbc, item.FailureType, item.ItemID)
	if err != nil {
		t.Fatalf("ListByItem: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListByItem: want 2 got %d", len(got))
	}
	byKey, err := repo.ListByKey(dbc, key)
	if err != nil || len(byKey) != 2 {
		t.Fatalf("ListByKey: len=%d err=%v", len(byKey), err)
	}
	other, _ := repo.ListByItem(dbc, types.FailureFinalDeadline, item.ItemID)
	if len(other) != 0 {
		t.Fatalf("ListByItem must filter by kind")
	}
}

func TestRecordsCannotBeUpdated(t *testing.T) {
	gdb := testutil.DB(t)
	repo := NewLedgerRepo(gdb, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}
	item := testItem()

	rec := &types.ConsequenceRecord{IdempotencyKey: "k", ItemKind: item.FailureType, ItemID: item.ItemID, GoalID: item.GoalID,
		UserID: item.UserID, Type: types.ConsequenceNone, TriggeredAt: time.Now().UTC(), ExecutionStatus: types.ExecutionSpared}
	if err := repo.Append(dbc, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	rec.ExecutionStatus = types.ExecutionCompleted
	if err := gdb.Save(rec).Error; err == nil {
		t.Fatalf("Save on a consequence record should be rejected")
	}
}
