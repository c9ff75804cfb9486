package deadlines

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/forfeit-backend/internal/data/db"
	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/platform/dbctx"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
)

// Upcoming is a deadline that has not lapsed yet, for reminders.
type Upcoming struct {
	Kind      types.FailureType
	ItemID    uuid.UUID
	GoalID    uuid.UUID
	UserID    uuid.UUID
	Title     string
	GoalTitle string
	Deadline  time.Time
}

// DeadlineRepo is the overdue-item feed plus the status transitions enforcement makes.
type DeadlineRepo interface {
	ListOverdue(dbc dbctx.Context, now time.Time, limit int) ([]types.OverdueItem, error)
	ListUpcoming(dbc dbctx.Context, now time.Time, within time.Duration) ([]Upcoming, error)

	GetGoal(dbc dbctx.Context, id uuid.UUID) (*types.Goal, error)
	GetCheckpoint(dbc dbctx.Context, id uuid.UUID) (*types.Checkpoint, error)

	// MarkItem moves a lapsed item to failed or overdue. Returns false when the item
	// had already left its open state.
	MarkItem(dbc dbctx.Context, kind types.FailureType, id uuid.UUID, triggered bool) (bool, error)
	CompleteCheckpoint(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error)
}

type deadlineRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDeadlineRepo(db *gorm.DB, baseLog *logger.Logger) DeadlineRepo {
	return &deadlineRepo{
		db:  db,
		log: baseLog.With("repo", "DeadlineRepo"),
	}
}

func (r *deadlineRepo) ListOverdue(dbc dbctx.Context, now time.Time, limit int) ([]types.OverdueItem, error) {
	if limit <= 0 {
		limit = 500
	}
	tx := dbc.Handle(r.db)

	// Filtering happens in SQL so that rows which can never be enforced (a
	// settled goal, a claim held for manual review) cannot fill the limit.
	var checkpoints []*types.Checkpoint
	if err := tx.Preload("Goal").
		Where("status = ? AND deadline < ?", types.CheckpointPending, now.UTC()).
		Where("goal_id IN (SELECT id FROM goal WHERE status = ?)", types.GoalActive).
		Where(unclaimedSQL("checkpoint"), types.FailureCheckpoint).
		Order("deadline ASC").
		Limit(limit).
		Find(&checkpoints).Error; err != nil {
		return nil, db.MapError("list overdue checkpoints", err)
	}

	var goals []*types.Goal
	if err := tx.
		Where("status = ? AND deadline < ?", types.GoalActive, now.UTC()).
		Where(unclaimedSQL("goal"), types.FailureFinalDeadline).
		Order("deadline ASC").
		Limit(limit).
		Find(&goals).Error; err != nil {
		return nil, db.MapError("list overdue goals", err)
	}

	out := make([]types.OverdueItem, 0, len(checkpoints)+len(goals))
	for _, cp := range checkpoints {
		if cp.Goal == nil {
			continue
		}
		item := itemFromGoal(cp.Goal, types.FailureCheckpoint)
		item.ItemID = cp.ID
		item.Title = cp.Title
		item.Deadline = cp.Deadline
		item.StakeCents = cp.Goal.CheckpointStakeCents
		out = append(out, item)
	}
	for _, g := range goals {
		out = append(out, itemFromGoal(g, types.FailureFinalDeadline))
	}
	return out, nil
}

// unclaimedSQL excludes items that already hold an enforcement claim. A kept
// claim means the item needs manual review; it is not offered again.
func unclaimedSQL(table string) string {
	return "NOT EXISTS (SELECT 1 FROM enforcement_claim ec WHERE ec.item_kind = ? AND ec.item_id = " + table + ".id)"
}

func itemFromGoal(g *types.Goal, kind types.FailureType) types.OverdueItem {
	item := types.OverdueItem{
		FailureType:  kind,
		ItemID:       g.ID,
		GoalID:       g.ID,
		UserID:       g.UserID,
		Title:        g.Title,
		GoalTitle:    g.Title,
		StakeCents:   g.StakeCents,
		CharityID:    g.CharityID,
		MinorAssetID: g.MinorAssetID,
		MajorAssetID: g.MajorAssetID,
		Deadline:     g.Deadline,
	}
	for _, s := range g.ConsequenceTypeList() {
		if ct, ok := types.ParseConsequenceType(s); ok {
			item.ConsequenceTypes = append(item.ConsequenceTypes, ct)
		}
	}
	return item
}

func (r *deadlineRepo) ListUpcoming(dbc dbctx.Context, now time.Time, within time.Duration) ([]Upcoming, error) {
	tx := dbc.Handle(r.db)
	from, to := now.UTC(), now.UTC().Add(within)

	var checkpoints []*types.Checkpoint
	if err := tx.Preload("Goal").
		Where("status = ? AND deadline > ? AND deadline <= ?", types.CheckpointPending, from, to).
		Order("deadline ASC").
		Find(&checkpoints).Error; err != nil {
		return nil, db.MapError("list upcoming checkpoints", err)
	}
	var goals []*types.Goal
	if err := tx.
		Where("status = ? AND deadline > ? AND deadline <= ?", types.GoalActive, from, to).
		Order("deadline ASC").
		Find(&goals).Error; err != nil {
		return nil, db.MapError("list upcoming goals", err)
	}

	out := make([]Upcoming, 0, len(checkpoints)+len(goals))
	for _, cp := range checkpoints {
		if cp.Goal == nil || cp.Goal.Status != types.GoalActive {
			continue
		}
		out = append(out, Upcoming{
			Kind: types.FailureCheckpoint, ItemID: cp.ID, GoalID: cp.GoalID, UserID: cp.Goal.UserID,
			Title: cp.Title, GoalTitle: cp.Goal.Title, Deadline: cp.Deadline,
		})
	}
	for _, g := range goals {
		out = append(out, Upcoming{
			Kind: types.FailureFinalDeadline, ItemID: g.ID, GoalID: g.ID, UserID: g.UserID,
			Title: g.Title, GoalTitle: g.Title, Deadline: g.Deadline,
		})
	}
	return out, nil
}

func (r *deadlineRepo) GetGoal(dbc dbctx.Context, id uuid.UUID) (*types.Goal, error) {
	var g types.Goal
	if err := dbc.Handle(r.db).Where("id = ?", id).First(&g).Error; err != nil {
		return nil, db.MapError("get goal", err)
	}
	return &g, nil
}

func (r *deadlineRepo) GetCheckpoint(dbc dbctx.Context, id uuid.UUID) (*types.Checkpoint, error) {
	var cp types.Checkpoint
	if err := dbc.Handle(r.db).Preload("Goal").Where("id = ?", id).First(&cp).Error; err != nil {
		return nil, db.MapError("get checkpoint", err)
	}
	return &cp, nil
}

func (r *deadlineRepo) MarkItem(dbc dbctx.Context, kind types.FailureType, id uuid.UUID, triggered bool) (bool, error) {
	tx := dbc.Handle(r.db)
	var res *gorm.DB
	switch kind {
	case types.FailureCheckpoint:
		to := types.CheckpointOverdue
		if triggered {
			to = types.CheckpointFailed
		}
		res = tx.Model(&types.Checkpoint{}).
			Where("id = ? AND status = ?", id, types.CheckpointPending).
			Update("status", to)
	case types.FailureFinalDeadline:
		to := types.GoalOverdue
		if triggered {
			to = types.GoalFailed
		}
		res = tx.Model(&types.Goal{}).
			Where("id = ? AND status = ?", id, types.GoalActive).
			Update("status", to)
	default:
		return false, fmt.Errorf("mark item: unknown item kind %q", kind)
	}
	if res.Error != nil {
		return false, db.MapError("mark item", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *deadlineRepo) CompleteCheckpoint(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error) {
	at = at.UTC()
	res := dbc.Handle(r.db).Model(&types.Checkpoint{}).
		Where("id = ? AND status = ?", id, types.CheckpointPending).
		Updates(map[string]interface{}{
			"status":       types.CheckpointCompleted,
			"completed_at": at,
		})
	if res.Error != nil {
		return false, db.MapError("complete checkpoint", res.Error)
	}
	return res.RowsAffected == 1, nil
}
