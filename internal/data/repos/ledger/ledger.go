package ledger

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/forfeit-backend/internal/data/db"
	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/platform/dbctx"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
)

// LedgerRepo is the durable record of enforcement. Consequence records can be
// appended and read, never changed.
type LedgerRepo interface {
	// Claim reserves key for item. ok=false means another pass already owns it.
	Claim(dbc dbctx.Context, item types.OverdueItem, key string, runID string) (ok bool, err error)
	// Release drops an unfinished claim so a later pass can retry the item.
	Release(dbc dbctx.Context, key string) error
	Complete(dbc dbctx.Context, key string, outcome string) error
	GetClaim(dbc dbctx.Context, key string) (*types.EnforcementClaim, error)

	Append(dbc dbctx.Context, records ...*types.ConsequenceRecord) error
	ListByItem(dbc dbctx.Context, kind types.FailureType, itemID uuid.UUID) ([]*types.ConsequenceRecord, error)
	ListByKey(dbc dbctx.Context, key string) ([]*types.ConsequenceRecord, error)
}

type ledgerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLedgerRepo(db *gorm.DB, baseLog *logger.Logger) LedgerRepo {
	return &ledgerRepo{
		db:  db,
		log: baseLog.With("repo", "LedgerRepo"),
	}
}

func (r *ledgerRepo) Claim(dbc dbctx.Context, item types.OverdueItem, key string, runID string) (bool, error) {
	claim := &types.EnforcementClaim{
		IdempotencyKey: key,
		ItemKind:       item.FailureType,
		ItemID:         item.ItemID,
		UserID:         item.UserID,
		Deadline:       item.Deadline.UTC(),
		RunID:          runID,
		ClaimedAt:      time.Now().UTC(),
	}
	res := dbc.Handle(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "idempotency_key"}}, DoNothing: true}).
		Create(claim)
	if res.Error != nil {
		return false, db.MapError("ledger claim", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *ledgerRepo) Release(dbc dbctx.Context, key string) error {
	// A completed claim is permanent.
	err := dbc.Handle(r.db).
		Where("idempotency_key = ? AND completed_at IS NULL", key).
		Delete(&types.EnforcementClaim{}).Error
	return db.MapError("ledger release", err)
}

func (r *ledgerRepo) Complete(dbc dbctx.Context, key string, outcome string) error {
	now := time.Now().UTC()
	res := dbc.Handle(r.db).
		Model(&types.EnforcementClaim{}).
		Where("idempotency_key = ? AND completed_at IS NULL", key).
		Updates(map[string]interface{}{
			"completed_at": now,
			"outcome":      outcome,
		})
	if res.Error != nil {
		return db.MapError("ledger complete", res.Error)
	}
	if res.RowsAffected == 0 {
		r.log.Warn("Claim already completed or missing", "idempotency_key", key)
	}
	return nil
}

func (r *ledgerRepo) GetClaim(dbc dbctx.Context, key string) (*types.EnforcementClaim, error) {
	var claim types.EnforcementClaim
	if err := dbc.Handle(r.db).Where("idempotency_key = ?", key).First(&claim).Error; err != nil {
		return nil, db.MapError("ledger get claim", err)
	}
	return &claim, nil
}

func (r *ledgerRepo) Append(dbc dbctx.Context, records ...*types.ConsequenceRecord) error {
	if len(records) == 0 {
		return nil
	}
	return db.MapError("ledger append", dbc.Handle(r.db).Create(&records).Error)
}

func (r *ledgerRepo) ListByItem(dbc dbctx.Context, kind types.FailureType, itemID uuid.UUID) ([]*types.ConsequenceRecord, error) {
	var out []*types.ConsequenceRecord
	err := dbc.Handle(r.db).
		Where("item_kind = ? AND item_id = ?", kind, itemID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, db.MapError("ledger list by item", err)
	}
	return out, nil
}

func (r *ledgerRepo) ListByKey(dbc dbctx.Context, key string) ([]*types.ConsequenceRecord, error) {
	var out []*types.ConsequenceRecord
	err := dbc.Handle(r.db).
		Where("idempotency_key = ?", key).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, db.MapError("ledger list by key", err)
	}
	return out, nil
}
