package accounts

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/forfeit-backend/internal/data/db"
	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/platform/dbctx"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
)

type UserRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error)
	// DebitBalance subtracts amount only if the balance covers it. ok=false means
	// the balance was insufficient (or the user is gone) and nothing changed.
	DebitBalance(dbc dbctx.Context, id uuid.UUID, amountCents int64) (ok bool, err error)
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error) {
	var u types.User
	if err := dbc.Handle(r.db).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, db.MapError("get user", err)
	}
	return &u, nil
}

func (r *userRepo) DebitBalance(dbc dbctx.Context, id uuid.UUID, amountCents int64) (bool, error) {
	if amountCents <= 0 {
		return false, nil
	}
	res := dbc.Handle(r.db).Model(&types.User{}).
		Where("id = ? AND balance_cents >= ?", id, amountCents).
		Updates(map[string]interface{}{
			"balance_cents": gorm.Expr("balance_cents - ?", amountCents),
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return false, db.MapError("debit balance", res.Error)
	}
	return res.RowsAffected == 1, nil
}
