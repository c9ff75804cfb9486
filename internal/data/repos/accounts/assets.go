package accounts

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/forfeit-backend/internal/data/db"
	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/platform/dbctx"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
)

type KompromatRepo interface {
	// GetForUser only returns the asset when owned by userID with the given severity.
	GetForUser(dbc dbctx.Context, userID, assetID uuid.UUID, severity types.Severity) (*types.KompromatAsset, error)
}

type kompromatRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewKompromatRepo(db *gorm.DB, baseLog *logger.Logger) KompromatRepo {
	return &kompromatRepo{db: db, log: baseLog.With("repo", "KompromatRepo")}
}

func (r *kompromatRepo) GetForUser(dbc dbctx.Context, userID, assetID uuid.UUID, severity types.Severity) (*types.KompromatAsset, error) {
	var a types.KompromatAsset
	err := dbc.Handle(r.db).
		Where("id = ? AND user_id = ? AND severity = ?", assetID, userID, severity).
		First(&a).Error
	if err != nil {
		return nil, db.MapError("get kompromat asset", err)
	}
	return &a, nil
}

type ContactRepo interface {
	ListConsequenceTargets(dbc dbctx.Context, userID uuid.UUID) ([]*types.Contact, error)
}

type contactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContactRepo(db *gorm.DB, baseLog *logger.Logger) ContactRepo {
	return &contactRepo{db: db, log: baseLog.With("repo", "ContactRepo")}
}

func (r *contactRepo) ListConsequenceTargets(dbc dbctx.Context, userID uuid.UUID) ([]*types.Contact, error) {
	var out []*types.Contact
	err := dbc.Handle(r.db).
		Where("user_id = ? AND is_consequence_target = ? AND email <> ''", userID, true).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, db.MapError("list consequence targets", err)
	}
	return out, nil
}
