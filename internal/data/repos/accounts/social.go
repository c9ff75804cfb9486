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

type SocialAccountRepo interface {
	GetByUserProvider(dbc dbctx.Context, userID uuid.UUID, provider string) (*types.SocialAccount, error)
	// UpdateTokens persists a refreshed token pair. An empty refresh token keeps the old one.
	UpdateTokens(dbc dbctx.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt *time.Time) error
}

type socialAccountRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSocialAccountRepo(db *gorm.DB, baseLog *logger.Logger) SocialAccountRepo {
	return &socialAccountRepo{db: db, log: baseLog.With("repo", "SocialAccountRepo")}
}

func (r *socialAccountRepo) GetByUserProvider(dbc dbctx.Context, userID uuid.UUID, provider string) (*types.SocialAccount, error) {
	var a types.SocialAccount
	err := dbc.Handle(r.db).
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&a).Error
	if err != nil {
		return nil, db.MapError("get social account", err)
	}
	return &a, nil
}

func (r *socialAccountRepo) UpdateTokens(dbc dbctx.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt *time.Time) error {
	updates := map[string]interface{}{
		"access_token": accessToken,
		"expires_at":   expiresAt,
		"updated_at":   time.Now().UTC(),
	}
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}
	err := dbc.Handle(r.db).Model(&types.SocialAccount{}).Where("id = ?", id).Updates(updates).Error
	return db.MapError("update social tokens", err)
}
