package notifications

import (
	"gorm.io/gorm"

	"github.com/yungbote/forfeit-backend/internal/data/db"
	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/domain/notification"
	"github.com/yungbote/forfeit-backend/internal/platform/dbctx"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
)

type NotificationLogRepo interface {
	Create(dbc dbctx.Context, entry *types.NotificationLog) error
	// SentWithDedupeKey reports whether a successful send with key exists.
	SentWithDedupeKey(dbc dbctx.Context, key string) (bool, error)
}

type notificationLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNotificationLogRepo(db *gorm.DB, baseLog *logger.Logger) NotificationLogRepo {
	return &notificationLogRepo{db: db, log: baseLog.With("repo", "NotificationLogRepo")}
}

func (r *notificationLogRepo) Create(dbc dbctx.Context, entry *types.NotificationLog) error {
	return db.MapError("create notification log", dbc.Handle(r.db).Create(entry).Error)
}

func (r *notificationLogRepo) SentWithDedupeKey(dbc dbctx.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	var n int64
	err := dbc.Handle(r.db).Model(&types.NotificationLog{}).
		Where("dedupe_key = ? AND status = ?", key, notification.StatusSent).
		Count(&n).Error
	if err != nil {
		return false, db.MapError("count notification log", err)
	}
	return n > 0, nil
}
