package accounts

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/forfeit-backend/internal/data/db"
	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/domain/user"
	"github.com/yungbote/forfeit-backend/internal/platform/dbctx"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
)

type PreferenceRepo interface {
	// Get returns the stored preferences, or all-on defaults when none exist.
	Get(dbc dbctx.Context, userID uuid.UUID) (*types.NotificationPreference, error)
	Upsert(dbc dbctx.Context, pref *types.NotificationPreference) error
	ShouldNotify(dbc dbctx.Context, userID uuid.UUID, category types.NotificationCategory) (bool, error)
}

type preferenceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPreferenceRepo(db *gorm.DB, baseLog *logger.Logger) PreferenceRepo {
	return &preferenceRepo{db: db, log: baseLog.With("repo", "PreferenceRepo")}
}

func (r *preferenceRepo) Get(dbc dbctx.Context, userID uuid.UUID) (*types.NotificationPreference, error) {
	var p types.NotificationPreference
	err := dbc.Handle(r.db).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		def := user.DefaultNotificationPreference(userID)
		return &def, nil
	}
	if err != nil {
		return nil, db.MapError("get notification preference", err)
	}
	return &p, nil
}

func (r *preferenceRepo) Upsert(dbc dbctx.Context, pref *types.NotificationPreference) error {
	err := dbc.Handle(r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"deadline_reminders", "submission_results", "consequence_notices", "updated_at"}),
	}).Create(pref).Error
	return db.MapError("upsert notification preference", err)
}

func (r *preferenceRepo) ShouldNotify(dbc dbctx.Context, userID uuid.UUID, category types.NotificationCategory) (bool, error) {
	p, err := r.Get(dbc, userID)
	if err != nil {
		return false, err
	}
	switch category {
	case types.CategoryDeadlineReminders:
		return p.DeadlineReminders, nil
	case types.CategorySubmissionResults:
		return p.SubmissionResults, nil
	case types.CategoryConsequenceNotices:
		return p.ConsequenceNotices, nil
	default:
		return true, nil
	}
}
