package user

import (
	"time"

	"github.com/google/uuid"
)

// NotificationPreference is optional; a user without a row receives everything.
type NotificationPreference struct {
	UserID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	DeadlineReminders  bool      `gorm:"not null;column:deadline_reminders" json:"deadline_reminders"`
	SubmissionResults  bool      `gorm:"not null;column:submission_results" json:"submission_results"`
	ConsequenceNotices bool      `gorm:"not null;column:consequence_notices" json:"consequence_notices"`
	UpdatedAt          time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (NotificationPreference) TableName() string { return "notification_preference" }

func DefaultNotificationPreference(userID uuid.UUID) NotificationPreference {
	return NotificationPreference{
		UserID:             userID,
		DeadlineReminders:  true,
		SubmissionResults:  true,
		ConsequenceNotices: true,
	}
}
