package notification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Category string

const (
	CategoryDeadlineReminders  Category = "deadline_reminders"
	CategorySubmissionResults  Category = "submission_results"
	CategoryConsequenceNotices Category = "consequence_notices"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// NotificationLog records every outbound email attempt, successful or not.
type NotificationLog struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Category          Category   `gorm:"not null;column:category;index" json:"category"`
	Template          string     `gorm:"not null;column:template" json:"template"`
	Recipient         string     `gorm:"not null;column:recipient" json:"-"`
	Subject           string     `gorm:"column:subject" json:"subject"`
	Status            string     `gorm:"not null;column:status" json:"status"`
	ProviderMessageID string     `gorm:"column:provider_message_id" json:"provider_message_id,omitempty"`
	Error             string     `gorm:"column:error;type:text" json:"error,omitempty"`
	GoalID            *uuid.UUID `gorm:"type:uuid;column:goal_id;index" json:"goal_id,omitempty"`
	CheckpointID      *uuid.UUID `gorm:"type:uuid;column:checkpoint_id;index" json:"checkpoint_id,omitempty"`
	// DedupeKey lets callers ask "was this exact notice already sent".
	DedupeKey string    `gorm:"column:dedupe_key;index" json:"dedupe_key,omitempty"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (NotificationLog) TableName() string { return "notification_log" }

func (l *NotificationLog) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
