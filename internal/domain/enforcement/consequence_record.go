package enforcement

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ConsequenceRecord is append-only: one row per attempted channel, or one spared row.
type ConsequenceRecord struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	IdempotencyKey string          `gorm:"not null;column:idempotency_key;index" json:"idempotency_key"`
	ItemKind       FailureType     `gorm:"not null;column:item_kind;index:idx_consequence_record_item,priority:1" json:"item_kind"`
	ItemID         uuid.UUID       `gorm:"type:uuid;not null;column:item_id;index:idx_consequence_record_item,priority:2" json:"item_id"`
	GoalID         uuid.UUID       `gorm:"type:uuid;not null;column:goal_id;index" json:"goal_id"`
	UserID         uuid.UUID       `gorm:"type:uuid;not null;column:user_id;index" json:"user_id"`
	Type           ConsequenceType `gorm:"not null;column:type" json:"type"`
	Triggered      bool            `gorm:"not null;column:triggered" json:"triggered"`
	TriggeredAt    time.Time       `gorm:"not null;column:triggered_at" json:"triggered_at"`
	// ExecutedAt is set only when the channel actually fired.
	ExecutedAt      *time.Time      `gorm:"column:executed_at" json:"executed_at,omitempty"`
	ExecutionStatus ExecutionStatus `gorm:"not null;column:execution_status;index" json:"execution_status"`
	Details         datatypes.JSON  `gorm:"column:details;type:jsonb" json:"details,omitempty"`
	CreatedAt       time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (ConsequenceRecord) TableName() string { return "consequence_record" }

func (r *ConsequenceRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r *ConsequenceRecord) BeforeUpdate(*gorm.DB) error {
	return ErrRecordImmutable
}
