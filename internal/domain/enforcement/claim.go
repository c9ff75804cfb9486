package enforcement

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrRecordImmutable = errors.New("consequence records are append-only")

// EnforcementClaim reserves an idempotency key before any side effect happens.
type EnforcementClaim struct {
	IdempotencyKey string      `gorm:"primaryKey;column:idempotency_key" json:"idempotency_key"`
	ItemKind       FailureType `gorm:"not null;column:item_kind" json:"item_kind"`
	ItemID         uuid.UUID   `gorm:"type:uuid;not null;column:item_id;index" json:"item_id"`
	UserID         uuid.UUID   `gorm:"type:uuid;not null;column:user_id" json:"user_id"`
	Deadline       time.Time   `gorm:"not null;column:deadline" json:"deadline"`
	RunID          string      `gorm:"column:run_id" json:"run_id,omitempty"`
	ClaimedAt      time.Time   `gorm:"not null;column:claimed_at" json:"claimed_at"`
	CompletedAt    *time.Time  `gorm:"column:completed_at" json:"completed_at,omitempty"`
	Outcome        string      `gorm:"column:outcome" json:"outcome,omitempty"`
}

func (EnforcementClaim) TableName() string { return "enforcement_claim" }
