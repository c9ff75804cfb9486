package goal

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusOverdue   Status = "overdue"
)

// Goal is the accountability contract. ConsequenceTypes lists which consequences the
// user pre-authorized; stakes are minor currency units.
type Goal struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Title       string    `gorm:"not null;column:title" json:"title"`
	Description string    `gorm:"column:description;type:text" json:"description,omitempty"`
	Deadline    time.Time `gorm:"not null;column:deadline;index" json:"deadline"`
	Status      Status    `gorm:"not null;column:status;index" json:"status"`

	ConsequenceTypes     datatypes.JSON `gorm:"column:consequence_types;type:jsonb" json:"consequence_types"`
	StakeCents           int64          `gorm:"not null;column:stake_cents" json:"stake_cents"`
	CheckpointStakeCents int64          `gorm:"not null;column:checkpoint_stake_cents" json:"checkpoint_stake_cents"`
	CharityID            string         `gorm:"column:charity_id" json:"charity_id,omitempty"`
	MinorAssetID         *uuid.UUID     `gorm:"type:uuid;column:minor_asset_id" json:"minor_asset_id,omitempty"`
	MajorAssetID         *uuid.UUID     `gorm:"type:uuid;column:major_asset_id" json:"major_asset_id,omitempty"`

	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Goal) TableName() string { return "goal" }

func (g *Goal) BeforeCreate(*gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.Status == "" {
		g.Status = StatusActive
	}
	return nil
}

// ConsequenceTypeList decodes ConsequenceTypes. Malformed JSON yields an empty list.
func (g *Goal) ConsequenceTypeList() []string {
	if g == nil || len(g.ConsequenceTypes) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(g.ConsequenceTypes, &out); err != nil {
		return nil
	}
	return out
}

func (g *Goal) SetConsequenceTypes(types ...string) {
	b, _ := json.Marshal(types)
	g.ConsequenceTypes = datatypes.JSON(b)
}
