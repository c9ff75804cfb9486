package goal

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CheckpointStatus string

const (
	CheckpointPending   CheckpointStatus = "pending"
	CheckpointCompleted CheckpointStatus = "completed"
	CheckpointFailed    CheckpointStatus = "failed"
	CheckpointOverdue   CheckpointStatus = "overdue"
)

// Checkpoint is an intermediate milestone of a goal. Rubric is free text written by
// the user and graded against submitted proof.
type Checkpoint struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	GoalID      uuid.UUID        `gorm:"type:uuid;not null;index" json:"goal_id"`
	Goal        *Goal            `gorm:"foreignKey:GoalID;references:ID" json:"goal,omitempty"`
	Title       string           `gorm:"not null;column:title" json:"title"`
	Rubric      string           `gorm:"column:rubric;type:text" json:"rubric"`
	Deadline    time.Time        `gorm:"not null;column:deadline;index" json:"deadline"`
	Status      CheckpointStatus `gorm:"not null;column:status;index" json:"status"`
	CompletedAt *time.Time       `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt   `gorm:"index" json:"deleted_at,omitempty"`
}

func (Checkpoint) TableName() string { return "checkpoint" }

func (c *Checkpoint) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CheckpointPending
	}
	return nil
}
