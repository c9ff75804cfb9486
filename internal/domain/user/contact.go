package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Contact is someone in the user's circle. Only contacts flagged as consequence
// targets can receive humiliation email.
type Contact struct {
	ID                  uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID              uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Name                string         `gorm:"column:name" json:"name"`
	Email               string         `gorm:"not null;column:email" json:"email"`
	IsConsequenceTarget bool           `gorm:"not null;column:is_consequence_target;index" json:"is_consequence_target"`
	CreatedAt           time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Contact) TableName() string { return "contact" }

func (c *Contact) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
