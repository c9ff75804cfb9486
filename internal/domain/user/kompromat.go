package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Severity string

const (
	// SeverityMinor assets back checkpoint consequences.
	SeverityMinor Severity = "minor"
	// SeverityMajor assets back final-deadline consequences.
	SeverityMajor Severity = "major"
)

// KompromatAsset is an opaque reference to an embarrassing file the user uploaded
// as collateral. The bytes live in object storage under StorageKey.
type KompromatAsset struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Severity    Severity       `gorm:"not null;column:severity;index" json:"severity"`
	StorageKey  string         `gorm:"not null;column:storage_key" json:"-"`
	Filename    string         `gorm:"column:filename" json:"filename"`
	MIMEType    string         `gorm:"column:mime_type" json:"mime_type"`
	Description string         `gorm:"column:description;type:text" json:"description,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (KompromatAsset) TableName() string { return "kompromat_asset" }

func (a *KompromatAsset) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *KompromatAsset) IsImage() bool {
	if a == nil {
		return false
	}
	switch a.MIMEType {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return true
	}
	return false
}
