package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SocialProviderX = "x"
	// ScopePostWrite is the OAuth scope needed to publish on the user's behalf.
	ScopePostWrite = "tweet.write"
)

type SocialAccount struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_social_account_user_provider,priority:1" json:"user_id"`
	Provider     string         `gorm:"not null;column:provider;uniqueIndex:idx_social_account_user_provider,priority:2" json:"provider"`
	Handle       string         `gorm:"column:handle" json:"handle"`
	AccessToken  string         `gorm:"not null;column:access_token" json:"-"`
	RefreshToken string         `gorm:"column:refresh_token" json:"-"`
	Scopes       string         `gorm:"column:scopes" json:"scopes"`
	ExpiresAt    *time.Time     `gorm:"column:expires_at" json:"expires_at,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (SocialAccount) TableName() string { return "social_account" }

func (a *SocialAccount) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// HasScope checks the space-separated scope list granted at connect time.
func (a *SocialAccount) HasScope(scope string) bool {
	if a == nil {
		return false
	}
	for _, s := range strings.Fields(a.Scopes) {
		if s == scope {
			return true
		}
	}
	return false
}
