package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/forfeit-backend/internal/domain"
)

// Models lists every table, in dependency order.
func Models() []any {
	return []any{
		&types.User{},
		&types.Contact{},
		&types.KompromatAsset{},
		&types.SocialAccount{},
		&types.NotificationPreference{},

		&types.Goal{},
		&types.Checkpoint{},

		&types.EnforcementClaim{},
		&types.ConsequenceRecord{},

		&types.Submission{},
		&types.NotificationLog{},
	}
}

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
