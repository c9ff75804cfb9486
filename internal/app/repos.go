package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/forfeit-backend/internal/data/repos/accounts"
	"github.com/yungbote/forfeit-backend/internal/data/repos/deadlines"
	"github.com/yungbote/forfeit-backend/internal/data/repos/ledger"
	"github.com/yungbote/forfeit-backend/internal/data/repos/notifications"
	"github.com/yungbote/forfeit-backend/internal/data/repos/submissions"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
)

type Repos struct {
	User          accounts.UserRepo
	Contact       accounts.ContactRepo
	Kompromat     accounts.KompromatRepo
	SocialAccount accounts.SocialAccountRepo
	Preference    accounts.PreferenceRepo

	Deadline        deadlines.DeadlineRepo
	Ledger          ledger.LedgerRepo
	Submission      submissions.SubmissionRepo
	NotificationLog notifications.NotificationLogRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:          accounts.NewUserRepo(db, log),
		Contact:       accounts.NewContactRepo(db, log),
		Kompromat:     accounts.NewKompromatRepo(db, log),
		SocialAccount: accounts.NewSocialAccountRepo(db, log),
		Preference:    accounts.NewPreferenceRepo(db, log),

		Deadline:        deadlines.NewDeadlineRepo(db, log),
		Ledger:          ledger.NewLedgerRepo(db, log),
		Submission:      submissions.NewSubmissionRepo(db, log),
		NotificationLog: notifications.NewNotificationLogRepo(db, log),
	}
}
