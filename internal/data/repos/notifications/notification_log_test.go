package notifications

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/forfeit-backend/internal/data/repos/testutil"
	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/domain/notification"
	"github.com/yungbote/forfeit-backend/internal/platform/dbctx"
)

func TestSentWithDedupeKeyIgnoresFailures(t *testing.T) {
	repo := NewNotificationLogRepo(testutil.DB(t), testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}
	uid := uuid.New()

	failed := &types.NotificationLog{UserID: uid, Category: types.CategoryDeadlineReminders, Template: "deadline_reminder",
		Recipient: "a@example.com", Status: notification.StatusFailed, Error: "503", DedupeKey: "reminder:x:day"}
	if err := repo.Create(dbc, failed); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sent, _ := repo.SentWithDedupeKey(dbc, "reminder:x:day"); sent {
		t.Fatalf("failed attempt must not count as sent")
	}

	ok := *failed
	ok.ID = uuid.Nil
	ok.Status = notification.StatusSent
	ok.Error = ""
	if err := repo.Create(dbc, &ok); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sent, err := repo.SentWithDedupeKey(dbc, "reminder:x:day"); err != nil || !sent {
		t.Fatalf("SentWithDedupeKey: sent=%v err=%v", sent, err)
	}
	if sent, _ := repo.SentWithDedupeKey(dbc, ""); sent {
		t.Fatalf("empty key never matches")
	}
}
