package notify

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/forfeit-backend/internal/data/repos/accounts"
	"github.com/yungbote/forfeit-backend/internal/data/repos/deadlines"
	"github.com/yungbote/forfeit-backend/internal/data/repos/notifications"
	"github.com/yungbote/forfeit-backend/internal/data/repos/testutil"
	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/domain/notification"
	"github.com/yungbote/forfeit-backend/internal/platform/dbctx"
	"github.com/yungbote/forfeit-backend/internal/platform/observability"
	"github.com/yungbote/forfeit-backend/internal/platform/sendgrid"
)

type fakeMail struct {
	mu   sync.Mutex
	sent []sendgrid.SendEmailRequest
	err  error
}

func (f *fakeMail) Send(_ context.Context, req sendgrid.SendEmailRequest) (*sendgrid.SendEmailResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, req)
	return &sendgrid.SendEmailResult{StatusCode: 202, MessageID: "sg-1"}, nil
}

type fixture struct {
	db      *gorm.DB
	mail    *fakeMail
	prefs   accounts.PreferenceRepo
	metrics *observability.Metrics
	d       Dispatcher
	user    *types.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	f := &fixture{db: gdb, mail: &fakeMail{}, prefs: accounts.NewPreferenceRepo(gdb, log), metrics: observability.NewMetrics()}
	d, err := NewDispatcher(log, f.prefs, accounts.NewUserRepo(gdb, log), notifications.NewNotificationLogRepo(gdb, log), f.mail, f.metrics)
	require.NoError(t, err)
	f.d = d
	f.user = &types.User{Email: "ana@example.com", FirstName: "Ana", Currency: "usd"}
	require.NoError(t, gdb.Create(f.user).Error)
	return f
}

func (f *fixture) logs(t *testing.T) []types.NotificationLog {
	t.Helper()
	var out []types.NotificationLog
	require.NoError(t, f.db.Order("created_at ASC").Find(&out).Error)
	return out
}

func (f *fixture) item() types.OverdueItem {
	return types.OverdueItem{
		FailureType: types.FailureCheckpoint,
		ItemID:      uuid.New(),
		GoalID:      uuid.New(),
		UserID:      f.user.ID,
		Title:       "Outline",
		GoalTitle:   "Write a novel",
		Deadline:    time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSparedNoticeSendsMercyEmail(t *testing.T) {
	f := newFixture(t)
	it := f.item()
	spared := &types.ConsequenceRecord{Type: types.ConsequenceNone, ExecutionStatus: types.ExecutionSpared}

	res := f.d.ConsequenceNotice(context.Background(), it, it.IdempotencyKey(), false, []*types.ConsequenceRecord{spared})
	require.Equal(t, ResultSent, res)
	require.Len(t, f.mail.sent, 1)
	assert.Contains(t, f.mail.sent[0].Subject, "spared")
	assert.Equal(t, "ana@example.com", f.mail.sent[0].To[0].Email)

	logs := f.logs(t)
	require.Len(t, logs, 1)
	assert.Equal(t, TemplateConsequenceSpared, logs[0].Template)
	assert.Equal(t, notification.StatusSent, logs[0].Status)
	assert.Equal(t, "sg-1", logs[0].ProviderMessageID)
	require.NotNil(t, logs[0].CheckpointID)
	assert.Equal(t, it.ItemID, *logs[0].CheckpointID)

	// Same key again is suppressed.
	res = f.d.ConsequenceNotice(context.Background(), it, it.IdempotencyKey(), false, nil)
	assert.Equal(t, ResultDuplicate, res)
	assert.Len(t, f.mail.sent, 1)
}

func TestExecutedNoticeListsOnlyCompletedChannels(t *testing.T) {
	f := newFixture(t)
	it := f.item()
	now := time.Now()
	records := []*types.ConsequenceRecord{
		{Type: types.ConsequenceMonetary, ExecutionStatus: types.ExecutionCompleted, ExecutedAt: &now,
			Details: datatypes.JSON(`{"kind":"monetary","monetary":{"amount_cents":5000,"currency":"usd","charity_id":"givedirectly","transfer_id":"tr_1"}}`)},
		{Type: types.ConsequenceHumiliationSocial, ExecutionStatus: types.ExecutionFailed,
			Details: datatypes.JSON(`{"kind":"humiliation_social","failure":{"class":"provider","reason":"x http 503: upstream secret detail"}}`)},
	}

	res := f.d.ConsequenceNotice(context.Background(), it, it.IdempotencyKey(), true, records)
	require.Equal(t, ResultSent, res)
	msg := f.mail.sent[0]
	assert.Contains(t, msg.Text, "50.00 USD was transferred to givedirectly")
	assert.Contains(t, msg.Text, "could not be completed")
	assert.NotContains(t, msg.Text, "503")
	assert.NotContains(t, msg.HTML, "secret detail")
	assert.Contains(t, msg.HTML, "<li>")
}

func TestOptedOutUserGetsNothing(t *testing.T) {
	f := newFixture(t)
	pref := types.NotificationPreference{UserID: f.user.ID, DeadlineReminders: true, SubmissionResults: true, ConsequenceNotices: false}
	require.NoError(t, f.prefs.Upsert(dbctx.Context{Ctx: context.Background()}, &pref))
	it := f.item()

	res := f.d.ConsequenceNotice(context.Background(), it, it.IdempotencyKey(), true, nil)
	assert.Equal(t, ResultOptedOut, res)
	assert.Empty(t, f.mail.sent)
	assert.Empty(t, f.logs(t))
	var buf bytes.Buffer
	require.NoError(t, f.metrics.WritePrometheus(&buf))
	assert.Contains(t, buf.String(), `forfeit_notifications_total{category="consequence_notices",status="opted_out"} 1`)

	// Other categories are unaffected.
	up := deadlines.Upcoming{Kind: types.FailureCheckpoint, ItemID: it.ItemID, GoalID: it.GoalID, UserID: f.user.ID, Title: "Outline", GoalTitle: "Write a novel", Deadline: it.Deadline}
	assert.Equal(t, ResultSent, f.d.DeadlineReminder(context.Background(), up, UrgencyHour, it.Deadline.Add(-30*time.Minute)))
	assert.Contains(t, f.mail.sent[0].Text, "30 minutes")
}

func TestDeliveryFailureIsLoggedAndSwallowed(t *testing.T) {
	f := newFixture(t)
	f.mail.err = errors.New("sendgrid http 500: boom")
	it := f.item()

	res := f.d.ConsequenceNotice(context.Background(), it, it.IdempotencyKey(), false, nil)
	assert.Equal(t, ResultFailed, res)

	logs := f.logs(t)
	require.Len(t, logs, 1)
	assert.Equal(t, notification.StatusFailed, logs[0].Status)
	assert.Contains(t, logs[0].Error, "boom")
	assert.NotEmpty(t, logs[0].Subject)

	// A failed attempt does not block a later retry.
	f.mail.err = nil
	assert.Equal(t, ResultSent, f.d.ConsequenceNotice(context.Background(), it, it.IdempotencyKey(), false, nil))
}

func TestSubmissionResultTemplates(t *testing.T) {
	f := newFixture(t)
	g := &types.Goal{ID: uuid.New(), Title: "Write a novel"}
	cp := &types.Checkpoint{ID: uuid.New(), GoalID: g.ID, Goal: g, Title: "Chapter one", Deadline: time.Now().Add(48 * time.Hour)}

	cases := []struct {
		status  types.SubmissionStatus
		subject string
	}{
		{types.SubmissionPassed, "Proof accepted"},
		{types.SubmissionFailed, "Proof rejected"},
	}
	for i, tc := range cases {
		sub := &types.Submission{ID: uuid.New(), UserID: f.user.ID, CheckpointID: cp.ID, Status: tc.status, Feedback: "300 words, 500 required"}
		require.Equal(t, ResultSent, f.d.SubmissionResult(context.Background(), sub, cp))
		assert.Contains(t, f.mail.sent[i].Subject, tc.subject)
		assert.Contains(t, f.mail.sent[i].Text, "300 words, 500 required")
	}
}

func TestUrgencyFor(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		in     time.Duration
		want   Urgency
		wantOK bool
	}{
		{-time.Minute, "", false},
		{0, "", false},
		{30 * time.Minute, UrgencyHour, true},
		{time.Hour, UrgencyHour, true},
		{2 * time.Hour, UrgencyDay, true},
		{24 * time.Hour, UrgencyDay, true},
		{25 * time.Hour, "", false},
	}
	for _, tc := range cases {
		got, ok := UrgencyFor(now.Add(tc.in), now)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("UrgencyFor(+%s): want=%q,%v got=%q,%v", tc.in, tc.want, tc.wantOK, got, ok)
		}
	}
}

func TestCatalogRendersEveryTemplate(t *testing.T) {
	c, err := loadCatalog()
	require.NoError(t, err)
	for name := range c {
		msg, err := c.render(name, Data{Name: "Ana", Goal: "G", Item: "I", Deadline: "soon", Remaining: "1 hour", Feedback: "ok", Channels: []string{"x"}})
		require.NoError(t, err, name)
		assert.NotEmpty(t, msg.Subject, name)
		assert.NotEmpty(t, msg.HTML, name)
	}
}
