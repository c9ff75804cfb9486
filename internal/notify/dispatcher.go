// Package notify sends user-facing email about consequences, grading results
// and upcoming deadlines. Sending is best effort: failures are logged, recorded
// and swallowed.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/forfeit-backend/internal/consequence"
	"github.com/yungbote/forfeit-backend/internal/data/repos/accounts"
	"github.com/yungbote/forfeit-backend/internal/data/repos/deadlines"
	"github.com/yungbote/forfeit-backend/internal/data/repos/notifications"
	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/domain/notification"
	"github.com/yungbote/forfeit-backend/internal/platform/dbctx"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
	"github.com/yungbote/forfeit-backend/internal/platform/observability"
	"github.com/yungbote/forfeit-backend/internal/platform/sendgrid"
)

type Result string

const (
	ResultSent      Result = "sent"
	ResultOptedOut  Result = "opted_out"
	ResultDuplicate Result = "duplicate"
	ResultFailed    Result = "failed"
)

type Urgency string

const (
	UrgencyDay  Urgency = "day"
	UrgencyHour Urgency = "hour"
)

// Notice is one email to one user.
type Notice struct {
	UserID       uuid.UUID
	Category     types.NotificationCategory
	Template     string
	Data         Data
	GoalID       *uuid.UUID
	CheckpointID *uuid.UUID
	// DedupeKey suppresses a second successful send of the same notice.
	DedupeKey string
}

// Data is the template model. Name is filled in by the dispatcher.
type Data struct {
	Name       string
	Goal       string
	Item       string
	Deadline   string
	Remaining  string
	Feedback   string
	Channels   []string
	Incomplete bool
}

type Dispatcher interface {
	Dispatch(ctx context.Context, n Notice) Result
	ConsequenceNotice(ctx context.Context, item types.OverdueItem, key string, triggered bool, records []*types.ConsequenceRecord) Result
	SubmissionResult(ctx context.Context, sub *types.Submission, cp *types.Checkpoint) Result
	DeadlineReminder(ctx context.Context, up deadlines.Upcoming, urgency Urgency, now time.Time) Result
}

type dispatcher struct {
	log     *logger.Logger
	prefs   accounts.PreferenceRepo
	users   accounts.UserRepo
	logs    notifications.NotificationLogRepo
	mail    sendgrid.Client
	metrics *observability.Metrics
	catalog catalog
}

func NewDispatcher(
	log *logger.Logger,
	prefs accounts.PreferenceRepo,
	users accounts.UserRepo,
	logs notifications.NotificationLogRepo,
	mail sendgrid.Client,
	metrics *observability.Metrics,
) (Dispatcher, error) {
	c, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	return &dispatcher{
		log:     log.With("service", "NotificationDispatcher"),
		prefs:   prefs,
		users:   users,
		logs:    logs,
		mail:    mail,
		metrics: metrics,
		catalog: c,
	}, nil
}

func (d *dispatcher) Dispatch(ctx context.Context, n Notice) (res Result) {
	dbc := dbctx.Context{Ctx: ctx}
	defer func() {
		d.metrics.IncNotification(string(n.Category), string(res))
	}()

	allowed, err := d.prefs.ShouldNotify(dbc, n.UserID, n.Category)
	if err != nil {
		d.log.Warn("Preference lookup failed; not sending", "user_id", n.UserID, "category", n.Category, "error", err)
		return ResultFailed
	}
	if !allowed {
		return ResultOptedOut
	}
	if n.DedupeKey != "" {
		sent, err := d.logs.SentWithDedupeKey(dbc, n.DedupeKey)
		if err != nil {
			d.log.Warn("Dedupe lookup failed", "dedupe_key", n.DedupeKey, "error", err)
		} else if sent {
			return ResultDuplicate
		}
	}

	entry := &types.NotificationLog{
		UserID:       n.UserID,
		Category:     n.Category,
		Template:     n.Template,
		GoalID:       n.GoalID,
		CheckpointID: n.CheckpointID,
		DedupeKey:    n.DedupeKey,
	}

	u, err := d.users.GetByID(dbc, n.UserID)
	if err != nil {
		return d.fail(dbc, entry, fmt.Errorf("load user: %w", err))
	}
	entry.Recipient = u.Email
	n.Data.Name = u.DisplayName()

	msg, err := d.catalog.render(n.Template, n.Data)
	if err != nil {
		return d.fail(dbc, entry, err)
	}
	entry.Subject = msg.Subject

	out, err := d.mail.Send(ctx, sendgrid.SendEmailRequest{
		To:         []sendgrid.EmailAddress{{Email: u.Email, Name: u.DisplayName()}},
		Subject:    msg.Subject,
		Text:       msg.Text,
		HTML:       msg.HTML,
		Categories: []string{string(n.Category), n.Template},
	})
	if err != nil {
		return d.fail(dbc, entry, err)
	}
	entry.Status = notification.StatusSent
	entry.ProviderMessageID = out.MessageID
	d.write(dbc, entry)
	return ResultSent
}

func (d *dispatcher) fail(dbc dbctx.Context, entry *types.NotificationLog, err error) Result {
	d.log.Warn("Notification not delivered", "template", entry.Template, "user_id", entry.UserID, "error", err)
	entry.Status = notification.StatusFailed
	entry.Error = err.Error()
	d.write(dbc, entry)
	return ResultFailed
}

func (d *dispatcher) write(dbc dbctx.Context, entry *types.NotificationLog) {
	if err := d.logs.Create(dbc, entry); err != nil {
		d.log.Warn("Notification log write failed", "template", entry.Template, "user_id", entry.UserID, "error", err)
	}
}

func (d *dispatcher) ConsequenceNotice(ctx context.Context, item types.OverdueItem, key string, triggered bool, records []*types.ConsequenceRecord) Result {
	n := Notice{
		UserID:    item.UserID,
		Category:  types.CategoryConsequenceNotices,
		Template:  TemplateConsequenceSpared,
		Data:      itemData(item.Title, item.GoalTitle, item.Deadline),
		GoalID:    &item.GoalID,
		DedupeKey: "consequence:" + key,
	}
	if item.FailureType == types.FailureCheckpoint {
		n.CheckpointID = &item.ItemID
	}
	if triggered {
		n.Template = TemplateConsequenceExecuted
		for _, rec := range records {
			if s, ok := consequence.Summary(rec); ok {
				n.Data.Channels = append(n.Data.Channels, s)
			} else {
				n.Data.Incomplete = true
			}
		}
	}
	return d.Dispatch(ctx, n)
}

func (d *dispatcher) SubmissionResult(ctx context.Context, sub *types.Submission, cp *types.Checkpoint) Result {
	tmpl := TemplateSubmissionFailed
	if sub.Status == types.SubmissionPassed {
		tmpl = TemplateSubmissionPassed
	}
	goalTitle := ""
	if cp.Goal != nil {
		goalTitle = cp.Goal.Title
	}
	data := itemData(cp.Title, goalTitle, cp.Deadline)
	data.Feedback = sub.Feedback
	return d.Dispatch(ctx, Notice{
		UserID:       sub.UserID,
		Category:     types.CategorySubmissionResults,
		Template:     tmpl,
		Data:         data,
		GoalID:       &cp.GoalID,
		CheckpointID: &cp.ID,
		DedupeKey:    fmt.Sprintf("submission:%s:%s", sub.ID, sub.Status),
	})
}

func (d *dispatcher) DeadlineReminder(ctx context.Context, up deadlines.Upcoming, urgency Urgency, now time.Time) Result {
	tmpl := TemplateReminderDay
	if urgency == UrgencyHour {
		tmpl = TemplateReminderHour
	}
	data := itemData(up.Title, up.GoalTitle, up.Deadline)
	data.Remaining = humanize(up.Deadline.Sub(now))
	n := Notice{
		UserID:    up.UserID,
		Category:  types.CategoryDeadlineReminders,
		Template:  tmpl,
		Data:      data,
		GoalID:    &up.GoalID,
		DedupeKey: ReminderKey(up, urgency),
	}
	if up.Kind == types.FailureCheckpoint {
		n.CheckpointID = &up.ItemID
	}
	return d.Dispatch(ctx, n)
}

// ReminderKey is stable per item, deadline and tier, so each tier is sent once.
func ReminderKey(up deadlines.Upcoming, urgency Urgency) string {
	return fmt.Sprintf("reminder:%s:%s:%s:%s", up.Kind, up.ItemID, up.Deadline.UTC().Format(time.RFC3339), urgency)
}

// UrgencyFor returns the reminder tier for a deadline. It reports false when the
// deadline has passed or is more than a day away.
func UrgencyFor(deadline, now time.Time) (Urgency, bool) {
	left := deadline.Sub(now)
	switch {
	case left <= 0:
		return "", false
	case left <= time.Hour:
		return UrgencyHour, true
	case left <= 24*time.Hour:
		return UrgencyDay, true
	}
	return "", false
}

func itemData(item, goal string, deadline time.Time) Data {
	if item == "" {
		item = goal
	}
	return Data{Item: item, Goal: goal, Deadline: deadline.UTC().Format("Mon Jan 2, 15:04 MST")}
}

func humanize(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "less than a minute"
	case d < time.Hour:
		m := int(d.Round(time.Minute) / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	default:
		h := int(d.Round(time.Hour) / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
}
