package domain

import (
	"github.com/yungbote/forfeit-backend/internal/domain/enforcement"
	"github.com/yungbote/forfeit-backend/internal/domain/goal"
	"github.com/yungbote/forfeit-backend/internal/domain/notification"
	"github.com/yungbote/forfeit-backend/internal/domain/submission"
	"github.com/yungbote/forfeit-backend/internal/domain/user"
)

type (
	User                   = user.User
	Contact                = user.Contact
	KompromatAsset         = user.KompromatAsset
	SocialAccount          = user.SocialAccount
	NotificationPreference = user.NotificationPreference
	Severity               = user.Severity

	Goal             = goal.Goal
	GoalStatus       = goal.Status
	Checkpoint       = goal.Checkpoint
	CheckpointStatus = goal.CheckpointStatus

	OverdueItem       = enforcement.OverdueItem
	FailureType       = enforcement.FailureType
	ConsequenceType   = enforcement.ConsequenceType
	ExecutionStatus   = enforcement.ExecutionStatus
	ConsequenceRecord = enforcement.ConsequenceRecord
	EnforcementClaim  = enforcement.EnforcementClaim

	Submission       = submission.Submission
	SubmissionType   = submission.Type
	SubmissionStatus = submission.Status

	NotificationLog      = notification.NotificationLog
	NotificationCategory = notification.Category
)

const (
	SeverityMinor = user.SeverityMinor
	SeverityMajor = user.SeverityMajor

	GoalActive    = goal.StatusActive
	GoalCompleted = goal.StatusCompleted
	GoalFailed    = goal.StatusFailed
	GoalOverdue   = goal.StatusOverdue

	CheckpointPending   = goal.CheckpointPending
	CheckpointCompleted = goal.CheckpointCompleted
	CheckpointFailed    = goal.CheckpointFailed
	CheckpointOverdue   = goal.CheckpointOverdue

	FailureCheckpoint    = enforcement.FailureCheckpoint
	FailureFinalDeadline = enforcement.FailureFinalDeadline

	ConsequenceMonetary          = enforcement.ConsequenceMonetary
	ConsequenceHumiliationEmail  = enforcement.ConsequenceHumiliationEmail
	ConsequenceHumiliationSocial = enforcement.ConsequenceHumiliationSocial
	ConsequenceNone              = enforcement.ConsequenceNone

	ExecutionCompleted = enforcement.StatusCompleted
	ExecutionFailed    = enforcement.StatusFailed
	ExecutionSpared    = enforcement.StatusSpared

	SubmissionFileUpload      = submission.TypeFileUpload
	SubmissionExternalURL     = submission.TypeExternalURL
	SubmissionTextDescription = submission.TypeTextDescription

	SubmissionPending   = submission.StatusPending
	SubmissionGrading   = submission.StatusGrading
	SubmissionPassed    = submission.StatusPassed
	SubmissionFailed    = submission.StatusFailed
	SubmissionContested = submission.StatusContested

	CategoryDeadlineReminders  = notification.CategoryDeadlineReminders
	CategorySubmissionResults  = notification.CategorySubmissionResults
	CategoryConsequenceNotices = notification.CategoryConsequenceNotices
)

var ErrRecordImmutable = enforcement.ErrRecordImmutable

func ParseConsequenceType(s string) (ConsequenceType, bool) {
	return enforcement.ParseConsequenceType(s)
}
