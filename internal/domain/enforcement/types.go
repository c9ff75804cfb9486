package enforcement

import (
	"time"

	"github.com/google/uuid"
)

type FailureType string

const (
	FailureCheckpoint    FailureType = "checkpoint"
	FailureFinalDeadline FailureType = "final_deadline"
)

func (f FailureType) Valid() bool {
	return f == FailureCheckpoint || f == FailureFinalDeadline
}

type ConsequenceType string

const (
	ConsequenceMonetary          ConsequenceType = "monetary"
	ConsequenceHumiliationEmail  ConsequenceType = "humiliation_email"
	ConsequenceHumiliationSocial ConsequenceType = "humiliation_social"
	// ConsequenceNone marks the single record written for a spared roll.
	ConsequenceNone ConsequenceType = "none"
)

func ParseConsequenceType(s string) (ConsequenceType, bool) {
	switch ConsequenceType(s) {
	case ConsequenceMonetary, ConsequenceHumiliationEmail, ConsequenceHumiliationSocial:
		return ConsequenceType(s), true
	}
	return "", false
}

type ExecutionStatus string

const (
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
	StatusSpared    ExecutionStatus = "spared"
)

// OverdueItem is a read-only snapshot of a lapsed checkpoint or goal, with
// everything the executor needs to act on it.
type OverdueItem struct {
	FailureType      FailureType
	ItemID           uuid.UUID
	GoalID           uuid.UUID
	UserID           uuid.UUID
	Title            string
	GoalTitle        string
	ConsequenceTypes []ConsequenceType
	StakeCents       int64
	CharityID        string
	MinorAssetID     *uuid.UUID
	MajorAssetID     *uuid.UUID
	Deadline         time.Time
}

// AssetID picks the shame asset matching the item's severity tier.
func (it OverdueItem) AssetID() *uuid.UUID {
	if it.FailureType == FailureFinalDeadline {
		return it.MajorAssetID
	}
	return it.MinorAssetID
}

// IdempotencyKey identifies one enforcement of one deadline. A moved deadline is a
// new obligation and therefore a new key.
func (it OverdueItem) IdempotencyKey() string {
	return string(it.FailureType) + ":" + it.ItemID.String() + ":" + it.Deadline.UTC().Format(time.RFC3339)
}
