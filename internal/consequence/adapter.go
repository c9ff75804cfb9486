package consequence

import (
	"context"

	types "github.com/yungbote/forfeit-backend/internal/domain"
)

// Request is what a channel needs to act on one lapsed item.
type Request struct {
	Item           types.OverdueItem
	IdempotencyKey string
}

// Adapter executes one consequence channel. It returns the details gathered so
// far even when it fails, so the record shows how far the attempt got.
type Adapter interface {
	Type() types.ConsequenceType
	Execute(ctx context.Context, req Request) (*Details, error)
}

func severityFor(ft types.FailureType) types.Severity {
	if ft == types.FailureFinalDeadline {
		return types.SeverityMajor
	}
	return types.SeverityMinor
}
