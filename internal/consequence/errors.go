package consequence

import (
	"errors"
	"fmt"

	types "github.com/yungbote/forfeit-backend/internal/domain"
)

const (
	FailurePrecondition = "precondition"
	FailureProvider     = "provider"
	FailureInternal     = "internal"
)

// PreconditionError means the channel refused to act before touching any rail.
type PreconditionError struct {
	Channel types.ConsequenceType
	Reason  string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s precondition failed: %s", e.Channel, e.Reason)
}

func precondition(ch types.ConsequenceType, format string, args ...any) error {
	return &PreconditionError{Channel: ch, Reason: fmt.Sprintf(format, args...)}
}

func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

var errPanic = errors.New("channel panicked")

func failureClass(err error) string {
	switch {
	case IsPrecondition(err):
		return FailurePrecondition
	case errors.Is(err, errPanic):
		return FailureInternal
	default:
		return FailureProvider
	}
}
