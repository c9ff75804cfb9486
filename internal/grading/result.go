package grading

import (
	"math"

	"github.com/yungbote/forfeit-backend/internal/domain/submission"
)

type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
)

// Result is one tier's ruling. Inconclusive results carry no verdict.
type Result struct {
	Verdict       Verdict
	Confidence    float64
	Reasoning     string
	WordCount     *int
	URLAccessible *bool
	// Tier is the grader that produced the verdict.
	Tier         string
	Inconclusive bool
}

func (r Result) Status() submission.Status {
	if r.Verdict == VerdictPass {
		return submission.StatusPassed
	}
	return submission.StatusFailed
}

// ClampConfidence forces any score into [0,1]. NaN counts as no confidence.
func ClampConfidence(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
