package grading

import (
	"fmt"
	"strconv"

	"github.com/yungbote/forfeit-backend/internal/domain/submission"
)

// Check applies the deterministic rules in a fixed order. The first rule that
// decides wins; if none does the result is inconclusive.
func Check(req Requirements, s *Signals) Result {
	wc := s.WordCount
	res := Result{Tier: submission.GradedByDeterministic, Confidence: 1, URLAccessible: s.URLAccessible}
	if s.URL == "" {
		res.WordCount = &wc
	}

	if req.MinWords != nil && s.WordCount < *req.MinWords {
		res.Verdict = VerdictFail
		res.Reasoning = fmt.Sprintf("Submission has %d words; the rubric requires at least %d.", s.WordCount, *req.MinWords)
		return res
	}
	if req.MinNumber != nil {
		for _, n := range s.Numbers {
			if n >= *req.MinNumber {
				res.Verdict = VerdictPass
				res.Reasoning = fmt.Sprintf("Found %s, which meets the minimum of %s.", fmtNum(n), fmtNum(*req.MinNumber))
				return res
			}
		}
	}
	if s.URL != "" && s.URLAccessible != nil && !*s.URLAccessible {
		res.Verdict = VerdictFail
		res.Reasoning = fmt.Sprintf("The submitted URL %s could not be reached.", s.URL)
		return res
	}
	if req.RequiresGitHub {
		switch {
		case s.Repo == nil:
			res.Verdict = VerdictFail
			res.Reasoning = "The rubric requires GitHub activity but the submission is not a GitHub repository URL."
			return res
		case s.CommitCount != nil && *s.CommitCount >= req.MinCommits:
			res.Verdict = VerdictPass
			res.Reasoning = fmt.Sprintf("Found %d commits in %s over the last 30 days; at least %d required.", *s.CommitCount, s.Repo, req.MinCommits)
			return res
		case s.CommitCount != nil:
			res.Verdict = VerdictFail
			res.Reasoning = fmt.Sprintf("Found %d commits in %s over the last 30 days; at least %d required.", *s.CommitCount, s.Repo, req.MinCommits)
			return res
		}
		// Lookup failed; leave it to the next tier.
	}
	if req.MinWords != nil && s.WordCount >= *req.MinWords {
		res.Verdict = VerdictPass
		res.Reasoning = fmt.Sprintf("Submission has %d words, meeting the minimum of %d.", s.WordCount, *req.MinWords)
		return res
	}

	return Result{
		Tier:          submission.GradedByDeterministic,
		Inconclusive:  true,
		WordCount:     res.WordCount,
		URLAccessible: s.URLAccessible,
	}
}

func fmtNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
