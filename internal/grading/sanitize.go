package grading

import (
	"regexp"
	"strings"

	"github.com/yungbote/forfeit-backend/internal/platform/render"
)

const (
	maxRubricRunes     = 1000
	maxSubmissionRunes = 6000
)

var (
	roleMarkerRe = regexp.MustCompile(`(?i)(system|assistant|user)\s*:`)
	overrideRe   = regexp.MustCompile(`(?i)ignore\s+(all\s+)?previous\s+instructions|forget\s+everything|you\s+are\s+now|new\s+role\s*:`)
	bracketRe    = regexp.MustCompile(`[{}\[\]]`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// SanitizeRubric strips prompt-injection vectors from user-authored rubric text.
// The result contains no role markers, override phrases or braces and is at most
// 1000 runes.
func SanitizeRubric(s string) string {
	return strings.TrimSpace(render.Truncate(stripInjection(s), maxRubricRunes))
}

func sanitizeSubmission(s string) string {
	return strings.TrimSpace(render.Truncate(stripInjection(s), maxSubmissionRunes))
}

// stripInjection repeats until nothing changes, since a removal can splice two
// fragments into a new marker ("sys{tem:").
func stripInjection(s string) string {
	for {
		next := roleMarkerRe.ReplaceAllString(s, "")
		next = overrideRe.ReplaceAllString(next, "")
		next = bracketRe.ReplaceAllString(next, "")
		next = strings.TrimSpace(spaceRe.ReplaceAllString(next, " "))
		if next == s {
			return s
		}
		s = next
	}
}
