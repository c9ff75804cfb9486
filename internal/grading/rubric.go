package grading

import (
	"regexp"
	"strconv"
	"strings"
)

// Requirements is what the rubric asks for, as far as patterns can tell.
type Requirements struct {
	MinWords       *int
	MinNumber      *float64
	MinCommits     int
	RequiresGitHub bool
	// JudgmentTerms are the rubric words that call for a human-like reading.
	JudgmentTerms []string
}

func (r Requirements) NeedsJudgment() bool { return len(r.JudgmentTerms) > 0 }

// rubricRule is one pattern and how to interpret its matches. Rules run in
// order; a rule never overwrites a field an earlier rule already set. A
// consuming rule blanks the number it captured so later rules cannot count it
// again.
type rubricRule struct {
	name     string
	pattern  *regexp.Regexp
	consumes bool
	apply    func(matches [][]string, req *Requirements)
}

const minPrefix = `(?:\bat\s+least|\ba\s+minimum\s+of|\bminimum\s+of|\bminimum|\bmin\.?|\bno\s+(?:fewer|less)\s+than|>=?)`

var rubricRules = []rubricRule{
	{
		name:     "min_words",
		pattern:  regexp.MustCompile(`(?i)` + minPrefix + `\s*(\d[\d,]*)\s*-?\s*words?\b`),
		consumes: true,
		apply: func(m [][]string, req *Requirements) {
			if req.MinWords == nil {
				req.MinWords = atoiPtr(m[0][1])
			}
		},
	},
	{
		name:     "words_or_more",
		pattern:  regexp.MustCompile(`(?i)\b(\d[\d,]*)\s*\+?\s*-?\s*words?\s+(?:or\s+more|minimum|min\b)`),
		consumes: true,
		apply: func(m [][]string, req *Requirements) {
			if req.MinWords == nil {
				req.MinWords = atoiPtr(m[0][1])
			}
		},
	},
	{
		// "at least 3 commits", "at least 3 GitHub commits".
		name:     "min_commits",
		pattern:  regexp.MustCompile(`(?i)` + minPrefix + `\s*(\d+)\s*(?:[a-z]+\s+){0,2}?commits?\b`),
		consumes: true,
		apply: func(m [][]string, req *Requirements) {
			req.RequiresGitHub = true
			if n := atoiPtr(m[0][1]); n != nil && req.MinCommits == 0 {
				req.MinCommits = *n
			}
		},
	},
	{
		name:    "github_activity",
		pattern: regexp.MustCompile(`(?i)\b(?:commits?|github\s+activity|pushed\s+to\s+github|github\s+repo(?:sitory)?)\b`),
		apply: func(_ [][]string, req *Requirements) {
			req.RequiresGitHub = true
			if req.MinCommits == 0 {
				req.MinCommits = 1
			}
		},
	},
	{
		// Thresholds on anything but words or commits, e.g. "at least 5 km".
		name:    "min_number",
		pattern: regexp.MustCompile(`(?i)` + minPrefix + `\s*(\d[\d,]*(?:\.\d+)?)(?:\s*-?\s*([a-z]+))?`),
		apply: func(m [][]string, req *Requirements) {
			if req.MinNumber != nil {
				return
			}
			for _, g := range m {
				switch strings.ToLower(g[2]) {
				case "word", "words", "commit", "commits":
					continue
				}
				if f, err := strconv.ParseFloat(strings.ReplaceAll(g[1], ",", ""), 64); err == nil {
					req.MinNumber = &f
					return
				}
			}
		},
	},
	{
		name:    "judgment",
		pattern: regexp.MustCompile(`(?i)\b(quality|coherent|thorough|well[\s-]written|insightful|creative|detailed|clear|comprehensive|meaningful|effort|original)\b`),
		apply: func(m [][]string, req *Requirements) {
			seen := map[string]bool{}
			for _, g := range m {
				term := strings.ToLower(g[1])
				if !seen[term] {
					seen[term] = true
					req.JudgmentTerms = append(req.JudgmentTerms, term)
				}
			}
		},
	},
}

func ParseRubric(rubric string) Requirements {
	var req Requirements
	text := []byte(rubric)
	for _, r := range rubricRules {
		idx := r.pattern.FindAllSubmatchIndex(text, -1)
		if len(idx) == 0 {
			continue
		}
		m := make([][]string, len(idx))
		for i, loc := range idx {
			m[i] = make([]string, len(loc)/2)
			for g := range m[i] {
				if loc[2*g] >= 0 {
					m[i][g] = string(text[loc[2*g]:loc[2*g+1]])
				}
			}
		}
		r.apply(m, &req)
		if r.consumes {
			for _, loc := range idx {
				for j := loc[2]; j < loc[3]; j++ {
					text[j] = ' '
				}
			}
		}
	}
	return req
}

func atoiPtr(s string) *int {
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return nil
	}
	return &n
}
