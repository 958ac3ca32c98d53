// Package parser extracts a score, feedback and key issues from free-form evaluator text.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/quill/pkg/domain"
)

// MinKeyIssueLength is the byte length a bullet must exceed to count as a key issue.
const MinKeyIssueLength = 5

// Evaluation is the structured view of one evaluator reply.
type Evaluation struct {
	Score     int      `json:"score"`
	Feedback  string   `json:"feedback"`
	KeyIssues []string `json:"key_issues"`
}

var (
	// "1. 95", "2、88": an enumerated item whose body starts with an integer.
	ordinalLine = regexp.MustCompile(`^\s*\d+(?:\.\s+|、\s*)(\d+)`)
	digitRun    = regexp.MustCompile(`\d+`)
)

// Parse turns raw evaluator output into an Evaluation. It never fails; text
// without a recognizable score yields score 0 and the whole text as feedback.
func Parse(raw string) Evaluation {
	eval := Evaluation{
		Feedback:  raw,
		KeyIssues: []string{},
	}
	if strings.TrimSpace(raw) == "" {
		return eval
	}

	lines := strings.Split(raw, "\n")

	score, lineIdx := scoreFromOrdinal(lines)
	if lineIdx < 0 {
		score, lineIdx = scoreFromToken(lines)
	}

	for i, line := range lines {
		if i == lineIdx {
			continue
		}
		if issue, ok := keyIssue(line); ok {
			eval.KeyIssues = append(eval.KeyIssues, issue)
		}
	}

	if lineIdx >= 0 {
		eval.Score = score
		rest := make([]string, 0, len(lines)-1)
		rest = append(rest, lines[:lineIdx]...)
		rest = append(rest, lines[lineIdx+1:]...)
		eval.Feedback = strings.TrimSpace(strings.Join(rest, "\n"))
	}
	return eval
}

// ParseAny coerces v to text before parsing. nil yields the empty result.
func ParseAny(v any) Evaluation {
	switch t := v.(type) {
	case nil:
		return Parse("")
	case string:
		return Parse(t)
	case []byte:
		return Parse(string(t))
	case fmt.Stringer:
		return Parse(t.String())
	default:
		return Parse(fmt.Sprint(t))
	}
}

func scoreFromOrdinal(lines []string) (int, int) {
	for i, line := range lines {
		m := ordinalLine.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		start, end := m[2], m[3]
		if decimalTail(line, end) {
			continue
		}
		if n, ok := inScale(line[start:end]); ok {
			return n, i
		}
	}
	return 0, -1
}

func scoreFromToken(lines []string) (int, int) {
	for i, line := range lines {
		// The enumeration marker of a rejected ordinal line is not a score.
		from := 0
		if m := ordinalLine.FindStringSubmatchIndex(line); m != nil {
			from = m[2]
		}
		for _, loc := range digitRun.FindAllStringIndex(line[from:], -1) {
			start, end := from+loc[0], from+loc[1]
			if !standalone(line, start, end) {
				continue
			}
			if n, ok := inScale(line[start:end]); ok {
				return n, i
			}
		}
	}
	return 0, -1
}

// standalone reports whether line[start:end] is a whole integer token: not glued
// to ASCII letters or underscores and not part of a decimal number.
func standalone(line string, start, end int) bool {
	if start > 0 {
		prev := line[start-1]
		if isWordByte(prev) {
			return false
		}
		if prev == '.' && start > 1 && isDigit(line[start-2]) {
			return false
		}
	}
	if end < len(line) && isWordByte(line[end]) {
		return false
	}
	return !decimalTail(line, end)
}

func decimalTail(line string, end int) bool {
	return end+1 < len(line) && line[end] == '.' && isDigit(line[end+1])
}

func inScale(digits string) (int, bool) {
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 || n > domain.MaxScore {
		return 0, false
	}
	return n, true
}

func keyIssue(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "-") {
		return "", false
	}
	body := strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))
	if len(body) <= MinKeyIssueLength {
		return "", false
	}
	return body, true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isWordByte(b byte) bool {
	return isDigit(b) || b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
