// Package stub provides deterministic completers for tests and offline runs.
package stub

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Scripted replays a fixed list of replies. Once the list is exhausted the last reply
// repeats. A non-nil entry in Errs at the same position fails that call instead.
type Scripted struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	prompts []string
}

// NewScripted creates a completer answering with replies in order.
func NewScripted(replies ...string) *Scripted {
	return &Scripted{replies: replies}
}

// WithErrors sets per-call failures. It returns s for chaining.
func (s *Scripted) WithErrors(errs ...error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = errs
	return s
}

// Complete implements ports.Completer.
func (s *Scripted) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := len(s.prompts)
	s.prompts = append(s.prompts, prompt)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	switch {
	case len(s.replies) == 0:
		return "", nil
	case i < len(s.replies):
		return s.replies[i], nil
	default:
		return s.replies[len(s.replies)-1], nil
	}
}

// Prompts returns every prompt received so far.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Calls returns the number of Complete calls.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// Evaluation formats a reply in the layout the default evaluation prompt asks for.
func Evaluation(score int, feedback string, issues ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "1. %d\nFeedback: %s", score, feedback)
	for _, issue := range issues {
		fmt.Fprintf(&b, "\n- %s", issue)
	}
	return b.String()
}

// Scorer returns a completer whose successive evaluations carry the given scores.
func Scorer(scores ...int) *Scripted {
	replies := make([]string, len(scores))
	for i, score := range scores {
		replies[i] = Evaluation(score, fmt.Sprintf("review %d", i+1),
			fmt.Sprintf("issue raised in review %d", i+1))
	}
	return NewScripted(replies...)
}

// Writer is a drafting completer that numbers its drafts. It needs no script and
// never fails, which makes it the drafter of offline runs.
type Writer struct {
	mu    sync.Mutex
	calls int
}

// Complete implements ports.Completer.
func (w *Writer) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return fmt.Sprintf("Draft %d\n\n%s", w.calls, firstLine(prompt)), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
