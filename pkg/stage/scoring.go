package stage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/parser"
	"github.com/aretw0/quill/pkg/ports"
	"github.com/aretw0/quill/pkg/state"
)

const (
	EmptyDraftFeedback = "empty content: nothing to evaluate"
	EmptyDraftIssue    = "empty content"

	FailedDraftFeedback = "draft generation failed: nothing to evaluate"
	FailedDraftIssue    = "draft generation failed"
)

// Scoring asks an evaluator model to judge the current draft and stores the parsed
// score, feedback and key issues.
type Scoring struct {
	completer ports.Completer
	logger    *slog.Logger
	prompts   *Prompts
}

// NewScoring creates a scoring stage backed by completer.
func NewScoring(completer ports.Completer, opts ...Option) *Scoring {
	o := buildOptions(opts)
	return &Scoring{completer: completer, logger: o.logger, prompts: o.prompts}
}

func (s *Scoring) Name() string { return NameScoring }

// Run scores the current draft. Empty and failed drafts score 0 without a model call;
// a failed revision keeps the feedback and key issues of the draft it revised.
func (s *Scoring) Run(ctx context.Context, st *state.Store) domain.StageResult {
	draft := st.String(domain.KeyCurrentDraft)

	if strings.TrimSpace(draft) == "" {
		s.store(st, parser.Evaluation{
			Feedback:  EmptyDraftFeedback,
			KeyIssues: []string{EmptyDraftIssue},
		})
		return result(NameScoring, domain.StageSuccess, EmptyDraftFeedback)
	}

	if st.Bool(domain.KeyDraftFailed) {
		// The last critique stays in place so the next revision can still act on it.
		if strings.TrimSpace(st.String(domain.KeyCurrentFeedback)) != "" {
			st.Set(domain.KeyCurrentScore, 0)
		} else {
			s.store(st, parser.Evaluation{
				Feedback:  FailedDraftFeedback,
				KeyIssues: []string{FailedDraftIssue},
			})
		}
		return result(NameScoring, domain.StageError, FailedDraftFeedback)
	}

	prompt, err := render(s.prompts.evaluation, promptData(st))
	if err != nil {
		return s.fail(st, err)
	}
	reply, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return s.fail(st, err)
	}
	if strings.TrimSpace(reply) == "" {
		return s.fail(st, ErrEmptyCompletion)
	}

	eval := parser.Parse(reply)
	s.store(st, eval)
	s.logger.Debug("Draft scored", "session_id", st.State().SessionID,
		"score", eval.Score, "key_issues", len(eval.KeyIssues))
	return result(NameScoring, domain.StageSuccess, "")
}

func (s *Scoring) fail(st *state.Store, err error) domain.StageResult {
	s.logger.Error("Evaluation failed", "session_id", st.State().SessionID, "err", err)
	msg := fmt.Sprintf("evaluation failed: %v", err)
	s.store(st, parser.Evaluation{Feedback: msg, KeyIssues: []string{}})
	return result(NameScoring, domain.StageError, msg)
}

func (s *Scoring) store(st *state.Store, eval parser.Evaluation) {
	issues := eval.KeyIssues
	if issues == nil {
		issues = []string{}
	}
	for key, ok := range st.Update(map[string]any{
		domain.KeyCurrentScore:    eval.Score,
		domain.KeyCurrentFeedback: eval.Feedback,
		domain.KeyKeyIssues:       issues,
	}) {
		if !ok {
			s.logger.Warn("Evaluation value rejected", "key", key)
		}
	}
}
