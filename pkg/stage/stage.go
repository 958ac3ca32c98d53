// Package stage implements the two steps of one refinement iteration: drafting and scoring.
//
// Stages never return Go errors. A failed completion is folded into degraded session
// values and reported through the returned domain.StageResult.
package stage

import (
	"context"
	"log/slog"

	"github.com/aretw0/quill/internal/logging"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/state"
)

// Stage is one step of the refinement loop.
type Stage interface {
	Name() string
	Run(ctx context.Context, st *state.Store) domain.StageResult
}

// Stage names, as reported in results and lifecycle events.
const (
	NameDraft   = "draft"
	NameScoring = "scoring"
)

// Option configures a stage.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	prompts *Prompts
}

// WithLogger sets the stage logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPrompts replaces the built-in prompt templates.
func WithPrompts(p *Prompts) Option {
	return func(o *options) {
		if p != nil {
			o.prompts = p
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:  logging.NewNop(),
		prompts: DefaultPrompts(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func result(name string, status domain.StageStatus, msg string) domain.StageResult {
	return domain.StageResult{Stage: name, Status: status, Message: msg}
}

// promptData exposes every session value to templates, with the core text keys
// always present so a missing value renders as empty text.
func promptData(st *state.Store) map[string]any {
	data := st.Snapshot()
	for _, k := range []string{
		domain.KeyMaterial, domain.KeyRequirements, domain.KeyScoringCriteria,
		domain.KeyCurrentDraft, domain.KeyCurrentFeedback,
	} {
		data[k] = st.String(k)
	}
	data[domain.KeyKeyIssues] = st.Strings(domain.KeyKeyIssues)
	return data
}
