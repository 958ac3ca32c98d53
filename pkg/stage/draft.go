package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/ports"
	"github.com/aretw0/quill/pkg/state"
)

// ErrEmptyCompletion is reported when a model returns only whitespace.
var ErrEmptyCompletion = errors.New("empty completion")

// Draft writes the first version of the text, or revises the current one using the
// latest feedback.
type Draft struct {
	completer ports.Completer
	logger    *slog.Logger
	prompts   *Prompts
}

// NewDraft creates a drafting stage backed by completer.
func NewDraft(completer ports.Completer, opts ...Option) *Draft {
	o := buildOptions(opts)
	return &Draft{completer: completer, logger: o.logger, prompts: o.prompts}
}

func (d *Draft) Name() string { return NameDraft }

// Run produces a new draft. Whatever happens, iteration_count grows by one after the
// draft has been written.
func (d *Draft) Run(ctx context.Context, st *state.Store) domain.StageResult {
	base := lastGoodDraft(st)
	revising := base != ""

	data := promptData(st)
	tmpl := d.prompts.initial
	if revising {
		tmpl = d.prompts.revision
		data[domain.KeyCurrentDraft] = base
		switch strings.TrimSpace(st.String(domain.KeyCurrentFeedback)) {
		case "":
			data[domain.KeyCurrentFeedback] = GeneralImprovements
		case FailedDraftFeedback:
			data[domain.KeyCurrentFeedback] = GeneralImprovements
			data[domain.KeyKeyIssues] = []string{}
		}
	}

	text, err := d.complete(ctx, tmpl, data)

	var res domain.StageResult
	switch {
	case err == nil:
		if revising {
			st.Set(domain.KeyPreviousDraft, base)
		}
		st.Set(domain.KeyCurrentDraft, text)
		st.Set(domain.KeyDraftFailed, false)
		res = result(NameDraft, domain.StageSuccess, "")
	case revising:
		d.logger.Error("Draft revision failed", "session_id", st.State().SessionID, "err", err)
		st.Set(domain.KeyPreviousDraft, base)
		st.Set(domain.KeyCurrentDraft, base+"\n\n"+RevisionFailureMarker(err))
		st.Set(domain.KeyDraftFailed, true)
		res = result(NameDraft, domain.StageError, err.Error())
	default:
		d.logger.Error("Draft generation failed", "session_id", st.State().SessionID, "err", err)
		st.Set(domain.KeyCurrentDraft, InitialFailureMarker(err))
		st.Set(domain.KeyDraftFailed, true)
		res = result(NameDraft, domain.StageError, err.Error())
	}

	count, _ := st.Int(domain.KeyIterationCount)
	st.Set(domain.KeyIterationCount, count+1)
	return res
}

func (d *Draft) complete(ctx context.Context, tmpl *template.Template, data map[string]any) (string, error) {
	prompt, err := render(tmpl, data)
	if err != nil {
		return "", err
	}
	text, err := d.completer.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// lastGoodDraft returns the most recent text that was not a failure marker.
func lastGoodDraft(st *state.Store) string {
	if st.Bool(domain.KeyDraftFailed) {
		return st.String(domain.KeyPreviousDraft)
	}
	return st.String(domain.KeyCurrentDraft)
}

// InitialFailureMarker is stored as the draft when the first generation fails.
func InitialFailureMarker(err error) string {
	return fmt.Sprintf("[draft generation failed: %v]", err)
}

// RevisionFailureMarker is appended to the previous text when a revision fails.
func RevisionFailureMarker(err error) string {
	return fmt.Sprintf("[draft revision failed: %v]", err)
}
