package runtime

import (
	"fmt"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/progress"
	"github.com/aretw0/quill/pkg/state"
)

// NoDraftMessage is reported when a session ends without any draft text.
const NoDraftMessage = "no draft was produced"

// Finalize aggregates the outcome of a session. It never panics; a store it cannot
// read produces an error result.
func Finalize(st *state.Store) (res domain.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = domain.Result{
				Status:    domain.ResultError,
				Message:   fmt.Sprintf("finalize failed: %v", r),
				KeyIssues: []string{},
			}
		}
	}()

	res = domain.Result{
		SessionID: st.State().SessionID,
		Status:    domain.ResultSuccess,
		Draft:     st.String(domain.KeyCurrentDraft),
		Feedback:  st.String(domain.KeyCurrentFeedback),
		KeyIssues: st.Strings(domain.KeyKeyIssues),
		Complete:  st.Bool(domain.KeyIsComplete),
		Degraded:  st.Bool(domain.KeyDraftFailed),
	}
	if res.KeyIssues == nil {
		res.KeyIssues = []string{}
	}
	res.IterationsCompleted, _ = st.Int(domain.KeyIterationCount)
	res.Score, _ = progress.CurrentScore(st)

	if missing := st.Missing(domain.RequiredInputs...); len(missing) > 0 && res.IterationsCompleted == 0 {
		res.Status = domain.ResultMissingData
		res.MissingKeys = missing
		res.Message = (&domain.MissingDataError{Keys: missing}).Error()
		return res
	}

	switch {
	case res.Draft == "":
		res.Status = domain.ResultError
		res.Message = NoDraftMessage
	case res.Degraded && st.String(domain.KeyPreviousDraft) == "":
		res.Status = domain.ResultError
		res.Message = "draft generation failed"
	case res.Degraded:
		res.Message = "last revision failed; the draft ends with a failure marker"
	}
	return res
}
