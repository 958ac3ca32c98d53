package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/quill/internal/runtime"
	"github.com/aretw0/quill/pkg/adapters/stub"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalize_Success(t *testing.T) {
	st := newSession(t, 80, 3)
	st, err := newEngine(stub.NewScripted("final words"), stub.Scorer(85)).Run(context.Background(), st)
	require.NoError(t, err)

	res := runtime.Finalize(st)

	assert.Equal(t, domain.ResultSuccess, res.Status)
	assert.Equal(t, "final words", res.Draft)
	assert.Equal(t, 85, res.Score)
	assert.Equal(t, 1, res.IterationsCompleted)
	assert.True(t, res.Complete)
	assert.False(t, res.Degraded)
	assert.Equal(t, []string{"issue raised in review 1"}, res.KeyIssues)
}

func TestFinalize_NoDraft(t *testing.T) {
	st := newSession(t, 80, 3)

	res := runtime.Finalize(st)

	assert.Equal(t, domain.ResultError, res.Status)
	assert.Equal(t, runtime.NoDraftMessage, res.Message)
	assert.NotNil(t, res.KeyIssues)
}

func TestFinalize_MissingData(t *testing.T) {
	st := state.New(domain.NewState("empty"))

	res := runtime.Finalize(st)

	assert.Equal(t, domain.ResultMissingData, res.Status)
	assert.Equal(t, domain.RequiredInputs, res.MissingKeys)
}

func TestFinalize_DegradedDraft(t *testing.T) {
	st := newSession(t, 80, 2)
	drafter := stub.NewScripted().WithErrors(errors.New("down"), errors.New("down"))
	scorer := stub.Scorer(99)

	st, err := newEngine(drafter, scorer).Run(context.Background(), st)
	require.NoError(t, err)

	res := runtime.Finalize(st)
	assert.Equal(t, domain.ResultError, res.Status)
	assert.True(t, res.Degraded)
	assert.Contains(t, res.Draft, "failed")
	assert.Zero(t, res.Score)
	assert.Equal(t, 2, res.IterationsCompleted)
	assert.Zero(t, scorer.Calls(), "failed drafts are never sent for evaluation")
}

func TestFinalize_NeverPanics(t *testing.T) {
	var res domain.Result
	assert.NotPanics(t, func() { res = runtime.Finalize(nil) })
	assert.Equal(t, domain.ResultError, res.Status)
}
