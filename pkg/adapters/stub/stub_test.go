package stub_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/quill/pkg/adapters/stub"
	"github.com/aretw0/quill/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScripted_RepeatsLastReply(t *testing.T) {
	s := stub.NewScripted("a", "b")
	ctx := context.Background()

	for _, want := range []string{"a", "b", "b"} {
		got, err := s.Complete(ctx, "p")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 3, s.Calls())
}

func TestScripted_Errors(t *testing.T) {
	boom := errors.New("boom")
	s := stub.NewScripted("ok").WithErrors(nil, boom)
	ctx := context.Background()

	_, err := s.Complete(ctx, "first")
	assert.NoError(t, err)
	_, err = s.Complete(ctx, "second")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first", "second"}, s.Prompts())
}

func TestScorer_RepliesParse(t *testing.T) {
	s := stub.Scorer(55, 91)
	ctx := context.Background()

	first, _ := s.Complete(ctx, "")
	second, _ := s.Complete(ctx, "")

	assert.Equal(t, 55, parser.Parse(first).Score)
	assert.Equal(t, 91, parser.Parse(second).Score)
	assert.Len(t, parser.Parse(second).KeyIssues, 1)
}

func TestWriter_NumbersDrafts(t *testing.T) {
	var w stub.Writer
	ctx := context.Background()

	one, _ := w.Complete(ctx, "Title\nbody")
	two, _ := w.Complete(ctx, "Title\nbody")

	assert.Equal(t, "Draft 1\n\nTitle", one)
	assert.Equal(t, "Draft 2\n\nTitle", two)
}

func TestScripted_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := stub.NewScripted("x").Complete(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
}
