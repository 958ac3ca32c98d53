package state_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/schema"
	"github.com/aretw0/quill/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() *state.Store {
	return state.New(domain.NewState("test"))
}

func TestStore_SetValidatesType(t *testing.T) {
	s := newStore()

	require.True(t, s.Set(domain.KeyCurrentScore, 70))
	assert.False(t, s.Set(domain.KeyCurrentScore, "ninety"), "wrong type must be rejected")
	assert.False(t, s.Set(domain.KeyCurrentScore, 140), "out of scale must be rejected")

	score, ok := s.Int(domain.KeyCurrentScore)
	require.True(t, ok)
	assert.Equal(t, 70, score, "prior value survives a rejected write")
}

func TestStore_EmptyStringIsAValidString(t *testing.T) {
	s := newStore()

	assert.True(t, s.Set(domain.KeyCurrentFeedback, ""))
	assert.True(t, s.Has(domain.KeyCurrentFeedback))
	assert.False(t, s.Set(domain.KeyCurrentFeedback, nil))
}

func TestStore_GetDefault(t *testing.T) {
	s := newStore()

	assert.Equal(t, "fallback", s.Get(domain.KeyCurrentDraft, "fallback"))
	s.Set(domain.KeyCurrentDraft, "text")
	assert.Equal(t, "text", s.Get(domain.KeyCurrentDraft, "fallback"))
}

func TestStore_UnknownKeysAcceptAnything(t *testing.T) {
	s := newStore()

	assert.True(t, s.Set("tone", map[string]any{"formal": true}))
}

func TestStore_UpdateReportsPerKey(t *testing.T) {
	s := newStore()

	results := s.Update(map[string]any{
		domain.KeyCurrentScore:    88,
		domain.KeyCurrentFeedback: 42,
		domain.KeyKeyIssues:       []string{"add examples"},
	})

	assert.Equal(t, map[string]bool{
		domain.KeyCurrentScore:    true,
		domain.KeyCurrentFeedback: false,
		domain.KeyKeyIssues:       true,
	}, results)
	assert.False(t, s.Has(domain.KeyCurrentFeedback))
	assert.Equal(t, []string{"add examples"}, s.Strings(domain.KeyKeyIssues))
}

func TestStore_RevisionsOrderWrites(t *testing.T) {
	s := newStore()

	s.Set(domain.KeyCurrentDraft, "v1")
	s.Set(domain.KeyCurrentScore, 50)
	assert.True(t, s.NewerThan(domain.KeyCurrentScore, domain.KeyCurrentDraft))

	s.Set(domain.KeyCurrentDraft, "v2")
	assert.False(t, s.NewerThan(domain.KeyCurrentScore, domain.KeyCurrentDraft), "score is stale after a new draft")

	rev := s.Revision(domain.KeyCurrentDraft)
	s.Set(domain.KeyCurrentDraft, 12)
	assert.Equal(t, rev, s.Revision(domain.KeyCurrentDraft), "rejected writes do not tick")
}

func TestStore_Delete(t *testing.T) {
	s := newStore()

	s.Set(domain.KeyCurrentDraft, "text")
	assert.True(t, s.Delete(domain.KeyCurrentDraft))
	assert.False(t, s.Has(domain.KeyCurrentDraft))
	assert.Zero(t, s.Revision(domain.KeyCurrentDraft))
	assert.False(t, s.Delete(domain.KeyCurrentDraft))
}

func TestStore_Missing(t *testing.T) {
	s := newStore()
	s.Set(domain.KeyMaterial, "")
	s.Set(domain.KeyRequirements, "  ")
	s.Set(domain.KeyScoringCriteria, "clarity")

	missing := s.Missing(domain.RequiredInputs...)
	assert.Equal(t, []string{domain.KeyMaterial, domain.KeyRequirements}, missing)
}

func TestStore_DraftInfo(t *testing.T) {
	s := newStore()
	assert.Equal(t, state.DraftInfo{}, s.DraftInfo())

	long := strings.Repeat("字", 150)
	s.Set(domain.KeyCurrentDraft, long)

	info := s.DraftInfo()
	assert.True(t, info.Exists)
	assert.Equal(t, 150, info.Length)
	assert.Equal(t, strings.Repeat("字", state.PreviewLength), info.Preview)
}

func TestStore_NormalizesJSONRoundTrip(t *testing.T) {
	s := newStore()
	s.Set(domain.KeyCurrentScore, 91)
	s.Set(domain.KeyKeyIssues, []string{"tighten intro"})

	raw, err := json.Marshal(s.State())
	require.NoError(t, err)

	var decoded domain.State
	require.NoError(t, json.Unmarshal(raw, &decoded))

	reloaded := state.New(&decoded)
	score, ok := reloaded.Int(domain.KeyCurrentScore)
	require.True(t, ok)
	assert.Equal(t, 91, score)
	assert.IsType(t, 0, reloaded.Get(domain.KeyCurrentScore, nil))
	assert.Equal(t, []string{"tighten intro"}, reloaded.Strings(domain.KeyKeyIssues))
	assert.IsType(t, []string{}, reloaded.Get(domain.KeyKeyIssues, nil))
	assert.Equal(t, s.Revision(domain.KeyKeyIssues), reloaded.Revision(domain.KeyKeyIssues))
}

func TestStore_WithSchema(t *testing.T) {
	extra, err := schema.ParseTypeMap(map[string]string{"word_limit": "int[0,5000]"})
	require.NoError(t, err)

	s := state.New(domain.NewState("x"), state.WithSchema(extra))

	assert.True(t, s.Set("word_limit", 800))
	assert.False(t, s.Set("word_limit", 9000))
	assert.True(t, s.Set(domain.KeyCurrentScore, 10), "default schema still applies")
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := newStore()
	s.Set(domain.KeyKeyIssues, []string{"a"})

	snap := s.Snapshot()
	snap[domain.KeyKeyIssues].([]string)[0] = "mutated"
	snap["new"] = 1

	assert.Equal(t, []string{"a"}, s.Strings(domain.KeyKeyIssues))
	assert.False(t, s.Has("new"))
}
