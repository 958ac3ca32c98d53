package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-" + time.Now().Format("20060102150405.000000")

	t.Run("Save and Load", func(t *testing.T) {
		st := domain.NewState(sessionID)
		st.Status = domain.StatusRunning
		st.Values[domain.KeyCurrentDraft] = "draft body"
		st.Values[domain.KeyCurrentScore] = 42
		st.Values[domain.KeyKeyIssues] = []string{"add sources"}
		st.Revisions[domain.KeyCurrentDraft] = 1
		st.Revisions[domain.KeyCurrentScore] = 2
		st.Clock = 2
		st.History = []domain.IterationRecord{{Iteration: 1, Score: 42, Decision: domain.DecisionContinue}}

		require.NoError(t, store.Save(ctx, sessionID, st))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, sessionID, loaded.SessionID)
		assert.Equal(t, domain.StatusRunning, loaded.Status)
		assert.Equal(t, "draft body", loaded.Values[domain.KeyCurrentDraft])

		// JSON-backed stores return numbers as float64; both forms are acceptable.
		score, err := schema.AsInt(loaded.Values[domain.KeyCurrentScore])
		require.NoError(t, err)
		assert.Equal(t, 42, score)

		assert.Equal(t, uint64(2), loaded.Revisions[domain.KeyCurrentScore])
		assert.Equal(t, uint64(2), loaded.Clock)
		require.Len(t, loaded.History, 1)
		assert.Equal(t, 42, loaded.History[0].Score)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		st := domain.NewState(sessionID)
		st.Values[domain.KeyCurrentDraft] = "second"
		require.NoError(t, store.Save(ctx, sessionID, st))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "second", loaded.Values[domain.KeyCurrentDraft])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sessionID, domain.NewState(sessionID)))
		require.NoError(t, store.Delete(ctx, sessionID))

		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, id1, domain.NewState(id1)))
		require.NoError(t, store.Save(ctx, id2, domain.NewState(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
