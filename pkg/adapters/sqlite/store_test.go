package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/quill"
	"github.com/aretw0/quill/pkg/adapters/sqlite"
	"github.com/aretw0/quill/pkg/adapters/stub"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "quill.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, openStore(t))
}

func TestSQLiteStore_IterationLedger(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	st := domain.NewState("ledger")
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	st.History = []domain.IterationRecord{
		{Iteration: 1, Score: 40, Decision: domain.DecisionContinue, KeyIssues: []string{"too long"}, CompletedAt: at},
		{Iteration: 2, Score: 88, Decision: domain.DecisionDone, Reason: domain.ReasonScorePassed, CompletedAt: at},
	}
	require.NoError(t, store.Save(ctx, "ledger", st))

	recs, err := store.Iterations(ctx, "ledger")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, []string{"too long"}, recs[0].KeyIssues)
	assert.Equal(t, domain.ReasonScorePassed, recs[1].Reason)
	assert.Equal(t, at, recs[1].CompletedAt)

	// A later save with a shorter history replaces the ledger.
	st.History = st.History[:1]
	require.NoError(t, store.Save(ctx, "ledger", st))
	recs, err = store.Iterations(ctx, "ledger")
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	require.NoError(t, store.Delete(ctx, "ledger"))
	recs, err = store.Iterations(ctx, "ledger")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSQLiteStore_WithEngine(t *testing.T) {
	store := openStore(t)
	eng, err := quill.New(
		quill.WithCompleter(stub.NewScripted("one", "two")),
		quill.WithScorer(stub.Scorer(50, 90)),
		quill.WithStore(store),
	)
	require.NoError(t, err)
	ctx := context.Background()

	res, err := eng.Refine(ctx, "engine", quill.Inputs{
		Material:        "m",
		Requirements:    "r",
		ScoringCriteria: "c",
	})
	require.NoError(t, err)
	assert.Equal(t, 90, res.Score)

	recs, err := store.Iterations(ctx, "engine")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 50, recs[0].Score)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sessions)
	assert.Equal(t, 90, stats.Best)
}
