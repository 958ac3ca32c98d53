package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/quill/pkg/adapters/memory"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunSessionStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	st := domain.NewState("iso")
	st.Values[domain.KeyKeyIssues] = []string{"original"}
	require.NoError(t, store.Save(ctx, "iso", st))

	st.Values[domain.KeyKeyIssues].([]string)[0] = "mutated"
	st.Values["later"] = true

	loaded, err := store.Load(ctx, "iso")
	require.NoError(t, err)
	assert.Equal(t, []string{"original"}, loaded.Values[domain.KeyKeyIssues])
	assert.NotContains(t, loaded.Values, "later")
}
