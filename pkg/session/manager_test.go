package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/quill/pkg/adapters/memory"
	"github.com/aretw0/quill/pkg/adapters/redis"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/ports"
	"github.com/aretw0/quill/pkg/session"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowStore widens the read-modify-write window so lost updates show up without locking.
type slowStore struct {
	ports.SessionStore
}

func (s slowStore) Load(ctx context.Context, id string) (*domain.State, error) {
	time.Sleep(2 * time.Millisecond)
	return s.SessionStore.Load(ctx, id)
}

func TestManager_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, session.NewManager(memory.NewStore()))
}

func TestManager_UpdateSerialises(t *testing.T) {
	mgr := session.NewManager(slowStore{memory.NewStore()})
	ctx := context.Background()
	id := "race-test"

	_, _, err := mgr.LoadOrCreate(ctx, id)
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := mgr.Update(ctx, id, func(st *domain.State) error {
				n, _ := st.Values["counter"].(int)
				st.Values["counter"] = n + 1
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	st, err := mgr.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, writers, st.Values["counter"])
}

func TestManager_UpdateErrorSkipsSave(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()
	_, _, _ = mgr.LoadOrCreate(ctx, "s")

	boom := errors.New("boom")
	err := mgr.Update(ctx, "s", func(st *domain.State) error {
		st.Values["x"] = 1
		return boom
	})
	assert.ErrorIs(t, err, boom)

	st, _ := mgr.Load(ctx, "s")
	assert.NotContains(t, st.Values, "x")
}

func TestManager_LoadOrCreateOnce(t *testing.T) {
	mgr := session.NewManager(slowStore{memory.NewStore()})
	ctx := context.Background()

	var created atomic.Int32
	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, isNew, err := mgr.LoadOrCreate(ctx, "atomic-init")
			assert.NoError(t, err)
			assert.Equal(t, "atomic-init", st.SessionID)
			if isNew {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, created.Load())
}

func TestManager_LocksAreReleased(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	for i := range 1000 {
		sid := fmt.Sprintf("session-%d", i)
		_ = mgr.Save(ctx, sid, domain.NewState(sid))
		_ = mgr.Delete(ctx, sid)
	}

	assert.Zero(t, mgr.ActiveLocks())
}

func TestManager_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := redis.NewLocker(client, "quill:")
	mgr := session.NewManager(memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(time.Second))

	err := mgr.WithLock(context.Background(), "shared", func(ctx context.Context) error {
		assert.True(t, mr.Exists("quill:lock:shared"), "lock key held while fn runs")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("quill:lock:shared"), "lock key released afterwards")
}

func TestManager_DistributedLockTimeout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, mr.Set("quill:lock:busy", "someone-else"))

	mgr := session.NewManager(memory.NewStore(), session.WithLocker(redis.NewLocker(client, "quill:")))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	called := false
	err := mgr.WithLock(ctx, "busy", func(context.Context) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}
