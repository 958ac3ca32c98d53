package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"testing"

	"github.com/aretw0/quill/pkg/adapters/memory"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/persistence/middleware"
	"github.com/aretw0/quill/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func encrypted(t *testing.T, next ports.SessionStore, cfg middleware.EncryptionConfig) ports.SessionStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	if err != nil {
		t.Fatalf("NewEncryptionMiddleware: %v", err)
	}
	return mw(next)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, encrypted(t, memory.NewStore(), middleware.EncryptionConfig{ActiveKey: generateKey(t)}))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secure := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ctx := context.Background()

	original := domain.NewState("s1")
	original.Status = domain.StatusRunning
	original.Values[domain.KeyMaterial] = "unreleased earnings"
	if err := secure.Save(ctx, "s1", original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	stored, err := underlying.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}
	if _, ok := stored.Values[domain.KeyMaterial]; ok {
		t.Fatal("Material must not be stored in clear text")
	}
	if stored.Status != domain.StatusRunning {
		t.Errorf("Status should stay readable, got %q", stored.Status)
	}

	loaded, err := secure.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load via middleware failed: %v", err)
	}
	if loaded.Values[domain.KeyMaterial] != "unreleased earnings" {
		t.Errorf("Unexpected material %v", loaded.Values[domain.KeyMaterial])
	}
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	oldStore := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey})
	st := domain.NewState("rot")
	st.Values["note"] = "old"
	if err := oldStore.Save(ctx, "rot", st); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	newStore := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}})
	loaded, err := newStore.Load(ctx, "rot")
	if err != nil {
		t.Fatalf("Load with fallback key failed: %v", err)
	}
	loaded.Values["note"] = "new"
	if err := newStore.Save(ctx, "rot", loaded); err != nil {
		t.Fatalf("Save with new key failed: %v", err)
	}

	if _, err := oldStore.Load(ctx, "rot"); err == nil {
		t.Error("Expected the old key alone to fail after re-encryption")
	}
}

func TestEncryptionMiddleware_BoundToSessionID(t *testing.T) {
	underlying := memory.NewStore()
	secure := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ctx := context.Background()

	if err := secure.Save(ctx, "alice", domain.NewState("alice")); err != nil {
		t.Fatal(err)
	}
	envelope, _ := underlying.Load(ctx, "alice")
	if err := underlying.Save(ctx, "mallory", envelope); err != nil {
		t.Fatal(err)
	}

	if _, err := secure.Load(ctx, "mallory"); err == nil {
		t.Error("A sealed state copied under another ID must not decrypt")
	}
}

func TestEncryptionMiddleware_PlainSession(t *testing.T) {
	underlying := memory.NewStore()
	_ = underlying.Save(context.Background(), "plain", domain.NewState("plain"))
	secure := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})

	_, err := secure.Load(context.Background(), "plain")
	if !errors.Is(err, middleware.ErrNotSealed) {
		t.Errorf("Expected ErrNotSealed, got %v", err)
	}
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	if _, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")}); err == nil {
		t.Error("Expected an error for a short key")
	}
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)

	for name, in := range map[string]string{
		"hex":    hex.EncodeToString(key),
		"base64": base64.StdEncoding.EncodeToString(key),
	} {
		got, err := middleware.ParseKey(in)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if string(got) != string(key) {
			t.Errorf("%s: key mismatch", name)
		}
	}

	if _, err := middleware.ParseKey("too-short"); err == nil {
		t.Error("Expected an error for an invalid key")
	}
}
