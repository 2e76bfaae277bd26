package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/formflow/pkg/adapters/memory"
	"github.com/aretw0/formflow/pkg/persistence/middleware"
	"github.com/aretw0/formflow/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunKVStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := memory.NewStore()
	key := generateKey(t)
	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})(underlyingStore)

	ctx := context.Background()
	value := `{"formId":"signup","answers":{"email":"ada@example.com"}}`

	if err := secureStore.Set(ctx, "progress:signup", value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	stored, err := underlyingStore.Get(ctx, "progress:signup")
	if err != nil {
		t.Fatalf("Underlying get failed: %v", err)
	}
	if strings.Contains(stored, "ada@example.com") {
		t.Fatalf("Expected answers to be hidden, found: %s", stored)
	}
	if !strings.Contains(stored, "__encrypted__") {
		t.Fatal("Expected __encrypted__ envelope")
	}

	loaded, err := secureStore.Get(ctx, "progress:signup")
	if err != nil {
		t.Fatalf("Get via middleware failed: %v", err)
	}
	if loaded != value {
		t.Errorf("Expected %q, got %q", value, loaded)
	}
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := memory.NewStore()
	ctx := context.Background()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	oldStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlyingStore)
	if err := oldStore.Set(ctx, "k", "rotating"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	rotated := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlyingStore)
	got, err := rotated.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get with fallback key failed: %v", err)
	}
	if got != "rotating" {
		t.Errorf("Expected 'rotating', got %q", got)
	}

	noFallback := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: newKey})(underlyingStore)
	if _, err := noFallback.Get(ctx, "k"); err == nil {
		t.Error("Expected decryption to fail without the old key")
	}
}

func TestEncryptionMiddleware_RejectsPlainValues(t *testing.T) {
	underlyingStore := memory.NewStore()
	ctx := context.Background()
	_ = underlyingStore.Set(ctx, "k", `{"formId":"plain"}`)

	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	if _, err := secureStore.Get(ctx, "k"); err != middleware.ErrNotEncrypted {
		t.Fatalf("Expected ErrNotEncrypted, got %v", err)
	}
}
