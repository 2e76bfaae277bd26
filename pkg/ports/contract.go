package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunKVStoreContract runs a suite of tests to verify that a KVStore implementation
// adheres to the defined interface contract.
func RunKVStoreContract(t *testing.T, store KVStore) {
	ctx := context.Background()
	key := "progress:contract-" + time.Now().Format("20060102150405")

	t.Run("Set and Get", func(t *testing.T) {
		err := store.Set(ctx, key, `{"formId":"contract"}`)
		require.NoError(t, err, "Set should not return error")

		value, err := store.Get(ctx, key)
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, `{"formId":"contract"}`, value)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, key, "first"))
		require.NoError(t, store.Set(ctx, key, "second"))

		value, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "second", value, "last write wins")
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "missing:"+key)
		assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, key, "value"))

		err := store.Remove(ctx, key)
		require.NoError(t, err, "Remove should not return error")

		_, err = store.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrKeyNotFound, "Get after Remove should return ErrKeyNotFound")

		assert.NoError(t, store.Remove(ctx, key), "removing a missing key is not an error")
	})

	lister, ok := store.(KeyLister)
	if !ok {
		return
	}
	t.Run("Keys", func(t *testing.T) {
		k1 := key + "-1"
		k2 := key + "-2"
		require.NoError(t, store.Set(ctx, k1, "a"))
		require.NoError(t, store.Set(ctx, k2, "b"))
		require.NoError(t, store.Set(ctx, "other:"+key, "c"))
		defer func() {
			_ = store.Remove(ctx, k1)
			_ = store.Remove(ctx, k2)
			_ = store.Remove(ctx, "other:"+key)
		}()

		keys, err := lister.Keys(ctx, "progress:")
		require.NoError(t, err)
		assert.Contains(t, keys, k1)
		assert.Contains(t, keys, k2)
		assert.NotContains(t, keys, "other:"+key)
	})
}
