package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/formflow/pkg/adapters/sqlite"
	"github.com/aretw0/formflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_Contract(t *testing.T) {
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ports.RunKVStoreContract(t, store)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "formflow.db")
	ctx := context.Background()

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "progress:signup", `{"formId":"signup"}`))
	require.NoError(t, store.Close())

	store, err = sqlite.Open(path)
	require.NoError(t, err)
	defer store.Close()

	v, err := store.Get(ctx, "progress:signup")
	require.NoError(t, err)
	assert.Equal(t, `{"formId":"signup"}`, v)
}
