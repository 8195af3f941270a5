package localstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/somtrade/internal/storage"
)

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, storage.KeyPortfolio, []byte(`{"usdt":10000}`)))
	require.NoError(t, s.Set(ctx, storage.KeyTheme, []byte("light")))

	reopened, err := Open(path)
	require.NoError(t, err)

	got, err := reopened.Get(ctx, storage.KeyPortfolio)
	require.NoError(t, err)
	assert.JSONEq(t, `{"usdt":10000}`, string(got))

	keys, err := reopened.Keys(ctx, storage.Namespace)
	require.NoError(t, err)
	assert.Equal(t, []string{storage.KeyPortfolio, storage.KeyTheme}, keys)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStore_DeleteAndMissing(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"))

	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Open(path)
	assert.Error(t, err)
}
