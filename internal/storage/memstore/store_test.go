package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/somtrade/internal/storage"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	value := []byte("1")
	require.NoError(t, s.Set(ctx, "p:b", value))
	require.NoError(t, s.Set(ctx, "p:a", []byte("2")))
	require.NoError(t, s.Set(ctx, "q:c", []byte("3")))
	value[0] = 'x'

	got, err := s.Get(ctx, "p:b")
	require.NoError(t, err)
	assert.Equal(t, "1", string(got))

	keys, err := s.Keys(ctx, "p:")
	require.NoError(t, err)
	assert.Equal(t, []string{"p:a", "p:b"}, keys)

	require.NoError(t, s.Delete(ctx, "p:a"))
	keys, err = s.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"p:b", "q:c"}, keys)
}
