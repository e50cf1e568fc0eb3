package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"lexdesk/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientStorageFile_RoundTripAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "client-storage.json")

	s, err := NewClientStorageFile(path)
	require.NoError(t, err)

	_, err = s.Get(ctx, repository.TokenKey)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, s.Set(ctx, repository.TokenKey, "T1"))

	reopened, err := NewClientStorageFile(path)
	require.NoError(t, err)
	v, err := reopened.Get(ctx, repository.TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "T1", v)
}

func TestClientStorageFile_Delete(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "client-storage.json")

	s, err := NewClientStorageFile(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, repository.TokenKey, "T1"))

	require.NoError(t, s.Delete(ctx, repository.TokenKey))
	// deleting again is a no-op
	require.NoError(t, s.Delete(ctx, repository.TokenKey))

	reopened, err := NewClientStorageFile(path)
	require.NoError(t, err)
	_, err = reopened.Get(ctx, repository.TokenKey)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestNewClientStorageFile_Errors(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		_, err := NewClientStorageFile("")
		assert.Error(t, err)
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "client-storage.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
		_, err := NewClientStorageFile(path)
		assert.ErrorContains(t, err, "parse client storage")
	})

	t.Run("empty file is treated as empty storage", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "client-storage.json")
		require.NoError(t, os.WriteFile(path, nil, 0o600))
		s, err := NewClientStorageFile(path)
		require.NoError(t, err)
		_, err = s.Get(context.Background(), repository.TokenKey)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestClientStorageFile_CancelledContext(t *testing.T) {
	s, err := NewClientStorageFile(filepath.Join(t.TempDir(), "client-storage.json"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Set(ctx, repository.TokenKey, "T1"), context.Canceled)
	_, err = s.Get(ctx, repository.TokenKey)
	assert.ErrorIs(t, err, context.Canceled)
}
