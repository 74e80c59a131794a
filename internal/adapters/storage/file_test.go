package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickpoll/quickpoll-go/internal/adapters/storage"
)

func TestLoadMissingFile(t *testing.T) {
	store := storage.NewFileStoreAt(filepath.Join(t.TempDir(), "session"))

	id, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	// The parent directory does not exist yet; Save must create it.
	store := storage.NewFileStoreAt(filepath.Join(t.TempDir(), "quickpoll", "session"))

	require.NoError(t, store.Save("session-abc"))

	id, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "session-abc", id)
}
