package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parishops/flock/pkg/crypto"
	"github.com/parishops/flock/pkg/models"
)

func TestFileStore_SaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewFileStore(path)

	identity := &models.Identity{ID: "u-1", Username: "shepherd", Role: "admin"}
	require.NoError(t, store.Save("tok-1", identity))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	token, loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, "u-1", loaded.ID)
	assert.Equal(t, "admin", loaded.Role)

	require.NoError(t, store.Clear())
	_, _, err = store.Load()
	assert.ErrorIs(t, err, ErrNoCredentials)

	// Clearing again is a no-op.
	require.NoError(t, store.Clear())
}

func TestFileStore_LoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))
	_, _, err := store.Load()
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestFileStore_PartialFileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"token": "tok-only"}`), 0o600))

	store := NewFileStore(path)
	_, _, err := store.Load()
	assert.ErrorIs(t, err, ErrNoCredentials, "token without identity must not hydrate a session")
}

func TestFileStore_OverwriteReplacesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path)

	require.NoError(t, store.Save("tok-1", &models.Identity{ID: "u-1"}))
	require.NoError(t, store.Save("tok-2", &models.Identity{ID: "u-2"}))

	token, identity, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)
	assert.Equal(t, "u-2", identity.ID)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSealedFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	sealer, err := crypto.NewSessionSealer("site passphrase")
	require.NoError(t, err)
	store := NewSealedFileStore(path, sealer)

	identity := &models.Identity{ID: "u-1", Username: "shepherd", Role: "admin"}
	require.NoError(t, store.Save("tok-1", identity))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "tok-1", "the token must not be readable on disk")

	token, loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, "u-1", loaded.ID)
}

func TestSealedFileStore_WrongKeyRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	sealer, err := crypto.NewSessionSealer("key-a")
	require.NoError(t, err)
	require.NoError(t, NewSealedFileStore(path, sealer).Save("tok-1", &models.Identity{ID: "u-1"}))

	other, err := crypto.NewSessionSealer("key-b")
	require.NoError(t, err)
	_, _, err = NewSealedFileStore(path, other).Load()
	assert.ErrorIs(t, err, crypto.ErrDecryptionFailed)
}
