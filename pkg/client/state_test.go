package client

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenState(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestConfigRoundTrip(t *testing.T) {
	store := openTestStore(t)

	val, err := store.GetConfig("missing")
	require.NoError(t, err)
	assert.Equal(t, "", val)

	require.NoError(t, store.SetConfig("theme", "dark"))
	val, err = store.GetConfig("theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", val)

	require.NoError(t, store.SetConfig("theme", "light"))
	val, err = store.GetConfig("theme")
	require.NoError(t, err)
	assert.Equal(t, "light", val)
}

func TestLastDisplayNameAndChannel(t *testing.T) {
	store := openTestStore(t)

	assert.Equal(t, "", store.GetLastDisplayName())
	assert.Equal(t, "", store.GetLastChannel())

	require.NoError(t, store.SetLastDisplayName("alice"))
	require.NoError(t, store.SetLastChannel("general"))

	assert.Equal(t, "alice", store.GetLastDisplayName())
	assert.Equal(t, "general", store.GetLastChannel())
}

func TestFirstRunFlag(t *testing.T) {
	store := openTestStore(t)

	assert.True(t, store.GetFirstRun())
	require.NoError(t, store.SetFirstRunComplete())
	assert.False(t, store.GetFirstRun())
}

func TestConnectionHistory(t *testing.T) {
	store := openTestStore(t)

	result, err := store.GetLastConnectionResult("ws://localhost:8000")
	require.NoError(t, err)
	assert.Equal(t, "", result)

	require.NoError(t, store.SaveConnectionResult("ws://localhost:8000", "connected"))
	result, err = store.GetLastConnectionResult("ws://localhost:8000")
	require.NoError(t, err)
	assert.Equal(t, "connected", result)

	require.NoError(t, store.SaveConnectionResult("ws://localhost:8000", "failed"))
	result, err = store.GetLastConnectionResult("ws://localhost:8000")
	require.NoError(t, err)
	assert.Equal(t, "failed", result)
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := OpenState(path)
	require.NoError(t, err)
	require.NoError(t, store.SetLastDisplayName("alice"))
	require.NoError(t, store.Close())

	reopened, err := OpenState(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, "alice", reopened.GetLastDisplayName())
}
