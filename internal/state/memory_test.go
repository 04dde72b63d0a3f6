package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()

	record, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, record, "empty store loads nil, not an error")

	saved := &Record{InstallDir: `C:\Program Files\Salt Project\Salt`, RootDir: `C:\ProgramData\Salt Project\Salt`, Version: "3006.4"}
	require.NoError(t, store.Save(saved))

	record, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, *saved, *record)

	// the loaded copy is detached from the stored one
	record.Version = "tampered"
	again, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "3006.4", again.Version)

	require.NoError(t, store.Delete())
	record, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestMemoryStoreCommands(t *testing.T) {
	store := NewMemoryStore()
	installDir := `C:\Program Files\Salt Project\Salt`
	exes := []string{"salt-minion.exe", "salt-call.exe"}

	require.NoError(t, store.RegisterCommands(installDir, exes))
	commands := store.Commands()
	require.Len(t, commands, 2)
	assert.Equal(t, filepath.Join(installDir, "salt-call.exe"), commands["salt-call.exe"])

	require.NoError(t, store.UnregisterCommands(exes))
	assert.Empty(t, store.Commands())
}

func TestMemoryStoreUninstallEntry(t *testing.T) {
	store := NewMemoryStore()
	assert.Nil(t, store.UninstallMetadata())

	entry := UninstallEntry{DisplayName: "Salt Minion", Publisher: "Salt Project"}
	require.NoError(t, store.WriteUninstallEntry(entry))
	got := store.UninstallMetadata()
	require.NotNil(t, got)
	assert.Equal(t, entry, *got)

	require.NoError(t, store.DeleteUninstallEntry())
	assert.Nil(t, store.UninstallMetadata())
}
