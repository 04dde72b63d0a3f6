package detect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saltproject/minion-setup/internal/state"
)

func testEnv(t *testing.T) Env {
	t.Helper()
	return Env{
		ProgramFiles: filepath.Join(t.TempDir(), "Program Files"),
		ProgramData:  filepath.Join(t.TempDir(), "ProgramData"),
		SystemDrive:  t.TempDir(),
		SystemRoot:   filepath.Join(t.TempDir(), "Windows"),
	}
}

func plantLegacyInstall(t *testing.T, env Env) {
	t.Helper()
	binDir := filepath.Join(env.LegacyRoot(), "bin")
	require.NoError(t, os.MkdirAll(binDir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "python.exe"), []byte{}, 0700))
}

func TestDetectExclusivity(t *testing.T) {
	record := &state.Record{InstallDir: `C:\custom\salt`, RootDir: `C:\data\salt`, Version: "3006.1"}

	cases := []struct {
		name          string
		recordPresent bool
		legacyPresent bool
		want          Method
	}{
		{"neither", false, false, MethodNew},
		{"record only", true, false, MethodModern},
		{"legacy only", false, true, MethodLegacy},
		{"record wins over legacy", true, true, MethodModern},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			env := testEnv(t)
			store := state.NewMemoryStore()
			if c.recordPresent {
				require.NoError(t, store.Save(record))
			}
			if c.legacyPresent {
				plantLegacyInstall(t, env)
			}

			inst, err := Detect(env, store, "")
			require.NoError(t, err)

			assert.Equal(t, c.want, inst.Method)
			assert.Equal(t, c.recordPresent || c.legacyPresent, inst.Existing)
			assert.NotEmpty(t, inst.InstallDir)
			assert.NotEmpty(t, inst.RootDir)
		})
	}
}

func TestDetectNewUsesDefaults(t *testing.T) {
	env := testEnv(t)

	inst, err := Detect(env, state.NewMemoryStore(), "")
	require.NoError(t, err)

	assert.Equal(t, MethodNew, inst.Method)
	assert.False(t, inst.Existing)
	assert.Equal(t, env.DefaultInstallDir(), inst.InstallDir)
	assert.Equal(t, env.DefaultRootDir(), inst.RootDir)
}

func TestDetectNewHonorsCustomInstallDir(t *testing.T) {
	env := testEnv(t)
	custom := filepath.Join(t.TempDir(), "elsewhere")

	inst, err := Detect(env, state.NewMemoryStore(), custom)
	require.NoError(t, err)

	assert.Equal(t, custom, inst.InstallDir)
	assert.Equal(t, env.DefaultRootDir(), inst.RootDir)
}

func TestDetectExistingIgnoresCustomInstallDir(t *testing.T) {
	env := testEnv(t)
	store := state.NewMemoryStore()
	require.NoError(t, store.Save(&state.Record{InstallDir: `C:\prior\salt`, RootDir: `C:\prior\data`}))

	inst, err := Detect(env, store, filepath.Join(t.TempDir(), "elsewhere"))
	require.NoError(t, err)

	assert.Equal(t, MethodModern, inst.Method)
	assert.Equal(t, `C:\prior\salt`, inst.InstallDir)
}

func TestDetectLegacyAdoptsSingleTree(t *testing.T) {
	env := testEnv(t)
	plantLegacyInstall(t, env)

	inst, err := Detect(env, state.NewMemoryStore(), "")
	require.NoError(t, err)

	assert.Equal(t, MethodLegacy, inst.Method)
	assert.True(t, inst.Existing)
	assert.Equal(t, env.LegacyRoot(), inst.InstallDir)
	assert.Equal(t, inst.InstallDir, inst.RootDir)
}

func TestDetectHalfWrittenRecordFallsThrough(t *testing.T) {
	// a crash between the two path writes leaves a partial record; the
	// detector must treat it as absent and fall back to probing
	env := testEnv(t)
	plantLegacyInstall(t, env)
	store := state.NewMemoryStore()
	require.NoError(t, store.Save(&state.Record{InstallDir: `C:\partial\salt`}))

	inst, err := Detect(env, store, "")
	require.NoError(t, err)

	assert.Equal(t, MethodLegacy, inst.Method)
}
