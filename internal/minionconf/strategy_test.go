package minionconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDecisionTable(t *testing.T) {
	cases := []struct {
		name         string
		in           Inputs
		foundTrusted bool
		want         Strategy
	}{
		{"custom wins over everything", Inputs{CustomConfig: "foo.conf", Master: "m", DefaultConfig: true}, true, UseCustom},
		{"default flag", Inputs{DefaultConfig: true}, true, UseDefault},
		{"master override forces default", Inputs{Master: "m.example.com"}, true, UseDefault},
		{"id override forces default", Inputs{MinionID: "web01"}, true, UseDefault},
		{"trusted existing config", Inputs{}, true, UseExisting},
		{"nothing found falls back to default", Inputs{}, false, UseDefault},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Resolve(c.in, c.foundTrusted))
		})
	}
}

func TestApplyDefaultBacksUpAndInstallsTemplate(t *testing.T) {
	confDir := filepath.Join(t.TempDir(), "conf")
	require.NoError(t, os.MkdirAll(filepath.Join(confDir, FragmentDirName), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(confDir, FragmentDirName, "extra.conf"), []byte("log_level: debug\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(confDir, FileName), []byte("master: old\n"), 0600))

	template := filepath.Join(t.TempDir(), "minion-template")
	require.NoError(t, os.WriteFile(template, []byte("#master: salt\n#id: hostname\n"), 0600))

	err := Apply(ApplyOptions{
		Strategy:     UseDefault,
		ConfDir:      confDir,
		TemplatePath: template,
		Master:       "new.example.com",
		Now:          fixedNow,
	})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(confDir, FileName))
	require.NoError(t, err)
	assert.Equal(t, "master: new.example.com\n#id: hostname\n", string(got))

	ts := Timestamp(fixedNow())
	_, err = os.Stat(filepath.Join(confDir, FileName+"-"+ts+".bak"))
	assert.NoError(t, err, "old config should be backed up")
	_, err = os.Stat(filepath.Join(confDir, FragmentDirName+"-"+ts+".bak", "extra.conf"))
	assert.NoError(t, err, "fragment contents should be backed up")

	info, err := os.Stat(filepath.Join(confDir, FragmentDirName))
	require.NoError(t, err, "fragment dir should still exist after backup")
	assert.True(t, info.IsDir())
}

func TestApplyDefaultKeepsEmptyFragmentDir(t *testing.T) {
	confDir := filepath.Join(t.TempDir(), "conf")
	require.NoError(t, os.MkdirAll(filepath.Join(confDir, FragmentDirName), 0750))

	template := filepath.Join(t.TempDir(), "minion-template")
	require.NoError(t, os.WriteFile(template, []byte("#master: salt\n"), 0600))

	err := Apply(ApplyOptions{
		Strategy:     UseDefault,
		ConfDir:      confDir,
		TemplatePath: template,
		Master:       "new.example.com",
		Now:          fixedNow,
	})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(confDir, FragmentDirName))
	require.NoError(t, err, "empty fragment dir must survive a default install")
	assert.True(t, info.IsDir())

	ts := Timestamp(fixedNow())
	_, err = os.Stat(filepath.Join(confDir, FragmentDirName+"-"+ts+".bak"))
	assert.True(t, os.IsNotExist(err), "an empty fragment dir needs no backup")
}

func TestApplyExistingWritesNothing(t *testing.T) {
	confDir := filepath.Join(t.TempDir(), "conf")
	require.NoError(t, os.MkdirAll(confDir, 0750))
	original := "master: keep.example.com\nid: keep\n"
	require.NoError(t, os.WriteFile(filepath.Join(confDir, FileName), []byte(original), 0600))

	err := Apply(ApplyOptions{
		Strategy: UseExisting,
		ConfDir:  confDir,
		// overrides must be ignored when keeping the existing config
		Master:   "other.example.com",
		MinionID: "other",
		Now:      fixedNow,
	})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(confDir, FileName))
	require.NoError(t, err)
	assert.Equal(t, original, string(got))
}

func TestApplyCustomResolvesAgainstExeDir(t *testing.T) {
	exeDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(exeDir, "foo.conf"), []byte("custom_option: true\nmaster: placeholder\n"), 0600))

	confDir := filepath.Join(t.TempDir(), "conf")
	err := Apply(ApplyOptions{
		Strategy:     UseCustom,
		ConfDir:      confDir,
		CustomConfig: "foo.conf",
		ExeDir:       exeDir,
		Master:       "10.0.0.5",
		Now:          fixedNow,
	})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(confDir, FileName))
	require.NoError(t, err)
	assert.Equal(t, "custom_option: true\nmaster: 10.0.0.5\n", string(got))
}

func TestApplyCustomMissingFileIsFatal(t *testing.T) {
	err := Apply(ApplyOptions{
		Strategy:     UseCustom,
		ConfDir:      filepath.Join(t.TempDir(), "conf"),
		CustomConfig: "does-not-exist.conf",
		ExeDir:       t.TempDir(),
		Now:          fixedNow,
	})
	require.ErrorIs(t, err, ErrCustomConfigNotFound)
}

func TestRenameWithBackupAvoidsCollisions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	ts := Timestamp(fixedNow())

	// simulate an earlier backup from the same second
	require.NoError(t, os.WriteFile(path+"-"+ts+".bak", []byte("earlier"), 0600))
	require.NoError(t, os.WriteFile(path, []byte("current"), 0600))

	require.NoError(t, renameWithBackup(path, ts))

	earlier, err := os.ReadFile(path + "-" + ts + ".bak")
	require.NoError(t, err)
	assert.Equal(t, "earlier", string(earlier))

	bumped, err := os.ReadFile(path + "-" + ts + ".1.bak")
	require.NoError(t, err)
	assert.Equal(t, "current", string(bumped))
}
