package minionconf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saltproject/minion-setup/internal/prompt"
)

type fakeOwner struct {
	sid string
	err error
}

func (f fakeOwner) Owner(string) (string, error) {
	return f.sid, f.err
}

type fakeConfirmer struct {
	answer    bool
	questions []string
}

func (f *fakeConfirmer) Confirm(question string, _ bool) (bool, error) {
	f.questions = append(f.questions, question)
	return f.answer, nil
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 1, 12, 30, 15, 0, time.UTC)
}

func writeRootConfig(t *testing.T, root, content string) string {
	t.Helper()
	confDir := filepath.Join(root, "conf")
	require.NoError(t, os.MkdirAll(confDir, 0750))
	path := filepath.Join(confDir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func trustedOwner() fakeOwner {
	return fakeOwner{sid: DefaultTrustedOwners[0]}
}

func TestDiscoverNoConfig(t *testing.T) {
	root := t.TempDir()

	disc, err := Discover(DiscoverOptions{
		RootDir: root,
		Owner:   trustedOwner(),
		Confirm: &fakeConfirmer{},
		Now:     fixedNow,
	})
	require.NoError(t, err)

	assert.False(t, disc.Found)
	assert.Equal(t, []string{DefaultMaster}, disc.Masters)
	assert.Equal(t, DefaultMinionID, disc.MinionID)
	assert.Equal(t, root, disc.RootDir)
}

func TestDiscoverTrustedConfig(t *testing.T) {
	root := t.TempDir()
	path := writeRootConfig(t, root, "master: old.example.com\nid: web01\n")

	disc, err := Discover(DiscoverOptions{
		RootDir: root,
		Owner:   trustedOwner(),
		Confirm: &fakeConfirmer{},
		Now:     fixedNow,
	})
	require.NoError(t, err)

	assert.True(t, disc.Found)
	assert.Equal(t, path, disc.ConfigPath)
	assert.Equal(t, []string{"old.example.com"}, disc.Masters)
	assert.Equal(t, "web01", disc.MinionID)
}

func TestDiscoverLegacyFallbackUpdatesRoot(t *testing.T) {
	root := t.TempDir()
	legacy := t.TempDir()
	writeRootConfig(t, legacy, "master: legacy.example.com\n")

	disc, err := Discover(DiscoverOptions{
		RootDir:    root,
		LegacyRoot: legacy,
		Owner:      trustedOwner(),
		Confirm:    &fakeConfirmer{},
		Now:        fixedNow,
	})
	require.NoError(t, err)

	assert.True(t, disc.Found)
	assert.Equal(t, legacy, disc.RootDir)
	assert.Equal(t, []string{"legacy.example.com"}, disc.Masters)
	assert.Equal(t, DefaultMinionID, disc.MinionID)
}

func TestDiscoverInsecureOwnerQuarantines(t *testing.T) {
	root := t.TempDir()
	writeRootConfig(t, root, "master: evil.example.com\n")

	disc, err := Discover(DiscoverOptions{
		RootDir: root,
		Owner:   fakeOwner{sid: "S-1-5-21-1111111111-222222222-333333333-1001"},
		Confirm: prompt.Unattended{},
		Now:     fixedNow,
	})
	require.NoError(t, err)

	assert.False(t, disc.Found)
	assert.Equal(t, []string{DefaultMaster}, disc.Masters)

	_, statErr := os.Stat(filepath.Join(root, "conf"))
	assert.True(t, os.IsNotExist(statErr), "config dir should have been renamed")

	quarantined := filepath.Join(root, "conf.insecure-"+Timestamp(fixedNow()))
	_, statErr = os.Stat(quarantined)
	assert.NoError(t, statErr, "expected quarantined dir %s", quarantined)
}

func TestDiscoverInsecureOwnerDeclinedAborts(t *testing.T) {
	root := t.TempDir()
	writeRootConfig(t, root, "master: evil.example.com\n")

	confirm := &fakeConfirmer{answer: false}
	_, err := Discover(DiscoverOptions{
		RootDir: root,
		Owner:   fakeOwner{sid: "S-1-5-21-1111111111-222222222-333333333-1001"},
		Confirm: confirm,
		Now:     fixedNow,
	})
	require.ErrorIs(t, err, ErrAborted)
	assert.Len(t, confirm.questions, 1)

	// declining must leave the directory alone
	_, statErr := os.Stat(filepath.Join(root, "conf", FileName))
	assert.NoError(t, statErr)
}

func TestDiscoverSecondTrustedOwnerAccepted(t *testing.T) {
	root := t.TempDir()
	writeRootConfig(t, root, "master: old.example.com\n")

	disc, err := Discover(DiscoverOptions{
		RootDir: root,
		Owner:   fakeOwner{sid: DefaultTrustedOwners[1]},
		Confirm: &fakeConfirmer{},
		Now:     fixedNow,
	})
	require.NoError(t, err)
	assert.True(t, disc.Found)
}

func TestParseConfig(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		masters  []string
		minionID string
	}{
		{
			name:  "empty",
			input: "",
		},
		{
			name:     "single master and id",
			input:    "master: a.example.com\nid: web01\n",
			masters:  []string{"a.example.com"},
			minionID: "web01",
		},
		{
			name:    "multi master list",
			input:   "master:\n  - a\n  - b\n  - c\nlog_level: info\n",
			masters: []string{"a", "b", "c"},
		},
		{
			name:    "list stops at first malformed item",
			input:   "master:\n  - a\n  -b\n  - c\n",
			masters: []string{"a"},
		},
		{
			name:     "commented directives are ignored",
			input:    "#master: salt\n#id: hostname\n",
			masters:  nil,
			minionID: "",
		},
		{
			name:     "first occurrence wins",
			input:    "master: one\nmaster: two\nid: a\nid: b\n",
			masters:  []string{"one"},
			minionID: "a",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			masters, minionID, err := ParseConfig(strings.NewReader(c.input))
			require.NoError(t, err)
			assert.Equal(t, c.masters, masters)
			assert.Equal(t, c.minionID, minionID)
		})
	}
}
