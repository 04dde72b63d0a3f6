//go:build !windows

package cmd

import (
	"fmt"

	"github.com/saltproject/minion-setup/internal/minionconf"
	"github.com/saltproject/minion-setup/internal/state"
)

// non-Windows builds exist for development and CI; they carry no system
// registry or security-descriptor support.

func newStore() state.Store {
	return state.NewMemoryStore()
}

type unsupportedOwner struct{}

func (unsupportedOwner) Owner(path string) (string, error) {
	return "", fmt.Errorf("owner lookup for %s is not supported on this platform", path)
}

func newOwnerLookup() minionconf.OwnerLookup {
	return unsupportedOwner{}
}
