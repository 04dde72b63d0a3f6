package cmd

import (
	"github.com/saltproject/minion-setup/internal/minionconf"
	"github.com/saltproject/minion-setup/internal/state"
)

func newStore() state.Store {
	return state.NewRegistryStore()
}

func newOwnerLookup() minionconf.OwnerLookup {
	return minionconf.NewOwnerLookup()
}
