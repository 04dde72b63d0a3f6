// Package state persists the machine-scoped installation record that links
// the program directory to the mutable data root across runs.
package state

// Record describes a completed installation. InstallDir holds the agent
// binaries, RootDir the mutable configuration and runtime state. The two are
// equal for legacy single-tree installs.
type Record struct {
	InstallDir string
	RootDir    string
	Version    string
}

// UninstallEntry is the Add/Remove Programs metadata written next to the
// record so the product shows up in the OS uninstall list.
type UninstallEntry struct {
	DisplayName     string
	DisplayVersion  string
	Publisher       string
	UninstallString string
	InstallLocation string
}

// Store reads and writes the persisted installation record. Writes are
// last-writer-wins with no transactional guarantees; callers tolerate a
// half-written record via the detector's legacy fallback.
type Store interface {
	// Load returns the persisted record, or nil when none exists.
	Load() (*Record, error)
	Save(record *Record) error
	Delete() error

	// RegisterCommands publishes per-executable lookup entries so the named
	// binaries under installDir are discoverable from a shell.
	RegisterCommands(installDir string, exes []string) error
	UnregisterCommands(exes []string) error

	WriteUninstallEntry(entry UninstallEntry) error
	DeleteUninstallEntry() error
}
