// Package minionconf locates, validates and rewrites the minion configuration
// file that governs which master the agent reports to and under which id.
package minionconf

import (
	"errors"
	"time"
)

const (
	// FileName is the config file name under <root>\conf.
	FileName = "minion"
	// FragmentDirName is the drop-in fragment directory under <root>\conf.
	FragmentDirName = "minion.d"

	// DefaultMaster is the sentinel master value meaning "unconfigured".
	DefaultMaster = "salt"
	// DefaultMinionID is the sentinel id value meaning "use the machine
	// hostname".
	DefaultMinionID = "hostname"
)

// DefaultTrustedOwners are the two identities under which this installer or
// an equivalent one can legitimately have created the config directory:
// the builtin Administrators group and the Local System account. Kept as
// data so a different trust model can swap the allowlist without code
// changes.
var DefaultTrustedOwners = []string{
	"S-1-5-32-544",
	"S-1-5-18",
}

// ErrAborted is returned when the operator declines a confirmation that the
// run cannot proceed without.
var ErrAborted = errors.New("cancelled by user")

// OwnerLookup resolves the security principal owning a filesystem path.
// The production implementation reads the Windows security descriptor;
// tests substitute fakes.
type OwnerLookup interface {
	Owner(path string) (string, error)
}

// Timestamp formats now the way backup and quarantine suffixes expect.
func Timestamp(now time.Time) string {
	return now.Format("20060102-150405")
}
