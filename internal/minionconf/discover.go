package minionconf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/saltproject/minion-setup/internal/prompt"
)

// Discovery is the outcome of probing for an existing configuration.
type Discovery struct {
	Found      bool
	Masters    []string
	MinionID   string
	ConfigPath string
	// RootDir is the effective mutable-state root, updated to the legacy
	// location when the config was only found there.
	RootDir string
}

// DiscoverOptions parameterizes Discover. Owner and Confirm must be set;
// TrustedOwners defaults to DefaultTrustedOwners, Now to time.Now.
type DiscoverOptions struct {
	RootDir       string
	LegacyRoot    string
	Owner         OwnerLookup
	TrustedOwners []string
	Confirm       prompt.Confirmer
	Now           func() time.Time
}

// Discover probes <rootDir>\conf\minion, falling back to the legacy
// well-known path, validates the owner of the containing directory and parses
// the authoritative master/id directives. A missing file is not an error. An
// untrusted owner triggers a confirmed quarantine rename of the config
// directory, after which discovery reports not-found; declining the rename
// returns ErrAborted.
func Discover(opts DiscoverOptions) (Discovery, error) {
	if opts.TrustedOwners == nil {
		opts.TrustedOwners = DefaultTrustedOwners
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	result := Discovery{
		Masters:  []string{DefaultMaster},
		MinionID: DefaultMinionID,
		RootDir:  opts.RootDir,
	}

	configPath := filepath.Join(opts.RootDir, "conf", FileName)
	if _, err := os.Stat(configPath); err != nil {
		if opts.LegacyRoot == "" {
			return result, nil
		}
		legacyPath := filepath.Join(opts.LegacyRoot, "conf", FileName)
		if _, err := os.Stat(legacyPath); err != nil {
			return result, nil
		}
		// the persisted record may be missing while a legacy config still
		// exists; adopt the legacy root for the rest of the run
		log.Infof("no config at %s, using legacy config at %s", configPath, legacyPath)
		configPath = legacyPath
		result.RootDir = opts.LegacyRoot
	}

	trusted, err := validateOwner(filepath.Dir(configPath), opts)
	if err != nil {
		return Discovery{}, err
	}
	if !trusted {
		// directory was quarantined, proceed as if nothing was found
		result.RootDir = opts.RootDir
		return result, nil
	}

	f, err := os.Open(configPath)
	if err != nil {
		return Discovery{}, fmt.Errorf("open config %s: %w", configPath, err)
	}
	defer f.Close()

	masters, minionID, err := ParseConfig(f)
	if err != nil {
		return Discovery{}, fmt.Errorf("parse config %s: %w", configPath, err)
	}

	result.Found = true
	result.ConfigPath = configPath
	if len(masters) > 0 {
		result.Masters = masters
	}
	if minionID != "" {
		result.MinionID = minionID
	}
	return result, nil
}

// validateOwner accepts the config directory only when its owner is on the
// allowlist. An untrusted owner is quarantined (after confirmation) by
// renaming the directory with an .insecure-<timestamp> suffix.
func validateOwner(confDir string, opts DiscoverOptions) (bool, error) {
	owner, err := opts.Owner.Owner(confDir)
	if err != nil {
		return false, fmt.Errorf("read owner of %s: %w", confDir, err)
	}

	for _, trusted := range opts.TrustedOwners {
		if strings.EqualFold(owner, trusted) {
			return true, nil
		}
	}

	log.Warnf("config directory %s is owned by untrusted principal %s", confDir, owner)
	question := fmt.Sprintf("Insecure config found at %s. If you continue, the directory will be renamed and a default config used. Continue?", confDir)
	ok, err := opts.Confirm.Confirm(question, true)
	if err != nil {
		return false, fmt.Errorf("confirm insecure config handling: %w", err)
	}
	if !ok {
		return false, fmt.Errorf("insecure config at %s: %w", confDir, ErrAborted)
	}

	quarantined := confDir + ".insecure-" + Timestamp(opts.Now())
	if err := os.Rename(confDir, quarantined); err != nil {
		return false, fmt.Errorf("quarantine insecure config dir: %w", err)
	}
	log.Infof("renamed insecure config directory to %s", quarantined)
	return false, nil
}

// ParseConfig scans a minion config line by line and returns the
// authoritative master list and minion id. Only the first uncommented
// occurrence of each directive counts; a bare "master:" line is followed by
// "  - <value>" list items up to the first line that is not a well-formed
// item. Absent directives yield empty results.
func ParseConfig(r io.Reader) (masters []string, minionID string, err error) {
	scanner := bufio.NewScanner(r)

	var inMasterList bool
	var masterSeen, idSeen bool
	for scanner.Scan() {
		line := scanner.Text()

		if inMasterList {
			if item, ok := listItem(line); ok {
				masters = append(masters, item)
				continue
			}
			inMasterList = false
		}

		if !masterSeen && strings.HasPrefix(line, "master:") {
			masterSeen = true
			value := strings.TrimSpace(line[len("master:"):])
			if value == "" {
				inMasterList = true
			} else {
				masters = append(masters, value)
			}
			continue
		}

		if !idSeen && strings.HasPrefix(line, "id:") {
			idSeen = true
			minionID = strings.TrimSpace(line[len("id:"):])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, "", err
	}
	return masters, minionID, nil
}

// listItem reports whether line is a well-formed "  - <value>" block-list
// entry and returns the value.
func listItem(line string) (string, bool) {
	if !strings.HasPrefix(line, "  - ") {
		return "", false
	}
	value := strings.TrimSpace(line[len("  - "):])
	if value == "" {
		return "", false
	}
	return value, true
}
