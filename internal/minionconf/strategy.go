package minionconf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/saltproject/minion-setup/util"
)

// Strategy is the resolved decision of which config source governs the final
// on-disk config for this run.
type Strategy int

const (
	// UseExisting keeps whatever trusted config is already on disk.
	UseExisting Strategy = iota
	// UseDefault installs the bundled default template.
	UseDefault
	// UseCustom installs an operator-supplied config file.
	UseCustom
)

func (s Strategy) String() string {
	switch s {
	case UseExisting:
		return "existing"
	case UseCustom:
		return "custom"
	default:
		return "default"
	}
}

// Inputs are the operator-supplied knobs that influence strategy resolution.
type Inputs struct {
	Master        string
	MinionID      string
	DefaultConfig bool
	CustomConfig  string
}

// Resolve picks exactly one strategy. First matching rule wins: an explicit
// custom config, then anything forcing a fresh default (the flag or a
// master/id override), then a trusted existing config, then the default
// fallback.
func Resolve(in Inputs, foundTrusted bool) Strategy {
	switch {
	case in.CustomConfig != "":
		return UseCustom
	case in.DefaultConfig || in.Master != "" || in.MinionID != "":
		return UseDefault
	case foundTrusted:
		return UseExisting
	default:
		return UseDefault
	}
}

// ErrCustomConfigNotFound aborts the run when the named custom config exists
// at neither candidate location.
var ErrCustomConfigNotFound = errors.New("custom config file not found")

// ApplyOptions parameterizes Apply.
type ApplyOptions struct {
	Strategy Strategy
	// ConfDir is <root>\conf.
	ConfDir string
	// TemplatePath is the staged default config template.
	TemplatePath string
	// CustomConfig is the operator-supplied path, resolved against ExeDir
	// first and as given second.
	CustomConfig string
	ExeDir       string
	Master       string
	MinionID     string
	Now          func() time.Time
}

// Apply materializes the config file for the resolved strategy and patches
// master/id into it. UseExisting writes nothing.
func Apply(opts ApplyOptions) error {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	switch opts.Strategy {
	case UseExisting:
		log.Info("keeping existing minion config")
		return nil
	case UseDefault:
		if err := placeDefaultConfig(opts); err != nil {
			return err
		}
	case UseCustom:
		if err := placeCustomConfig(opts); err != nil {
			return err
		}
	}

	return Merge(filepath.Join(opts.ConfDir, FileName), opts.Master, opts.MinionID)
}

func placeDefaultConfig(opts ApplyOptions) error {
	if err := os.MkdirAll(opts.ConfDir, 0750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	ts := Timestamp(opts.Now())
	if err := renameWithBackup(filepath.Join(opts.ConfDir, FileName), ts); err != nil {
		return err
	}

	// an empty fragment dir holds nothing worth preserving, and moving it
	// aside would strip it from the fresh layout
	fragmentDir := filepath.Join(opts.ConfDir, FragmentDirName)
	empty, err := util.IsDirEmpty(fragmentDir)
	if err != nil {
		return fmt.Errorf("inspect fragment dir: %w", err)
	}
	if !empty {
		if err := renameWithBackup(fragmentDir, ts); err != nil {
			return err
		}
		if err := os.MkdirAll(fragmentDir, 0750); err != nil {
			return fmt.Errorf("recreate fragment dir: %w", err)
		}
	}

	target := filepath.Join(opts.ConfDir, FileName)
	if err := os.Rename(opts.TemplatePath, target); err != nil {
		// staged template may live on another volume
		if err := util.CopyFileContents(opts.TemplatePath, target); err != nil {
			return fmt.Errorf("place default config: %w", err)
		}
		if err := os.Remove(opts.TemplatePath); err != nil {
			log.Warnf("unable to remove staged template %s: %v", opts.TemplatePath, err)
		}
	}
	log.Infof("installed default config at %s", target)
	return nil
}

func placeCustomConfig(opts ApplyOptions) error {
	if err := os.MkdirAll(opts.ConfDir, 0750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	source := filepath.Join(opts.ExeDir, opts.CustomConfig)
	if _, err := os.Stat(source); err != nil {
		source = opts.CustomConfig
		if _, err := os.Stat(source); err != nil {
			return fmt.Errorf("%w: %s", ErrCustomConfigNotFound, opts.CustomConfig)
		}
	}

	target := filepath.Join(opts.ConfDir, FileName)
	if err := util.CopyFileContents(source, target); err != nil {
		return fmt.Errorf("place custom config: %w", err)
	}
	log.Infof("installed custom config %s at %s", source, target)
	return nil
}

// renameWithBackup moves path aside with a "-<timestamp>.bak" suffix. Missing
// paths are ignored; a colliding backup name gets a numeric suffix so the run
// never overwrites an earlier backup.
func renameWithBackup(path, ts string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	backup := path + "-" + ts + ".bak"
	for i := 1; ; i++ {
		if _, err := os.Stat(backup); os.IsNotExist(err) {
			break
		}
		backup = fmt.Sprintf("%s-%s.%d.bak", path, ts, i)
	}

	if err := os.Rename(path, backup); err != nil {
		return fmt.Errorf("back up %s: %w", path, err)
	}
	log.Infof("backed up %s to %s", path, backup)
	return nil
}
