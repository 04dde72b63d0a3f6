// Package detect decides, before anything is written, whether a run is a
// fresh install, an upgrade of a modern install or an upgrade of a legacy
// single-tree install, and which directories the rest of the run operates on.
package detect

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/saltproject/minion-setup/internal/state"
)

// Method is the layout of an installation.
type Method int

const (
	// MethodNew is a not-yet-existing installation.
	MethodNew Method = iota
	// MethodLegacy is the historical layout with binaries and mutable state
	// sharing one tree at a fixed path.
	MethodLegacy
	// MethodModern splits binaries (program files) from mutable state
	// (per-machine app data), linked via the persisted record.
	MethodModern
)

func (m Method) String() string {
	switch m {
	case MethodLegacy:
		return "legacy"
	case MethodModern:
		return "modern"
	default:
		return "new"
	}
}

// Env carries the platform directory roots the detector derives its defaults
// from. Populated from the process environment in production, injectable in
// tests.
type Env struct {
	ProgramFiles string
	ProgramData  string
	SystemDrive  string
	SystemRoot   string
}

// EnvFromSystem reads the 64-bit aware platform directories from the process
// environment.
func EnvFromSystem() Env {
	systemDrive := os.Getenv("SystemDrive")
	if systemDrive == "" {
		systemDrive = `C:`
	}
	return Env{
		ProgramFiles: os.Getenv("ProgramW6432"),
		ProgramData:  os.Getenv("ProgramData"),
		SystemDrive:  systemDrive,
		SystemRoot:   os.Getenv("SystemRoot"),
	}
}

// DefaultInstallDir is the modern program directory for a fresh install.
func (e Env) DefaultInstallDir() string {
	return filepath.Join(e.ProgramFiles, "Salt Project", "Salt")
}

// DefaultRootDir is the modern mutable-state root for a fresh install.
func (e Env) DefaultRootDir() string {
	return filepath.Join(e.ProgramData, "Salt Project", "Salt")
}

// LegacyRoot is the fixed well-known path of historical installs.
func (e Env) LegacyRoot() string {
	return filepath.Join(e.SystemDrive+string(os.PathSeparator), "salt")
}

// legacyProbe is the file whose presence marks a legacy installation.
func (e Env) legacyProbe() string {
	return filepath.Join(e.LegacyRoot(), "bin", "python.exe")
}

// Installation is the detector's decision for this run.
type Installation struct {
	Method       Method
	InstallDir   string
	RootDir      string
	Existing     bool
	PriorVersion string
}

// Detect resolves the effective install and root directories. Precedence:
// persisted modern record, then the legacy probe, then a new installation
// using customInstallDir or the platform default. Read-only.
func Detect(env Env, store state.Store, customInstallDir string) (Installation, error) {
	record, err := store.Load()
	if err != nil {
		return Installation{}, fmt.Errorf("load installation record: %w", err)
	}
	if record != nil && record.InstallDir != "" && record.RootDir != "" {
		inst := Installation{
			Method:       MethodModern,
			InstallDir:   record.InstallDir,
			RootDir:      record.RootDir,
			Existing:     true,
			PriorVersion: record.Version,
		}
		log.Infof("found existing %s installation: install_dir=%s root_dir=%s", inst.Method, inst.InstallDir, inst.RootDir)
		return inst, nil
	}

	if _, err := os.Stat(env.legacyProbe()); err == nil {
		legacy := env.LegacyRoot()
		log.Infof("found existing legacy installation at %s", legacy)
		return Installation{
			Method:     MethodLegacy,
			InstallDir: legacy,
			RootDir:    legacy,
			Existing:   true,
		}, nil
	}

	installDir := env.DefaultInstallDir()
	if customInstallDir != "" {
		installDir = customInstallDir
	}
	return Installation{
		Method:     MethodNew,
		InstallDir: installDir,
		RootDir:    env.DefaultRootDir(),
	}, nil
}
