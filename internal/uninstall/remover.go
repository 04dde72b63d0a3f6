// Package uninstall reverses an installation, tolerating partial or foreign
// installs and refusing to touch system-critical directories no matter what
// the persisted state claims.
package uninstall

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/saltproject/minion-setup/internal/detect"
	"github.com/saltproject/minion-setup/internal/prompt"
	"github.com/saltproject/minion-setup/internal/state"
	"github.com/saltproject/minion-setup/internal/svc"
)

// binaryPatterns are the file name globs removed from the install tree.
// Files only, never directories.
var binaryPatterns = []string{
	"salt-minion.exe",
	"salt-call.exe",
	"python*.exe",
	"python*.dll",
	"*.pyd",
	"uninst.exe",
}

// binarySubdirs are the vendored trees removed recursively from installDir.
var binarySubdirs = []string{
	"bin",
	"Scripts",
	"DLLs",
	"Lib",
	"include",
}

// helperName is the bundled service-control helper carried by older package
// layouts.
const helperName = "ssm.exe"

// CommandExes are the binaries published for shell discovery at install time
// and withdrawn here.
var CommandExes = []string{"salt-minion.exe", "salt-call.exe"}

// Options control the remover.
type Options struct {
	// DeleteInstallDir and DeleteRootDir auto-confirm removal of the
	// respective directory trees.
	DeleteInstallDir bool
	DeleteRootDir    bool
}

// Remover deletes an installation previously detected by the caller.
type Remover struct {
	Env     detect.Env
	Store   state.Store
	Service svc.Manager
	Confirm prompt.Confirmer
	Opts    Options
}

// Run removes the service, binaries, optional directory trees and the
// persisted state. Every delete is existence-checked, so re-running a partial
// uninstall is safe. Failure to confirm service removal aborts before any
// file is touched.
func (r *Remover) Run(ctx context.Context, inst detect.Installation) error {
	if err := r.Service.Unregister(ctx); err != nil {
		return fmt.Errorf("remove service: %w", err)
	}

	r.removeBinaries(inst.InstallDir)
	r.removeHelper(inst.InstallDir)
	r.removeSubdirs(inst.InstallDir)

	if err := r.removeTree(inst.InstallDir, "install directory", r.Opts.DeleteInstallDir); err != nil {
		return err
	}
	if inst.RootDir != inst.InstallDir {
		if err := r.removeTree(inst.RootDir, "root directory", r.Opts.DeleteRootDir); err != nil {
			return err
		}
	}

	if err := r.Store.Delete(); err != nil {
		return fmt.Errorf("remove installation record: %w", err)
	}
	if err := r.Store.DeleteUninstallEntry(); err != nil {
		log.Warnf("unable to remove uninstall metadata: %v", err)
	}
	if err := r.Store.UnregisterCommands(CommandExes); err != nil {
		log.Warnf("unable to remove command registrations: %v", err)
	}

	log.Info("uninstall finished")
	return nil
}

// removeBinaries deletes files matching the known name patterns in
// installDir and installDir\bin. Best effort.
func (r *Remover) removeBinaries(installDir string) {
	for _, dir := range []string{installDir, filepath.Join(installDir, "bin")} {
		for _, pattern := range binaryPatterns {
			matches, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				log.Warnf("bad binary pattern %s: %v", pattern, err)
				continue
			}
			for _, match := range matches {
				if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
					log.Warnf("unable to remove %s: %v", match, err)
				} else {
					log.Debugf("removed %s", match)
				}
			}
		}
	}
}

// removeHelper deletes the service-control helper at every location a prior
// product version may have placed it. An uninstall can run against a
// different version than it was built for.
func (r *Remover) removeHelper(installDir string) {
	candidates := []string{
		filepath.Join(installDir, helperName),
		filepath.Join(installDir, "bin", helperName),
		filepath.Join(r.Env.SystemRoot, "System32", helperName),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			continue
		}
		if err := os.Remove(candidate); err != nil {
			log.Warnf("unable to remove helper %s: %v", candidate, err)
		} else {
			log.Debugf("removed helper %s", candidate)
		}
	}
}

func (r *Remover) removeSubdirs(installDir string) {
	for _, sub := range binarySubdirs {
		dir := filepath.Join(installDir, sub)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			log.Warnf("unable to remove %s: %v", dir, err)
		} else {
			log.Debugf("removed %s", dir)
		}
	}
}

// removeTree deletes an entire directory tree after confirmation, refusing
// system-critical paths unconditionally.
func (r *Remover) removeTree(dir, label string, autoConfirm bool) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	if IsCriticalPath(r.Env, dir) {
		log.Warnf("refusing to delete %s %s: system-critical path", label, dir)
		return nil
	}

	ok := autoConfirm
	if !ok {
		var err error
		ok, err = r.Confirm.Confirm(fmt.Sprintf("Delete %s %s and all its contents?", label, dir), false)
		if err != nil {
			return fmt.Errorf("confirm %s removal: %w", label, err)
		}
	}
	if !ok {
		log.Infof("keeping %s %s", label, dir)
		return nil
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s %s: %w", label, dir, err)
	}
	log.Infof("removed %s %s", label, dir)
	return nil
}

// IsCriticalPath reports whether path equals one of the directories whose
// deletion would be catastrophic: the program-files root, the system drive
// root or the Windows directory. Guards against a mis-resolved installation
// record.
func IsCriticalPath(env detect.Env, path string) bool {
	critical := []string{
		env.ProgramFiles,
		env.SystemRoot,
		env.SystemDrive,
		env.SystemDrive + string(os.PathSeparator),
	}
	cleaned := strings.ToLower(filepath.Clean(path))
	for _, c := range critical {
		if c == "" {
			continue
		}
		if cleaned == strings.ToLower(filepath.Clean(c)) {
			return true
		}
	}
	return false
}
