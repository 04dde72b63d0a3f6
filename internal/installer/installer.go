// Package installer sequences a full install run: detection, config
// discovery, strategy resolution, file staging, state persistence and service
// registration. Steps run top to bottom; the first fatal error stops the run
// with no rollback of state already written.
package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/saltproject/minion-setup/internal/detect"
	"github.com/saltproject/minion-setup/internal/minionconf"
	"github.com/saltproject/minion-setup/internal/prompt"
	"github.com/saltproject/minion-setup/internal/state"
	"github.com/saltproject/minion-setup/internal/svc"
	"github.com/saltproject/minion-setup/internal/uninstall"
	"github.com/saltproject/minion-setup/util"
	"github.com/saltproject/minion-setup/version"
)

const (
	agentBinary = "salt-minion.exe"
	setupBinary = "minion-setup.exe"
)

// Options mirror the install command-line switches.
type Options struct {
	Master             string
	MinionID           string
	DefaultConfig      bool
	CustomConfig       string
	InstallDir         string
	MoveConfig         bool
	StartMinion        bool
	StartMinionDelayed bool
	Unattended         bool
}

// Deps are the collaborators an install run talks to. All of them are
// substitutable in tests.
type Deps struct {
	Env     detect.Env
	Store   state.Store
	Service svc.Manager
	Owner   minionconf.OwnerLookup
	Confirm prompt.Confirmer
	Now     func() time.Time
	// ExeDir is the directory of the setup binary; the staged payload and the
	// default config template are resolved against it.
	ExeDir string
}

// InstallContext is the immutable snapshot threaded through the install
// steps. Each step receives a copy and returns an updated one; nothing is
// shared mutable state.
type InstallContext struct {
	Opts         Options
	Installation detect.Installation
	Discovery    minionconf.Discovery
	Strategy     minionconf.Strategy
	StartedAt    time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// confirmer resolves the decision-point collaborator for this run. Unattended
// runs never block on a prompt, regardless of how the Deps were wired.
func (d Deps) confirmer(opts Options) prompt.Confirmer {
	if opts.Unattended {
		return prompt.Unattended{}
	}
	return d.Confirm
}

// templatePath is the staged default config template location.
func (d Deps) templatePath() string {
	return filepath.Join(d.ExeDir, "conf", minionconf.FileName)
}

// payloadDir is the staged binary tree copied into the install directory.
func (d Deps) payloadDir() string {
	return filepath.Join(d.ExeDir, "payload")
}

// Run executes a full install. The wizard state machine orders the phases;
// each state maps to one step function over the context.
func Run(ctx context.Context, deps Deps, opts Options) (InstallContext, error) {
	ic := InstallContext{Opts: opts, StartedAt: deps.now()}

	phases := map[WizardState]func(context.Context, Deps, InstallContext) (InstallContext, error){
		StateWelcome:      stepWelcome,
		StateLicense:      stepLicense,
		StateLocation:     stepLocation,
		StateMinionConfig: stepMinionConfig,
		StateProgress:     stepProgress,
		StateFinish:       stepFinish,
	}

	// detection must happen before the first transition so the location
	// guard sees whether an installation already exists
	ic, err := stepDetect(ctx, deps, ic)
	if err != nil {
		return ic, err
	}

	for s := StateWelcome; s != StateDone; s = NextState(s, ic.Installation.Existing) {
		ic, err = phases[s](ctx, deps, ic)
		if err != nil {
			return ic, fmt.Errorf("%s: %w", s, err)
		}
	}
	return ic, nil
}

func stepDetect(_ context.Context, deps Deps, ic InstallContext) (InstallContext, error) {
	inst, err := detect.Detect(deps.Env, deps.Store, ic.Opts.InstallDir)
	if err != nil {
		return ic, err
	}
	ic.Installation = inst
	log.Infof("installation type: %s, install_dir=%s, root_dir=%s", inst.Method, inst.InstallDir, inst.RootDir)
	return ic, nil
}

func stepWelcome(_ context.Context, deps Deps, ic InstallContext) (InstallContext, error) {
	log.Infof("salt-minion setup %s starting", version.Version())

	if !ic.Installation.Existing {
		return ic, nil
	}

	confirm := deps.confirmer(ic.Opts)
	ok, err := confirm.Confirm(
		fmt.Sprintf("An existing %s installation was found at %s. Continue and upgrade it?", ic.Installation.Method, ic.Installation.InstallDir),
		true)
	if err != nil {
		return ic, err
	}
	if !ok {
		return ic, minionconf.ErrAborted
	}

	if rel := version.CompareToPrior(ic.Installation.PriorVersion); rel == version.RelationDowngrade {
		ok, err := confirm.Confirm(
			fmt.Sprintf("Installed version %s is newer than %s. Downgrade?", ic.Installation.PriorVersion, version.Version()),
			true)
		if err != nil {
			return ic, err
		}
		if !ok {
			return ic, minionconf.ErrAborted
		}
	}
	return ic, nil
}

// stepLicense exists for flow parity with the interactive wizard; the CLI
// carries no license gate.
func stepLicense(_ context.Context, _ Deps, ic InstallContext) (InstallContext, error) {
	return ic, nil
}

// stepLocation is reached for new installations only; the detector already
// applied the custom install dir, so the phase just reports the decision.
func stepLocation(_ context.Context, _ Deps, ic InstallContext) (InstallContext, error) {
	log.Infof("installing to %s", ic.Installation.InstallDir)
	return ic, nil
}

// stepMinionConfig discovers any existing config and resolves the config
// strategy for this run.
func stepMinionConfig(_ context.Context, deps Deps, ic InstallContext) (InstallContext, error) {
	disc, err := minionconf.Discover(minionconf.DiscoverOptions{
		RootDir:    ic.Installation.RootDir,
		LegacyRoot: deps.Env.LegacyRoot(),
		Owner:      deps.Owner,
		Confirm:    deps.confirmer(ic.Opts),
		Now:        deps.now,
	})
	if err != nil {
		return ic, err
	}
	ic.Discovery = disc
	// the registry record may be gone while a legacy config remains
	ic.Installation.RootDir = disc.RootDir

	ic.Strategy = minionconf.Resolve(minionconf.Inputs{
		Master:        ic.Opts.Master,
		MinionID:      ic.Opts.MinionID,
		DefaultConfig: ic.Opts.DefaultConfig,
		CustomConfig:  ic.Opts.CustomConfig,
	}, disc.Found)
	log.Infof("config strategy: %s", ic.Strategy)
	return ic, nil
}

// stepProgress performs the write phase: file staging, config
// materialization, optional config move, persisted state and service
// registration.
func stepProgress(ctx context.Context, deps Deps, ic InstallContext) (InstallContext, error) {
	if err := stagePayload(deps, ic); err != nil {
		return ic, err
	}
	if err := createRuntimeLayout(ic.Installation.RootDir); err != nil {
		return ic, err
	}
	if err := applyConfig(deps, ic); err != nil {
		return ic, err
	}

	ic, err := moveConfig(deps, ic)
	if err != nil {
		return ic, err
	}

	if err := persistState(deps, ic); err != nil {
		return ic, err
	}
	return ic, registerService(deps, ic)
}

func stepFinish(_ context.Context, deps Deps, ic InstallContext) (InstallContext, error) {
	if ic.Opts.StartMinionDelayed {
		if err := deps.Service.SetDelayedStart(); err != nil {
			log.Warnf("unable to set delayed start: %v", err)
		}
	}
	if ic.Opts.StartMinion {
		if err := deps.Service.Start(); err != nil {
			log.Warnf("unable to start service: %v", err)
		}
	}
	log.Infof("salt-minion setup finished in %s", deps.now().Sub(ic.StartedAt).Round(time.Millisecond))
	return ic, nil
}

// stagePayload copies the staged binary tree next to the setup binary into
// the install directory. A missing payload is tolerated so an upgrade run
// can reconfigure without shipping binaries.
func stagePayload(deps Deps, ic InstallContext) error {
	payload := deps.payloadDir()
	if _, err := os.Stat(payload); os.IsNotExist(err) {
		log.Debugf("no staged payload at %s, skipping binary staging", payload)
		return nil
	}
	if err := util.CopyDir(payload, ic.Installation.InstallDir); err != nil {
		return fmt.Errorf("stage binaries into %s: %w", ic.Installation.InstallDir, err)
	}
	log.Infof("staged binaries into %s", ic.Installation.InstallDir)
	return nil
}

// createRuntimeLayout creates the mutable state directories. Idempotent.
func createRuntimeLayout(rootDir string) error {
	dirs := []string{
		filepath.Join(rootDir, "conf"),
		filepath.Join(rootDir, "conf", minionconf.FragmentDirName),
		filepath.Join(rootDir, "conf", "pki", "minion"),
		filepath.Join(rootDir, "var", "cache", "salt", "minion", "extmods"),
		filepath.Join(rootDir, "var", "cache", "salt", "minion", "proc"),
		filepath.Join(rootDir, "var", "log", "salt"),
		filepath.Join(rootDir, "var", "run"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func applyConfig(deps Deps, ic InstallContext) error {
	confDir := filepath.Join(ic.Installation.RootDir, "conf")

	templatePath := ""
	if ic.Strategy == minionconf.UseDefault {
		// stage a throwaway copy of the bundled template; Apply moves it
		// into place
		staged := filepath.Join(confDir, "."+minionconf.FileName+"-default.tmp")
		if err := util.CopyFileContents(deps.templatePath(), staged); err != nil {
			return fmt.Errorf("stage default config template: %w", err)
		}
		templatePath = staged
	}

	return minionconf.Apply(minionconf.ApplyOptions{
		Strategy:     ic.Strategy,
		ConfDir:      confDir,
		TemplatePath: templatePath,
		CustomConfig: ic.Opts.CustomConfig,
		ExeDir:       deps.ExeDir,
		Master:       ic.Opts.Master,
		MinionID:     ic.Opts.MinionID,
		Now:          deps.now,
	})
}

// moveConfig relocates a legacy config root into the per-machine data
// location when requested. A non-empty destination needs confirmation;
// declining aborts the run.
func moveConfig(deps Deps, ic InstallContext) (InstallContext, error) {
	if !ic.Opts.MoveConfig {
		return ic, nil
	}
	src := ic.Installation.RootDir
	dst := deps.Env.DefaultRootDir()
	if src == dst {
		log.Debug("config root already at its destination, nothing to move")
		return ic, nil
	}

	dstConf := filepath.Join(dst, "conf")
	empty, err := util.IsDirEmpty(dstConf)
	if err != nil {
		return ic, fmt.Errorf("inspect move destination: %w", err)
	}
	if !empty {
		ok, err := deps.confirmer(ic.Opts).Confirm(fmt.Sprintf("Destination %s is not empty. Overwrite its contents?", dstConf), true)
		if err != nil {
			return ic, err
		}
		if !ok {
			return ic, fmt.Errorf("config move to non-empty %s: %w", dstConf, minionconf.ErrAborted)
		}
	}

	srcConf := filepath.Join(src, "conf")
	if err := util.CopyDir(srcConf, dstConf); err != nil {
		return ic, fmt.Errorf("move config from %s to %s: %w", srcConf, dstConf, err)
	}
	if err := os.RemoveAll(srcConf); err != nil {
		log.Warnf("unable to remove old config at %s: %v", srcConf, err)
	}
	log.Infof("moved config root from %s to %s", src, dst)

	ic.Installation.RootDir = dst
	return ic, nil
}

func persistState(deps Deps, ic InstallContext) error {
	record := &state.Record{
		InstallDir: ic.Installation.InstallDir,
		RootDir:    ic.Installation.RootDir,
		Version:    version.Version(),
	}
	if err := deps.Store.Save(record); err != nil {
		return fmt.Errorf("persist installation record: %w", err)
	}

	entry := state.UninstallEntry{
		DisplayName:    "Salt Minion",
		DisplayVersion: version.Version(),
		Publisher:      "Salt Project",
		// quoted so the OS parses the spaced install path as one token
		UninstallString: fmt.Sprintf(`"%s" uninstall`, filepath.Join(ic.Installation.InstallDir, setupBinary)),
		InstallLocation: ic.Installation.InstallDir,
	}
	if err := deps.Store.WriteUninstallEntry(entry); err != nil {
		log.Warnf("unable to write uninstall metadata: %v", err)
	}
	if err := deps.Store.RegisterCommands(ic.Installation.InstallDir, uninstall.CommandExes); err != nil {
		log.Warnf("unable to register commands: %v", err)
	}
	return nil
}

func registerService(deps Deps, ic InstallContext) error {
	binPath := filepath.Join(ic.Installation.InstallDir, agentBinary)
	if err := deps.Service.Register(binPath, ic.Installation.RootDir); err != nil {
		// the service is the product; a failed create aborts the run
		return fmt.Errorf("register service: %w", err)
	}
	return nil
}
