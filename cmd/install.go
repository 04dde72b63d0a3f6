package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/saltproject/minion-setup/internal/detect"
	"github.com/saltproject/minion-setup/internal/installer"
	"github.com/saltproject/minion-setup/internal/minionconf"
	"github.com/saltproject/minion-setup/internal/prompt"
	"github.com/saltproject/minion-setup/internal/svc"
)

var installOpts installer.Options

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the salt-minion agent and register its service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SetOut(cmd.OutOrStdout())
		installOpts.Unattended = unattended

		deps := installer.Deps{
			Env:     detect.EnvFromSystem(),
			Store:   newStore(),
			Service: svc.NewManager(),
			Owner:   newOwnerLookup(),
			Confirm: newConfirmer(cmd),
			ExeDir:  exeDir(),
		}

		ic, err := installer.Run(cmd.Context(), deps, installOpts)
		if errors.Is(err, minionconf.ErrAborted) {
			cmd.Println("Setup cancelled.")
			return err
		}
		if err != nil {
			return err
		}

		cmd.Printf("salt-minion installed to %s (config root %s, strategy %s)\n",
			ic.Installation.InstallDir, ic.Installation.RootDir, ic.Strategy)
		return nil
	},
}

func init() {
	installCmd.Flags().StringVar(&installOpts.Master, "master", "", "master hostname, or a comma-separated ordered list; forces a fresh default config unless --custom-config is set")
	installCmd.Flags().StringVar(&installOpts.MinionID, "minion-name", "", "minion id; forces a fresh default config")
	installCmd.Flags().BoolVar(&installOpts.DefaultConfig, "default-config", false, "install the bundled default config even without master or minion-name overrides")
	installCmd.Flags().StringVar(&installOpts.CustomConfig, "custom-config", "", "path to a custom config file, resolved relative to the setup binary first")
	installCmd.Flags().StringVar(&installOpts.InstallDir, "install-dir", "", "install location for new installations; ignored when an installation already exists")
	installCmd.Flags().BoolVar(&installOpts.MoveConfig, "move-config", false, "relocate a legacy config root into the per-machine data directory")
	installCmd.Flags().BoolVar(&installOpts.StartMinion, "start-minion", true, "start the service once the install finishes")
	installCmd.Flags().BoolVar(&installOpts.StartMinionDelayed, "start-minion-delayed", false, "set the service to delayed automatic start")
}

// newConfirmer answers prompts from the terminal, or with the documented
// defaults under unattended mode.
func newConfirmer(cmd *cobra.Command) prompt.Confirmer {
	if unattended {
		return prompt.Unattended{}
	}
	return &prompt.Terminal{In: os.Stdin, Out: cmd.OutOrStdout()}
}
