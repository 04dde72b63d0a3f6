package cmd

import (
	"github.com/spf13/cobra"

	"github.com/saltproject/minion-setup/internal/detect"
	"github.com/saltproject/minion-setup/internal/svc"
	"github.com/saltproject/minion-setup/internal/uninstall"
)

var uninstallOpts uninstall.Options

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the salt-minion service, binaries and persisted state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SetOut(cmd.OutOrStdout())

		env := detect.EnvFromSystem()
		store := newStore()

		// a partial or foreign install may have no record; the detector
		// falls back to the legacy probe and then the default paths, and
		// every removal below is existence-checked
		inst, err := detect.Detect(env, store, "")
		if err != nil {
			return err
		}

		remover := &uninstall.Remover{
			Env:     env,
			Store:   store,
			Service: svc.NewManager(),
			Confirm: newConfirmer(cmd),
			Opts:    uninstallOpts,
		}
		if err := remover.Run(cmd.Context(), inst); err != nil {
			return err
		}

		cmd.Println("salt-minion has been uninstalled")
		return nil
	},
}

func init() {
	uninstallCmd.Flags().BoolVar(&uninstallOpts.DeleteInstallDir, "delete-install-dir", false, "delete the install directory without prompting")
	uninstallCmd.Flags().BoolVar(&uninstallOpts.DeleteRootDir, "delete-root-dir", false, "delete the config/state root directory without prompting")
}
