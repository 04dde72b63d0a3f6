package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saltproject/minion-setup/internal/detect"
	"github.com/saltproject/minion-setup/internal/minionconf"
	"github.com/saltproject/minion-setup/internal/svc"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the detected installation and its configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SetOut(cmd.OutOrStdout())

		env := detect.EnvFromSystem()
		inst, err := detect.Detect(env, newStore(), "")
		if err != nil {
			return err
		}

		cmd.Printf("Installation:  %s\n", inst.Method)
		cmd.Printf("Install dir:   %s\n", inst.InstallDir)
		cmd.Printf("Root dir:      %s\n", inst.RootDir)
		if inst.PriorVersion != "" {
			cmd.Printf("Version:       %s\n", inst.PriorVersion)
		}

		if st, err := svc.NewManager().Status(); err == nil {
			cmd.Printf("Service:       %s\n", st)
		}

		// read-only config probe, no trust validation side effects here
		for _, root := range []string{inst.RootDir, env.LegacyRoot()} {
			configPath := filepath.Join(root, "conf", minionconf.FileName)
			f, err := os.Open(configPath)
			if err != nil {
				continue
			}
			masters, minionID, err := minionconf.ParseConfig(f)
			_ = f.Close()
			if err != nil {
				return err
			}
			if len(masters) == 0 {
				masters = []string{minionconf.DefaultMaster}
			}
			if minionID == "" {
				minionID = minionconf.DefaultMinionID
			}
			cmd.Printf("Config:        %s\n", configPath)
			cmd.Printf("Master:        %s\n", strings.Join(masters, ", "))
			cmd.Printf("Minion id:     %s\n", minionID)
			break
		}
		return nil
	},
}
