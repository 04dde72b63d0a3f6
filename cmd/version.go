package cmd

import (
	"github.com/spf13/cobra"

	"github.com/saltproject/minion-setup/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the setup version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SetOut(cmd.OutOrStdout())
		cmd.Println(version.Version())
	},
}
