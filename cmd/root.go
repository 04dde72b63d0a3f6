package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/saltproject/minion-setup/util"
)

const envVarPrefix = "SALT_SETUP_"

var (
	logLevel   string
	logFile    string
	unattended bool

	rootCmd = &cobra.Command{
		Use:          "minion-setup",
		Short:        "Install, configure and remove the salt-minion agent",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// assigned here rather than in the composite literal so the closure can
	// run against whichever command was invoked
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		SetFlagsFromEnvVars(cmd)
		if logFile == "" {
			logFile = defaultLogFile()
		}
		return util.InitLog(logLevel, logFile)
	}

	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "sets the setup log level")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "sets the per-run log path; \"console\" logs to stdout (default a timestamped file under the temp directory)")
	rootCmd.PersistentFlags().BoolVarP(&unattended, "unattended", "S", false, "unattended mode: confirmation prompts auto-resolve to their defaults")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

// defaultLogFile names the timestamped per-run log used for post-mortem
// diagnosis.
func defaultLogFile() string {
	ts := time.Now().Format("20060102-150405")
	return filepath.Join(os.TempDir(), fmt.Sprintf("salt-minion-setup-%s.log", ts))
}

// SetFlagsFromEnvVars reads and updates flag values from environment
// variables with prefix SALT_SETUP_, covering both the command's own flags
// and the persistent flags it inherits.
func SetFlagsFromEnvVars(cmd *cobra.Command) {
	setFlagsFromEnv(cmd.InheritedFlags())
	setFlagsFromEnv(cmd.LocalFlags())
}

func setFlagsFromEnv(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		envVar := FlagNameToEnvVar(f.Name, envVarPrefix)

		if value, present := os.LookupEnv(envVar); present {
			err := flags.Set(f.Name, value)
			if err != nil {
				log.Infof("unable to configure flag %s using variable %s, err: %v", f.Name, envVar, err)
			}
		}
	})
}

// FlagNameToEnvVar converts flag name to environment var name adding a prefix,
// replacing dashes and making all uppercase (e.g. custom-config is converted
// to SALT_SETUP_CUSTOM_CONFIG according to the input prefix)
func FlagNameToEnvVar(cmdFlag string, prefix string) string {
	parsed := strings.ReplaceAll(cmdFlag, "-", "_")
	upper := strings.ToUpper(parsed)
	return prefix + upper
}

// exeDir locates the directory the setup binary runs from; staged payload
// and templates are resolved against it.
func exeDir() string {
	exePath, err := os.Executable()
	if err != nil {
		log.Warnf("unable to locate setup binary: %v", err)
		return "."
	}
	return filepath.Dir(exePath)
}
