package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "fixloop",
	Short: "fixloop: detect, ticket, and repair failing source files",
	Long: `fixloop runs every selected source file against its fixtures on a Judge0
sandbox. Failing files get a ticket filed and a fix suggested by a completion
service, and each candidate is re-verified before it is written back.

Configuration is read from fixloop.yaml (or ~/.fixloop/config.yaml).
Credentials come from the environment or a .env file; FIXLOOP_* variables
override individual settings.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, configFlagName, "", "path to the config file (default: ./fixloop.yaml)")
	flags.String(logLevelKey, "", "log level: debug, info, warn, error")
	bindFlagToConfig(flags.Lookup(logLevelKey), logLevelKey)
	flags.String(logFileKey, "", "also write JSON logs to this rotating file")
	bindFlagToConfig(flags.Lookup(logFileKey), logFileKey)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(languagesCmd)
	rootCmd.AddCommand(ticketsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(promptsCmd)
}
