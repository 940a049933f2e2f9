// Package commands implements the authkeep command line.
package commands

import (
	"os"

	"github.com/marmos91/authkeep/cmd/authkeep/commands/config"
	"github.com/marmos91/authkeep/internal/cli/output"
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile      string
	outputFormat string
	serverURL    string
	apiToken     string
)

var rootCmd = &cobra.Command{
	Use:   "authkeep",
	Short: "authkeep - authentication for game servers",
	Long: `authkeep guards player accounts on a game server: players register and
log in before they may act, and their sessions survive reloads.

"authkeep start" runs the plugin on a standalone host with the operator API.
The remaining commands manage configuration or talk to a running instance.

Use "authkeep [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func completeOutputFormat(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	formats := []string{string(output.FormatTable), string(output.FormatJSON), string(output.FormatYAML)}
	return formats, cobra.ShellCompDirectiveNoFileComp
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/authkeep/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "API server URL (default: http://localhost:<api.port>)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv(envToken), "API bearer token (env "+envToken+")")
	_ = rootCmd.RegisterFlagCompletionFunc("output", completeOutputFormat)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(playerCmd)
	rootCmd.AddCommand(config.Cmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
