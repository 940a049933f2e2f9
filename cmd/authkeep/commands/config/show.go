package config

import (
	"os"

	"github.com/marmos91/authkeep/internal/cli/output"
	"github.com/marmos91/authkeep/pkg/config"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective authkeep configuration, with defaults and
environment overrides applied.

By default outputs YAML format. Use --output json for JSON.

Examples:
  # Show the default config
  authkeep config show

  # Show as JSON
  authkeep config show --output json`,
	RunE: runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	format, _ := cmd.Flags().GetString("output")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	parsed, err := output.ParseFormat(format)
	if err != nil {
		return err
	}
	if parsed == output.FormatJSON {
		return output.PrintJSON(os.Stdout, cfg)
	}
	return output.PrintYAML(os.Stdout, cfg)
}
