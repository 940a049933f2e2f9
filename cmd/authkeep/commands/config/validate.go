package config

import (
	"fmt"

	"github.com/marmos91/authkeep/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the authkeep configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  authkeep config validate

  # Validate specific config file
  authkeep config validate --config /etc/authkeep/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if warnings := Warnings(cfg); len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}
	return nil
}

// Warnings lists settings that are valid but probably unintended.
func Warnings(cfg *config.Config) []string {
	var warnings []string
	if cfg.API.Enabled && cfg.API.JWTSecret == "" {
		warnings = append(warnings, "api.jwt_secret not configured - operator endpoints are unauthenticated")
	}
	if cfg.Security.PasswordHash == "PLAINTEXT" {
		warnings = append(warnings, "security.password_hash is PLAINTEXT - passwords are migrated to BCRYPT on the next enable")
	}
	if !cfg.Security.StopServerOnProblem {
		warnings = append(warnings, "security.stop_server_on_problem is off - the host keeps running without authentication if enabling fails")
	}
	if cfg.Sessions.Enabled && cfg.Sessions.Timeout == 0 {
		warnings = append(warnings, "sessions.timeout is 0 - resumed sessions never expire")
	}
	return warnings
}
