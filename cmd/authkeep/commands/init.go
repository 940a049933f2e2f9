package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/marmos91/authkeep/internal/cli/prompt"
	"github.com/marmos91/authkeep/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample authkeep configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/authkeep/config.yaml.
Use --config to specify a custom path. An existing file is only replaced
after confirmation, or with --force.

Examples:
  # Initialize with default location
  authkeep init

  # Initialize with custom path
  authkeep init --config /etc/authkeep/config.yaml

  # Overwrite an existing config without asking
  authkeep init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file without asking")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	force := initForce
	if _, err := os.Stat(configPath); err == nil && !force {
		ok, err := prompt.Confirm(fmt.Sprintf("%s exists. Overwrite", configPath), false)
		if errors.Is(err, prompt.ErrAborted) || (err == nil && !ok) {
			fmt.Println("Aborted.")
			return nil
		}
		if err != nil {
			return err
		}
		force = true
	}

	if err := config.InitConfigToPath(configPath, force); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start authkeep with: authkeep start")
	fmt.Printf("  3. Or specify custom config: authkeep start --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  The operator API is unauthenticated until api.jwt_secret is set:")
	fmt.Println("    export AUTHKEEP_API_JWT_SECRET=$(openssl rand -hex 32)")

	return nil
}
