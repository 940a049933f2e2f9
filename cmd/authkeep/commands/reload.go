package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/authkeep/pkg/apiclient"
	"github.com/spf13/cobra"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload a running instance",
	Long: `Ask a running instance to reload: the plugin is disabled and enabled again
with the configuration re-read from disk. Logged in players stay logged in
when security.reload_command_support is set.

The reload runs asynchronously. Sending SIGHUP to the process is equivalent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		err = client.Reload(context.Background())
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.IsConflict() {
			fmt.Println("A reload is already pending.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to request reload: %w", err)
		}
		fmt.Println("Reload requested.")
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up the account database of a running instance",
	Long: `Take a database backup on a running instance. The archive is written to
backup.directory and uploaded when backup.s3 is enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		path, err := client.Backup(context.Background())
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Printf("Backup written to %s\n", path)
		return nil
	},
}
