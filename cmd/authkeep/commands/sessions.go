package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/authkeep/pkg/apiclient"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List authenticated players",
	Long: `List the identities in the session cache of a running instance.

Examples:
  # List sessions as table
  authkeep sessions

  # List sessions as JSON
  authkeep sessions -o json`,
	RunE: runSessions,
}

// SessionList is a list of sessions for table rendering.
type SessionList []apiclient.Session

// Headers implements TableRenderer.
func (sl SessionList) Headers() []string {
	return []string{"USERNAME", "NAME", "IP", "LAST_LOGIN"}
}

// EmptyMessage implements output.EmptyMessager.
func (SessionList) EmptyMessage() string {
	return "No active sessions"
}

// Rows implements TableRenderer.
func (sl SessionList) Rows() [][]string {
	rows := make([][]string, 0, len(sl))
	for _, s := range sl {
		last := "-"
		if s.LastLogin != nil {
			last = s.LastLogin.Local().Format("2006-01-02 15:04:05")
		}
		rows = append(rows, []string{s.Username, s.RealName, s.IP, last})
	}
	return rows
}

func runSessions(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	sessions, err := client.ListSessions(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 && outputFormat == "table" {
		fmt.Println("No authenticated players.")
		return nil
	}
	return printResult(sessions, SessionList(sessions))
}
