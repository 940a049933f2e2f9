package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/marmos91/authkeep/pkg/apiclient"
	"github.com/spf13/cobra"
)

var joinIP string

var playerCmd = &cobra.Command{
	Use:   "player",
	Short: "Drive players on a standalone host",
	Long: `Connect, drive and disconnect simulated players on a running standalone host.

Examples:
  # Connect a player and try to chat before logging in
  authkeep player join Steve
  authkeep player act Steve chat hello

  # Register and log in
  authkeep player act Steve command "/register secret secret"

  # Disconnect
  authkeep player quit Steve`,
}

var playerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connected players",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		players, err := client.ListPlayers(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list players: %w", err)
		}
		return printResult(players, PlayerList(players))
	},
}

var playerJoinCmd = &cobra.Command{
	Use:   "join <name>",
	Short: "Connect a player",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		p, err := client.Join(context.Background(), args[0], joinIP)
		if err != nil {
			return fmt.Errorf("failed to join: %w", err)
		}
		printMessages(p.Messages)
		return nil
	},
}

var playerQuitCmd = &cobra.Command{
	Use:   "quit <name>",
	Short: "Disconnect a player",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		return client.Quit(context.Background(), args[0])
	},
}

var playerActCmd = &cobra.Command{
	Use:   "act <name> <event> [message...]",
	Short: "Dispatch a player action",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		res, err := client.Act(context.Background(), args[0], args[1], strings.Join(args[2:], " "))
		if err != nil {
			return fmt.Errorf("failed to dispatch action: %w", err)
		}
		if !res.Allowed {
			fmt.Println("(cancelled)")
		}
		printMessages(res.Messages)
		return nil
	},
}

func init() {
	playerJoinCmd.Flags().StringVar(&joinIP, "ip", "", "Client address (default 127.0.0.1)")

	playerCmd.AddCommand(playerListCmd)
	playerCmd.AddCommand(playerJoinCmd)
	playerCmd.AddCommand(playerQuitCmd)
	playerCmd.AddCommand(playerActCmd)
}

// PlayerList is a list of players for table rendering.
type PlayerList []apiclient.Player

// Headers implements TableRenderer.
func (pl PlayerList) Headers() []string {
	return []string{"NAME", "IP", "LOCATION"}
}

// EmptyMessage implements output.EmptyMessager.
func (PlayerList) EmptyMessage() string {
	return "No players online"
}

// Rows implements TableRenderer.
func (pl PlayerList) Rows() [][]string {
	rows := make([][]string, 0, len(pl))
	for _, p := range pl {
		rows = append(rows, []string{p.Name, p.IP, p.Location.String()})
	}
	return rows
}

func printMessages(lines []string) {
	for _, l := range lines {
		fmt.Println("  " + l)
	}
}
