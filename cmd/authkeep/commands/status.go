package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/marmos91/authkeep/internal/cli/output"
	"github.com/marmos91/authkeep/pkg/apiclient"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running instance",
	Long: `Query the health endpoints of a running authkeep instance.

Examples:
  # Check the local instance
  authkeep status

  # Check a remote instance as JSON
  authkeep status --server http://mc.example.com:8080 -o json`,
	RunE: runStatus,
}

// InstanceStatus is the status of a running instance for display.
type InstanceStatus struct {
	Server   string `json:"server" yaml:"server"`
	Status   string `json:"status" yaml:"status"`
	Version  string `json:"version,omitempty" yaml:"version,omitempty"`
	Build    string `json:"build,omitempty" yaml:"build,omitempty"`
	Ready    bool   `json:"ready" yaml:"ready"`
	Sessions int    `json:"sessions" yaml:"sessions"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Headers implements TableRenderer.
func (s InstanceStatus) Headers() []string {
	return []string{"SERVER", "STATUS", "VERSION", "READY", "SESSIONS"}
}

// Rows implements TableRenderer.
func (s InstanceStatus) Rows() [][]string {
	version := s.Version
	if s.Build != "" {
		version += " (build " + s.Build + ")"
	}
	return [][]string{{s.Server, s.Status, version, yesNo(s.Ready), fmt.Sprintf("%d", s.Sessions)}}
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx := context.Background()

	status := InstanceStatus{Server: serverURL, Status: "unreachable"}
	if status.Server == "" {
		status.Server = "local"
	}

	if health, err := client.Health(ctx); err != nil {
		status.Error = err.Error()
	} else {
		status.Status = health.Status
		status.Version, _ = health.Data["version"].(string)
		status.Build, _ = health.Data["build"].(string)

		ready, err := client.Ready(ctx)
		var apiErr *apiclient.APIError
		switch {
		case err == nil:
			status.Ready = true
			if n, ok := ready.Data["sessions"].(float64); ok {
				status.Sessions = int(n)
			}
		case errors.As(err, &apiErr) && apiErr.IsUnavailable():
			status.Error = "plugin is not enabled"
		default:
			status.Error = err.Error()
		}
	}

	if err := printResult(status, status); err != nil {
		return err
	}
	if status.Error != "" {
		_, _ = fmt.Fprintln(os.Stderr, status.Error)
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

var _ output.TableRenderer = InstanceStatus{}
