package commands

import (
	"fmt"
	"runtime"

	"github.com/marmos91/authkeep/pkg/lifecycle"
	"github.com/spf13/cobra"
)

var versionShort bool

// versionInfo describes this binary. Version and Build follow the split the
// plugin reports on enable and on /health.
type versionInfo struct {
	Version  string `json:"version" yaml:"version"`
	Build    string `json:"build" yaml:"build"`
	Commit   string `json:"commit" yaml:"commit"`
	BuiltAt  string `json:"built_at" yaml:"built_at"`
	Go       string `json:"go" yaml:"go"`
	Platform string `json:"platform" yaml:"platform"`
}

func (v versionInfo) Headers() []string { return []string{"FIELD", "VALUE"} }

func (v versionInfo) Rows() [][]string {
	return [][]string{
		{"Version", v.Version},
		{"Build", v.Build},
		{"Commit", v.Commit},
		{"Built", v.BuiltAt},
		{"Go", v.Go},
		{"OS/Arch", v.Platform},
	}
}

func currentVersion() versionInfo {
	version, build := lifecycle.ParseVersion(Version)
	return versionInfo{
		Version:  version,
		Build:    build,
		Commit:   Commit,
		BuiltAt:  Date,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the plugin version and build",
	Long: `Show the plugin version and build number of this binary.

A version such as "5.3.0-b1234" is reported as version 5.3.0, build 1234,
the same way the running plugin logs it on enable and returns it from
/health. Use "authkeep status" for the version of a running instance.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := currentVersion()
		if versionShort {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), info.Version)
			return err
		}
		return printResult(info, info)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version")
}
