package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vrtos-tools/schedtrace/internal/version"
)

// VersionInfo is the JSON payload for the version command.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.Format == "json" {
				return outputJSON(cmd, CLIResponse{Status: "ok", Data: VersionInfo{
					Version: version.Version,
					Commit:  version.Commit,
					Date:    version.Date,
				}})
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		},
	}
}
