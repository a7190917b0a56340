package cmd

import (
	"github.com/spf13/cobra"

	"github.com/opmodel/lto2/internal/output"
	"github.com/opmodel/lto2/internal/version"
)

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Show lto2 version information.

Displays:
  - lto2 version, commit, and build date
  - Go version and the CUE SDK used for module validation`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output.Println(version.GetInfo().String())
			return nil
		},
	}
}
