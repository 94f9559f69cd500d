package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/drawpad/internal/buildinfo"
)

// Command creates a new cobra.Command to print build information.
func Command(info *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the drawpad version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "drawpad %s (built %s)\n", info.GetVersion(), info.GetBuildDate())
			return err
		},
	}
}
