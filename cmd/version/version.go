package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/rawrecord/internal/buildinfo"
)

// Command creates the version command.
func Command(build *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "rawrecord", build.String())
			return err
		},
	}
}
