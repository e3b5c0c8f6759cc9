package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is overridden at release time via -ldflags "-X plinth/cli.version=...".
var version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the plinth version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "plinth %s\n", version)
		},
	}
}
