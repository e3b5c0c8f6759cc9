package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"plinth/runtime"
)

func newLogsCmd(opts *rootOptions) *cobra.Command {
	var follow bool
	var tail string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the app's output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load("logs")
			if err != nil {
				return err
			}

			mgr, err := runtime.NewManager(log)
			if err != nil {
				return err
			}
			live, err := mgr.Status(cmd.Context(), cfg.App.Name)
			if err != nil {
				return err
			}
			if live == nil {
				return fmt.Errorf("no container exists for %s", cfg.App.Name)
			}

			return mgr.Logs(cmd.Context(), live.ContainerID, os.Stdout, os.Stderr, follow, tail)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep streaming new output")
	cmd.Flags().StringVar(&tail, "tail", "", "number of lines from the end (default all)")
	return cmd
}
