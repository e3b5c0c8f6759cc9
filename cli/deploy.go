package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// timeRound trims readiness durations to something readable.
const timeRound = 10 * time.Millisecond

func newDeployCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Build, start and publish the app",
		Long:  "Run the full pipeline: build the image, start a fresh container, wait for\nreadiness, and publish the app's domain when DNS publishing is configured.\nThe command returns once the app is ready.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load("deploy")
			if err != nil {
				return err
			}

			started, _, store, err := startApp(cmd.Context(), cfg, log, true)
			if err != nil {
				return err
			}

			rec, err := store.Get(cfg.App.Name)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s ready on http://localhost:%d (in %s)\n", cfg.App.Name, started.HostPort, started.ReadyIn.Round(timeRound))
			if rec.Domain != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "published as http://%s\n", rec.Domain)
			}
			return nil
		},
	}
	return cmd
}
