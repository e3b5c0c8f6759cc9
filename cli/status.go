package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"plinth/probe"
	"plinth/runtime"
	"plinth/state"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the app's deployment record and live container state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load("status")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			store, err := state.Open(cfg.StatePath)
			if err != nil {
				return err
			}
			rec, err := store.Get(cfg.App.Name)
			switch {
			case errors.Is(err, state.ErrNotFound):
				fmt.Fprintf(out, "%s: never deployed\n", cfg.App.Name)
			case err != nil:
				return err
			default:
				fmt.Fprintf(out, "%s\n", cfg.App.Name)
				fmt.Fprintf(out, "  image:      %s\n", rec.Image)
				fmt.Fprintf(out, "  deployed:   %s\n", rec.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
				if rec.Domain != "" {
					fmt.Fprintf(out, "  domain:     %s\n", rec.Domain)
				}
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
				fmt.Fprintf(out, "  container:  none\n")
				return nil
			}

			fmt.Fprintf(out, "  container:  %s (%s)\n", live.Name, live.Detail)
			fmt.Fprintf(out, "  state:      %s\n", live.State)
			if live.ExitCode != 0 {
				fmt.Fprintf(out, "  exit code:  %d\n", live.ExitCode)
			}

			// A running container may still be unresponsive, ask it.
			checker := probe.NewChecker()
			if err := checker.Check(cmd.Context(), cfg.App.BindAddress, cfg.App.PublishPort, cfg.App.HealthPath); err != nil {
				fmt.Fprintf(out, "  serving:    no (%v)\n", err)
			} else {
				fmt.Fprintf(out, "  serving:    yes, http://localhost:%d\n", cfg.App.PublishPort)
			}
			return nil
		},
	}
	return cmd
}
