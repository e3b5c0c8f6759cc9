package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"plinth/cloudflare"
	"plinth/runtime"
	"plinth/state"
)

func newDownCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Stop the app and remove its container",
		Long:  "Stop the app's container, remove it, unpublish its domain when one was\npublished, and drop the deployment record.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load("down")
			if err != nil {
				return err
			}

			mgr, err := runtime.NewManager(log)
			if err != nil {
				return err
			}
			if err := mgr.StopApp(cmd.Context(), cfg.App.Name); err != nil {
				return err
			}

			store, err := state.Open(cfg.StatePath)
			if err != nil {
				return err
			}

			rec, err := store.Get(cfg.App.Name)
			if err != nil && !errors.Is(err, state.ErrNotFound) {
				return err
			}

			if rec.DomainRecordID != "" {
				domains, err := cloudflare.NewManager(cfg.Domain, log)
				if err != nil {
					return err
				}
				if err := domains.Unpublish(cmd.Context(), cfg.App.Name, rec.DomainRecordID); err != nil {
					return err
				}
			}

			if err := store.Delete(cfg.App.Name); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s is down\n", cfg.App.Name)
			return nil
		},
	}
	return cmd
}
