package cli

import (
	"github.com/spf13/cobra"

	"plinth/bootstrap"
)

func newBootCmd(opts *rootOptions) *cobra.Command {
	var skipInstall bool

	cmd := &cobra.Command{
		Use:   "boot [-- entrypoint args...]",
		Short: "Run the startup sequence on this host",
		Long: "Run the startup sequence directly, without a container: prepare the bind\n" +
			"environment, install the dependency manifest once, then exec the entrypoint\n" +
			"as the foreground process. On success this command never returns; the served\n" +
			"process takes over and its exit code is the final one. Arguments after --\n" +
			"replace the configured entrypoint.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load("boot")
			if err != nil {
				return err
			}

			b := bootstrap.New(cfg.Installer, log)
			return b.Run(cmd.Context(), cfg, bootstrap.Options{
				SkipInstall: skipInstall,
				Entrypoint:  args,
			})
		},
	}

	cmd.Flags().BoolVar(&skipInstall, "skip-install", false, "skip dependency installation (already baked into the environment)")
	return cmd
}
