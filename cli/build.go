package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"plinth/image"
	"plinth/manifest"
)

func newBuildCmd(opts *rootOptions) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the app image",
		Long:  "Build the app image: dependencies are installed once at build time,\nthe bind contract and the single exposed port are baked in.\nThe resulting tag is printed on stdout.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load("build")
			if err != nil {
				return err
			}

			m, err := manifest.Load(cfg.ManifestPath())
			if err != nil {
				return err
			}

			builder, err := image.NewBuilder(cfg.Installer, log)
			if err != nil {
				return err
			}
			if !quiet {
				builder.SetOutput(os.Stderr)
			}

			tag, err := builder.Build(cmd.Context(), cfg.App, m)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), tag)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress the build progress stream")
	return cmd
}
