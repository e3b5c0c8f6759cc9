// Package cli wires the plinth command tree.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"plinth/config"
	"plinth/logger"
	"plinth/runtime"
)

// Execute runs the command tree. A served process's exit code passes through
// as the tool's own exit code, everything else exits 1.
func Execute() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		var exitErr *runtime.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// rootOptions carries the persistent flags every subcommand shares.
type rootOptions struct {
	configPath string
	debug      bool

	// App overrides, applied on top of file and environment.
	name   string
	source string
}

// load assembles the effective configuration and a logger for role.
func (o *rootOptions) load(role string) (config.Config, *logger.Logger, error) {
	log := logger.New(role, o.debug)

	overrides := config.Config{}
	overrides.App.Name = o.name
	overrides.App.Source = o.source

	cfg, err := config.Load(o.configPath, overrides)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, log, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "plinth",
		Short:         "plinth — build and run single-page dashboard containers",
		Long:          "plinth turns a directory with a dashboard entrypoint and a dependency manifest\ninto a container serving HTTP on one fixed port.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default plinth.yaml in the working directory)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.name, "name", "", "app name (default: the working directory name)")
	cmd.PersistentFlags().StringVar(&opts.source, "source", "", "app source directory (default: the working directory)")

	cmd.AddCommand(
		newBuildCmd(opts),
		newUpCmd(opts),
		newDownCmd(opts),
		newDeployCmd(opts),
		newStatusCmd(opts),
		newLogsCmd(opts),
		newBootCmd(opts),
		newVersionCmd(),
	)

	return cmd
}
