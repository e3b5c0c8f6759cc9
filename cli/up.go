package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"plinth/cloudflare"
	"plinth/config"
	"plinth/image"
	"plinth/logger"
	"plinth/manifest"
	"plinth/runtime"
	"plinth/state"
	"plinth/types"
)

func newUpCmd(opts *rootOptions) *cobra.Command {
	var detach bool

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Build and start the app, then stream its output",
		Long:  "Build the app image if needed, start a container and wait for it to accept\nconnections. Attached (the default), the command streams the app's output and\nexits with the served process's exit code; -d detaches once the app is ready.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load("up")
			if err != nil {
				return err
			}

			started, mgr, store, err := startApp(cmd.Context(), cfg, log, false)
			if err != nil {
				return err
			}
			if detach {
				fmt.Fprintf(cmd.OutOrStdout(), "%s ready on http://localhost:%d\n", cfg.App.Name, started.HostPort)
				return nil
			}
			return attach(cmd.Context(), cfg, log, mgr, store, started)
		},
	}

	cmd.Flags().BoolVarP(&detach, "detach", "d", false, "return once the app is ready instead of streaming output")
	return cmd
}

// startApp runs the deploy pipeline up to readiness: build the image (a
// no-op when the tag exists), replace any previous container, gate on the
// probe, optionally publish the domain, and persist the deployment record.
func startApp(ctx context.Context, cfg config.Config, log *logger.Logger, publish bool) (*runtime.Started, *runtime.Manager, *state.Store, error) {
	m, err := manifest.Load(cfg.ManifestPath())
	if err != nil {
		return nil, nil, nil, err
	}

	builder, err := image.NewBuilder(cfg.Installer, log)
	if err != nil {
		return nil, nil, nil, err
	}
	builder.SetOutput(os.Stderr)

	tag, err := builder.Build(ctx, cfg.App, m)
	if err != nil {
		return nil, nil, nil, err
	}

	mgr, err := runtime.NewManager(log)
	if err != nil {
		return nil, nil, nil, err
	}

	started, err := mgr.Start(ctx, cfg.App, tag)
	if err != nil {
		return nil, nil, nil, err
	}

	rec := types.DeploymentRecord{
		App:            cfg.App.Name,
		Image:          tag,
		ManifestDigest: m.Digest(),
		ContainerID:    started.ID,
		ContainerName:  started.Name,
		HostPort:       started.HostPort,
		Status:         types.StateRunning,
	}

	if publish {
		domains, err := cloudflare.NewManager(cfg.Domain, log)
		if err != nil {
			return nil, nil, nil, err
		}
		domain, err := domains.Publish(ctx, cfg.App.Name)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("app is running but domain publishing failed: %w", err)
		}
		if domain != nil {
			rec.Domain = domain.Domain
			rec.DomainRecordID = domain.DNSRecord.RecordID
		}
	}

	store, err := state.Open(cfg.StatePath)
	if err != nil {
		return nil, nil, nil, err
	}
	if _, err := store.Put(rec); err != nil {
		return nil, nil, nil, err
	}

	return started, mgr, store, nil
}

// attach streams the app's output and blocks until the served process exits
// or a stop signal arrives. A signal stops the container gracefully; a
// process exit passes its code through as the command's own.
func attach(ctx context.Context, cfg config.Config, log *logger.Logger, mgr *runtime.Manager, store *state.Store, started *runtime.Started) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		if err := mgr.Logs(ctx, started.ID, os.Stdout, os.Stderr, true, ""); err != nil {
			log.Debug().Err(err).Msg("log stream ended")
		}
	}()

	type waitResult struct {
		code int64
		err  error
	}
	waitCh := make(chan waitResult, 1)
	go func() {
		code, err := mgr.Wait(ctx, started.ID)
		waitCh <- waitResult{code: code, err: err}
	}()

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("stopping app")
		cancel()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := mgr.Stop(stopCtx, started.ID); err != nil {
			return err
		}
		updateStatus(store, cfg.App.Name, types.StateStopped, 0, log)
		return nil

	case res := <-waitCh:
		if res.err != nil {
			return res.err
		}
		code := int(res.code)
		updateStatus(store, cfg.App.Name, types.StateExited, code, log)
		log.Info().Int("exit_code", code).Msg("app exited, not restarting")
		if code != 0 {
			return &runtime.ExitError{App: cfg.App.Name, Code: code}
		}
		return nil
	}
}

// updateStatus records the app's final state, best effort: a failed state
// save never masks the outcome of the run itself.
func updateStatus(store *state.Store, app string, status types.ContainerState, exitCode int, log *logger.Logger) {
	rec, err := store.Get(app)
	if err != nil {
		return
	}
	rec.Status = status
	rec.ExitCode = exitCode
	if _, err := store.Put(rec); err != nil {
		log.Warn().Err(err).Msg("failed to update deployment record")
	}
}
