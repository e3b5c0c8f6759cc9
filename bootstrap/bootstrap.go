// Package bootstrap runs the startup sequence directly on the host: prepare
// the bind environment, install the dependency manifest once, then exec the
// server as the foreground process. After a successful StartServer the
// bootstrap process no longer exists; the served process inherits its PID and
// its exit code is what the shell or container runtime observes.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"plinth/config"
	"plinth/logger"
	"plinth/manifest"
	"plinth/types"
)

// Installer installs a dependency manifest. A non-nil error is fatal to the
// bootstrap; there is no partial success and no retry.
type Installer interface {
	Install(ctx context.Context, manifestPath string) error
}

// Execer replaces the current process with argv. On success it never returns.
type Execer interface {
	Exec(argv []string, env []string) error
}

// Bootstrapper performs the startup sequence strictly in order.
type Bootstrapper struct {
	Installer Installer
	Execer    Execer
	Log       *logger.Logger
}

// New returns a Bootstrapper wired to the real installer and syscall.Exec.
func New(installerArgv []string, log *logger.Logger) *Bootstrapper {
	return &Bootstrapper{
		Installer: &pipInstaller{argv: installerArgv, out: os.Stderr},
		Execer:    &sysExecer{},
		Log:       log,
	}
}

// Options adjust a single bootstrap run.
type Options struct {
	SkipInstall bool     // dependencies were baked into the image at build time
	Entrypoint  []string // overrides the configured entrypoint when non-empty
}

// Run executes the sequence: PrepareEnvironment, load the manifest,
// InstallDependencies, StartServer. Every failure is fatal; on success the
// call never returns because the process image has been replaced.
func (b *Bootstrapper) Run(ctx context.Context, cfg config.Config, opts Options) error {
	b.PrepareEnvironment(cfg.App)

	if opts.SkipInstall {
		b.Log.Info().Msg("skipping dependency installation")
	} else {
		m, err := manifest.Load(cfg.ManifestPath())
		if err != nil {
			return err
		}
		if err := b.InstallDependencies(ctx, m); err != nil {
			return err
		}
	}

	entrypoint := cfg.App.Entrypoint
	if len(opts.Entrypoint) > 0 {
		entrypoint = opts.Entrypoint
	}
	return b.StartServer(entrypoint)
}

// PrepareEnvironment establishes the bind contract in the process
// environment. Values already present win; otherwise the app's configured
// address and port are written. There is no failure mode.
func (b *Bootstrapper) PrepareEnvironment(app types.App) {
	if os.Getenv(types.EnvBindAddress) == "" {
		os.Setenv(types.EnvBindAddress, app.BindAddress)
	}
	if os.Getenv(types.EnvBindPort) == "" {
		os.Setenv(types.EnvBindPort, strconv.Itoa(app.BindPort))
	}
	b.Log.Debug().
		Str(types.EnvBindAddress, os.Getenv(types.EnvBindAddress)).
		Str(types.EnvBindPort, os.Getenv(types.EnvBindPort)).
		Msg("bind environment prepared")
}

// InstallDependencies installs the manifest in one installer invocation. An
// empty manifest is a no-op.
func (b *Bootstrapper) InstallDependencies(ctx context.Context, m *manifest.Manifest) error {
	if m.Empty() {
		b.Log.Info().Str("manifest", m.Path).Msg("manifest declares no dependencies")
		return nil
	}

	b.Log.Info().Str("manifest", m.Path).Int("dependencies", len(m.Entries)).Msg("installing dependencies")
	if err := b.Installer.Install(ctx, m.Path); err != nil {
		return fmt.Errorf("failed to install dependencies from %s: %w", m.Path, err)
	}
	b.Log.Info().Msg("dependencies installed")
	return nil
}

// StartServer replaces the bootstrap process with the entrypoint. It only
// returns on failure to exec; after a successful exec the served process owns
// the process slot and its exit code is the final word.
func (b *Bootstrapper) StartServer(entrypoint []string) error {
	if len(entrypoint) == 0 {
		return fmt.Errorf("no entrypoint to start")
	}
	b.Log.Info().Strs("entrypoint", entrypoint).Msg("starting server")
	if err := b.Execer.Exec(entrypoint, os.Environ()); err != nil {
		return fmt.Errorf("failed to exec %s: %w", entrypoint[0], err)
	}
	return nil
}

// pipInstaller shells out to the configured installer command, with artifact
// caching disabled so repeated installs resolve from scratch.
type pipInstaller struct {
	argv []string
	out  *os.File
}

func (p *pipInstaller) Install(ctx context.Context, manifestPath string) error {
	argv := append(append([]string{}, p.argv...), "install", "--no-cache-dir", "-r", manifestPath)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = p.out
	cmd.Stderr = p.out
	return cmd.Run()
}

// sysExecer resolves the command on PATH and execs it.
type sysExecer struct{}

func (sysExecer) Exec(argv []string, env []string) error {
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return err
	}
	return syscall.Exec(path, argv, env)
}
