package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plinth/config"
	"plinth/logger"
	"plinth/types"
)

type fakeInstaller struct {
	calls []string
	err   error
}

func (f *fakeInstaller) Install(_ context.Context, manifestPath string) error {
	f.calls = append(f.calls, manifestPath)
	return f.err
}

type fakeExecer struct {
	argv []string
	env  []string
	err  error
}

func (f *fakeExecer) Exec(argv []string, env []string) error {
	f.argv = argv
	f.env = env
	return f.err
}

func testBootstrapper(installer *fakeInstaller, execer *fakeExecer) *Bootstrapper {
	return &Bootstrapper{Installer: installer, Execer: execer, Log: logger.Nop()}
}

func testConfig(t *testing.T, manifestContent string) config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte(manifestContent), 0o644))

	cfg := config.Default()
	cfg.App.Name = "consilium"
	cfg.App.Source = dir
	return cfg
}

func clearBindEnv(t *testing.T) {
	t.Helper()
	t.Setenv(types.EnvBindAddress, "")
	os.Unsetenv(types.EnvBindAddress)
	t.Setenv(types.EnvBindPort, "")
	os.Unsetenv(types.EnvBindPort)
}

func TestPrepareEnvironment_Defaults(t *testing.T) {
	clearBindEnv(t)

	b := testBootstrapper(&fakeInstaller{}, &fakeExecer{})
	b.PrepareEnvironment(config.Default().App)

	assert.Equal(t, "0.0.0.0", os.Getenv(types.EnvBindAddress))
	assert.Equal(t, "8501", os.Getenv(types.EnvBindPort))
}

func TestPrepareEnvironment_KeepsExisting(t *testing.T) {
	t.Setenv(types.EnvBindAddress, "127.0.0.1")
	t.Setenv(types.EnvBindPort, "9000")

	b := testBootstrapper(&fakeInstaller{}, &fakeExecer{})
	b.PrepareEnvironment(config.Default().App)

	assert.Equal(t, "127.0.0.1", os.Getenv(types.EnvBindAddress))
	assert.Equal(t, "9000", os.Getenv(types.EnvBindPort))
}

func TestRun_SequenceAndExec(t *testing.T) {
	clearBindEnv(t)
	cfg := testConfig(t, "streamlit==1.31.0\n")

	installer := &fakeInstaller{}
	execer := &fakeExecer{}
	b := testBootstrapper(installer, execer)

	err := b.Run(context.Background(), cfg, Options{})
	require.NoError(t, err)

	require.Len(t, installer.calls, 1)
	assert.Equal(t, cfg.ManifestPath(), installer.calls[0])
	assert.Equal(t, []string{"streamlit", "run", "app.py"}, execer.argv)
	assert.Contains(t, execer.env, types.EnvBindAddress+"=0.0.0.0")
	assert.Contains(t, execer.env, types.EnvBindPort+"=8501")
}

func TestRun_MissingManifestIsFatal(t *testing.T) {
	cfg := config.Default()
	cfg.App.Source = t.TempDir()

	installer := &fakeInstaller{}
	execer := &fakeExecer{}
	b := testBootstrapper(installer, execer)

	err := b.Run(context.Background(), cfg, Options{})
	require.Error(t, err)
	assert.Empty(t, installer.calls, "no install may happen without a manifest")
	assert.Nil(t, execer.argv, "the server must not start after a failure")
}

func TestRun_InstallFailureAborts(t *testing.T) {
	cfg := testConfig(t, "definitely-not-a-real-package==99.0\n")

	installer := &fakeInstaller{err: errors.New("resolution failed")}
	execer := &fakeExecer{}
	b := testBootstrapper(installer, execer)

	err := b.Run(context.Background(), cfg, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to install dependencies")
	assert.Nil(t, execer.argv, "the server must not start after a failed install")
}

func TestRun_SkipInstall(t *testing.T) {
	cfg := config.Default()
	cfg.App.Source = t.TempDir() // no manifest on disk

	installer := &fakeInstaller{}
	execer := &fakeExecer{}
	b := testBootstrapper(installer, execer)

	err := b.Run(context.Background(), cfg, Options{SkipInstall: true})
	require.NoError(t, err)
	assert.Empty(t, installer.calls)
	assert.Equal(t, []string{"streamlit", "run", "app.py"}, execer.argv)
}

func TestRun_EntrypointOverride(t *testing.T) {
	cfg := testConfig(t, "streamlit==1.31.0\n")

	execer := &fakeExecer{}
	b := testBootstrapper(&fakeInstaller{}, execer)

	err := b.Run(context.Background(), cfg, Options{Entrypoint: []string{"python", "serve.py"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"python", "serve.py"}, execer.argv)
}

func TestInstallDependencies_EmptyManifestIsNoop(t *testing.T) {
	cfg := testConfig(t, "# nothing declared\n")

	installer := &fakeInstaller{}
	execer := &fakeExecer{}
	b := testBootstrapper(installer, execer)

	err := b.Run(context.Background(), cfg, Options{})
	require.NoError(t, err)
	assert.Empty(t, installer.calls)
	assert.NotNil(t, execer.argv)
}

func TestStartServer_EmptyEntrypoint(t *testing.T) {
	b := testBootstrapper(&fakeInstaller{}, &fakeExecer{})
	assert.Error(t, b.StartServer(nil))
}

func TestStartServer_ExecFailure(t *testing.T) {
	execer := &fakeExecer{err: errors.New("no such file")}
	b := testBootstrapper(&fakeInstaller{}, execer)

	err := b.StartServer([]string{"missing-binary"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to exec missing-binary")
}
