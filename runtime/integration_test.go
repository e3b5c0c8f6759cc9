//go:build integration
// +build integration

package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plinth/logger"
	"plinth/types"
)

// These tests need a running Docker daemon and pull small public images.
// Run with: go test -tags=integration ./runtime

func integrationApp(name string, port int) types.App {
	return types.App{
		Name:           name,
		BindAddress:    "0.0.0.0",
		BindPort:       port,
		PublishPort:    port,
		HealthPath:     "/",
		StartupTimeout: 30,
	}
}

func TestStart_ReadyWithinWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	mgr, err := NewManager(logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	app := integrationApp("plinth-it-ready", 18501)
	started, err := mgr.Start(ctx, app, "nginx:alpine")
	require.NoError(t, err)
	defer mgr.Stop(context.Background(), started.ID)

	assert.NotEmpty(t, started.ID)
	assert.Equal(t, 18501, started.HostPort)
	assert.Greater(t, started.ReadyIn, time.Duration(0))

	status, err := mgr.Status(ctx, app.Name)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, types.StateRunning, status.State)
}

func TestStart_EarlyExitIsStartupError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	mgr, err := NewManager(logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// busybox's default command exits immediately, well before readiness.
	app := integrationApp("plinth-it-exit", 18502)
	_, err = mgr.Start(ctx, app, "busybox:latest")
	require.Error(t, err)

	var startupErr *StartupError
	require.ErrorAs(t, err, &startupErr)
	assert.True(t, startupErr.Exited)

	// The failed container must be gone.
	status, err := mgr.Status(ctx, app.Name)
	require.NoError(t, err)
	assert.Nil(t, status)
}

func TestStart_ReplacesExistingContainer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	mgr, err := NewManager(logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	app := integrationApp("plinth-it-replace", 18503)
	first, err := mgr.Start(ctx, app, "nginx:alpine")
	require.NoError(t, err)

	second, err := mgr.Start(ctx, app, "nginx:alpine")
	require.NoError(t, err)
	defer mgr.Stop(context.Background(), second.ID)

	assert.NotEqual(t, first.ID, second.ID)

	status, err := mgr.Status(ctx, app.Name)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, second.ID, status.ContainerID)
}
