// Package runtime drives served-app containers through the Docker daemon:
// create and start with the bind contract applied, gate on readiness, stream
// logs, wait for exit and tear down.
package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	imagetypes "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"plinth/logger"
	"plinth/probe"
	"plinth/types"
)

// Container labels used to find plinth-managed containers again.
const (
	labelApp   = "plinth.app"
	labelImage = "plinth.image"
)

// Manager interacts with the Docker daemon to manage app containers.
type Manager struct {
	docker *client.Client
	probe  *probe.Checker
	log    *logger.Logger
}

// NewManager creates a new Manager talking to the daemon configured in the
// environment.
func NewManager(log *logger.Logger) (*Manager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Manager{docker: cli, probe: probe.NewChecker(), log: log}, nil
}

// Started describes a container that reached readiness.
type Started struct {
	ID       string
	Name     string
	HostPort int
	ReadyIn  time.Duration
}

// Start replaces any previous container of the app with a fresh one created
// from imageTag, publishes the app's single port on all host interfaces and
// waits for readiness within the app's startup window. Restarting is left
// entirely to the operator: the container's restart policy is disabled, so a
// served process that exits stays exited.
func (m *Manager) Start(ctx context.Context, app types.App, imageTag string) (*Started, error) {
	name := app.ContainerName()
	if err := m.removeExisting(ctx, name); err != nil {
		return nil, err
	}
	if err := m.ensureImage(ctx, imageTag); err != nil {
		return nil, err
	}

	port := nat.Port(app.PortSpec())
	cfg := &container.Config{
		Image:        imageTag,
		Env:          contractEnv(app),
		ExposedPorts: nat.PortSet{port: struct{}{}},
		Labels: map[string]string{
			labelApp:   app.Name,
			labelImage: imageTag,
		},
		Tty: false,
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{
				HostIP:   "0.0.0.0",
				HostPort: strconv.Itoa(app.PublishPort),
			}},
		},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyDisabled},
		Binds:         app.Volumes,
	}

	m.log.Info().Str("app", app.Name).Str("image", imageTag).Str("container", name).Msg("creating container")
	resp, err := m.docker.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create container for %s: %w", app.Name, err)
	}

	if err := m.docker.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Best effort removal of the container that never started.
		if rmErr := m.docker.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true}); rmErr != nil {
			m.log.Warn().Err(rmErr).Str("container", shortID(resp.ID)).Msg("failed to remove container after failed start")
		}
		return nil, fmt.Errorf("failed to start container %s for %s: %w", resp.ID, app.Name, err)
	}

	m.log.Info().Str("container", shortID(resp.ID)).Int("host_port", app.PublishPort).Msg("container started, waiting for readiness")

	readyIn, err := m.awaitReady(ctx, app, resp.ID)
	if err != nil {
		return nil, err
	}

	m.log.Info().Str("app", app.Name).Dur("ready_in", readyIn).Msg("app is ready")
	return &Started{ID: resp.ID, Name: name, HostPort: app.PublishPort, ReadyIn: readyIn}, nil
}

type readyResult struct {
	elapsed time.Duration
	err     error
}

// awaitReady polls the published port while watching for an early container
// exit. Whichever happens first decides: readiness, exit, or the startup
// window closing. On anything but readiness the container is torn down.
func (m *Manager) awaitReady(ctx context.Context, app types.App, id string) (time.Duration, error) {
	window := app.StartupWindow()
	waitCh, errCh := m.docker.ContainerWait(ctx, id, container.WaitConditionNotRunning)

	probeCtx, cancelProbe := context.WithCancel(ctx)
	defer cancelProbe()
	readyCh := make(chan readyResult, 1)
	go func() {
		elapsed, err := m.probe.WaitReady(probeCtx, app.BindAddress, app.PublishPort, app.HealthPath, window)
		readyCh <- readyResult{elapsed: elapsed, err: err}
	}()

	select {
	case res := <-readyCh:
		if res.err != nil {
			tail := m.logTail(context.Background(), id)
			m.teardown(id)
			return 0, &StartupError{App: app.Name, Container: id, Window: window, LogTail: tail, Err: res.err}
		}
		return res.elapsed, nil

	case w := <-waitCh:
		cancelProbe()
		tail := m.logTail(context.Background(), id)
		m.teardown(id)
		return 0, &StartupError{App: app.Name, Container: id, Exited: true, ExitCode: w.StatusCode, Window: window, LogTail: tail}

	case err := <-errCh:
		return 0, fmt.Errorf("failed while waiting on container %s: %w", id, err)

	case <-ctx.Done():
		m.teardown(id)
		return 0, ctx.Err()
	}
}

// teardown removes a container that never became ready, so a failed start
// leaves nothing behind.
func (m *Manager) teardown(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.Stop(ctx, id); err != nil {
		m.log.Warn().Err(err).Str("container", shortID(id)).Msg("failed to clean up container")
	}
}

// Wait blocks until the container stops running and returns its exit code.
func (m *Manager) Wait(ctx context.Context, id string) (int64, error) {
	waitCh, errCh := m.docker.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case w := <-waitCh:
		if w.Error != nil {
			return w.StatusCode, fmt.Errorf("failed while waiting on container %s: %s", id, w.Error.Message)
		}
		return w.StatusCode, nil
	case err := <-errCh:
		return 0, fmt.Errorf("failed while waiting on container %s: %w", id, err)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Logs copies the container's output to stdout and stderr. With follow it
// keeps streaming until the container stops or ctx is canceled.
func (m *Manager) Logs(ctx context.Context, id string, stdout, stderr io.Writer, follow bool, tail string) error {
	if tail == "" {
		tail = "all"
	}
	rc, err := m.docker.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
		Tail:       tail,
	})
	if err != nil {
		return fmt.Errorf("failed to open logs of container %s: %w", id, err)
	}
	defer rc.Close()

	if _, err := stdcopy.StdCopy(stdout, stderr, rc); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to stream logs of container %s: %w", id, err)
	}
	return nil
}

// Stop stops and removes a container by its ID, tolerating one that is
// already stopped or gone.
func (m *Manager) Stop(ctx context.Context, id string) error {
	m.log.Debug().Str("container", shortID(id)).Msg("stopping container")

	// No timeout specified, the daemon default (10s) applies before SIGKILL.
	if err := m.docker.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		if client.IsErrNotFound(err) {
			m.log.Debug().Str("container", shortID(id)).Msg("container already gone during stop")
		} else {
			m.log.Warn().Err(err).Str("container", shortID(id)).Msg("failed to stop container, it may already be stopped")
		}
	}

	removeOptions := container.RemoveOptions{
		RemoveVolumes: true,
		Force:         false,
	}
	if err := m.docker.ContainerRemove(ctx, id, removeOptions); err != nil {
		if !client.IsErrNotFound(err) {
			return fmt.Errorf("failed to remove container %s: %w", id, err)
		}
	}

	m.log.Debug().Str("container", shortID(id)).Msg("container stopped and removed")
	return nil
}

// StopApp stops the app's current container, if any.
func (m *Manager) StopApp(ctx context.Context, appName string) error {
	summary, err := m.findByApp(ctx, appName)
	if err != nil {
		return err
	}
	if summary == nil {
		m.log.Debug().Str("app", appName).Msg("no container to stop")
		return nil
	}
	m.log.Info().Str("app", appName).Str("container", shortID(summary.ID)).Msg("stopping app")
	return m.Stop(ctx, summary.ID)
}

// Status describes the live container of an app.
type Status struct {
	ContainerID string
	Name        string
	Image       string
	State       types.ContainerState
	Detail      string // the daemon's human status line, e.g. "Up 2 minutes"
	ExitCode    int
}

// Status reports the live container state for the app, or nil when no
// container exists.
func (m *Manager) Status(ctx context.Context, appName string) (*Status, error) {
	summary, err := m.findByApp(ctx, appName)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, nil
	}

	st := &Status{
		ContainerID: summary.ID,
		Name:        containerName(summary.Names),
		Image:       summary.Image,
		State:       stateOf(summary.State),
		Detail:      summary.Status,
	}
	if st.State == types.StateExited {
		inspect, err := m.docker.ContainerInspect(ctx, summary.ID)
		if err == nil && inspect.State != nil {
			st.ExitCode = inspect.State.ExitCode
		}
	}
	return st, nil
}

// ensureImage pulls an image the daemon does not hold yet. Images built by
// the tool are already local, this covers externally referenced ones.
func (m *Manager) ensureImage(ctx context.Context, ref string) error {
	_, _, err := m.docker.ImageInspectWithRaw(ctx, ref)
	if err == nil {
		return nil
	}
	if !client.IsErrNotFound(err) {
		return fmt.Errorf("failed to inspect image %s: %w", ref, err)
	}

	m.log.Info().Str("image", ref).Msg("pulling image")
	rc, err := m.docker.ImagePull(ctx, ref, imagetypes.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer rc.Close()

	// The daemon finishes the pull only once the stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	return nil
}

// removeExisting tears down a leftover container holding the app's name, so
// a redeploy always starts from a fresh one.
func (m *Manager) removeExisting(ctx context.Context, name string) error {
	list, err := m.docker.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}
	for _, c := range list {
		// The name filter matches substrings, check for the exact name.
		if !hasName(c.Names, name) {
			continue
		}
		m.log.Info().Str("container", shortID(c.ID)).Str("name", name).Msg("replacing existing container")
		if err := m.Stop(ctx, c.ID); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) findByApp(ctx context.Context, appName string) (*container.Summary, error) {
	list, err := m.docker.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", labelApp+"="+appName)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers for %s: %w", appName, err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

// logTail collects the last lines of a container's output for error reports.
func (m *Manager) logTail(ctx context.Context, id string) string {
	rc, err := m.docker.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       "20",
	})
	if err != nil {
		return ""
	}
	defer rc.Close()

	var out bytes.Buffer
	_, _ = stdcopy.StdCopy(&out, &out, rc)
	return strings.TrimSpace(out.String())
}

// contractEnv renders the container environment: the bind contract first,
// then the app's extra variables in stable order. The contract keys are
// written exactly once, an extra variable with the same name is dropped.
func contractEnv(app types.App) []string {
	env := []string{
		fmt.Sprintf("%s=%s", types.EnvBindAddress, app.BindAddress),
		fmt.Sprintf("%s=%d", types.EnvBindPort, app.BindPort),
	}
	keys := make([]string, 0, len(app.Env))
	for k := range app.Env {
		if k == types.EnvBindAddress || k == types.EnvBindPort {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, app.Env[k]))
	}
	return env
}

// stateOf maps the daemon's container state string to a ContainerState.
func stateOf(state string) types.ContainerState {
	switch state {
	case "created":
		return types.StateStarting
	case "running", "restarting":
		return types.StateRunning
	case "removing":
		return types.StateStopping
	case "paused":
		return types.StateStopped
	case "exited", "dead":
		return types.StateExited
	default:
		return types.StateIdle
	}
}

func hasName(names []string, want string) bool {
	for _, n := range names {
		if strings.TrimPrefix(n, "/") == want {
			return true
		}
	}
	return false
}

func containerName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.TrimPrefix(names[0], "/")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
