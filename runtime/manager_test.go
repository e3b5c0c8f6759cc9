package runtime

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"plinth/types"
)

func testApp() types.App {
	return types.App{
		Name:        "consilium",
		BindAddress: "0.0.0.0",
		BindPort:    8501,
		PublishPort: 8501,
	}
}

func TestContractEnv_Defaults(t *testing.T) {
	env := contractEnv(testApp())

	assert.Equal(t, []string{
		"SERVER_BIND_ADDRESS=0.0.0.0",
		"SERVER_BIND_PORT=8501",
	}, env)
}

func TestContractEnv_ExtrasSortedAfterContract(t *testing.T) {
	app := testApp()
	app.Env = map[string]string{
		"OPENAI_API_KEY":   "sk-test",
		"DEEPSEEK_API_KEY": "ds-test",
	}

	env := contractEnv(app)

	assert.Equal(t, []string{
		"SERVER_BIND_ADDRESS=0.0.0.0",
		"SERVER_BIND_PORT=8501",
		"DEEPSEEK_API_KEY=ds-test",
		"OPENAI_API_KEY=sk-test",
	}, env)
}

func TestContractEnv_ExtrasCannotShadowContract(t *testing.T) {
	app := testApp()
	app.Env = map[string]string{
		types.EnvBindPort: "9999",
		"OTHER":           "x",
	}

	env := contractEnv(app)

	assert.Contains(t, env, "SERVER_BIND_PORT=8501")
	assert.NotContains(t, env, "SERVER_BIND_PORT=9999")
}

func TestStateOf(t *testing.T) {
	tests := []struct {
		daemon string
		want   types.ContainerState
	}{
		{"created", types.StateStarting},
		{"running", types.StateRunning},
		{"restarting", types.StateRunning},
		{"removing", types.StateStopping},
		{"paused", types.StateStopped},
		{"exited", types.StateExited},
		{"dead", types.StateExited},
		{"something-new", types.StateIdle},
	}
	for _, tt := range tests {
		t.Run(tt.daemon, func(t *testing.T) {
			assert.Equal(t, tt.want, stateOf(tt.daemon))
		})
	}
}

func TestHasName(t *testing.T) {
	assert.True(t, hasName([]string{"/plinth-consilium"}, "plinth-consilium"))
	assert.False(t, hasName([]string{"/plinth-consilium-old"}, "plinth-consilium"))
	assert.False(t, hasName(nil, "plinth-consilium"))
}

func TestContainerName(t *testing.T) {
	assert.Equal(t, "plinth-consilium", containerName([]string{"/plinth-consilium"}))
	assert.Equal(t, "", containerName(nil))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0123456789ab", shortID("0123456789abcdef0123"))
	assert.Equal(t, "short", shortID("short"))
}

func TestStartupError_Timeout(t *testing.T) {
	err := &StartupError{
		App:    "consilium",
		Window: 60 * time.Second,
		Err:    errors.New("127.0.0.1:8501 not accepting connections within 1m0s"),
	}

	assert.Contains(t, err.Error(), "did not become ready within 1m0s")
	assert.Contains(t, err.Error(), "not accepting connections")
}

func TestStartupError_EarlyExitWithLogTail(t *testing.T) {
	err := &StartupError{
		App:      "consilium",
		Exited:   true,
		ExitCode: 1,
		Window:   60 * time.Second,
		LogTail:  "ModuleNotFoundError: No module named 'streamlit'",
	}

	assert.Contains(t, err.Error(), "exited with code 1 before becoming ready")
	assert.Contains(t, err.Error(), "ModuleNotFoundError")
}

func TestExitError(t *testing.T) {
	err := &ExitError{App: "consilium", Code: 2}
	assert.Equal(t, "app consilium exited with code 2", err.Error())
}
