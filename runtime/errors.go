package runtime

import (
	"fmt"
	"time"
)

// StartupError reports a container that never became ready: it either exited
// before readiness or failed to answer within the startup window. The
// container has been removed by the time it is returned.
type StartupError struct {
	App       string
	Container string
	Exited    bool  // the served process exited before readiness
	ExitCode  int64 // exit code when Exited
	Window    time.Duration
	LogTail   string // last lines of container output, when available
	Err       error
}

func (e *StartupError) Error() string {
	var msg string
	if e.Exited {
		msg = fmt.Sprintf("app %s exited with code %d before becoming ready", e.App, e.ExitCode)
	} else {
		msg = fmt.Sprintf("app %s did not become ready within %s", e.App, e.Window)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.LogTail != "" {
		msg = fmt.Sprintf("%s\nlast output:\n%s", msg, e.LogTail)
	}
	return msg
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// ExitError is not a defect report: it carries the served process's non-zero
// exit code so the command can exit with the same code.
type ExitError struct {
	App  string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("app %s exited with code %d", e.App, e.Code)
}
