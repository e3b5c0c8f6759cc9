// Package logger provides a thin wrapper around zerolog.Logger with the
// constructors the tool needs: a console logger for CLI runs and a no-op
// logger for tests.
//
// The Logger type embeds zerolog.Logger so all standard zerolog methods
// (Debug, Info, Warn, Error, Fatal, etc.) are available directly on *Logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a thin wrapper around zerolog.Logger.
type Logger struct {
	zerolog.Logger
}

// New constructs a *Logger for the given role label (e.g. "cli", "boot").
// Output goes to stderr in console format so stdout stays free for command
// results. Debug enables debug-level entries.
func New(role string, debug bool) *Logger {
	return NewWriter(os.Stderr, role, debug)
}

// NewWriter is New with an explicit output writer.
func NewWriter(w io.Writer, role string, debug bool) *Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	l := zerolog.New(out).Level(level).With().
		Str("role", role).
		Timestamp().
		Logger()

	return &Logger{l}
}

// Nop returns a *Logger that discards all log output. It is intended for use
// in tests and other contexts where logging would produce noise.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}
