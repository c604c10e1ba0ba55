// Package logging configures the zerolog logger shared by a report run.
//
// Logs are JSON on stderr by default so that stdout carries only the
// progress lines and Markdown tables of the report.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a level name accepted on the command line.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

var zerologLevels = map[LogLevel]zerolog.Level{
	LevelDebug: zerolog.DebugLevel,
	LevelInfo:  zerolog.InfoLevel,
	LevelWarn:  zerolog.WarnLevel,
	LevelError: zerolog.ErrorLevel,
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level written. Unknown levels fall back to info.
	Level LogLevel

	// Pretty switches to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer

	// RunID is stamped as run_id on every line when set.
	RunID string
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup builds the logger described by cfg and installs it as the global
// zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(cfg.Level.zerolog())

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logCtx := zerolog.New(out).With().Timestamp()
	if cfg.RunID != "" {
		logCtx = logCtx.Str("run_id", cfg.RunID)
	}

	log.Logger = logCtx.Logger()
	return log.Logger
}

// ParseLevel validates a level name. The empty string means info and
// "warning" is accepted for warn.
func ParseLevel(s string) (LogLevel, error) {
	name := LogLevel(strings.ToLower(s))
	switch name {
	case "":
		return LevelInfo, nil
	case "warning":
		return LevelWarn, nil
	}
	if _, ok := zerologLevels[name]; !ok {
		return "", fmt.Errorf("unknown log level %q", s)
	}
	return name, nil
}

func (l LogLevel) zerolog() zerolog.Level {
	name, err := ParseLevel(string(l))
	if err != nil {
		return zerolog.InfoLevel
	}
	return zerologLevels[name]
}

// NewLogger derives a logger for component from the global logger.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Levels used across the module:
//
// Debug: one line per HTTP request, finished pagination and store write.
// Info: run start and end, each theme start and completion.
// Warn: HTTP error responses, metrics textfile failures.
// Error: transport failures and the error that ended the run.
//
// Common fields: run_id, component (hapi-client, report, report-store, cli),
// endpoint, status, error_class, theme, duration.
