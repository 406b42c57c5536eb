// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const (
	logLevelDebug = "debug"
	logLevelInfo  = "info"
	logLevelWarn  = "warn"
	logLevelError = "error"
)

// Log is the global logger instance. It discards output until Init is called,
// so packages can log safely from tests.
var Log = zerolog.Nop()

// Init initializes the global logger writing to stdout
func Init(level string, pretty bool) {
	InitWithWriter(level, pretty, os.Stdout)
}

// InitWithWriter initializes the global logger with an explicit destination.
// The terminal player uses this to keep log lines off the screen it draws.
func InitWithWriter(level string, pretty bool, out io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	output := out
	if pretty {
		output = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05.000",
		}
	}

	zerolog.SetGlobalLevel(ParseLevel(level))

	Log = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// With returns a child of the global logger tagged with a component name
func With(component string) zerolog.Logger {
	return Log.With().Str("component", component).Logger()
}

// ParseLevel converts a string log level to zerolog.Level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch level {
	case logLevelDebug:
		return zerolog.DebugLevel
	case logLevelInfo:
		return zerolog.InfoLevel
	case logLevelWarn:
		return zerolog.WarnLevel
	case logLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ValidLevels lists the accepted level names in increasing severity
func ValidLevels() []string {
	return []string{logLevelDebug, logLevelInfo, logLevelWarn, logLevelError}
}
