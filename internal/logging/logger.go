// Package logging builds the charmbracelet logger used by the CLI. Level,
// prefix and destination come from the environment.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

const (
	envLevel  = "METAGEN_LOG_LEVEL"
	envPrefix = "METAGEN_LOG_PREFIX"
	envToFile = "METAGEN_LOG_TO_FILE"
)

// LoggerCloser wraps a logger and provides a Close method for cleanup
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
}

// Close closes the underlying writer if it's closeable
func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// Level parses METAGEN_LOG_LEVEL, defaulting to info.
func Level() log.Level {
	switch os.Getenv(envLevel) {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// NewLoggerWithWriter creates a logger writing to w. Stderr itself is never
// closed by the returned LoggerCloser.
func NewLoggerWithWriter(w io.Writer) *LoggerCloser {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Level:           Level(),
	})

	prefix := os.Getenv(envPrefix)
	if prefix == "" {
		prefix = "metagen "
	}

	var closer io.Closer
	if c, ok := w.(io.Closer); ok && w != os.Stderr && w != os.Stdout {
		closer = c
	}

	return &LoggerCloser{
		Logger: lg.WithPrefix(prefix),
		closer: closer,
	}
}

// NewLogger creates a new logger based on environment variables
// METAGEN_LOG_LEVEL: debug, info, warn, error (default: info)
// METAGEN_LOG_PREFIX: prefix for log messages (default: "metagen ")
// METAGEN_LOG_TO_FILE: when set to "1", logs to a timestamped file instead of stderr
func NewLogger() *LoggerCloser {
	output := io.Writer(os.Stderr)

	if os.Getenv(envToFile) == "1" {
		timestamp := time.Now().Format("20060102-150405")
		logFile := fmt.Sprintf("metagen-%s-debug.log", timestamp)

		f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err == nil {
			output = f
		}
		// If file creation fails, fall back to stderr
	}

	return NewLoggerWithWriter(output)
}

// IsDebug returns true if debug logging is enabled
func IsDebug() bool {
	return os.Getenv(envLevel) == "debug"
}
