package log

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	charmlog "github.com/charmbracelet/log"

	"metagen/internal/logging"
)

var (
	initOnce    sync.Once
	initialized atomic.Bool
	closeLogger func() error
)

// Setup installs the charm logger as the slog default. debug forces the
// debug level over METAGEN_LOG_LEVEL.
func Setup(debug bool) {
	initOnce.Do(func() {
		lg := logging.NewLogger()
		if debug {
			lg.SetLevel(charmlog.DebugLevel)
			lg.SetReportCaller(true)
		}
		closeLogger = lg.Close

		slog.SetDefault(slog.New(lg.Logger))
		initialized.Store(true)
	})
}

func Initialized() bool {
	return initialized.Load()
}

// Close releases the log file, if logging to one.
func Close() error {
	if closeLogger == nil {
		return nil
	}
	return closeLogger()
}

func RecoverPanic(name string, cleanup func()) {
	if r := recover(); r != nil {
		if Initialized() {
			slog.Error(fmt.Sprintf("Panic in %s", name),
				"panic", r,
				"stack", string(debug.Stack()))
		}
		if cleanup != nil {
			cleanup()
		}
	}
}
