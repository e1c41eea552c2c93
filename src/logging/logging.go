// Package logging sets up the process-wide go-logging backend used by
// every other package in this module. It is a trimmed copy of please's
// src/cli/logging.go: same backend library, same message format, but
// without the interactive build-progress rendering that package also
// carries (this module has no terminal UI of its own; the progress
// tracker in src/progress is the UI-agnostic equivalent).
package logging

import (
	"os"

	"gopkg.in/op/go-logging.v1"
)

// MustGetLogger is re-exported so callers don't need to import go-logging
// directly just to get a per-package logger.
func MustGetLogger(module string) *logging.Logger {
	return logging.MustGetLogger(module)
}

// Verbosity mirrors go-logging's Level; kept as a distinct type so callers
// don't need to import go-logging.v1 themselves.
type Verbosity int

const (
	Critical Verbosity = Verbosity(logging.CRITICAL)
	Error    Verbosity = Verbosity(logging.ERROR)
	Warning  Verbosity = Verbosity(logging.WARNING)
	Notice   Verbosity = Verbosity(logging.NOTICE)
	Info     Verbosity = Verbosity(logging.INFO)
	Debug    Verbosity = Verbosity(logging.DEBUG)
)

// InitLogging initialises the stderr logging backend at the given
// verbosity. It is safe to call more than once; the last call wins.
func InitLogging(verbosity Verbosity) {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend, formatter())
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(logging.Level(verbosity), "")
	logging.SetBackend(leveled)
}

func formatter() logging.Formatter {
	return logging.MustStringFormatter("%{time:15:04:05.000} %{level:7s} %{module}: %{message}")
}
