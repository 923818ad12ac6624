// package shared holds the cross-cutting pieces of the stats service:
// logging, configuration, sentinel errors, and the database layer.
package shared

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger builds the service logger on the given writer, defaulting to
// [os.Stderr]. Timestamps and caller reporting are enabled so request logs
// carry their origin.
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// WithLogger derives a child [log.Logger] carrying the given key-value pairs,
// typically a component name, on every entry.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel adjusts the logger's verbosity.
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID returns a fresh v4 [uuid.UUID] string. Session tokens and OAuth
// state values come from here.
func GenerateID() string {
	return uuid.New().String()
}
