package core

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record. Enabled reports false so callers skip
// attribute formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger shared by the texture packages.
// By default nothing is logged. Passing nil restores the silent default.
//
// Log levels:
//   - [slog.LevelDebug]: per-texture flow (negotiated formats, encoder choice)
//   - [slog.LevelInfo]: cache reads and writes with sizes and format names
//   - [slog.LevelWarn]: recovered failures (corrupt cache entries, failed writes)
//
// Example:
//
//	core.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current shared logger. Safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
