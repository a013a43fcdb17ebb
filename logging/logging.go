// Package logging builds the process slog logger and adapts it to the
// auth.Logger interface.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

// New returns a JSON logger for production and staging and a text logger
// otherwise. level is one of debug, info, warn, error.
func New(env, level string) *slog.Logger {
	return NewWithWriter(os.Stdout, env, level)
}

func NewWithWriter(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	switch env {
	case EnvProduction, EnvStaging:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// ParseLevel defaults to info for unknown values
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "critical":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Adapter implements auth.Logger on top of slog
type Adapter struct {
	l *slog.Logger
}

func NewAdapter(l *slog.Logger) *Adapter {
	if l == nil {
		l = slog.Default()
	}
	return &Adapter{l: l}
}

func (a *Adapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *Adapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *Adapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *Adapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }

// With returns an adapter that always includes args
func (a *Adapter) With(args ...any) *Adapter {
	return &Adapter{l: a.l.With(args...)}
}

// Slog exposes the underlying logger
func (a *Adapter) Slog() *slog.Logger {
	return a.l
}
