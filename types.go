package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Logger is the structured logger used across the package. args are
// key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Clock returns the current instant. Inject a fixed clock in tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock is the wall clock in UTC
var SystemClock Clock = systemClock{}

// UserDirectory is the lookup capability the authenticator depends on.
// found is false when there is no matching record; err is reserved for
// store failures.
type UserDirectory interface {
	FindActiveByID(ctx context.Context, id uuid.UUID) (user *User, found bool, err error)
	FindByIdentityKey(ctx context.Context, key string) (user *User, found bool, err error)
}

// RevocationStore tracks tokens invalidated before their natural expiry
type RevocationStore interface {
	Revoke(ctx context.Context, token string, until time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Printf("[DBG] AUTH "+msg+" %v\n", args)
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Printf("[INF] AUTH "+msg+" %v\n", args)
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Printf("[WRN] AUTH "+msg+" %v\n", args)
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Printf("[ERR] AUTH "+msg+" %v\n", args)
}

func normalizeLogger(logger Logger) Logger {
	if logger == nil {
		return defLogger{}
	}
	return logger
}
