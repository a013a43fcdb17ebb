package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventAuthenticated     ActivityEventType = "auth.request.authenticated"
	ActivityEventUnauthenticated   ActivityEventType = "auth.request.unauthenticated"
	ActivityEventForbidden         ActivityEventType = "auth.request.forbidden"
	ActivityEventStoreUnavailable  ActivityEventType = "auth.request.store_unavailable"
	ActivityEventLoginSuccess      ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure      ActivityEventType = "auth.login.failure"
	ActivityEventTokenRefreshed    ActivityEventType = "auth.token.refreshed"
	ActivityEventTokenRevoked      ActivityEventType = "auth.token.revoked"
	ActivityEventUserRegistered    ActivityEventType = "user.registered"
	ActivityEventPasswordChanged   ActivityEventType = "user.password.changed"
	ActivityEventUserStatusChanged ActivityEventType = "user.status.changed"
	ActivityEventProfileUpdated    ActivityEventType = "user.profile.updated"
)

// Resolution modes reported in ActivityEvent.Mode
const (
	ModeRequired  = "required"
	ModeSuperuser = "superuser"
	ModeOptional  = "optional"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType ActivityEventType
	// Mode is the authenticator entry point, empty for account events
	Mode string
	// Reason is the internal failure reason. It is never sent to clients.
	Reason     string
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiSink fans an event out to every sink, returning the first error
type MultiSink []ActivitySink

func (m MultiSink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

func emitActivity(ctx context.Context, sink ActivitySink, logger Logger, clock Clock, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = clock.Now()
	}
	if err := sink.Record(ctx, event); err != nil {
		logger.Warn("activity sink record failed", "event", event.EventType, "error", err)
	}
}
