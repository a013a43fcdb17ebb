package auth

import (
	"context"

	"github.com/google/uuid"
)

// Authenticator resolves a bearer credential into an identity
type Authenticator interface {
	RequireUser(ctx context.Context, credential string) (*Identity, error)
	RequireSuperuser(ctx context.Context, credential string) (*Identity, error)
	OptionalUser(ctx context.Context, credential string) (*Identity, error)
}

// Auther is the default Authenticator. It holds no mutable state and is
// safe for concurrent use.
type Auther struct {
	tokens       *TokenService
	directory    UserDirectory
	logger       Logger
	activitySink ActivitySink
	clock        Clock
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(tokens *TokenService, directory UserDirectory) *Auther {
	return &Auther{
		tokens:       tokens,
		directory:    directory,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		clock:        SystemClock,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

func (s *Auther) WithClock(clock Clock) *Auther {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() *TokenService {
	return s.tokens
}

// RequireUser fails with an Unauthenticated error unless credential is a
// valid access token for an active user. Store failures are returned as
// StoreUnavailable.
func (s *Auther) RequireUser(ctx context.Context, credential string) (*Identity, error) {
	identity, err := s.resolve(ctx, credential)
	s.record(ctx, ModeRequired, identity, err)
	return identity, err
}

// RequireSuperuser is RequireUser plus a Forbidden failure for identities
// without superuser privileges.
func (s *Auther) RequireSuperuser(ctx context.Context, credential string) (*Identity, error) {
	identity, err := s.resolve(ctx, credential)
	if err == nil && !identity.IsSuperuser {
		err = newForbidden(MsgSuperuserRequired)
	}
	s.record(ctx, ModeSuperuser, identity, err)
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// OptionalUser returns a nil identity instead of authentication failures.
// Store failures still propagate.
func (s *Auther) OptionalUser(ctx context.Context, credential string) (*Identity, error) {
	identity, err := s.resolve(ctx, credential)
	s.record(ctx, ModeOptional, identity, err)
	if err != nil {
		if IsStoreUnavailable(err) {
			return nil, err
		}
		return nil, nil
	}
	return identity, nil
}

func (s *Auther) resolve(ctx context.Context, credential string) (*Identity, error) {
	if credential == "" {
		return nil, newUnauthenticated(MsgAuthenticationRequired, ReasonMissingCredential)
	}

	subject, reason := s.tokens.accessSubject(credential)
	if reason != "" {
		return nil, newUnauthenticated(MsgInvalidOrExpiredToken, reason)
	}

	id, err := uuid.Parse(subject)
	if err != nil {
		return nil, newUnauthenticated(MsgInvalidIdentifier, ReasonInvalidSubject)
	}

	user, found, err := s.directory.FindActiveByID(ctx, id)
	if err != nil {
		if IsStoreUnavailable(err) {
			return nil, err
		}
		return nil, storeUnavailable(err, "directory.FindActiveByID")
	}

	if !found || user == nil {
		return nil, newUnauthenticated(MsgUserNotFoundOrInactive, ReasonUserNotFoundOrInactive)
	}

	return IdentityFromUser(user), nil
}

func (s *Auther) record(ctx context.Context, mode string, identity *Identity, err error) {
	event := ActivityEvent{
		EventType: ActivityEventAuthenticated,
		Mode:      mode,
	}

	if identity != nil {
		event.UserID = identity.ID.String()
	}

	switch {
	case err == nil && identity == nil:
		return
	case err == nil:
	case IsStoreUnavailable(err):
		event.EventType = ActivityEventStoreUnavailable
		event.Reason = ReasonStoreUnavailable
		s.logger.Error("authenticator user lookup failed", "mode", mode, "error", err)
	case IsForbidden(err):
		event.EventType = ActivityEventForbidden
		event.Reason = ReasonNotSuperuser
		s.logger.Debug("authenticator rejected request", "mode", mode, "reason", event.Reason)
	default:
		event.EventType = ActivityEventUnauthenticated
		event.Reason = reasonOf(err)
		s.logger.Debug("authenticator rejected request", "mode", mode, "reason", event.Reason)
	}

	emitActivity(ctx, s.activitySink, s.logger, s.clock, event)
}
