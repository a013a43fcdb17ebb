package auth

import (
	"context"
	"net/http"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-task-auth/middleware/jwtware"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Detail   string `json:"detail"`
	TextCode string `json:"code,omitempty"`
}

// RouteAuthenticator adapts an Authenticator to go-router middleware
type RouteAuthenticator struct {
	auth         Authenticator
	contextKey   string
	tokenLookup  string
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

func NewRouteAuthenticator(auther Authenticator) *RouteAuthenticator {
	a := &RouteAuthenticator{
		auth:        auther,
		contextKey:  DefaultContextKey,
		tokenLookup: "header:" + router.HeaderAuthorization,
		Logger:      defLogger{},
	}
	a.ErrorHandler = a.defaultErrHandler
	return a
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	a.Logger = normalizeLogger(logger)
	return a
}

// WithTokenLookup overrides where the credential is read from, see
// jwtware.Config.TokenLookup
func (a *RouteAuthenticator) WithTokenLookup(lookup string) *RouteAuthenticator {
	if lookup != "" {
		a.tokenLookup = lookup
	}
	return a
}

func (a *RouteAuthenticator) ContextKey() string {
	return a.contextKey
}

// RequireUser rejects requests without an active user
func (a *RouteAuthenticator) RequireUser() router.MiddlewareFunc {
	return a.guard(a.auth.RequireUser)
}

// RequireSuperuser rejects requests without an active superuser
func (a *RouteAuthenticator) RequireSuperuser() router.MiddlewareFunc {
	return a.guard(a.auth.RequireSuperuser)
}

// OptionalUser attaches the identity when one is presented and valid
func (a *RouteAuthenticator) OptionalUser() router.MiddlewareFunc {
	return a.guard(a.auth.OptionalUser)
}

func (a *RouteAuthenticator) guard(resolve func(context.Context, string) (*Identity, error)) router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		ErrorHandler: a.ErrorHandler,
		ContextKey:   a.contextKey,
		TokenLookup:  a.tokenLookup,
		AuthScheme:   BearerScheme,
		Resolver: func(ctx context.Context, credential string) (any, error) {
			identity, err := resolve(ctx, credential)
			if err != nil || identity == nil {
				return nil, err
			}
			return identity, nil
		},
		ContextEnricher: func(ctx context.Context, value any) context.Context {
			if identity, ok := value.(*Identity); ok {
				return WithIdentity(ctx, identity)
			}
			return ctx
		},
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	return WriteError(c, a.Logger, err)
}

// StatusCodeFor maps an error to the HTTP status sent to the client
func StatusCodeFor(err error) int {
	switch {
	case IsStoreUnavailable(err):
		return http.StatusServiceUnavailable
	case IsForbidden(err):
		return http.StatusForbidden
	}

	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return http.StatusInternalServerError
	}

	if richErr.Code != 0 {
		return richErr.Code
	}

	switch richErr.Category {
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryValidation:
		return http.StatusUnprocessableEntity
	case errors.CategoryBadInput, errors.CategoryConflict:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as an ErrorResponse. Server errors are logged
// and their detail replaced.
func WriteError(c router.Context, logger Logger, err error) error {
	logger = normalizeLogger(logger)
	status := StatusCodeFor(err)

	body := ErrorResponse{Detail: http.StatusText(status)}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		body.Detail = richErr.Message
		body.TextCode = richErr.TextCode
	}

	switch {
	case status == http.StatusServiceUnavailable:
		logger.Error("request failed, store unavailable",
			"error", err,
			"details", metadataOf(richErr),
		)
	case status >= http.StatusInternalServerError:
		logger.Error("request failed",
			"error", err,
			"details", metadataOf(richErr),
		)
		body = ErrorResponse{Detail: "Internal server error"}
	case status == http.StatusUnauthorized:
		c.SetHeader("WWW-Authenticate", BearerScheme)
	}

	return c.JSON(status, body)
}

func metadataOf(richErr *errors.Error) string {
	if richErr == nil {
		return ""
	}
	return print.MaybePrettyJSON(richErr.Metadata)
}
