package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-router"
)

// DefaultContextKey is the router locals key holding the *Identity
const DefaultContextKey = "user"

// BearerScheme is the Authorization header scheme
const BearerScheme = "Bearer"

var identityCtxKey = &contextKey{"identity"}

type contextKey struct {
	name string
}

// WithIdentity sets the Identity in the given context
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, identity)
}

// IdentityFromContext finds the identity in the context
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	raw, ok := ctx.Value(identityCtxKey).(*Identity)
	return raw, ok && raw != nil
}

// GetRouterIdentity extracts the Identity from the router context
func GetRouterIdentity(ctx router.Context, key string) (*Identity, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	identity, ok := raw.(*Identity)
	return identity, ok && identity != nil
}

// ParseBearer returns the credential of an "Authorization: Bearer <token>"
// header value. Any other value yields an empty credential.
func ParseBearer(header string) string {
	header = strings.TrimSpace(header)
	l := len(BearerScheme)
	if len(header) > l+1 && strings.EqualFold(header[:l], BearerScheme) && header[l] == ' ' {
		return strings.TrimSpace(header[l+1:])
	}
	return ""
}
