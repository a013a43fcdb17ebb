package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType discriminates access from refresh tokens
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

func (t TokenType) Valid() bool {
	return t == TokenTypeAccess || t == TokenTypeRefresh
}

// Claims is the token payload: {sub, type, iat, exp}. Only those registered
// claims are ever set, so the remaining omitempty fields stay off the wire.
type Claims struct {
	jwt.RegisteredClaims
	Type TokenType `json:"type"`
}

var _ jwt.Claims = (*Claims)(nil)

func newClaims(subject string, typ TokenType, issuedAt, expiresAt time.Time) *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt.UTC()),
			ExpiresAt: jwt.NewNumericDate(expiresAt.UTC()),
		},
		Type: typ,
	}
}

// Subject returns the sub claim
func (c *Claims) Subject() string {
	return c.RegisteredClaims.Subject
}

func (c *Claims) IsAccess() bool {
	return c.Type == TokenTypeAccess
}

func (c *Claims) IsRefresh() bool {
	return c.Type == TokenTypeRefresh
}

// Expires returns the exp claim or the zero time
func (c *Claims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time.UTC()
}

// Issued returns the iat claim or the zero time
func (c *Claims) Issued() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time.UTC()
}

// ExpiredAt reports now >= exp
func (c *Claims) ExpiredAt(now time.Time) bool {
	return !now.Before(c.Expires())
}
