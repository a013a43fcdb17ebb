package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenCodec signs and verifies session tokens
type TokenCodec struct {
	signer Signer
	clock  Clock
	parser *jwt.Parser
}

// CodecOption customizes a TokenCodec
type CodecOption func(*TokenCodec)

// WithCodecClock sets the clock used for expiry checks
func WithCodecClock(clock Clock) CodecOption {
	return func(c *TokenCodec) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewTokenCodec returns a codec bound to signer
func NewTokenCodec(signer Signer, opts ...CodecOption) *TokenCodec {
	c := &TokenCodec{
		signer: signer,
		clock:  SystemClock,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	// expiry is checked by Decode against the injected clock with now >= exp
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{signer.Method().Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	return c
}

// Now returns the codec clock reading
func (c *TokenCodec) Now() time.Time {
	return c.clock.Now().UTC()
}

// Encode signs a {sub, type, iat, exp} claim set
func (c *TokenCodec) Encode(subject string, typ TokenType, issuedAt, expiresAt time.Time) (string, error) {
	if !typ.Valid() {
		return "", errors.New(fmt.Sprintf("unknown token type %q", typ), errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(c.signer.Method(), newClaims(subject, typ, issuedAt, expiresAt))

	signed, err := token.SignedString(c.signer.Key())
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

// Decode verifies the signature, then the claim shape, then expiry.
func (c *TokenCodec) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}

	_, err := c.parser.ParseWithClaims(tokenString, claims, c.keyFunc)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, errors.Wrap(err, ErrInvalidSignature.Category, ErrInvalidSignature.Message).
				WithCode(errors.CodeUnauthorized).
				WithTextCode(ErrInvalidSignature.TextCode)
		default:
			return nil, malformed(err)
		}
	}

	switch {
	case claims.Subject() == "":
		return nil, malformed(fmt.Errorf("missing sub claim"))
	case !claims.Type.Valid():
		return nil, malformed(fmt.Errorf("invalid type claim %q", claims.Type))
	case claims.IssuedAt == nil:
		return nil, malformed(fmt.Errorf("missing iat claim"))
	case claims.ExpiresAt == nil:
		return nil, malformed(fmt.Errorf("missing exp claim"))
	}

	if claims.ExpiredAt(c.Now()) {
		return nil, ErrTokenExpired
	}

	return claims, nil
}

func (c *TokenCodec) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != c.signer.Method().Alg() {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return c.signer.Key(), nil
}

func malformed(err error) error {
	return errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
		WithCode(errors.CodeUnauthorized).
		WithTextCode(ErrTokenMalformed.TextCode)
}
