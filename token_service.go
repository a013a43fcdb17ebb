package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// TokenTypeBearer is the token_type reported to clients
const TokenTypeBearer = "bearer"

// TokenPair is the result of a successful login
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	// ExpiresIn is the access token lifetime in seconds
	ExpiresIn int `json:"expires_in"`
}

// TokenService issues and redeems token pairs
type TokenService struct {
	codec      *TokenCodec
	accessTTL  time.Duration
	refreshTTL time.Duration
	revocation RevocationStore
	logger     Logger
	sink       ActivitySink
}

// TokenServiceOption customizes a TokenService
type TokenServiceOption func(*TokenService)

// WithRevocationStore enables refresh token revocation
func WithRevocationStore(store RevocationStore) TokenServiceOption {
	return func(ts *TokenService) {
		ts.revocation = store
	}
}

// WithTokenServiceLogger sets the logger
func WithTokenServiceLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		ts.logger = normalizeLogger(logger)
	}
}

// WithTokenActivitySink reports refresh and revocation events
func WithTokenActivitySink(sink ActivitySink) TokenServiceOption {
	return func(ts *TokenService) {
		ts.sink = normalizeActivitySink(sink)
	}
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg Config, codec *TokenCodec, opts ...TokenServiceOption) *TokenService {
	ts := &TokenService{
		codec:      codec,
		accessTTL:  cfg.GetAccessTokenTTL(),
		refreshTTL: cfg.GetRefreshTokenTTL(),
		logger:     defLogger{},
		sink:       noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts
}

// NewTokenServiceFromConfig wires the HMAC signer and codec from cfg
func NewTokenServiceFromConfig(cfg Config, clock Clock, opts ...TokenServiceOption) (*TokenService, error) {
	signer, err := SignerFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return NewTokenService(cfg, NewTokenCodec(signer, WithCodecClock(clock)), opts...), nil
}

// Codec exposes the underlying codec
func (ts *TokenService) Codec() *TokenCodec {
	return ts.codec
}

// AccessTokenTTL is the configured access token lifetime
func (ts *TokenService) AccessTokenTTL() time.Duration {
	return ts.accessTTL
}

// IssuePair mints an access and a refresh token for subject
func (ts *TokenService) IssuePair(subject string) (TokenPair, error) {
	now := ts.codec.Now()

	access, err := ts.codec.Encode(subject, TokenTypeAccess, now, now.Add(ts.accessTTL))
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := ts.codec.Encode(subject, TokenTypeRefresh, now, now.Add(ts.refreshTTL))
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int(ts.accessTTL.Seconds()),
	}, nil
}

// Refresh redeems a refresh token for a new access token. The refresh
// token is not rotated.
func (ts *TokenService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := ts.codec.Decode(refreshToken)
	if err != nil {
		ts.logger.Debug("refresh token rejected", "error", err)
		return "", invalidToken(err)
	}

	if !claims.IsRefresh() {
		ts.logger.Debug("refresh token rejected", "type", claims.Type)
		return "", ErrInvalidToken
	}

	if ts.revocation != nil {
		revoked, err := ts.revocation.IsRevoked(ctx, refreshToken)
		if err != nil {
			return "", storeUnavailable(err, "revocation.is_revoked")
		}
		if revoked {
			return "", ErrInvalidToken
		}
	}

	now := ts.codec.Now()
	access, err := ts.codec.Encode(claims.Subject(), TokenTypeAccess, now, now.Add(ts.accessTTL))
	if err != nil {
		return "", err
	}

	ts.emit(ctx, ActivityEvent{EventType: ActivityEventTokenRefreshed, UserID: claims.Subject()})
	return access, nil
}

// Revoke invalidates a refresh token until its own expiry. Tokens that no
// longer decode are ignored, access tokens are rejected. Without a
// revocation store this is a no-op.
func (ts *TokenService) Revoke(ctx context.Context, token string) error {
	return ts.revoke(ctx, token, "")
}

// RevokeFor is Revoke restricted to refresh tokens issued to subject
func (ts *TokenService) RevokeFor(ctx context.Context, token, subject string) error {
	if subject == "" {
		return ErrInvalidToken
	}
	return ts.revoke(ctx, token, subject)
}

func (ts *TokenService) revoke(ctx context.Context, token, subject string) error {
	claims, err := ts.codec.Decode(token)
	if err != nil {
		return nil
	}

	if !claims.IsRefresh() {
		ts.logger.Debug("revoke rejected", "type", claims.Type)
		return ErrInvalidToken
	}

	if subject != "" && claims.Subject() != subject {
		ts.logger.Warn("revoke rejected, subject mismatch", "subject", claims.Subject())
		return ErrInvalidToken
	}

	if ts.revocation == nil {
		return nil
	}

	if err := ts.revocation.Revoke(ctx, token, claims.Expires()); err != nil {
		return storeUnavailable(err, "revocation.revoke")
	}

	ts.emit(ctx, ActivityEvent{EventType: ActivityEventTokenRevoked, UserID: claims.Subject()})
	return nil
}

func (ts *TokenService) emit(ctx context.Context, event ActivityEvent) {
	emitActivity(ctx, ts.sink, ts.logger, ts.codec.clock, event)
}

// ExtractSubjectIfAccessToken returns the subject of a valid, unexpired
// access token. It never fails; any problem yields ok == false.
func (ts *TokenService) ExtractSubjectIfAccessToken(token string) (subject string, ok bool) {
	subject, reason := ts.accessSubject(token)
	return subject, reason == ""
}

// accessSubject is ExtractSubjectIfAccessToken with the rejection reason
func (ts *TokenService) accessSubject(token string) (string, string) {
	claims, err := ts.codec.Decode(token)
	switch {
	case err == nil:
	case IsTokenExpiredError(err):
		return "", ReasonTokenExpired
	case IsSignatureError(err):
		return "", ReasonTokenSignatureInvalid
	default:
		return "", ReasonTokenMalformed
	}

	if !claims.IsAccess() {
		return "", ReasonTokenTypeMismatch
	}
	return claims.Subject(), ""
}

// IsExpired is true when token does not decode or its exp has passed
func (ts *TokenService) IsExpired(token string) bool {
	_, err := ts.codec.Decode(token)
	return err != nil
}

// ExpiresAt returns the exp of a valid token
func (ts *TokenService) ExpiresAt(token string) (time.Time, bool) {
	claims, err := ts.codec.Decode(token)
	if err != nil {
		return time.Time{}, false
	}
	return claims.Expires(), true
}

func invalidToken(err error) error {
	return withSource(errors.New(ErrInvalidToken.Message, ErrInvalidToken.Category), err).
		WithCode(errors.CodeUnauthorized).
		WithTextCode(ErrInvalidToken.TextCode)
}
