package auth

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

const (
	// MinSecretLength is the minimum accepted signing secret length in bytes
	MinSecretLength        = 32
	DefaultAlgorithm       = "HS256"
	DefaultAccessTokenTTL  = 30 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Config holds the token settings. It is built once with NewConfig and
// never mutated; pass it by value.
type Config struct {
	secret          []byte
	algorithm       string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

// ConfigOption customizes NewConfig
type ConfigOption func(*Config)

// WithAlgorithm sets the HMAC signing algorithm (HS256, HS384, HS512)
func WithAlgorithm(alg string) ConfigOption {
	return func(c *Config) {
		c.algorithm = alg
	}
}

// WithAccessTokenTTL sets the access token lifetime
func WithAccessTokenTTL(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.accessTokenTTL = d
	}
}

// WithRefreshTokenTTL sets the refresh token lifetime
func WithRefreshTokenTTL(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.refreshTokenTTL = d
	}
}

// NewConfig validates and returns an immutable token configuration
func NewConfig(secret string, opts ...ConfigOption) (Config, error) {
	cfg := Config{
		secret:          []byte(secret),
		algorithm:       DefaultAlgorithm,
		accessTokenTTL:  DefaultAccessTokenTTL,
		refreshTokenTTL: DefaultRefreshTokenTTL,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	err := validation.Errors{
		"secret": validation.Validate(c.secret,
			validation.Required,
			validation.Length(MinSecretLength, 0).Error(fmt.Sprintf("must be at least %d bytes", MinSecretLength)),
		),
		"algorithm":         validation.Validate(c.algorithm, validation.By(hmacAlgorithm)),
		"access_token_ttl":  validation.Validate(c.accessTokenTTL, validation.By(positiveDuration)),
		"refresh_token_ttl": validation.Validate(c.refreshTokenTTL, validation.By(positiveDuration)),
	}.Filter()
	if err == nil {
		return nil
	}

	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid token configuration").
		WithTextCode(TextCodeInvalidConfig)
}

func hmacAlgorithm(value any) error {
	alg, _ := value.(string)
	if _, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC); !ok {
		return errors.New("must be one of HS256, HS384, HS512")
	}
	return nil
}

func positiveDuration(value any) error {
	if d, _ := value.(time.Duration); d <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

func (c Config) GetSigningKey() []byte {
	return append([]byte(nil), c.secret...)
}

func (c Config) GetSigningMethod() string {
	return c.algorithm
}

func (c Config) GetAccessTokenTTL() time.Duration {
	return c.accessTokenTTL
}

func (c Config) GetRefreshTokenTTL() time.Duration {
	return c.refreshTokenTTL
}

// String never includes the secret
func (c Config) String() string {
	return fmt.Sprintf("auth.Config{algorithm:%s access_ttl:%s refresh_ttl:%s secret:[REDACTED]}",
		c.algorithm, c.accessTokenTTL, c.refreshTokenTTL)
}
