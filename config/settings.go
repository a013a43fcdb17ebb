// Package config loads process settings from the environment or a config
// file.
package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	"github.com/ilyakaznacheev/cleanenv"

	auth "github.com/goliatone/go-task-auth"
)

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
	EnvTesting     = "testing"

	DevKeyPrefix = "dev-key-"

	DefaultDevelopmentDatabaseURL = "sqlite://file:taskauth.db?cache=shared"
	DefaultTestingDatabaseURL     = "sqlite://file::memory:?cache=shared"
)

type Settings struct {
	ProjectName string `yaml:"project_name" env:"PROJECT_NAME" env-default:"Task Management API"`
	Version     string `yaml:"version" env:"VERSION" env-default:"1.0.0"`
	APIV1Str    string `yaml:"api_v1_str" env:"API_V1_STR" env-default:"/api/v1"`
	Debug       bool   `yaml:"debug" env:"DEBUG" env-default:"false"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"development"`
	HTTPAddr    string `yaml:"http_addr" env:"HTTP_ADDR" env-default:":8000"`
	GRPCAddr    string `yaml:"grpc_addr" env:"GRPC_ADDR"`

	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	RedisURL    string `yaml:"redis_url" env:"REDIS_URL"`

	SecretKey                string `yaml:"secret_key" env:"SECRET_KEY"`
	Algorithm                string `yaml:"algorithm" env:"ALGORITHM" env-default:"HS256"`
	AccessTokenExpireMinutes int    `yaml:"access_token_expire_minutes" env:"ACCESS_TOKEN_EXPIRE_MINUTES" env-default:"30"`
	RefreshTokenExpireDays   int    `yaml:"refresh_token_expire_days" env:"REFRESH_TOKEN_EXPIRE_DAYS" env-default:"7"`

	FrontendURL        string   `yaml:"frontend_url" env:"FRONTEND_URL" env-default:"http://localhost:3000"`
	BackendCORSOrigins []string `yaml:"backend_cors_origins" env:"BACKEND_CORS_ORIGINS" env-separator:"," env-default:"http://localhost:3000,http://127.0.0.1:3000"`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"INFO"`
}

// Load reads settings from path when given, otherwise from the
// environment only, then applies environment defaults and validates.
func Load(path string) (*Settings, error) {
	s := &Settings{}

	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, s)
	} else {
		err = cleanenv.ReadEnv(s)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to read settings")
	}

	if err := s.Finalize(); err != nil {
		return nil, err
	}

	return s, nil
}

// MustLoad panics when the settings cannot be loaded
func MustLoad(path string) *Settings {
	s, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return s
}

// Finalize fills environment dependent defaults and validates s
func (s *Settings) Finalize() error {
	s.Environment = strings.ToLower(strings.TrimSpace(s.Environment))
	s.LogLevel = strings.ToUpper(strings.TrimSpace(s.LogLevel))

	if err := s.Validate(); err != nil {
		return err
	}

	if s.DatabaseURL == "" {
		switch s.Environment {
		case EnvDevelopment:
			s.DatabaseURL = DefaultDevelopmentDatabaseURL
		case EnvTesting:
			s.DatabaseURL = DefaultTestingDatabaseURL
		default:
			return s.invalid("DATABASE_URL is required in " + s.Environment)
		}
	}

	if s.SecretKey == "" {
		if !s.AllowsGeneratedSecret() {
			return s.invalid("SECRET_KEY is required in " + s.Environment)
		}
		key, err := GenerateDevKey()
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to generate development secret")
		}
		s.SecretKey = key
	}

	if s.IsProduction() {
		if len(s.SecretKey) < auth.MinSecretLength {
			return s.invalid(fmt.Sprintf("SECRET_KEY must be at least %d characters in production", auth.MinSecretLength))
		}
		if strings.Contains(s.SecretKey, DevKeyPrefix) {
			return s.invalid("Cannot use development SECRET_KEY in production")
		}
	}

	return nil
}

func (s Settings) Validate() error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.Environment, validation.Required,
			validation.In(EnvDevelopment, EnvStaging, EnvProduction, EnvTesting)),
		validation.Field(&s.Algorithm, validation.Required, validation.In("HS256", "HS384", "HS512")),
		validation.Field(&s.AccessTokenExpireMinutes, validation.Required, validation.Min(1)),
		validation.Field(&s.RefreshTokenExpireDays, validation.Required, validation.Min(1)),
		validation.Field(&s.LogLevel, validation.In("DEBUG", "INFO", "WARNING", "WARN", "ERROR", "CRITICAL")),
		validation.Field(&s.APIV1Str, validation.Required),
	)
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid settings")
	}
	return nil
}

func (s Settings) invalid(msg string) error {
	return errors.New(msg, errors.CategoryValidation).
		WithMetadata(map[string]any{"environment": s.Environment})
}

func (s Settings) IsDevelopment() bool { return s.Environment == EnvDevelopment }
func (s Settings) IsProduction() bool  { return s.Environment == EnvProduction }
func (s Settings) IsTesting() bool     { return s.Environment == EnvTesting }
func (s Settings) IsStaging() bool     { return s.Environment == EnvStaging }

// AllowsGeneratedSecret reports whether a missing secret may be generated
func (s Settings) AllowsGeneratedSecret() bool {
	return s.IsDevelopment() || s.IsTesting()
}

func (s Settings) AccessTokenTTL() time.Duration {
	return time.Duration(s.AccessTokenExpireMinutes) * time.Minute
}

func (s Settings) RefreshTokenTTL() time.Duration {
	return time.Duration(s.RefreshTokenExpireDays) * 24 * time.Hour
}

// AuthConfig builds the token configuration
func (s Settings) AuthConfig() (auth.Config, error) {
	return auth.NewConfig(s.SecretKey,
		auth.WithAlgorithm(s.Algorithm),
		auth.WithAccessTokenTTL(s.AccessTokenTTL()),
		auth.WithRefreshTokenTTL(s.RefreshTokenTTL()),
	)
}

// CORSOrigins returns the configured origins plus the frontend url
func (s Settings) CORSOrigins() []string {
	seen := make(map[string]bool, len(s.BackendCORSOrigins)+1)
	out := make([]string, 0, len(s.BackendCORSOrigins)+1)
	for _, o := range append(append([]string{}, s.BackendCORSOrigins...), s.FrontendURL) {
		o = strings.TrimSpace(o)
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	return out
}

func (s Settings) String() string {
	return fmt.Sprintf("Settings(environment=%s, debug=%t)", s.Environment, s.Debug)
}

// LogValue keeps secrets and credentials out of structured logs
func (s Settings) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("project", s.ProjectName),
		slog.String("version", s.Version),
		slog.String("environment", s.Environment),
		slog.Bool("debug", s.Debug),
		slog.String("http_addr", s.HTTPAddr),
		slog.String("grpc_addr", s.GRPCAddr),
		slog.String("database", redactURL(s.DatabaseURL)),
		slog.String("redis", redactURL(s.RedisURL)),
		slog.String("algorithm", s.Algorithm),
		slog.String("secret_key", "[REDACTED]"),
	)
}

// GenerateDevKey returns a random key with the development prefix
func GenerateDevKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return DevKeyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return "[REDACTED]"
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = "***@" + rest[at+1:]
	}
	return scheme + "://" + rest
}
