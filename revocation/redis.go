package revocation

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"

	auth "github.com/goliatone/go-task-auth"
)

const DefaultKeyPrefix = "revoked_token:"

// RedisStore shares the deny list between instances. Entries expire with
// the token through the key TTL.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

type RedisOption func(*RedisStore)

func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisStore) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithRedisClock computes key TTLs against clock
func WithRedisClock(clock auth.Clock) RedisOption {
	return func(r *RedisStore) {
		if clock != nil {
			r.now = clock.Now
		}
	}
}

func WithRedisNow(now func() time.Time) RedisOption {
	return func(r *RedisStore) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	r := &RedisStore{
		client: client,
		prefix: DefaultKeyPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewClient parses a redis:// or rediss:// url
func NewClient(url string) (*redis.Client, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if options.TLSConfig != nil {
		options.TLSConfig.MinVersion = tls.VersionTLS12
	}
	return redis.NewClient(options), nil
}

func (r *RedisStore) Revoke(ctx context.Context, token string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, r.prefix+Key(token), "1", ttl).Err()
}

func (r *RedisStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+Key(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Ping is used by the redis health check
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
