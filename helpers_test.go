package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-task-auth"
)

const testSecret = "test-signing-secret-0123456789abcdef"

const testUserID = "11111111-1111-1111-1111-111111111111"

// testClock is a settable clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now.UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestConfig(t *testing.T, opts ...auth.ConfigOption) auth.Config {
	t.Helper()
	cfg, err := auth.NewConfig(testSecret, opts...)
	require.NoError(t, err)
	return cfg
}

func newTestTokenService(t *testing.T, clock auth.Clock, opts ...auth.TokenServiceOption) *auth.TokenService {
	t.Helper()
	opts = append([]auth.TokenServiceOption{auth.WithTokenServiceLogger(nopLogger{})}, opts...)
	ts, err := auth.NewTokenServiceFromConfig(newTestConfig(t), clock, opts...)
	require.NoError(t, err)
	return ts
}

func fastHasher() auth.Hasher {
	return auth.NewHasher(bcrypt.MinCost)
}

func newTestUser(t *testing.T, email, password string, active, superuser bool) *auth.User {
	t.Helper()
	hash, err := fastHasher().Hash(password)
	require.NoError(t, err)
	return &auth.User{
		ID:             uuid.New(),
		Email:          email,
		HashedPassword: hash,
		FullName:       "Test User",
		IsActive:       active,
		IsSuperuser:    superuser,
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Events() []auth.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]auth.ActivityEvent(nil), s.events...)
}

func (s *recordingSink) Types() []auth.ActivityEventType {
	var out []auth.ActivityEventType
	for _, e := range s.Events() {
		out = append(out, e.EventType)
	}
	return out
}
