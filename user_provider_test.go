package auth_test

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-task-auth"
)

type providerFixture struct {
	store    *auth.MemoryDirectory
	tokens   *auth.TokenService
	sink     *recordingSink
	provider *auth.UserProvider
}

func newProviderFixture(t *testing.T, users ...*auth.User) *providerFixture {
	t.Helper()
	store := auth.NewMemoryDirectory(users...)
	tokens := newTestTokenService(t, newTestClock(time.Now()))
	sink := &recordingSink{}

	provider := auth.NewUserProvider(store, tokens).
		WithLogger(nopLogger{}).
		WithHasher(fastHasher()).
		WithActivitySink(sink)

	return &providerFixture{store: store, tokens: tokens, sink: sink, provider: provider}
}

func validRegistration() auth.RegisterInput {
	return auth.RegisterInput{
		Email:    "new.user@example.com",
		Password: "Str0ngPassword",
		FullName: "New User",
	}
}

func TestUserProvider_Register(t *testing.T) {
	f := newProviderFixture(t)
	ctx := context.Background()

	user, err := f.provider.Register(ctx, validRegistration())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "new.user@example.com", user.Email)
	assert.Equal(t, "New User", user.FullName)
	assert.True(t, user.IsActive)
	assert.False(t, user.IsSuperuser)
	assert.NotEqual(t, "Str0ngPassword", user.HashedPassword)
	assert.True(t, fastHasher().Verify("Str0ngPassword", user.HashedPassword))
	assert.NotNil(t, user.CreatedAt)

	exists, err := f.store.EmailExists(ctx, "new.user@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventUserRegistered}, f.sink.Types())
}

func TestUserProvider_RegisterDuplicateEmail(t *testing.T) {
	f := newProviderFixture(t)
	ctx := context.Background()

	_, err := f.provider.Register(ctx, validRegistration())
	require.NoError(t, err)

	_, err = f.provider.Register(ctx, validRegistration())
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
	assert.Equal(t, http.StatusBadRequest, auth.StatusCodeFor(err))
}

func TestUserProvider_RegisterValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *auth.RegisterInput)
		status int
	}{
		{name: "invalid email", mutate: func(in *auth.RegisterInput) { in.Email = "not-an-email" }, status: http.StatusUnprocessableEntity},
		{name: "missing full name", mutate: func(in *auth.RegisterInput) { in.FullName = "" }, status: http.StatusUnprocessableEntity},
		{name: "missing password", mutate: func(in *auth.RegisterInput) { in.Password = "" }, status: http.StatusUnprocessableEntity},
		{name: "short password", mutate: func(in *auth.RegisterInput) { in.Password = "Ab1" }, status: http.StatusBadRequest},
		{name: "password over bcrypt limit", mutate: func(in *auth.RegisterInput) { in.Password = "Aa1" + strings.Repeat("x", 80) }, status: http.StatusBadRequest},
		{name: "no uppercase", mutate: func(in *auth.RegisterInput) { in.Password = "lowercase1" }, status: http.StatusBadRequest},
		{name: "no digit", mutate: func(in *auth.RegisterInput) { in.Password = "NoDigitsHere" }, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProviderFixture(t)
			in := validRegistration()
			tt.mutate(&in)

			user, err := f.provider.Register(context.Background(), in)
			require.Error(t, err)
			assert.Nil(t, user)
			assert.Equal(t, tt.status, auth.StatusCodeFor(err))
			assert.Empty(t, f.sink.Events())
		})
	}
}

func TestUserProvider_RegisterWeakPasswordCode(t *testing.T) {
	f := newProviderFixture(t)
	in := validRegistration()
	in.Password = "alllowercase1"

	_, err := f.provider.Register(context.Background(), in)
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, auth.TextCodeWeakPassword, richErr.TextCode)
	assert.Equal(t, "Password must contain at least one uppercase letter", richErr.Message)
}

func TestUserProvider_RegisterPasswordMessages(t *testing.T) {
	tests := []struct {
		name     string
		password string
		message  string
	}{
		{name: "short", password: "Ab1", message: "Password must be at least 8 characters long"},
		{name: "over bcrypt limit", password: "Aa1" + strings.Repeat("x", 80), message: "Password must be at most 72 bytes long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProviderFixture(t)
			in := validRegistration()
			in.Password = tt.password

			_, err := f.provider.Register(context.Background(), in)
			require.Error(t, err)

			var richErr *goerrors.Error
			require.True(t, goerrors.As(err, &richErr))
			assert.Equal(t, tt.message, richErr.Message)
			assert.Equal(t, auth.TextCodeWeakPassword, richErr.TextCode)
		})
	}
}

func TestUserProvider_RegisterWithHashIDs(t *testing.T) {
	f := newProviderFixture(t)
	f.provider.WithHashIDs(true)

	user, err := f.provider.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	expected, err := hashid.NewUUID("new.user@example.com")
	require.NoError(t, err)
	assert.Equal(t, expected, user.ID)
}

func TestUserProvider_Login(t *testing.T) {
	active := newTestUser(t, "alice@example.com", "Passw0rdA", true, false)
	inactive := newTestUser(t, "bob@example.com", "Passw0rdB", false, false)
	f := newProviderFixture(t, active, inactive)
	ctx := context.Background()

	pair, user, err := f.provider.Login(ctx, "alice@example.com", "Passw0rdA")
	require.NoError(t, err)
	assert.Equal(t, active.ID, user.ID)
	assert.Equal(t, "bearer", pair.TokenType)

	subject, ok := f.tokens.ExtractSubjectIfAccessToken(pair.AccessToken)
	require.True(t, ok)
	assert.Equal(t, active.ID.String(), subject)

	failures := []struct {
		name     string
		email    string
		password string
		reason   string
	}{
		{name: "unknown email", email: "nobody@example.com", password: "Passw0rdA", reason: "unknown_identity"},
		{name: "wrong password", email: "alice@example.com", password: "Passw0rdX", reason: "password_mismatch"},
		{name: "inactive account", email: "bob@example.com", password: "Passw0rdB", reason: "inactive"},
	}

	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			before := len(f.sink.Events())

			_, user, err := f.provider.Login(ctx, tt.email, tt.password)
			require.Error(t, err)
			assert.Nil(t, user)
			assert.ErrorIs(t, err, auth.ErrBadCredentials)
			assert.Equal(t, http.StatusUnauthorized, auth.StatusCodeFor(err))

			events := f.sink.Events()[before:]
			require.Len(t, events, 1)
			assert.Equal(t, auth.ActivityEventLoginFailure, events[0].EventType)
			assert.Equal(t, tt.reason, events[0].Reason)
		})
	}
}

type countingHasher struct {
	auth.Hasher

	mu     sync.Mutex
	hashes []string
}

func (c *countingHasher) Verify(password, hash string) bool {
	c.mu.Lock()
	c.hashes = append(c.hashes, hash)
	c.mu.Unlock()
	return c.Hasher.Verify(password, hash)
}

func (c *countingHasher) Verified() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.hashes...)
}

func TestUserProvider_LoginUnknownEmailStillVerifies(t *testing.T) {
	known := newTestUser(t, "alice@example.com", "Passw0rdA", true, false)
	f := newProviderFixture(t, known)
	hasher := &countingHasher{Hasher: fastHasher()}
	f.provider.WithHasher(hasher)
	ctx := context.Background()

	_, _, err := f.provider.Login(ctx, "nobody@example.com", "Passw0rdA")
	assert.ErrorIs(t, err, auth.ErrBadCredentials)

	verified := hasher.Verified()
	require.Len(t, verified, 1)
	assert.NotEmpty(t, verified[0])
	assert.NotEqual(t, known.HashedPassword, verified[0])

	_, _, err = f.provider.Login(ctx, "alice@example.com", "Passw0rdX")
	assert.ErrorIs(t, err, auth.ErrBadCredentials)

	verified = hasher.Verified()
	require.Len(t, verified, 2)
	assert.Equal(t, known.HashedPassword, verified[1])
}

func TestUserProvider_ChangePassword(t *testing.T) {
	user := newTestUser(t, "alice@example.com", "Passw0rdA", true, false)
	f := newProviderFixture(t, user)
	ctx := context.Background()

	err := f.provider.ChangePassword(ctx, user.ID, "wrong", "N3wPassword")
	assert.ErrorIs(t, err, auth.ErrCurrentPasswordIncorrect)

	err = f.provider.ChangePassword(ctx, user.ID, "Passw0rdA", "weak")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, auth.StatusCodeFor(err))

	err = f.provider.ChangePassword(ctx, user.ID, "Passw0rdA", "Aa1"+strings.Repeat("x", 80))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, auth.StatusCodeFor(err))

	err = f.provider.ChangePassword(ctx, uuid.New(), "Passw0rdA", "N3wPassword")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	require.NoError(t, f.provider.ChangePassword(ctx, user.ID, "Passw0rdA", "N3wPassword"))

	_, _, err = f.provider.Login(ctx, "alice@example.com", "Passw0rdA")
	assert.ErrorIs(t, err, auth.ErrBadCredentials)

	_, _, err = f.provider.Login(ctx, "alice@example.com", "N3wPassword")
	assert.NoError(t, err)

	assert.Contains(t, f.sink.Types(), auth.ActivityEventPasswordChanged)
}

func TestUserProvider_SetActive(t *testing.T) {
	user := newTestUser(t, "alice@example.com", "Passw0rdA", true, false)
	f := newProviderFixture(t, user)
	ctx := context.Background()

	updated, err := f.provider.SetActive(ctx, user.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	_, found, err := f.store.FindActiveByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, found)

	events := f.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, auth.ActivityEventUserStatusChanged, events[0].EventType)
	assert.Equal(t, false, events[0].Metadata["is_active"])

	updated, err = f.provider.SetActive(ctx, user.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.IsActive)

	_, err = f.provider.SetActive(ctx, uuid.New(), true)
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestUserProvider_GetUser(t *testing.T) {
	user := newTestUser(t, "alice@example.com", "Passw0rdA", false, false)
	f := newProviderFixture(t, user)

	got, err := f.provider.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)

	_, err = f.provider.GetUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
	assert.Equal(t, http.StatusNotFound, auth.StatusCodeFor(err))
}

func TestUserProvider_UpdateProfile(t *testing.T) {
	alice := newTestUser(t, "alice@example.com", "Passw0rdA", true, false)
	bob := newTestUser(t, "bob@example.com", "Passw0rdB", true, false)
	f := newProviderFixture(t, alice, bob)
	ctx := context.Background()

	email := "  alice.new@example.com "
	name := "Alice New"
	avatar := "https://cdn.example.com/alice.png"

	updated, err := f.provider.UpdateProfile(ctx, alice.ID, auth.UserUpdate{
		Email:     &email,
		FullName:  &name,
		AvatarURL: &avatar,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice.new@example.com", updated.Email)
	assert.Equal(t, "Alice New", updated.FullName)
	assert.Equal(t, avatar, updated.AvatarURL)
	assert.NotNil(t, updated.UpdatedAt)

	_, found, err := f.store.FindByIdentityKey(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = f.provider.Login(ctx, "alice.new@example.com", "Passw0rdA")
	require.NoError(t, err)

	events := f.sink.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, auth.ActivityEventProfileUpdated, events[0].EventType)
	assert.Equal(t, alice.ID.String(), events[0].UserID)
	assert.Equal(t, []string{"email", "full_name", "avatar_url"}, events[0].Metadata["fields"])
}

func TestUserProvider_UpdateProfileErrors(t *testing.T) {
	str := func(s string) *string { return &s }

	alice := newTestUser(t, "alice@example.com", "Passw0rdA", true, false)
	bob := newTestUser(t, "bob@example.com", "Passw0rdB", true, false)

	tests := []struct {
		name   string
		id     uuid.UUID
		in     auth.UserUpdate
		target error
		status int
	}{
		{name: "email taken", id: alice.ID, in: auth.UserUpdate{Email: str("bob@example.com")}, target: auth.ErrEmailTaken, status: http.StatusBadRequest},
		{name: "invalid email", id: alice.ID, in: auth.UserUpdate{Email: str("not-an-email")}, status: http.StatusUnprocessableEntity},
		{name: "empty full name", id: alice.ID, in: auth.UserUpdate{FullName: str("")}, status: http.StatusUnprocessableEntity},
		{name: "invalid avatar url", id: alice.ID, in: auth.UserUpdate{AvatarURL: str("not a url")}, status: http.StatusUnprocessableEntity},
		{name: "unknown user", id: uuid.New(), in: auth.UserUpdate{FullName: str("Nobody")}, target: auth.ErrUserNotFound, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProviderFixture(t, alice, bob)

			user, err := f.provider.UpdateProfile(context.Background(), tt.id, tt.in)
			require.Error(t, err)
			assert.Nil(t, user)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			assert.Equal(t, tt.status, auth.StatusCodeFor(err))
			assert.Empty(t, f.sink.Events())
		})
	}
}

func TestUserProvider_UpdateProfileNoChanges(t *testing.T) {
	alice := newTestUser(t, "alice@example.com", "Passw0rdA", true, false)
	f := newProviderFixture(t, alice)
	email := "alice@example.com"

	user, err := f.provider.UpdateProfile(context.Background(), alice.ID, auth.UserUpdate{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)
	assert.Empty(t, f.sink.Events())

	user, err = f.provider.UpdateProfile(context.Background(), alice.ID, auth.UserUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Empty(t, f.sink.Events())
}
