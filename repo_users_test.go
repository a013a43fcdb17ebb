package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-task-auth"
	"github.com/goliatone/go-task-auth/database"
)

func newSQLiteUsers(t *testing.T, clock auth.Clock) auth.Users {
	t.Helper()
	ctx := context.Background()

	db, dialect, err := database.Open("sqlite://file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(ctx, db, dialect))

	repo := auth.NewRepositoryManager(db, auth.WithUsersClock(clock))
	require.NoError(t, repo.Validate())
	return repo.Users()
}

func TestUsersRepository_RegisterAndLookup(t *testing.T) {
	clock := newTestClock(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	users := newSQLiteUsers(t, clock)
	ctx := context.Background()

	created, err := users.Register(ctx, &auth.User{
		Email:          "alice@example.com",
		HashedPassword: "hash",
		FullName:       "Alice",
		IsActive:       true,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	user, found, err := users.FindActiveByID(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "Alice", user.FullName)
	assert.True(t, user.IsActive)
	assert.False(t, user.IsSuperuser)

	user, found, err = users.FindByIdentityKey(ctx, "alice@example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, created.ID, user.ID)

	_, found, err = users.FindByIdentityKey(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, found)

	exists, err := users.EmailExists(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = users.EmailExists(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = users.Register(ctx, &auth.User{Email: "alice@example.com", HashedPassword: "other"})
	assert.Error(t, err)
}

func TestUsersRepository_InactiveUsers(t *testing.T) {
	users := newSQLiteUsers(t, auth.SystemClock)
	ctx := context.Background()

	created, err := users.Register(ctx, &auth.User{Email: "bob@example.com", HashedPassword: "hash"})
	require.NoError(t, err)

	_, found, err := users.FindActiveByID(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, found)

	user, found, err := users.FindByIdentityKey(ctx, "bob@example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, user.IsActive)

	updated, err := users.SetActive(ctx, created.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.IsActive)

	_, found, err = users.FindActiveByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, found)

	_, err = users.SetActive(ctx, uuid.New(), true)
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestUsersRepository_UpdatePassword(t *testing.T) {
	users := newSQLiteUsers(t, auth.SystemClock)
	ctx := context.Background()

	created, err := users.Register(ctx, &auth.User{Email: "carol@example.com", HashedPassword: "old", IsActive: true})
	require.NoError(t, err)

	require.NoError(t, users.UpdatePassword(ctx, created.ID, "new"))

	user, found, err := users.GetUser(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "new", user.HashedPassword)

	assert.ErrorIs(t, users.UpdatePassword(ctx, uuid.New(), "x"), auth.ErrUserNotFound)
}

func TestUsersRepository_UpdateProfile(t *testing.T) {
	users := newSQLiteUsers(t, auth.SystemClock)
	ctx := context.Background()

	created, err := users.Register(ctx, &auth.User{Email: "erin@example.com", HashedPassword: "hash", FullName: "Erin", IsActive: true})
	require.NoError(t, err)

	created.Email = "erin.new@example.com"
	created.FullName = "Erin New"
	created.AvatarURL = "https://cdn.example.com/erin.png"

	updated, err := users.UpdateProfile(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "erin.new@example.com", updated.Email)
	assert.Equal(t, "Erin New", updated.FullName)
	assert.Equal(t, "https://cdn.example.com/erin.png", updated.AvatarURL)
	assert.Equal(t, "hash", updated.HashedPassword)

	_, found, err := users.FindByIdentityKey(ctx, "erin@example.com")
	require.NoError(t, err)
	assert.False(t, found)

	user, found, err := users.FindByIdentityKey(ctx, "erin.new@example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, created.ID, user.ID)

	_, err = users.UpdateProfile(ctx, &auth.User{ID: uuid.New(), Email: "ghost@example.com"})
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestUsersRepository_Ping(t *testing.T) {
	users := newSQLiteUsers(t, auth.SystemClock)
	assert.NoError(t, users.Ping(context.Background()))
}

func TestUsersRepository_WithUserProvider(t *testing.T) {
	users := newSQLiteUsers(t, auth.SystemClock)
	tokens := newTestTokenService(t, newTestClock(time.Now()))
	provider := auth.NewUserProvider(users, tokens).WithLogger(nopLogger{}).WithHasher(fastHasher())
	auther := auth.NewAuthenticator(tokens, users).WithLogger(nopLogger{})
	ctx := context.Background()

	created, err := provider.Register(ctx, auth.RegisterInput{
		Email:    "dave@example.com",
		Password: "Passw0rdD",
		FullName: "Dave",
	})
	require.NoError(t, err)

	pair, user, err := provider.Login(ctx, "dave@example.com", "Passw0rdD")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	identity, err := auther.RequireUser(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID, identity.ID)

	_, err = provider.SetActive(ctx, created.ID, false)
	require.NoError(t, err)

	_, err = auther.RequireUser(ctx, pair.AccessToken)
	require.Error(t, err)
	assert.True(t, auth.IsUnauthenticated(err))

	_, _, err = provider.Login(ctx, "dave@example.com", "Passw0rdD")
	assert.ErrorIs(t, err, auth.ErrBadCredentials)
}
