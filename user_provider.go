package auth

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// RegisterInput is the payload for a new account
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// Validate checks the payload shape; password policy is applied by Register
func (r RegisterInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 255)),
	)
}

// UserUpdate is a partial profile change. nil fields are left as they are.
type UserUpdate struct {
	Email     *string `json:"email,omitempty"`
	FullName  *string `json:"full_name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

func (r UserUpdate) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.NilOrNotEmpty, is.Email),
		validation.Field(&r.FullName, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&r.AvatarURL, is.URL, validation.Length(0, 2048)),
	)
}

func (r *UserUpdate) normalize() {
	if r.Email != nil {
		email := strings.TrimSpace(*r.Email)
		r.Email = &email
	}
}

// UserProvider implements login and account management over an AccountStore
type UserProvider struct {
	store        AccountStore
	tokens       *TokenService
	hasher       PasswordHasher
	decoy        func() string
	logger       Logger
	activitySink ActivitySink
	clock        Clock
	useHashid    bool
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store AccountStore, tokens *TokenService) *UserProvider {
	hasher := NewHasher()
	return &UserProvider{
		store:        store,
		tokens:       tokens,
		hasher:       hasher,
		decoy:        decoyHash(hasher),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		clock:        SystemClock,
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	u.logger = normalizeLogger(l)
	return u
}

func (u *UserProvider) WithHasher(h PasswordHasher) *UserProvider {
	if h == nil {
		return u
	}
	u.hasher = h
	u.decoy = decoyHash(h)
	return u
}

// WithActivitySink configures an ActivitySink for account events.
func (u *UserProvider) WithActivitySink(sink ActivitySink) *UserProvider {
	u.activitySink = normalizeActivitySink(sink)
	return u
}

// WithHashIDs derives new user ids from the email instead of random ids
func (u *UserProvider) WithHashIDs(enabled bool) *UserProvider {
	u.useHashid = enabled
	return u
}

// Login verifies the credentials and issues a token pair. Unknown email,
// wrong password and inactive account all fail with ErrBadCredentials.
func (u *UserProvider) Login(ctx context.Context, email, password string) (TokenPair, *User, error) {
	user, found, err := u.store.FindByIdentityKey(ctx, email)
	if err != nil {
		u.logger.Error("Login find user error", "error", err)
		return TokenPair{}, nil, err
	}

	reason := ""
	switch {
	case !found:
		u.hasher.Verify(password, u.decoy())
		reason = "unknown_identity"
	case !u.hasher.Verify(password, user.HashedPassword):
		reason = "password_mismatch"
	case !user.IsActive:
		reason = "inactive"
	}

	if reason != "" {
		event := ActivityEvent{EventType: ActivityEventLoginFailure, Reason: reason}
		if found {
			event.UserID = user.ID.String()
		}
		u.emit(ctx, event)
		return TokenPair{}, nil, ErrBadCredentials
	}

	pair, err := u.tokens.IssuePair(user.ID.String())
	if err != nil {
		u.logger.Error("Login issue tokens error", "error", err)
		return TokenPair{}, nil, err
	}

	u.emit(ctx, ActivityEvent{EventType: ActivityEventLoginSuccess, UserID: user.ID.String()})

	return pair, user, nil
}

// Register creates an active, non superuser account
func (u *UserProvider) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Email = strings.TrimSpace(in.Email)

	if verr := errors.ValidateWithOzzo(in.Validate, "invalid registration payload"); verr != nil {
		return nil, verr.WithCode(http.StatusUnprocessableEntity)
	}

	if err := ValidatePasswordStrength(in.Password); err != nil {
		return nil, err
	}

	exists, err := u.store.EmailExists(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := u.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:          in.Email,
		HashedPassword: hash,
		FullName:       in.FullName,
		IsActive:       true,
	}

	if u.useHashid {
		if id, err := hashid.NewUUID(in.Email); err == nil {
			user.ID = id
		}
	}

	created, err := u.store.Register(ctx, user)
	if err != nil {
		if IsStoreUnavailable(err) || hasTextCode(err, TextCodeEmailTaken) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.CategoryConflict, "could not create user")
	}

	u.emit(ctx, ActivityEvent{EventType: ActivityEventUserRegistered, UserID: created.ID.String()})

	return created, nil
}

// GetUser returns the full record for id
func (u *UserProvider) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	user, found, err := u.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ChangePassword replaces the password after verifying the current one
func (u *UserProvider) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) error {
	user, err := u.GetUser(ctx, id)
	if err != nil {
		return err
	}

	if !u.hasher.Verify(current, user.HashedPassword) {
		return ErrCurrentPasswordIncorrect
	}

	if err := ValidatePasswordStrength(next); err != nil {
		return err
	}

	hash, err := u.hashPassword(next)
	if err != nil {
		return err
	}

	if err := u.store.UpdatePassword(ctx, id, hash); err != nil {
		return err
	}

	u.emit(ctx, ActivityEvent{EventType: ActivityEventPasswordChanged, UserID: id.String()})
	return nil
}

// SetActive activates or deactivates an account
func (u *UserProvider) SetActive(ctx context.Context, id uuid.UUID, active bool) (*User, error) {
	user, err := u.store.SetActive(ctx, id, active)
	if err != nil {
		return nil, err
	}

	u.emit(ctx, ActivityEvent{
		EventType: ActivityEventUserStatusChanged,
		UserID:    id.String(),
		Metadata:  map[string]any{"is_active": active},
	})

	return user, nil
}

// UpdateProfile applies the fields set in in. A new email must not belong
// to another account.
func (u *UserProvider) UpdateProfile(ctx context.Context, id uuid.UUID, in UserUpdate) (*User, error) {
	in.normalize()

	if verr := errors.ValidateWithOzzo(in.Validate, "invalid profile payload"); verr != nil {
		return nil, verr.WithCode(http.StatusUnprocessableEntity)
	}

	user, err := u.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := []string{}
	if in.Email != nil && *in.Email != user.Email {
		exists, err := u.store.EmailExists(ctx, *in.Email)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrEmailTaken
		}
		user.Email = *in.Email
		changed = append(changed, "email")
	}
	if in.FullName != nil {
		user.FullName = *in.FullName
		changed = append(changed, "full_name")
	}
	if in.AvatarURL != nil {
		user.AvatarURL = *in.AvatarURL
		changed = append(changed, "avatar_url")
	}

	if len(changed) == 0 {
		return user, nil
	}

	updated, err := u.store.UpdateProfile(ctx, user)
	if err != nil {
		return nil, err
	}

	u.emit(ctx, ActivityEvent{
		EventType: ActivityEventProfileUpdated,
		UserID:    id.String(),
		Metadata:  map[string]any{"fields": changed},
	})

	return updated, nil
}

func (u *UserProvider) hashPassword(password string) (string, error) {
	hash, err := u.hasher.Hash(password)
	switch {
	case err == nil:
		return hash, nil
	case stderrors.Is(err, ErrPasswordTooLong):
		return "", ErrPasswordTooLong
	default:
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}
}

func (u *UserProvider) emit(ctx context.Context, event ActivityEvent) {
	emitActivity(ctx, u.activitySink, u.logger, u.clock, event)
}
