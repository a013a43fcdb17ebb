package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the persistent user store
type Users interface {
	repository.Repository[*User]
	UserDirectory

	GetUser(ctx context.Context, id uuid.UUID) (*User, bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*User, error)
	UpdateProfile(ctx context.Context, user *User) (*User, error)
	Ping(ctx context.Context) error
}

type users struct {
	repository.Repository[*User]
	db    *bun.DB
	clock Clock
}

var (
	_ Users                        = (*users)(nil)
	_ UserDirectory                = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

type UsersOption func(*users)

// WithUsersClock sets the clock used for updated_at
func WithUsersClock(clock Clock) UsersOption {
	return func(u *users) {
		if clock != nil {
			u.clock = clock
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
		clock:      SystemClock,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

// FindActiveByID returns the user only when it exists and is active
func (a *users) FindActiveByID(ctx context.Context, id uuid.UUID) (*User, bool, error) {
	return a.findOne(ctx, "users.FindActiveByID", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("?TableAlias.id = ?", id).
			Where("?TableAlias.is_active = ?", true)
	})
}

// FindByIdentityKey looks a user up by exact email match regardless of status
func (a *users) FindByIdentityKey(ctx context.Context, key string) (*User, bool, error) {
	return a.findOne(ctx, "users.FindByIdentityKey", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.email = ?", key)
	})
}

func (a *users) GetUser(ctx context.Context, id uuid.UUID) (*User, bool, error) {
	return a.findOne(ctx, "users.GetUser", func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.id = ?", id)
	})
}

func (a *users) EmailExists(ctx context.Context, email string) (bool, error) {
	exists, err := a.db.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.email = ?", email).
		Exists(ctx)
	if err != nil {
		return false, storeUnavailable(err, "users.EmailExists")
	}
	return exists, nil
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user, a.clock.Now())
	return a.Repository.CreateTx(ctx, tx, user)
}

func (a *users) UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	res, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("hashed_password = ?", hashedPassword).
		Set("updated_at = ?", a.clock.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return storeUnavailable(err, "users.UpdatePassword")
	}

	return requireAffected(res)
}

func (a *users) SetActive(ctx context.Context, id uuid.UUID, active bool) (*User, error) {
	res, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("is_active = ?", active).
		Set("updated_at = ?", a.clock.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, storeUnavailable(err, "users.SetActive")
	}

	if err := requireAffected(res); err != nil {
		return nil, err
	}

	user, found, err := a.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile stores email, full name and avatar of user
func (a *users) UpdateProfile(ctx context.Context, user *User) (*User, error) {
	res, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("email = ?", user.Email).
		Set("full_name = ?", user.FullName).
		Set("avatar_url = ?", user.AvatarURL).
		Set("updated_at = ?", a.clock.Now()).
		Where("id = ?", user.ID).
		Exec(ctx)
	if err != nil {
		return nil, storeUnavailable(err, "users.UpdateProfile")
	}

	if err := requireAffected(res); err != nil {
		return nil, err
	}

	updated, found, err := a.GetUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrUserNotFound
	}
	return updated, nil
}

// Ping runs SELECT 1 against the store
func (a *users) Ping(ctx context.Context) error {
	var n int
	if err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&n); err != nil {
		return storeUnavailable(err, "users.Ping")
	}
	return nil
}

func (a *users) findOne(ctx context.Context, op string, apply func(*bun.SelectQuery) *bun.SelectQuery) (*User, bool, error) {
	record := &User{}

	err := apply(a.db.NewSelect().Model(record)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, storeUnavailable(err, op)
	}

	return record, true, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeUnavailable(err, "users.RowsAffected")
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func prepareUserDefaults(record *User, now time.Time) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}

	if record.UpdatedAt == nil {
		record.UpdatedAt = &now
	}
}
