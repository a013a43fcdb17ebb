package auth

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// AccountStore is everything the Accounts service needs from storage.
// Users and MemoryDirectory both implement it.
type AccountStore interface {
	UserDirectory
	GetUser(ctx context.Context, id uuid.UUID) (*User, bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Register(ctx context.Context, user *User) (*User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*User, error)
	UpdateProfile(ctx context.Context, user *User) (*User, error)
}

// MemoryDirectory is an in process AccountStore
type MemoryDirectory struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*User
	byEmail map[string]uuid.UUID
	clock   Clock
}

var _ AccountStore = (*MemoryDirectory)(nil)

func NewMemoryDirectory(users ...*User) *MemoryDirectory {
	d := &MemoryDirectory{
		byID:    make(map[uuid.UUID]*User),
		byEmail: make(map[string]uuid.UUID),
		clock:   SystemClock,
	}
	for _, u := range users {
		if u != nil {
			_, _ = d.Register(context.Background(), u)
		}
	}
	return d
}

func (d *MemoryDirectory) FindActiveByID(_ context.Context, id uuid.UUID) (*User, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.byID[id]
	if !ok || !u.IsActive {
		return nil, false, nil
	}
	return cloneUser(u), true, nil
}

func (d *MemoryDirectory) FindByIdentityKey(_ context.Context, key string) (*User, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byEmail[key]
	if !ok {
		return nil, false, nil
	}
	return cloneUser(d.byID[id]), true, nil
}

func (d *MemoryDirectory) GetUser(_ context.Context, id uuid.UUID) (*User, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.byID[id]
	if !ok {
		return nil, false, nil
	}
	return cloneUser(u), true, nil
}

func (d *MemoryDirectory) EmailExists(_ context.Context, email string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.byEmail[email]
	return ok, nil
}

func (d *MemoryDirectory) Register(_ context.Context, user *User) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.byEmail[user.Email]; ok {
		return nil, ErrEmailTaken
	}

	prepareUserDefaults(user, d.clock.Now())
	d.byID[user.ID] = cloneUser(user)
	d.byEmail[user.Email] = user.ID

	return cloneUser(user), nil
}

func (d *MemoryDirectory) UpdatePassword(_ context.Context, id uuid.UUID, hashedPassword string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	now := d.clock.Now()
	u.HashedPassword = hashedPassword
	u.UpdatedAt = &now
	return nil
}

func (d *MemoryDirectory) SetActive(_ context.Context, id uuid.UUID, active bool) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	now := d.clock.Now()
	u.IsActive = active
	u.UpdatedAt = &now
	return cloneUser(u), nil
}

// UpdateProfile stores email, full name and avatar of user
func (d *MemoryDirectory) UpdateProfile(_ context.Context, user *User) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.byID[user.ID]
	if !ok {
		return nil, ErrUserNotFound
	}

	if user.Email != u.Email {
		if _, taken := d.byEmail[user.Email]; taken {
			return nil, ErrEmailTaken
		}
		delete(d.byEmail, u.Email)
		d.byEmail[user.Email] = u.ID
	}

	now := d.clock.Now()
	u.Email = user.Email
	u.FullName = user.FullName
	u.AvatarURL = user.AvatarURL
	u.UpdatedAt = &now
	return cloneUser(u), nil
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
