// Package revocation keeps a deny list of refresh tokens until they expire.
// Entries are keyed by the SHA-256 of the token so raw tokens are never
// stored.
package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	auth "github.com/goliatone/go-task-auth"
)

// Key returns the storage key for token
func Key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// MemoryStore is a process local store. Expired entries are pruned on write.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// WithClock shares the token service clock so expiry checks agree with
// the exp claims it issues
func (m *MemoryStore) WithClock(clock auth.Clock) *MemoryStore {
	if clock != nil {
		m.now = clock.Now
	}
	return m
}

// WithNow overrides the clock, used by tests
func (m *MemoryStore) WithNow(now func() time.Time) *MemoryStore {
	if now != nil {
		m.now = now
	}
	return m
}

func (m *MemoryStore) Revoke(_ context.Context, token string, until time.Time) error {
	now := m.now()
	if !until.After(now) {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for k, exp := range m.entries {
		if !exp.After(now) {
			delete(m.entries, k)
		}
	}
	m.entries[Key(token)] = until
	return nil
}

func (m *MemoryStore) IsRevoked(_ context.Context, token string) (bool, error) {
	m.mu.RLock()
	exp, ok := m.entries[Key(token)]
	m.mu.RUnlock()

	return ok && exp.After(m.now()), nil
}

// Len returns the number of tracked entries, expired ones included
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
