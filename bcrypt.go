package auth

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt work factor used by HashPassword
const DefaultHashCost = 12

// PasswordHasher is the credential hasher the accounts service uses
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

var _ PasswordHasher = Hasher{}

// Hasher hashes and verifies password credentials with bcrypt
type Hasher struct {
	cost int
}

// NewHasher returns a bcrypt hasher. A cost outside the bcrypt range
// falls back to the build default.
func NewHasher(cost ...int) Hasher {
	c := passwordHashCost()
	if len(cost) > 0 && cost[0] >= bcrypt.MinCost && cost[0] <= bcrypt.MaxCost {
		c = cost[0]
	}
	return Hasher{cost: c}
}

func (h Hasher) Cost() int {
	if h.cost == 0 {
		return passwordHashCost()
	}
	return h.cost
}

// Hash will generate a salted password hash
func (h Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost())
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	return string(b), err
}

// Verify reports whether password matches hash. Malformed hashes do
// not verify.
func (h Hasher) Verify(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// HashPassword will generate a password hash with the default cost
func HashPassword(password string) (string, error) {
	return NewHasher().Hash(password)
}

// VerifyPassword will validate the given cleartext password matches the
// hashed password
func VerifyPassword(password, hash string) bool {
	return Hasher{}.Verify(password, hash)
}

// RandomPasswordHash is a hash nobody knows the password for
func RandomPasswordHash() string {
	return randomPasswordHash(NewHasher())
}

func randomPasswordHash(h PasswordHasher) string {
	hash, err := h.Hash(uuid.NewString())
	if err != nil {
		return ""
	}
	return hash
}

// decoyHash lazily builds one random hash with h. Login verifies against
// it when the email is unknown so both paths pay for a compare.
func decoyHash(h PasswordHasher) func() string {
	return sync.OnceValue(func() string {
		return randomPasswordHash(h)
	})
}
