// Package security hashes account passwords and migrates stores that still
// hold plain-text passwords.
package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is used when no cost is configured.
const DefaultBcryptCost = 10

// MaxPasswordLength is the bcrypt input limit. Longer inputs are silently
// truncated by bcrypt, so they are rejected.
const MaxPasswordLength = 72

var (
	// ErrPasswordTooShort is returned when a password is below the configured minimum.
	ErrPasswordTooShort = errors.New("password is too short")

	// ErrPasswordTooLong is returned for passwords over MaxPasswordLength bytes.
	ErrPasswordTooLong = errors.New("password must be at most 72 characters")

	// ErrPasswordSameAsName is returned when the password equals the player name.
	ErrPasswordSameAsName = errors.New("password must differ from the player name")
)

// Hasher hashes and verifies passwords with bcrypt.
type Hasher struct {
	cost      int
	minLength int
}

// NewHasher creates a hasher. A cost of zero selects DefaultBcryptCost.
func NewHasher(cost, minLength int) *Hasher {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	return &Hasher{cost: cost, minLength: minLength}
}

// Validate checks password against the length rules and the player name.
func (h *Hasher) Validate(name, password string) error {
	if len(password) < h.minLength {
		return fmt.Errorf("%w: minimum is %d", ErrPasswordTooShort, h.minLength)
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	if name != "" && password == name {
		return ErrPasswordSameAsName
	}
	return nil
}

// Hash returns the bcrypt hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordLength {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether password matches hash.
func (h *Hasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NeedsRehash reports whether hash was produced with a lower cost than the
// hasher's, or is not a bcrypt hash at all.
func (h *Hasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost < h.cost
}

// IsHashed reports whether stored looks like a bcrypt hash.
func IsHashed(stored string) bool {
	_, err := bcrypt.Cost([]byte(stored))
	return err == nil
}
