package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the minimum acceptable password length
	MinPasswordLength = 6

	// MaxPasswordLength is bcrypt's input limit in bytes.
	MaxPasswordLength = 72

	// DefaultCost is the bcrypt work factor used for stored hashes.
	DefaultCost = 12
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 72 bytes")
	ErrPasswordMismatch = errors.New("password does not match")
)

// Hasher hashes and verifies passwords with bcrypt at a fixed cost.
// Tests use bcrypt.MinCost to stay fast.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher using DefaultCost when cost is zero.
func NewHasher(cost int) Hasher {
	if cost == 0 {
		cost = DefaultCost
	}
	return Hasher{Cost: cost}
}

// Hash generates a bcrypt hash of the password.
func (h Hasher) Hash(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// Verify checks whether the password matches the hash.
func (h Hasher) Verify(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("failed to verify password: %w", err)
	}
	return nil
}
