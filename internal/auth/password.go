package auth

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength applies to every newly set password.
	MinPasswordLength = 6

	// MinHashCost is the lowest bcrypt work factor used for new hashes.
	MinHashCost = 10

	// MaxPasswordBytes is the longest input bcrypt reads. Later bytes are ignored
	// by CompareHashAndPassword.
	MaxPasswordBytes = 72
)

var (
	// ErrPasswordTooShort is returned for new passwords under MinPasswordLength characters.
	ErrPasswordTooShort = errors.New("password too short")

	// ErrPasswordTooLong is returned when the password exceeds bcrypt's input limit.
	ErrPasswordTooLong = errors.New("password too long")
)

// Verification is the outcome of checking a password against a stored credential.
type Verification struct {
	Valid bool

	// NeedsRehash is set when the stored credential matched through the
	// legacy plaintext path and must be replaced by a fresh hash.
	NeedsRehash bool
}

// PasswordHasher hashes and verifies passwords. It performs no I/O.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher using cost, raised to MinHashCost if lower.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < MinHashCost {
		cost = MinHashCost
	}
	return &PasswordHasher{cost: cost}
}

// Cost returns the bcrypt work factor used by Hash.
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Hash returns the bcrypt hash of plaintext.
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Rehash hashes a password that matched through the legacy path. Legacy
// passwords may exceed MaxPasswordBytes, so only the prefix bcrypt reads is
// hashed and the full password keeps verifying afterwards.
func (h *PasswordHasher) Rehash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		plaintext = plaintext[:MaxPasswordBytes]
	}
	return h.Hash(plaintext)
}

// Verify checks plaintext against stored. A bcrypt match is valid as is. A
// stored value that is not a bcrypt hash falls through to the legacy
// plaintext comparison.
func (h *PasswordHasher) Verify(plaintext, stored string) Verification {
	if err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(plaintext)); err == nil {
		return Verification{Valid: true}
	}
	if isBcryptHash(stored) {
		return Verification{}
	}
	if matchesLegacyPlaintext(plaintext, stored) {
		return Verification{Valid: true, NeedsRehash: true}
	}
	return Verification{}
}

// ValidateNewPassword enforces the rules for a password about to be stored.
func ValidateNewPassword(plaintext string) error {
	if utf8.RuneCountInString(plaintext) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}
