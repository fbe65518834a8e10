package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// Legacy plaintext compatibility.
//
// Accounts imported from the previous system still hold their password in
// plaintext. A successful match here makes Verify report NeedsRehash so the
// caller stores a bcrypt hash. Stored bcrypt hashes never take this path, so
// a leaked hash cannot be replayed as a password. Remove this file, and its
// calls in Verify, once `SELECT count(*) FROM users WHERE password NOT LIKE '$2%'` returns zero.

func isBcryptHash(stored string) bool {
	_, err := bcrypt.Cost([]byte(stored))
	return err == nil
}

func matchesLegacyPlaintext(plaintext, stored string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(plaintext), []byte(stored)) == 1
}
