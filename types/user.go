package types

import (
	"fmt"
	"strings"
	"time"
)

// Role is the authorization level of an account.
// Only the values declared below are valid; use ParseRole for untrusted input.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

var knownRoles = map[Role]struct{}{
	RoleUser:  {},
	RoleAdmin: {},
}

// ParseRole converts raw text into a known Role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	_, ok := knownRoles[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

// User represents an account in the system.
// It contains identity, role, profile and audit metadata.
type User struct {
	// ID is the unique identifier of the user. Never reused.
	ID int `json:"id" db:"id"`

	// Username is the login name; derived from the email local-part when
	// not supplied at registration.
	Username string `json:"username" db:"username"`

	// Email is the user's email address. Unique across all users.
	Email string `json:"email" db:"email"`

	// Password stores the bcrypt hash of the user's password, or the
	// plaintext password for accounts not yet migrated.
	// This field is never exposed in API responses.
	Password string `json:"-" db:"password"`

	// Role indicates the user's authorization level.
	Role Role `json:"role" db:"role"`

	// FullName is the user's display name.
	FullName string `json:"nombreCompleto" db:"nombre_completo"`

	// Phone is an optional contact number.
	Phone string `json:"telefono" db:"telefono"`

	// Institution is the free-form name of the user's institution.
	Institution string `json:"institucion" db:"institucion"`

	// Avatar is either an inline data URL or an object storage key.
	Avatar *string `json:"avatar" db:"avatar"`

	// Active marks whether the account may log in.
	Active bool `json:"isActive" db:"is_active"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ProfilePatch carries the profile fields a user asked to change.
// A nil field is left untouched.
type ProfilePatch struct {
	Username    *string
	Email       *string
	FullName    *string
	Phone       *string
	Institution *string
	Avatar      *string
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.Username == nil && p.Email == nil && p.FullName == nil &&
		p.Phone == nil && p.Institution == nil && p.Avatar == nil
}
