package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of user roles.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
)

// ParseRole maps a string onto the Role enum. The second return value
// reports whether the input named a known role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleSupervisor:
		return RoleSupervisor, true
	}
	return "", false
}

// User represents a row in the users table. Email is stored normalized
// (trimmed, lowercase). PasswordHash is never serialized outward.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is stored in the request context after a successful access-token
// verification. It lives for the duration of one request and is never
// persisted.
type Identity struct {
	UserID    uuid.UUID
	Email     string
	Role      Role
	Issuer    string
	ExpiresAt time.Time
}

// NormalizeEmail trims whitespace and lowercases an email address. All
// email writes and lookups go through this so uniqueness is
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
