package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when a user record is not found.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicateEmail is returned when a user with the same normalized email
// already exists.
var ErrDuplicateEmail = errors.New("email already registered")

// ListFilter holds optional filters and pagination for listing users.
type ListFilter struct {
	Role  *Role
	Page  int // default 1
	Limit int // default 20, max 100
}

// ListResult holds the result of a paginated user list query.
type ListResult struct {
	Users      []User
	Total      int
	Page       int
	Limit      int
	TotalPages int
	HasMore    bool
}

// UpdateFields holds updatable fields on a user record. Nil fields are not
// updated.
type UpdateFields struct {
	Name *string
	Role *Role
}

// UserRepository provides operations on the users table.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, id uuid.UUID, fields UpdateFields) (*User, error)
	List(ctx context.Context, filter ListFilter) (*ListResult, error)
}
