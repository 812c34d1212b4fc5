package bus

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a bus record is not found.
var ErrNotFound = errors.New("bus not found")

// ErrDuplicatePlate is returned when a bus with the same normalized
// license plate already exists.
var ErrDuplicatePlate = errors.New("license plate already registered")

// Repository provides CRUD operations on the buses table.
type Repository interface {
	Create(ctx context.Context, b *Bus) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bus, error)
	GetByPlate(ctx context.Context, plate string) (*Bus, error)
	Update(ctx context.Context, id uuid.UUID, fields UpdateFields) (*Bus, error)
	Remove(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) (*ListResult, error)
}
