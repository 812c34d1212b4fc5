package bus

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the closed set of bus operational states.
type Status string

const (
	StatusParked      Status = "parked"
	StatusMoving      Status = "moving"
	StatusMaintenance Status = "maintenance"
)

// ParseStatus maps a string onto the Status enum. The second return value
// reports whether the input named a known status.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusParked:
		return StatusParked, true
	case StatusMoving:
		return StatusMoving, true
	case StatusMaintenance:
		return StatusMaintenance, true
	}
	return "", false
}

// Position is a GPS coordinate pair. A bus either has a full position or
// none at all; partial coordinates are never stored.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinates are within bounds:
// lat in [-90, 90], lng in [-180, 180].
func (p Position) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Bus represents a row in the buses table. LicensePlate is stored
// normalized (trimmed, uppercase). MovingTime and ParkedTime are
// cumulative seconds.
type Bus struct {
	ID           uuid.UUID
	LicensePlate string
	UnitName     string
	Status       Status
	Route        *string
	Driver       *string
	MovingTime   int
	ParkedTime   int
	IsFavorite   bool
	Position     *Position
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizePlate trims whitespace and uppercases a license plate. All
// plate writes and lookups go through this so uniqueness is
// case-insensitive.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// ListFilter holds optional exact-match filters and pagination for listing
// buses.
type ListFilter struct {
	Status     *Status
	Route      *string
	IsFavorite *bool
	Page       int // default 1
	Limit      int // default 20, max 100
}

// ListResult holds the result of a paginated bus list query.
type ListResult struct {
	Buses      []Bus
	Total      int
	Page       int
	Limit      int
	TotalPages int
	HasMore    bool
}

// UpdateFields holds updatable fields on a bus record. Nil fields are not
// updated; the Clear flags set the corresponding nullable column to NULL
// and take precedence over the matching pointer field.
type UpdateFields struct {
	UnitName      *string
	Status        *Status
	Route         *string
	ClearRoute    bool
	Driver        *string
	ClearDriver   bool
	MovingTime    *int
	ParkedTime    *int
	IsFavorite    *bool
	Position      *Position
	ClearPosition bool
}
