package validation

import (
	"strings"

	"github.com/fleetboard/fleetboard/internal/bus"
)

// PositionPayload carries raw coordinates from a request body. Pointers
// distinguish an omitted coordinate from zero, so a half-specified
// position can be rejected instead of silently defaulting.
type PositionPayload struct {
	Lat *float64
	Lng *float64
}

// CreateBusRequest mirrors the fields needed for create bus validation.
type CreateBusRequest struct {
	LicensePlate string
	UnitName     string
	Status       string
	MovingTime   int
	ParkedTime   int
	Position     *PositionPayload
}

// ValidateCreateBusRequest validates the fields of a create bus request.
func ValidateCreateBusRequest(req CreateBusRequest) []FieldError {
	var errs []FieldError

	plate := bus.NormalizePlate(req.LicensePlate)
	if plate == "" {
		errs = append(errs, FieldError{Field: "licensePlate", Message: "licensePlate is required"})
	} else if len(plate) < 3 {
		errs = append(errs, FieldError{Field: "licensePlate", Message: "licensePlate must be at least 3 characters"})
	}

	if strings.TrimSpace(req.UnitName) == "" {
		errs = append(errs, FieldError{Field: "unitName", Message: "unitName is required"})
	}

	if req.Status != "" {
		if _, ok := bus.ParseStatus(req.Status); !ok {
			errs = append(errs, FieldError{Field: "status", Message: "status must be one of: parked, moving, maintenance"})
		}
	}

	if req.MovingTime < 0 {
		errs = append(errs, FieldError{Field: "movingTime", Message: "movingTime must be a non-negative number of seconds"})
	}
	if req.ParkedTime < 0 {
		errs = append(errs, FieldError{Field: "parkedTime", Message: "parkedTime must be a non-negative number of seconds"})
	}

	errs = append(errs, validatePosition(req.Position)...)

	return errs
}

// UpdateBusRequest mirrors the fields needed for bus update validation.
// Nil fields are not being updated.
type UpdateBusRequest struct {
	UnitName   *string
	Status     *string
	MovingTime *int
	ParkedTime *int
	Position   *PositionPayload
}

// ValidateUpdateBusRequest validates the fields of a bus update request.
func ValidateUpdateBusRequest(req UpdateBusRequest) []FieldError {
	var errs []FieldError

	if req.UnitName != nil && strings.TrimSpace(*req.UnitName) == "" {
		errs = append(errs, FieldError{Field: "unitName", Message: "unitName must not be empty"})
	}

	if req.Status != nil {
		if _, ok := bus.ParseStatus(*req.Status); !ok {
			errs = append(errs, FieldError{Field: "status", Message: "status must be one of: parked, moving, maintenance"})
		}
	}

	if req.MovingTime != nil && *req.MovingTime < 0 {
		errs = append(errs, FieldError{Field: "movingTime", Message: "movingTime must be a non-negative number of seconds"})
	}
	if req.ParkedTime != nil && *req.ParkedTime < 0 {
		errs = append(errs, FieldError{Field: "parkedTime", Message: "parkedTime must be a non-negative number of seconds"})
	}

	errs = append(errs, validatePosition(req.Position)...)

	return errs
}

// validatePosition enforces the all-or-nothing coordinate invariant and
// the lat/lng bounds.
func validatePosition(p *PositionPayload) []FieldError {
	if p == nil {
		return nil
	}

	var errs []FieldError

	if p.Lat == nil || p.Lng == nil {
		errs = append(errs, FieldError{Field: "position", Message: "position must include both lat and lng"})
		return errs
	}

	if !(bus.Position{Lat: *p.Lat, Lng: *p.Lng}).Valid() {
		if *p.Lat < -90 || *p.Lat > 90 {
			errs = append(errs, FieldError{Field: "position.lat", Message: "lat must be between -90 and 90"})
		}
		if *p.Lng < -180 || *p.Lng > 180 {
			errs = append(errs, FieldError{Field: "position.lng", Message: "lng must be between -180 and 180"})
		}
	}

	return errs
}
