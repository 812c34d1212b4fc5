package validation

import (
	"strings"

	"github.com/fleetboard/fleetboard/internal/auth"
)

// RegisterRequest mirrors the fields needed for register validation.
type RegisterRequest struct {
	Email    string
	Name     string
	Password string
	Role     string
}

// ValidateRegisterRequest validates the fields of a register request.
// Password strength is enforced by the auth service, not here; this only
// checks structure.
func ValidateRegisterRequest(req RegisterRequest) []FieldError {
	var errs []FieldError

	errs = append(errs, validateEmail(req.Email)...)

	name := strings.TrimSpace(req.Name)
	if name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name is required"})
	} else if len(name) < 2 {
		errs = append(errs, FieldError{Field: "name", Message: "name must be at least 2 characters"})
	} else if len(name) > 255 {
		errs = append(errs, FieldError{Field: "name", Message: "name must be at most 255 characters"})
	}

	if req.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	}

	if req.Role == "" {
		errs = append(errs, FieldError{Field: "role", Message: "role is required"})
	} else if _, ok := auth.ParseRole(req.Role); !ok {
		errs = append(errs, FieldError{Field: "role", Message: "role must be one of: admin, supervisor"})
	}

	return errs
}

// LoginRequest mirrors the fields needed for login validation.
type LoginRequest struct {
	Email    string
	Password string
}

// ValidateLoginRequest validates the fields of a login request.
func ValidateLoginRequest(req LoginRequest) []FieldError {
	var errs []FieldError

	errs = append(errs, validateEmail(req.Email)...)

	if req.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	}

	return errs
}

// ValidateRefreshRequest validates the fields of a token refresh request.
func ValidateRefreshRequest(refreshToken string) []FieldError {
	var errs []FieldError
	if strings.TrimSpace(refreshToken) == "" {
		errs = append(errs, FieldError{Field: "refreshToken", Message: "refreshToken is required"})
	}
	return errs
}

// UpdateUserRequest mirrors the fields needed for user update validation.
// Nil fields are not being updated.
type UpdateUserRequest struct {
	Name *string
	Role *string
}

// ValidateUpdateUserRequest validates the fields of a user update request.
func ValidateUpdateUserRequest(req UpdateUserRequest) []FieldError {
	var errs []FieldError

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if len(name) < 2 {
			errs = append(errs, FieldError{Field: "name", Message: "name must be at least 2 characters"})
		} else if len(name) > 255 {
			errs = append(errs, FieldError{Field: "name", Message: "name must be at most 255 characters"})
		}
	}

	if req.Role != nil {
		if _, ok := auth.ParseRole(*req.Role); !ok {
			errs = append(errs, FieldError{Field: "role", Message: "role must be one of: admin, supervisor"})
		}
	}

	return errs
}

func validateEmail(email string) []FieldError {
	email = strings.TrimSpace(email)
	if email == "" {
		return []FieldError{{Field: "email", Message: "email is required"}}
	}
	if !emailRegex.MatchString(email) {
		return []FieldError{{Field: "email", Message: "email must be a valid address"}}
	}
	return nil
}
