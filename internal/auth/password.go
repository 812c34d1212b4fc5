package auth

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies passwords using bcrypt with a configurable
// cost factor.
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher. Costs outside bcrypt's supported range fall
// back to the bcrypt default.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of a plaintext password.
func (h *Hasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches the stored hash. A malformed
// stored hash counts as a mismatch, not an error.
func (h *Hasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// PasswordPolicyError lists every rule a candidate password violated, one
// actionable message per rule.
type PasswordPolicyError struct {
	Violations []string
}

func (e *PasswordPolicyError) Error() string {
	return "password policy: " + strings.Join(e.Violations, "; ")
}

// maxPasswordBytes is bcrypt's input limit. Anything longer makes
// GenerateFromPassword error, so the policy rejects it up front with an
// actionable message instead.
const maxPasswordBytes = 72

// CheckPasswordPolicy validates a candidate password: 8 to 72 bytes, with
// at least one uppercase letter, one lowercase letter, one digit and one
// symbol. Returns nil when the password passes. Every password that passes
// is hashable.
func CheckPasswordPolicy(password string) *PasswordPolicyError {
	var violations []string

	if len(password) < 8 {
		violations = append(violations, "password must be at least 8 characters")
	}
	if len(password) > maxPasswordBytes {
		violations = append(violations, "password must be at most 72 bytes")
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	if !hasUpper {
		violations = append(violations, "password must contain at least one uppercase letter")
	}
	if !hasLower {
		violations = append(violations, "password must contain at least one lowercase letter")
	}
	if !hasDigit {
		violations = append(violations, "password must contain at least one digit")
	}
	if !hasSymbol {
		violations = append(violations, "password must contain at least one symbol")
	}

	if len(violations) > 0 {
		return &PasswordPolicyError{Violations: violations}
	}
	return nil
}
