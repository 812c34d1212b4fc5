package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidCredentials is returned for every login failure. It is
// deliberately the same value and message whether the email is unknown or
// the password is wrong.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Service orchestrates password hashing, token issuance and the user
// repository for the register, login, refresh and profile flows. It holds
// no state of its own.
type Service struct {
	users  UserRepository
	hasher *Hasher
	tokens *TokenService
}

// NewService creates a new auth Service.
func NewService(users UserRepository, hasher *Hasher, tokens *TokenService) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
	}
}

// AuthResult is returned from Register and Login: the user plus a fresh
// access/refresh token pair.
type AuthResult struct {
	User         *User
	Token        string
	RefreshToken string
}

// TokenPair is returned from Refresh.
type TokenPair struct {
	Token        string
	RefreshToken string
}

// Register creates a new user and issues an initial token pair. The email
// is normalized before the duplicate check; the password must satisfy the
// password policy.
func (s *Service) Register(ctx context.Context, email, name, password string, role Role) (*AuthResult, error) {
	email = NormalizeEmail(email)

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil, ErrDuplicateEmail
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("checking existing user: %w", err)
	}

	if perr := CheckPasswordPolicy(password); perr != nil {
		return nil, perr
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: hash,
	}

	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	return s.issuePair(u)
}

// Login verifies credentials and issues a token pair. Unknown email and
// wrong password both fail with ErrInvalidCredentials so a caller cannot
// probe which emails are registered.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.issuePair(u)
}

// Refresh verifies a refresh token and issues a fresh access/refresh pair
// from the decoded subject. No database round-trip is made, so role
// changes take effect on the next login rather than the next refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	role, ok := ParseRole(claims.Role)
	if !ok {
		return nil, ErrTokenInvalid
	}

	u := &User{ID: id, Email: claims.Email, Role: role}

	result, err := s.issuePair(u)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Token: result.Token, RefreshToken: result.RefreshToken}, nil
}

// GetByID returns the user with the given id, or ErrUserNotFound.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// GetByEmail returns the user with the given email, or ErrUserNotFound.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.users.GetByEmail(ctx, email)
}

func (s *Service) issuePair(u *User) (*AuthResult, error) {
	token, err := s.tokens.IssueAccess(u)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(u)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: u, Token: token, RefreshToken: refresh}, nil
}
