package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrTokenExpired is returned when a token's signature is valid but its
// expiry has passed.
var ErrTokenExpired = errors.New("token expired")

// ErrTokenInvalid is returned for a bad signature, a malformed token, a
// wrong issuer or audience, or a token of the wrong kind (access where
// refresh is expected, or the reverse).
var ErrTokenInvalid = errors.New("token invalid")

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	audienceAPI     = "fleetboard-api"
	audienceRefresh = "fleetboard-refresh"
)

// Claims is the payload carried by both token kinds. The typ claim and the
// audience together keep access and refresh tokens from being accepted in
// each other's place.
type Claims struct {
	UserID    string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Identity converts verified claims into a request-scoped Identity.
func (c *Claims) Identity() (*Identity, error) {
	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	role, ok := ParseRole(c.Role)
	if !ok {
		return nil, ErrTokenInvalid
	}

	identity := &Identity{
		UserID: id,
		Email:  c.Email,
		Role:   role,
		Issuer: c.Issuer,
	}
	if c.ExpiresAt != nil {
		identity.ExpiresAt = c.ExpiresAt.Time
	}
	return identity, nil
}

// TokenService issues and verifies HMAC-SHA256 signed access and refresh
// tokens. It holds no mutable state; every call is pure given the token,
// the clock and the secret.
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService creates a TokenService with the given signing secret,
// issuer and per-kind TTLs.
func NewTokenService(secret, issuer string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// IssueAccess signs a short-lived access token for the given user.
func (s *TokenService) IssueAccess(u *User) (string, error) {
	return s.issue(u, tokenTypeAccess, audienceAPI, s.accessTTL)
}

// IssueRefresh signs a long-lived refresh token for the given user.
func (s *TokenService) IssueRefresh(u *User) (string, error) {
	return s.issue(u, tokenTypeRefresh, audienceRefresh, s.refreshTTL)
}

// VerifyAccess checks the signature, expiry, issuer, audience and kind of
// an access token. Refresh tokens are rejected with ErrTokenInvalid.
func (s *TokenService) VerifyAccess(token string) (*Claims, error) {
	return s.verify(token, tokenTypeAccess, audienceAPI)
}

// VerifyRefresh checks the signature, expiry, issuer, audience and kind of
// a refresh token. Access tokens are rejected with ErrTokenInvalid.
func (s *TokenService) VerifyRefresh(token string) (*Claims, error) {
	return s.verify(token, tokenTypeRefresh, audienceRefresh)
}

func (s *TokenService) issue(u *User, typ, audience string, ttl time.Duration) (string, error) {
	now := s.now().UTC()
	claims := Claims{
		UserID:    u.ID.String(),
		Email:     u.Email,
		Role:      string(u.Role),
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", typ, err)
	}
	return signed, nil
}

func (s *TokenService) verify(tokenString, typ, audience string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		// A wrong-kind token fails the audience check; report that as
		// invalid even when the token is also expired.
		if errors.Is(err, jwt.ErrTokenInvalidAudience) {
			return nil, ErrTokenInvalid
		}
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != typ {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
