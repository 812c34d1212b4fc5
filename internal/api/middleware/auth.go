package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/fleetboard/fleetboard/internal/api/response"
	"github.com/fleetboard/fleetboard/internal/auth"
)

const identityKey contextKey = "identity"

// Bearer extraction failure kinds. Each maps to a distinct error code so
// callers can tell a missing header from a wrong scheme from an empty
// token.
var (
	ErrNoToken    = errors.New("authorization header missing")
	ErrBadScheme  = errors.New("authorization scheme must be Bearer")
	ErrEmptyToken = errors.New("bearer token is empty")
)

const bearerPrefix = "Bearer "

// extractBearer pulls the token out of the Authorization header.
func extractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoToken
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrBadScheme
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

// Authenticate is middleware that extracts and verifies a bearer access
// token and stores the resulting Identity in the request context. Every
// failure is a 401, with a code naming the exact kind.
func Authenticate(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity, code, message := resolveIdentity(tokens, r)
			if identity == nil {
				response.Err(w, http.StatusUnauthorized, code, message, requestID)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthenticateOptional is the anonymous-tolerant variant: the same
// extraction and verification, but any failure leaves the request without
// an identity instead of rejecting it.
func AuthenticateOptional(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, _, _ := resolveIdentity(tokens, r)
			if identity == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveIdentity runs bearer extraction and access-token verification,
// returning either an identity or the error code and message for the
// failure kind.
func resolveIdentity(tokens *auth.TokenService, r *http.Request) (*auth.Identity, string, string) {
	token, err := extractBearer(r)
	if err != nil {
		switch {
		case errors.Is(err, ErrBadScheme):
			return nil, "BAD_SCHEME", "Authorization header must use the Bearer scheme"
		case errors.Is(err, ErrEmptyToken):
			return nil, "EMPTY_TOKEN", "Bearer token is empty"
		default:
			return nil, "NO_TOKEN", "Authentication token is required"
		}
	}

	claims, err := tokens.VerifyAccess(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, "TOKEN_EXPIRED", "Access token has expired"
		}
		return nil, "TOKEN_INVALID", "Access token is invalid"
	}

	identity, err := claims.Identity()
	if err != nil {
		return nil, "TOKEN_INVALID", "Access token is invalid"
	}
	return identity, "", ""
}

// GetIdentity retrieves the authenticated Identity from the request
// context. Returns nil for anonymous requests.
func GetIdentity(ctx context.Context) *auth.Identity {
	if id, ok := ctx.Value(identityKey).(*auth.Identity); ok {
		return id
	}
	return nil
}
