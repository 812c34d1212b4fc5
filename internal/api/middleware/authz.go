package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/fleetboard/fleetboard/internal/api/response"
	"github.com/fleetboard/fleetboard/internal/auth"
)

// RequireRole returns middleware that rejects identities whose role is not
// in the allowed set. A request with no identity at all is a 401, not a
// 403: authorization without prior authentication means the required-auth
// middleware was not run first.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	allowed := make(map[auth.Role]bool, len(roles))
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		allowed[r] = true
		names = append(names, string(r))
	}
	allowedNames := strings.Join(names, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity := GetIdentity(r.Context())
			if identity == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication is required", requestID)
				return
			}

			if identity.Role == "" {
				response.Err(w, http.StatusForbidden, "FORBIDDEN_NO_ROLE", "Identity carries no role", requestID)
				return
			}

			if !allowed[identity.Role] {
				// Naming the actual role is not a leak; the caller
				// already knows their own role.
				message := fmt.Sprintf("Role %q is not permitted; requires one of: %s", identity.Role, allowedNames)
				response.Err(w, http.StatusForbidden, "FORBIDDEN", message, requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin allows only admins.
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireRole(auth.RoleAdmin)
}

// RequireSupervisorOrAdmin allows supervisors and admins.
func RequireSupervisorOrAdmin() func(http.Handler) http.Handler {
	return RequireRole(auth.RoleSupervisor, auth.RoleAdmin)
}
