package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/voltgrid/identity/internal/models"
	"github.com/voltgrid/identity/pkg/httpx"
)

// contextKey is a custom type for context keys
type contextKey string

// ClaimsContextKey is the key for storing authorization claims in context
const ClaimsContextKey contextKey = "claims"

// RequireAuth validates the bearer token and injects the derived claims into
// the request context. Every downstream role or scope check assumes this ran.
func RequireAuth(authorizer *Authorizer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httpx.WriteDomainError(w, models.ErrUnauthenticated)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				httpx.WriteDomainError(w, models.ErrUnauthenticated)
				return
			}

			claims, err := authorizer.Authenticate(r.Context(), parts[1])
			if err != nil {
				httpx.WriteDomainError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole enforces a minimum role. Must be mounted after RequireAuth.
func RequireRole(authorizer *Authorizer, required models.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			if claims == nil {
				httpx.WriteDomainError(w, models.ErrUnauthenticated)
				return
			}

			if err := authorizer.Authorize(claims, required, nil); err != nil {
				httpx.WriteDomainError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetClaimsFromContext extracts authorization claims set by RequireAuth
func GetClaimsFromContext(ctx context.Context) *models.AuthorizationClaims {
	claims, ok := ctx.Value(ClaimsContextKey).(*models.AuthorizationClaims)
	if !ok {
		return nil
	}
	return claims
}
