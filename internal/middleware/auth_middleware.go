package middleware

import (
	"context"
	"net/http"
	"strings"

	"banking-service/internal/domain"
	"banking-service/pkg/jwtutil"
	"banking-service/pkg/response"
)

type contextKey string

const identityKey contextKey = "identity"

// sessionRole reports whether the token role is part of the session
// vocabulary. Tokens minted for other flows (verification links) share the
// signing key but must never open a session.
func sessionRole(role string) bool {
	return role == string(domain.RoleUser) || role == string(domain.RoleAdmin)
}

// Identity is the authenticated principal attached to the request context.
type Identity struct {
	AccountID int64
	Role      string
}

func (id Identity) IsAdmin() bool {
	return id.Role == "admin"
}

// IdentityFrom extracts the authenticated principal, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// WithIdentity returns a context carrying the principal. Exposed for handler
// tests that bypass the HTTP layer.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// Authenticator verifies Bearer tokens and loads the caller identity into the
// request context. Requests without a valid token are rejected.
func Authenticator(tokens *jwtutil.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				response.Error(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				response.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if !sessionRole(claims.Role) {
				response.Error(w, http.StatusUnauthorized, "token is not a session token")
				return
			}

			ctx := WithIdentity(r.Context(), Identity{
				AccountID: claims.AccountID,
				Role:      claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates a route subtree to callers holding the admin role. Must
// run after Authenticator.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok || !id.IsAdmin() {
			response.Error(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
