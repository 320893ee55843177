package auth

import (
	"context"
	"net/http"
	"strings"

	"taskboard/internal/apperror"
)

// Identity is the per-request authenticated principal. It is attached to the
// request context by Middleware and is the only channel through which identity
// reaches handlers; nothing downstream re-parses the token.
type Identity struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// CanAccess is the ownership rule: admins bypass the ownership check but not
// authentication, everyone else must own the resource.
func (id Identity) CanAccess(ownerID string) bool {
	return id.Role == RoleAdmin || id.UserID == ownerID
}

func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

type contextKey struct{}

var identityKey contextKey

func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// Middleware gates protected routes: it extracts the bearer token, verifies
// it and attaches the identity to the request context.
func Middleware(issuer *TokenIssuer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			apperror.Write(w, apperror.Unauthorized("missing authorization header"))
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			apperror.Write(w, apperror.Unauthorized("invalid authorization header"))
			return
		}

		claims, err := issuer.VerifyAccess(strings.TrimSpace(parts[1]))
		if err != nil {
			apperror.Write(w, err)
			return
		}

		identity := Identity{UserID: claims.Subject, Role: claims.Role}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
	})
}

// RequireRole must run after Middleware: no attached identity is an
// authentication failure, a role mismatch is an authorization one.
func RequireRole(role Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			apperror.Write(w, apperror.Unauthorized("not authenticated"))
			return
		}
		if identity.Role != role {
			apperror.Write(w, apperror.Forbidden())
			return
		}

		next.ServeHTTP(w, r)
	})
}
