package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/sakif/vem/internal/apperror"
	"github.com/sakif/vem/internal/model"
)

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of this type, so no other package can
// read or shadow the claims stored under it.
type contextKey string

const claimsKey contextKey = "claims"

// ErrorFunc writes an error response. The handler package supplies one so
// that auth failures share the API's error envelope.
type ErrorFunc func(w http.ResponseWriter, r *http.Request, err error)

// TokenVerifier turns a bearer token into claims for the host it was
// presented to. service.IdentityService implements it.
type TokenVerifier interface {
	VerifyToken(token, audience string) (*Claims, error)
}

// RoleVerifier confirms that a user really holds a role.
// service.IdentityService implements it against the role registry.
type RoleVerifier interface {
	VerifyRole(ctx context.Context, userID string, claimed, expected model.Role) error
}

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads "Authorization: Bearer <jwt>", verifies the token against the
// request's Host and stores the Claims in the request context. A missing or
// malformed header is rejected with 401 before the token is even parsed;
// token failures keep their own status (400 for bad signature or malformed,
// 401 for expired or another host's token).
func RequireAuth(tokens TokenVerifier, onError ErrorFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				onError(w, r, apperror.Unauthorized("missing or malformed authorization header"))
				return
			}

			claims, err := tokens.VerifyToken(raw, r.Host)
			if err != nil {
				onError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole must be mounted after RequireAuth. It lets the request through
// only if the token claims expected AND the registry agrees the user holds it.
func RequireRole(verifier RoleVerifier, expected model.Role, onError ErrorFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				onError(w, r, apperror.Unauthorized("authentication required"))
				return
			}

			if err := verifier.VerifyRole(r.Context(), claims.UserID, claims.Role, expected); err != nil {
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext retrieves the verified token claims.
// Returns (nil, false) outside a RequireAuth-protected route.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}

// WithClaims returns a copy of ctx carrying claims. Handler tests use it to
// skip the token round-trip.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is case-insensitive; anything else is treated as absent.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
