package api

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth"
)

type contextKey string

const ownerContextKey contextKey = "gallery:owner"

// WithOwner stores the authenticated subject in ctx
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerContextKey, owner)
}

// OwnerFromContext returns the authenticated subject, or "" when anonymous
func OwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerContextKey).(string)
	return owner
}

// NewJWTAuth returns an HS256 verifier, or nil when secret is empty
func NewJWTAuth(secret string) *jwtauth.JWTAuth {
	if secret == "" {
		return nil
	}
	return jwtauth.New("HS256", []byte(secret), nil)
}

// RequireIdentity rejects requests without a verified token carrying a "sub"
// claim. It must run after jwtauth.Verifier.
func RequireIdentity(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "a valid bearer token is required")
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "token has no subject")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), sub)))
	}
	return http.HandlerFunc(fn)
}

// writeAuth returns the middleware stack guarding write routes. A nil ja
// leaves writes anonymous.
func writeAuth(ja *jwtauth.JWTAuth) []func(http.Handler) http.Handler {
	if ja == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{jwtauth.Verifier(ja), RequireIdentity}
}
