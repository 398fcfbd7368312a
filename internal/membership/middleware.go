// internal/membership/middleware.go
package membership

import (
	"context"
	"net/http"
	"strings"

	"acervo/internal/apperr"
)

type contextKey struct{}

// ClaimsFromContext returns the authenticated claims, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*Claims)
	return claims, ok
}

// RequireAuth validates the bearer token and stores its claims in the
// request context.
func RequireAuth(issuer *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				apperr.WriteJSON(w, apperr.New(apperr.Unauthorized, "missing bearer token"))
				return
			}

			claims, err := issuer.Parse(token)
			if err != nil {
				apperr.WriteJSON(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), contextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole builds on RequireAuth and additionally checks the role claim.
func RequireRole(issuer *TokenIssuer, role string) func(http.Handler) http.Handler {
	auth := RequireAuth(issuer)
	return func(next http.Handler) http.Handler {
		return auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := ClaimsFromContext(r.Context())
			if claims == nil || claims.Role != role {
				apperr.WriteJSON(w, apperr.New(apperr.Unauthorized, "insufficient privileges"))
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
