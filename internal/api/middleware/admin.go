package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/phrazzld/scry-forge/internal/api/shared"
)

// AdminAuth rejects requests whose bearer token does not equal token.
func AdminAuth(token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
				return
			}

			scheme, got, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
				return
			}
			if len(want) == 0 || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				shared.RespondWithError(w, r, http.StatusForbidden, "Invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
