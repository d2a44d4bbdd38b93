// Package api implements the notely REST API using chi.
package api

import (
	"net/http"
	"strings"

	"github.com/starford/notely/internal/identity"
)

// AuthMiddleware returns middleware that resolves the bearer credential of
// each request to an owner id through v and stores it in the request
// context. Requests that fail verification never reach the handlers.
func AuthMiddleware(v identity.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				token = ""
			}
			owner, err := v.Verify(token)
			if err != nil || owner == "" {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithOwner(r.Context(), owner)))
		})
	}
}
