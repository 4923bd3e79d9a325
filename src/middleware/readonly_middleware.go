package middleware

import (
	"net/http"
)

// ReadOnlyMiddleware rejects every mutating request when readOnly is set,
// except token issuance.
func ReadOnlyMiddleware(readOnly bool) func(http.Handler) http.Handler {
	allowedPosts := map[string]bool{
		"/api/token": true,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if readOnly && r.Method != http.MethodGet && r.Method != http.MethodOptions {
				if r.Method == http.MethodPost && allowedPosts[r.URL.Path] {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "Read-only mode: only GET requests are allowed", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
