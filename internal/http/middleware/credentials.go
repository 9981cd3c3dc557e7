package middleware

import (
	"net/http"
	"strings"

	"github.com/wolfman30/clinic-gateway/internal/backend"
)

// ForwardCredentials passes the caller's bearer token through to backend
// calls made while serving the request. Requests without one fall back to
// the gateway's configured token source.
func ForwardCredentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if auth == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(backend.WithToken(r.Context(), auth)))
	})
}
