package middleware

import (
	"crypto/subtle"
	"net/http"
)

// ToolSecret gates the webhook tool endpoints behind a static shared
// secret the voice platform sends with every tool call. An empty secret
// rejects everything rather than failing open.
func ToolSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "tool auth not configured", http.StatusUnauthorized)
				return
			}
			got := r.Header.Get("X-Tool-Secret")
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
