package mcp

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthMiddleware requires an Authorization header carrying apiKey, either as
// a Bearer token or bare. An empty apiKey disables the check.
func AuthMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	return KeySourceAuthMiddleware(func() string { return apiKey }, next)
}

// KeySourceAuthMiddleware is AuthMiddleware with the key read per request.
// Requests pass unchecked while key returns "".
func KeySourceAuthMiddleware(key func() string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := key()
		if apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if auth == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")

		if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			http.Error(w, "invalid credentials", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
