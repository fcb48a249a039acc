// Package auth guards the HTTP API with a bcrypt-hashed API key. The
// plain key is generated once at setup and never stored; only the hash
// lands in the environment file.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// GenerateKey returns a fresh random API key (64 hex chars).
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth.GenerateKey: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashKey hashes an API key using bcrypt cost 12.
func HashKey(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("auth.HashKey: %w", err)
	}
	return string(b), nil
}

// CheckKey compares a plain key against a bcrypt hash.
func CheckKey(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// NewKeyGuard returns middleware that validates a Bearer token from
// the Authorization header against the configured key hash. An empty
// hash disables auth entirely, which is the default for local setups.
// All routes wrapped by the same guard share one failure throttle.
func NewKeyGuard(keyHash string) func(http.Handler) http.Handler {
	throttle := NewThrottle()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keyHash == "" {
				next.ServeHTTP(w, r)
				return
			}
			ip := clientIP(r)
			if throttle.Blocked(ip) {
				http.Error(w, `{"success":false,"error":"too many failed attempts"}`, http.StatusTooManyRequests)
				return
			}
			token := BearerToken(r)
			if token == "" || !CheckKey(token, keyHash) {
				throttle.Fail(ip)
				http.Error(w, `{"success":false,"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			throttle.Clear(ip)
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the Bearer token from the Authorization header.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return auth[7:]
	}
	return ""
}
