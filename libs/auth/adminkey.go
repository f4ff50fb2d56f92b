// Package auth guards the club administration API with a shared admin key whose bcrypt hash is
// supplied through configuration.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const AdminKeyHeader = "X-Admin-Key"

var (
	ErrMissingKey = errors.New("missing admin key")
	ErrInvalidKey = errors.New("invalid admin key")
)

type AdminKeyVerifier struct {
	hash []byte
}

// NewAdminKeyVerifier validates that hash is a bcrypt hash before accepting it.
func NewAdminKeyVerifier(hash string) (*AdminKeyVerifier, error) {
	hash = strings.TrimSpace(hash)
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, err
	}
	return &AdminKeyVerifier{hash: []byte(hash)}, nil
}

func (v *AdminKeyVerifier) Verify(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrMissingKey
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(key)); err != nil {
		return ErrInvalidKey
	}
	return nil
}

// Middleware answers 401 unless the request carries a valid X-Admin-Key.
func (v *AdminKeyVerifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := v.Verify(r.Header.Get(AdminKeyHeader)); err != nil {
			w.Header().Set("WWW-Authenticate", `AdminKey realm="club"`)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
