// Package auth guards the destructive admin endpoints with bcrypt-hashed
// credentials stored alongside the rest of the data.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Store is the subset of the storage layer auth needs.
type Store interface {
	UpsertUser(username, pwdHash string) error
	UserHash(username string) (string, error)
}

// Authenticator verifies admin credentials.
type Authenticator struct {
	store Store
}

// New creates an authenticator over the user table.
func New(store Store) *Authenticator {
	return &Authenticator{store: store}
}

// EnsureUser hashes the password and stores (or refreshes) the user. Called
// at startup with the configured admin credential; a blank password means no
// admin access at all.
func (a *Authenticator) EnsureUser(username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("admin username and password must both be set")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing admin password: %w", err)
	}
	return a.store.UpsertUser(username, string(hash))
}

// Verify reports whether the credentials match a stored user. Unknown users
// and wrong passwords are indistinguishable to the caller.
func (a *Authenticator) Verify(username, password string) bool {
	hash, err := a.store.UserHash(username)
	if err != nil || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
