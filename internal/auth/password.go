// ABOUTME: Password hashing and verification using bcrypt
// ABOUTME: Hashes are salted per-call; verification is constant-time even for missing hashes

package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when no real hash is available, so a login
// attempt for a nonexistent account takes as long as one for a real account.
// This prevents timing attacks that could enumerate registered emails.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// HashPassword returns a salted bcrypt hash of the password. Two calls with
// the same input produce different bytes; both verify with VerifyPassword.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether the password produced the given hash.
// An empty hash is compared against a dummy hash to keep timing flat.
func VerifyPassword(password, hash string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
