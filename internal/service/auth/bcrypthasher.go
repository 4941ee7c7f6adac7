package auth

import (
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"
)

// Cost used when not set explicitly, higher than the library default
const defaultBcryptCost = 12

// Bcrypt password hasher
// Passwords are pre-hashed with sha256 so the 72 byte bcrypt input limit
// never truncates anything silently
type BcryptHasher struct {
	// Bcrypt cost factor, defaultBcryptCost when zero
	// Tests want bcrypt.MinCost, production wants the default
	Cost int
}

func (h BcryptHasher) cost() int {
	if h.Cost == 0 {
		return defaultBcryptCost
	}
	return h.Cost
}

func (h BcryptHasher) Hash(password string) (string, error) {
	sum := sha256.Sum256([]byte(password))
	hash, err := bcrypt.GenerateFromPassword(sum[:], h.cost())
	return string(hash), err
}

func (h BcryptHasher) Compare(hashedPassword string, password string) error {
	sum := sha256.Sum256([]byte(password))
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), sum[:])
}
