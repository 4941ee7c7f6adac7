package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the stored form of an issued refresh token.
// Only the SHA-256 digest of the secret is persisted, never the secret itself.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time // nil while the token is live
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued by TokenManager, AuthService
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
