package tokenmanager

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// 32 bytes of entropy per refresh secret
const refreshSecretLen = 32

// NewRefreshSecret returns a fresh opaque refresh secret and its digest.
// The secret goes to the client, only the digest may ever be stored.
func NewRefreshSecret() (secret string, digest string, err error) {
	b := make([]byte, refreshSecretLen)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("error while generating refresh secret. Err: %w", err)
	}

	secret = base64.RawURLEncoding.EncodeToString(b)
	return secret, HashRefreshSecret(secret), nil
}

// HashRefreshSecret computes the storage digest of a refresh secret.
// Deterministic, so the store can be queried by digest directly.
func HashRefreshSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// SecretsEqual compares two secrets or digests in constant time
func SecretsEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
