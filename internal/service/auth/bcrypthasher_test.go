package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func Test_BcryptHasher(t *testing.T) {
	t.Parallel()

	// MinCost keeps the test fast, the hashing path is the same
	h := BcryptHasher{Cost: bcrypt.MinCost}

	t.Run("hash password", func(t *testing.T) {
		got, err := h.Hash("password")
		require.NoError(t, err)

		require.Len(t, got, 60, "bcrypt hash is always 60 letters")
		require.Equal(t, "$2a$", got[:4], "bcrypt hash should have prefix '$2a$'")
	})

	t.Run("cost is embedded in hash", func(t *testing.T) {
		got, err := h.Hash("password")
		require.NoError(t, err)

		cost, err := bcrypt.Cost([]byte(got))
		require.NoError(t, err)
		require.Equal(t, bcrypt.MinCost, cost)
	})

	t.Run("zero cost falls back to default", func(t *testing.T) {
		require.Equal(t, defaultBcryptCost, BcryptHasher{}.cost())
	})

	t.Run("compare password ok", func(t *testing.T) {
		hash, err := h.Hash("password")
		require.NoError(t, err)

		err = h.Compare(hash, "password")

		require.NoError(t, err)
	})

	t.Run("fail compare if wrong password", func(t *testing.T) {
		hash, err := h.Hash("password")
		require.NoError(t, err)

		err = h.Compare(hash, "wrong")

		require.Error(t, err)
	})

	t.Run("long passwords are not truncated", func(t *testing.T) {
		// Raw bcrypt would see the same first 72 bytes for both
		long := make([]byte, 100)
		for i := range long {
			long[i] = 'a'
		}
		longer := append([]byte{}, long...)
		longer = append(longer, 'b')

		hash, err := h.Hash(string(long))
		require.NoError(t, err)

		err = h.Compare(hash, string(longer))
		require.Error(t, err, "passwords that differ after byte 72 must not match")
	})
}
