package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPasswordWithCost("donate-blood", bcrypt.MinCost)
	require.NoError(t, err)

	require.True(t, VerifyPassword(hash, "donate-blood"))
	require.False(t, VerifyPassword(hash, "incorrect"))
}

func TestHashPasswordRejectsShortPasswords(t *testing.T) {
	_, err := HashPassword("short")
	require.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestHashPasswordWithInvalidCostFallsBack(t *testing.T) {
	hash, err := HashPasswordWithCost("donate-blood", 99)
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	require.Equal(t, bcrypt.DefaultCost, cost)
}
