package password_test

import (
	"strings"
	"testing"

	"github.com/danielmulvad/tda-backend/password"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := password.Hash("Secret123!")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$"))

	require.True(t, password.Verify("Secret123!", hash))
	require.False(t, password.Verify("Secret123?", hash))
}

func TestHashUsesFreshSalt(t *testing.T) {
	first, err := password.Hash("same-password")
	require.NoError(t, err)
	second, err := password.Hash("same-password")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.True(t, password.Verify("same-password", first))
	require.True(t, password.Verify("same-password", second))
}

func TestVerifyMalformedHash(t *testing.T) {
	hash, err := password.Hash("Secret123!")
	require.NoError(t, err)

	// Malformed hashes must look exactly like a mismatch to the caller.
	for _, stored := range []string{
		"",
		"not-a-hash",
		"$argon2id$v=19$m=65536,t=3,p=2$onlyonesection",
		"$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$a2V5",
		"$argon2id$v=18$m=65536,t=3,p=2$c2FsdA$a2V5",
		"$argon2id$v=19$m=0,t=3,p=2$c2FsdA$a2V5",
		strings.Replace(hash, "$m=", "$x=", 1),
		hash + "!",
	} {
		require.False(t, password.Verify("Secret123!", stored), "stored=%q", stored)
	}
}
