package security_test

import (
	"testing"

	"github.com/farmconnect/farmconnect-backend/pkg/config"
	"github.com/farmconnect/farmconnect-backend/pkg/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8192,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := security.HashPassword("harvest-2024", testPasswordConfig())
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.Contains(t, hash, "$argon2id$v=19$m=8192,t=1,p=1$")

	ok, err := security.VerifyPassword("harvest-2024", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = security.VerifyPassword("bogus-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := security.HashPassword("", testPasswordConfig())
	require.Error(t, err)
}

func TestVerifyPasswordBadHash(t *testing.T) {
	for _, encoded := range []string{
		"not-a-hash",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$!!!$aGFzaA",
	} {
		_, err := security.VerifyPassword("irrelevant", encoded)
		assert.ErrorIs(t, err, security.ErrInvalidHash, encoded)
	}
}

func TestCheckStrength(t *testing.T) {
	assert.Error(t, security.CheckStrength("short1"))
	assert.Error(t, security.CheckStrength("lettersonly"))
	assert.Error(t, security.CheckStrength("1234567890"))
	assert.NoError(t, security.CheckStrength("tomatoes4sale"))
}

func TestSecretsEqual(t *testing.T) {
	assert.True(t, security.SecretsEqual("s3cret", "s3cret"))
	assert.False(t, security.SecretsEqual("s3cret", "S3cret"))
	assert.False(t, security.SecretsEqual("", ""))
}

func TestNeedsRehash(t *testing.T) {
	cfg := testPasswordConfig()
	hash, err := security.HashPassword("harvest-2024", cfg)
	require.NoError(t, err)

	assert.False(t, security.NeedsRehash(hash, cfg))

	stronger := cfg
	stronger.ArgonTime = 2
	assert.True(t, security.NeedsRehash(hash, stronger))

	longerKey := cfg
	longerKey.ArgonKeyLen = 48
	assert.True(t, security.NeedsRehash(hash, longerKey))

	assert.True(t, security.NeedsRehash("not-a-hash", cfg))
}
