package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	token, err := GenerateJWT(42, "mom@example.com", "sid-1", secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, secret)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "mom@example.com", claims.Email)
	assert.Equal(t, "sid-1", claims.SessionID)
}

func TestParseJWTRejects(t *testing.T) {
	secret := []byte("test-secret")

	t.Run("wrong secret", func(t *testing.T) {
		token, err := GenerateJWT(1, "a@b.c", "s", secret, time.Hour)
		require.NoError(t, err)
		_, err = ParseJWT(token, []byte("other"))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := GenerateJWT(1, "a@b.c", "s", secret, -time.Minute)
		require.NoError(t, err)
		_, err = ParseJWT(token, secret)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = ParseJWT(token, secret)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing user", func(t *testing.T) {
		token, err := GenerateJWT(0, "a@b.c", "s", secret, time.Hour)
		require.NoError(t, err)
		_, err = ParseJWT(token, secret)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hash)
	assert.True(t, CheckPasswordHash("s3cret!", hash))
	assert.False(t, CheckPasswordHash("s3cret?", hash))
}

func TestGenerateRandomToken(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		tok, err := GenerateRandomToken(6)
		require.NoError(t, err)
		require.Len(t, tok, 6)
		assert.Equal(t, strings.ToUpper(tok), tok)
		seen[tok] = true
	}
	assert.Greater(t, len(seen), 45)
}
