package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "this-is-a-very-long-secret-key-for-testing"

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(Config{Duration: time.Hour})
	assert.ErrorIs(t, err, ErrEmptySecretKey)
	_, err = NewService(Config{SecretKey: "short", Duration: time.Hour})
	assert.ErrorIs(t, err, ErrWeakSecretKey)
	_, err = NewService(Config{SecretKey: testSecret})
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestJWTService_GenerateAndValidate(t *testing.T) {
	s, err := NewService(Config{SecretKey: testSecret, Duration: time.Hour, Issuer: "gabeda"})
	require.NoError(t, err)

	tok, err := s.GenerateToken(42, "owner", true)
	require.NoError(t, err)
	claims, err := s.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "owner", claims.Username)
	assert.True(t, claims.Elevated)
	assert.Equal(t, "gabeda", claims.Issuer)
}

func TestJWTService_ExpiredAndInvalid(t *testing.T) {
	s, err := NewService(Config{SecretKey: testSecret, Duration: time.Hour})
	require.NoError(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	tok, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = s.ValidateToken(tok)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = s.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewService(Config{SecretKey: testSecret + "-other", Duration: time.Hour})
	require.NoError(t, err)
	tok, err = other.GenerateToken(1, "x", false)
	require.NoError(t, err)
	_, err = s.ValidateToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
