package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminToken(t *testing.T) {
	now := time.Now()

	signed, err := AdminToken("ops", "s3cret", time.Hour, now)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("s3cret"), nil
	})
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, jwt.SigningMethodHS256.Alg(), token.Method.Alg())
	assert.Equal(t, "ops", claims["sub"])
	assert.Equal(t, float64(now.Add(time.Hour).Unix()), claims["exp"])
}

func TestAdminToken_NoExpiry(t *testing.T) {
	signed, err := AdminToken("ops", "s3cret", 0, time.Now())
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("s3cret"), nil
	})
	require.NoError(t, err)
	assert.NotContains(t, claims, "exp")
}
