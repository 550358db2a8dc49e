package utils

import (
	"strings"
	"time"

	"content-pipeline/infrastructure/logger"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

func GetCurrentTime() time.Time {
	return time.Now().UTC()
}

// Normalize lower-cases and trims a value for equality checks.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func NewRunID() string {
	return uuid.NewString()
}

func GenerateToken(payload map[string]interface{}, secretKey string) (string, error) {
	var claims jwt.MapClaims = payload
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while generate token")
		return "", err
	}
	return tokenString, nil
}

// AdminToken signs an HS256 token carrying sub, iat and exp, as accepted by
// the job routes.
func AdminToken(subject, secretKey string, ttl time.Duration, now time.Time) (string, error) {
	claims := map[string]interface{}{
		"sub": subject,
		"iat": now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	return GenerateToken(claims, secretKey)
}
