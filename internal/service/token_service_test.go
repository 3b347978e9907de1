package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-lesson-api/internal/models"
	appErrors "github.com/noah-isme/sma-lesson-api/pkg/errors"
)

func TestTokenServiceIssueAndValidate(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "sma-lesson-api", Expiration: time.Hour})

	token, expiresAt, err := svc.Issue("user-1", models.RoleTeacher, "t@example.com", "Teacher One")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
	assert.Equal(t, "Teacher One", claims.FullName)
}

func TestTokenServiceRejects(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "sma-lesson-api"})

	_, _, err := svc.Issue(" ", models.RoleAdmin, "", "")
	requireAppError(t, err, appErrors.ErrValidation.Code)

	other := NewTokenService(TokenConfig{Secret: "other", Issuer: "sma-lesson-api"})
	forged, _, err := other.Issue("user-1", models.RoleAdmin, "", "")
	require.NoError(t, err)
	_, err = svc.ValidateToken(forged)
	requireAppError(t, err, appErrors.ErrUnauthorized.Code)

	wrongIssuer := NewTokenService(TokenConfig{Secret: "secret", Issuer: "someone-else"})
	foreign, _, err := wrongIssuer.Issue("user-1", models.RoleAdmin, "", "")
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	requireAppError(t, err, appErrors.ErrUnauthorized.Code)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "sma-lesson-api",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	requireAppError(t, err, appErrors.ErrUnauthorized.Code)
}
