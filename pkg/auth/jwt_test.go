package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/ecommerce-api/internal/domain/entity"
	apperrors "github.com/yourusername/ecommerce-api/internal/pkg/errors"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestJWTService_RoundTrip(t *testing.T) {
	svc, err := NewJWTService(testSecret, 24, "ecommerce-api")
	require.NoError(t, err)

	user := &entity.User{ID: "u1", Email: "ann@example.com"}
	token, expiresAt, err := svc.GenerateToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, time.Minute)

	claims, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "ann@example.com", claims.Email)
	assert.Equal(t, entity.RoleUser, claims.Role)
}

func TestJWTService_Expired(t *testing.T) {
	svc, err := NewJWTService(testSecret, 1, "ecommerce-api")
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := svc.GenerateToken(&entity.User{ID: "u1"})
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	assert.ErrorIs(t, err, apperrors.ErrExpiredToken)
}

func TestJWTService_RejectsForeignTokens(t *testing.T) {
	svc, err := NewJWTService(testSecret, 1, "ecommerce-api")
	require.NoError(t, err)
	other, err := NewJWTService("another-secret-another-secret-xx", 1, "ecommerce-api")
	require.NoError(t, err)

	token, _, err := other.GenerateToken(&entity.User{ID: "u1"})
	require.NoError(t, err)
	_, err = svc.ParseToken(token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	// алгоритм none не принимается
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &JWTCustomClaims{UserID: "u1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ParseToken(unsigned)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = svc.ParseToken("garbage")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestJWTService_Validation(t *testing.T) {
	_, err := NewJWTService("", 1, "")
	assert.Error(t, err)

	svc, err := NewJWTService(testSecret, 0, "")
	require.NoError(t, err)
	assert.Equal(t, 168*time.Hour, svc.expiration)

	_, _, err = svc.GenerateToken(&entity.User{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
