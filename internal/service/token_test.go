package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager(testSecret, time.Minute)
	userID := uuid.New()

	token, err := m.GenerateAccess(userID, valueobject.RoleLecturer)
	require.NoError(t, err)

	actor, err := m.ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, userID, actor.ID)
	assert.Equal(t, valueobject.RoleLecturer, actor.Role)
}

func TestTokenManager_Rejects(t *testing.T) {
	m := NewTokenManager(testSecret, time.Minute)

	t.Run("expired", func(t *testing.T) {
		expired := NewTokenManager(testSecret, -time.Minute)
		token, err := expired.GenerateAccess(uuid.New(), valueobject.RoleStudent)
		require.NoError(t, err)
		_, err = m.ParseAccess(token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("foreign secret", func(t *testing.T) {
		other := NewTokenManager("another-secret-that-is-long-enough-too", time.Minute)
		token, err := other.GenerateAccess(uuid.New(), valueobject.RoleStudent)
		require.NoError(t, err)
		_, err = m.ParseAccess(token)
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
			"sub": uuid.NewString(),
			"exp": time.Now().Add(time.Minute).Unix(),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = m.ParseAccess(token)
		assert.Error(t, err)
	})

	t.Run("bad subject", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "not-a-uuid",
			"exp": time.Now().Add(time.Minute).Unix(),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = m.ParseAccess(token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.ParseAccess("not.a.jwt")
		assert.Error(t, err)
	})
}
