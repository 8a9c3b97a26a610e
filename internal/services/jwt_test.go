package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-round-settlement/internal/services"
)

func TestJWTRoundTrip(t *testing.T) {
	svc, err := services.NewJWTService("secret", time.Hour)
	require.NoError(t, err)

	token, err := svc.GenerateToken(42, "session-1")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "session-1", claims.SessionID)
}

func TestJWTRejects(t *testing.T) {
	svc, err := services.NewJWTService("secret", time.Hour)
	require.NoError(t, err)

	other, err := services.NewJWTService("other", time.Hour)
	require.NoError(t, err)
	forged, err := other.GenerateToken(42, "s")
	require.NoError(t, err)

	_, err = svc.ValidateToken(forged)
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	expired, err := services.NewJWTService("secret", time.Nanosecond)
	require.NoError(t, err)
	stale, err := expired.GenerateToken(42, "s")
	require.NoError(t, err)
	time.Sleep(time.Second + 10*time.Millisecond)

	_, err = svc.ValidateToken(stale)
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	_, err = services.NewJWTService("", time.Hour)
	assert.Error(t, err)
}
