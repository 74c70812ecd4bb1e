package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
	"github.com/boddenberg/dealdesk-bfa/internal/service"
)

func TestSessionVerifier_RoundTrip(t *testing.T) {
	v := service.NewSessionVerifier("s3cret")
	token, err := v.Sign("ops", "acme", time.Hour)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, "acme", claims.TenantID)

	sub, err := claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, "ops", sub)
}

func TestSessionVerifier_Rejects(t *testing.T) {
	v := service.NewSessionVerifier("s3cret")

	expired, err := v.Sign("ops", "acme", -time.Minute)
	require.NoError(t, err)
	foreign, err := service.NewSessionVerifier("other").Sign("ops", "acme", time.Hour)
	require.NoError(t, err)

	for _, token := range []string{expired, foreign, "not-a-jwt"} {
		_, err := v.Verify(token)
		var unauth *domain.ErrUnauthorized
		assert.ErrorAs(t, err, &unauth)
	}
}

func TestNewSessionVerifier_EmptySecret(t *testing.T) {
	assert.Nil(t, service.NewSessionVerifier(""))
}
