package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTokenValidCredentials(t *testing.T) {
	service := NewService("test-secret")
	service.RegisterAPICredentials(TestAPIKey, TestAPISecret)

	token, err := service.GenerateToken(Credentials{
		APIKey:    TestAPIKey,
		APISecret: TestAPISecret,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
	assert.True(t, token.Expiration.After(time.Now()))

	claims, err := service.ValidateToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, TestAPIKey, claims.ClientID)
}

func TestGenerateTokenInvalidCredentials(t *testing.T) {
	service := NewService("test-secret")
	service.RegisterAPICredentials(TestAPIKey, TestAPISecret)

	_, err := service.GenerateToken(Credentials{
		APIKey:    TestAPIKey,
		APISecret: "wrong-secret",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.GenerateToken(Credentials{
		APIKey:    "unknown",
		APISecret: TestAPISecret,
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	service := NewService("test-secret")
	service.RegisterAPICredentials(TestAPIKey, TestAPISecret)

	token, err := service.GenerateToken(Credentials{
		APIKey:    TestAPIKey,
		APISecret: TestAPISecret,
	})
	require.NoError(t, err)

	other := NewService("different-secret")
	_, err = other.ValidateToken(token.Token)
	assert.Error(t, err)
}
