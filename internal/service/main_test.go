package service

import (
	"errors"
	"testing"

	"devsnippet/internal/auth"
	"devsnippet/internal/models"
	"devsnippet/internal/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "service-test-secret-long-enough-12345"

func newTokens(t *testing.T) *auth.TokenManager {
	t.Helper()
	m, err := auth.NewTokenManager(testSecret)
	require.NoError(t, err)
	return m
}

func identity(u *models.User) policy.Identity {
	return policy.IdentityOf(u)
}

func strPtr(s string) *string { return &s }

func assertCode(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
	return appErr
}
