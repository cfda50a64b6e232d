package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	m := NewTokenManager("secret", time.Hour, 24*time.Hour)

	pair, err := m.IssuePair("shop-1")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, pair.ExpiresIn)

	claims, err := m.Validate(pair.AccessToken, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, "shop-1", claims.Subject)
	assert.NotEmpty(t, claims.ID)

	_, err = m.Validate(pair.RefreshToken, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Validate(pair.RefreshToken, TokenRefresh)
	assert.NoError(t, err)
}

func TestValidate_Expired(t *testing.T) {
	m := NewTokenManager("secret", time.Minute, time.Hour)
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }

	token, _, err := m.Issue("shop-1", TokenAccess, time.Minute, nil)
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = m.Validate(token, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_WrongSecret(t *testing.T) {
	token, _, err := NewTokenManager("one", time.Hour, time.Hour).Issue("shop-1", TokenAccess, time.Hour, nil)
	require.NoError(t, err)

	_, err = NewTokenManager("two", time.Hour, time.Hour).Validate(token, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokenManager("two", time.Hour, time.Hour).Validate("", TokenAccess)
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestVerificationTokenCarriesCI(t *testing.T) {
	m := NewTokenManager("secret", time.Hour, time.Hour)
	token, _, err := m.Issue("", TokenVerification, 10*time.Minute, func(c *Claims) {
		c.CI = "ci-value"
		c.Name = "홍길동"
	})
	require.NoError(t, err)

	claims, err := m.Validate(token, TokenVerification)
	require.NoError(t, err)
	assert.Equal(t, "ci-value", claims.CI)
	assert.Equal(t, "홍길동", claims.Name)
}

func TestExtractBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	assert.Empty(t, ExtractBearerToken(r))

	r.Header.Set("Authorization", "Bearer abc.def")
	assert.Equal(t, "abc.def", ExtractBearerToken(r))

	assert.Equal(t, "xyz", ExtractBearerTokenFromHeader("bearer xyz"))
	assert.Empty(t, ExtractBearerTokenFromHeader("Basic xyz"))
}
