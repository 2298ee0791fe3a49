package pkg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("access-secret", "refresh-secret")
	pair, err := issuer.GeneratePair("u-1", "user")
	require.NoError(t, err)

	claims, err := issuer.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "user", claims.Role)

	refresh, err := issuer.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", refresh.UserID)
}

func TestTokenIssuerRejectsSwappedTokens(t *testing.T) {
	issuer := NewTokenIssuer("access-secret", "refresh-secret")
	pair, err := issuer.GeneratePair("u-1", "user")
	require.NoError(t, err)

	_, err = issuer.ParseAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenParseFailure)

	_, err = issuer.ParseRefresh(pair.AccessToken)
	assert.ErrorIs(t, err, ErrRefreshInvalid)
}

func TestTokenIssuerExpiry(t *testing.T) {
	issuer := NewTokenIssuer("access-secret", "refresh-secret")
	issued := time.Now().Add(-2 * time.Hour)
	issuer.now = func() time.Time { return issued }
	pair, err := issuer.GeneratePair("u-1", "user")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.ParseAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// refresh 有效期 24h，仍可用
	_, err = issuer.ParseRefresh(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestTokenIssuerWrongSecret(t *testing.T) {
	pair, err := NewTokenIssuer("a", "b").GeneratePair("u-1", "user")
	require.NoError(t, err)

	_, err = NewTokenIssuer("other", "b").ParseAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenParseFailure)
}
