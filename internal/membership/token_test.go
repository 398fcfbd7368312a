// internal/membership/token_test.go
package membership

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acervo/internal/apperr"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	user := &User{ID: 42, NUSP: "11122233", Role: RoleAdmin}

	token, err := issuer.Issue(user)
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "11122233", claims.NUSP)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestParseRejectsForeignSecret(t *testing.T) {
	token, err := NewTokenIssuer("secret-a", time.Hour).Issue(&User{ID: 1, NUSP: "1", Role: RoleAluno})
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret-b", time.Hour).Parse(token)
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := NewTokenIssuer("secret", -time.Minute).Issue(&User{ID: 1, NUSP: "1", Role: RoleAluno})
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret", -time.Minute).Parse(token)
	assert.Error(t, err)
}
