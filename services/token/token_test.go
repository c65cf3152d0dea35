package token

import (
	"strings"
	"testing"
	"time"

	"thaliya-gateway/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIssuer(ttl time.Duration) *Issuer {
	return NewIssuer(&config.Config{
		SecretKey:   "test-signing-secret",
		TokenIssuer: "thaliya-auth",
		TokenTTL:    ttl,
	})
}

func TestIssueAndVerify(t *testing.T) {
	issuer := testIssuer(time.Hour)

	signed, err := issuer.Issue("ecare_client", "ecare")
	require.NoError(t, err)

	claims, err := issuer.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "ecare_client", claims.ClientID)
	assert.Equal(t, "ecare", claims.ServiceName)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestVerifyExpiredToken(t *testing.T) {
	issuer := testIssuer(-time.Minute)

	signed, err := issuer.Issue("ecare_client", "ecare")
	require.NoError(t, err)

	_, err = issuer.Verify(signed)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyTamperedToken(t *testing.T) {
	issuer := testIssuer(time.Hour)

	signed, err := issuer.Issue("ecare_client", "ecare")
	require.NoError(t, err)

	// Corrupt the signature segment.
	parts := strings.Split(signed, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + "AAAA" + parts[2][4:]

	_, err = issuer.Verify(tampered)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := testIssuer(time.Hour)
	other := NewIssuer(&config.Config{
		SecretKey:   "a-different-secret",
		TokenIssuer: "thaliya-auth",
		TokenTTL:    time.Hour,
	})

	signed, err := other.Issue("ecare_client", "ecare")
	require.NoError(t, err)

	_, err = issuer.Verify(signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyGarbage(t *testing.T) {
	issuer := testIssuer(time.Hour)
	_, err := issuer.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
