package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/common"
)

var testSecret = strings.Repeat("k", MinSecretLength)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(Config{Secret: testSecret, Issuer: "auth-backend", AccessTTL: time.Hour, RefreshTTL: 14 * 24 * time.Hour})
	require.NoError(t, err)
	return c
}

var alice = Subject{ID: "0b5e6a1c-7a51-4c57-9f0b-3f1f2b7f5c11", Email: "alice@example.com"}

func TestNewCodec_RejectsShortSecret(t *testing.T) {
	_, err := NewCodec(Config{Secret: strings.Repeat("k", MinSecretLength-1), AccessTTL: time.Hour, RefreshTTL: time.Hour})
	assert.ErrorIs(t, err, ErrSecretTooShort)
}

func TestNewCodec_RejectsNonPositiveTTL(t *testing.T) {
	_, err := NewCodec(Config{Secret: testSecret, AccessTTL: 0, RefreshTTL: time.Hour})
	assert.Error(t, err)
}

func TestMintAccess_Claims(t *testing.T) {
	c := newTestCodec(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	tok, err := c.MintAccess(alice, []string{"USER", "ADMIN"})
	require.NoError(t, err)

	claims, err := c.Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, TypeAccess, claims.Type)
	assert.Equal(t, alice.Email, claims.Subject)
	assert.Equal(t, alice.ID, claims.UserID)
	assert.Equal(t, []string{"USER", "ADMIN"}, claims.Roles)
	assert.Equal(t, "auth-backend", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, fixed, claims.IssuedAt.Time.UTC())
	assert.Equal(t, fixed.Add(time.Hour), claims.ExpiresAt.Time.UTC())
	assert.True(t, c.IsAccessToken(tok))
	assert.False(t, c.IsRefreshToken(tok))
}

func TestMintAccess_FreshJTI(t *testing.T) {
	c := newTestCodec(t)
	a, err := c.MintAccess(alice, nil)
	require.NoError(t, err)
	b, err := c.MintAccess(alice, nil)
	require.NoError(t, err)

	ja, err := c.ExtractJTI(a)
	require.NoError(t, err)
	jb, err := c.ExtractJTI(b)
	require.NoError(t, err)
	assert.NotEqual(t, ja, jb)
}

func TestMintRefresh_CarriesJTI(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.MintRefresh(alice, "jti-123")
	require.NoError(t, err)

	claims, err := c.Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, TypeRefresh, claims.Type)
	assert.Empty(t, claims.UserID)
	assert.Empty(t, claims.Roles)
	assert.True(t, c.IsRefreshToken(tok))
	assert.False(t, c.IsAccessToken(tok))

	jti, err := c.ExtractJTI(tok)
	require.NoError(t, err)
	assert.Equal(t, "jti-123", jti)

	sub, err := c.ExtractSubject(tok)
	require.NoError(t, err)
	assert.Equal(t, alice.Email, sub)

	// refresh tokens have no id claim
	uid, err := c.ExtractUserID(tok)
	require.NoError(t, err)
	assert.Equal(t, alice.Email, uid)
}

func TestExtractUserID_Access(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.MintAccess(alice, nil)
	require.NoError(t, err)
	uid, err := c.ExtractUserID(tok)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, uid)
}

func TestDecode_Expired(t *testing.T) {
	c := newTestCodec(t)
	c.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := c.MintAccess(alice, nil)
	require.NoError(t, err)

	c.now = time.Now
	_, err = c.Decode(tok)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
	assert.False(t, c.IsAccessToken(tok))
}

func TestDecode_TamperedSignature(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec(Config{Secret: strings.Repeat("x", MinSecretLength), AccessTTL: time.Hour, RefreshTTL: time.Hour})
	require.NoError(t, err)

	tok, err := c.MintAccess(alice, nil)
	require.NoError(t, err)
	forged, err := other.MintAccess(alice, nil)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	forgedParts := strings.Split(forged, ".")
	tampered := parts[0] + "." + parts[1] + "." + forgedParts[2]

	_, err = c.Decode(tampered)
	assert.ErrorIs(t, err, common.ErrTokenInvalid)
	_, err = c.Decode(forged)
	assert.ErrorIs(t, err, common.ErrTokenInvalid)
}

func TestDecode_SignatureCheckedBeforeExpiry(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec(Config{Secret: strings.Repeat("x", MinSecretLength), AccessTTL: time.Hour, RefreshTTL: time.Hour})
	require.NoError(t, err)
	other.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }

	expiredForged, err := other.MintAccess(alice, nil)
	require.NoError(t, err)

	_, err = c.Decode(expiredForged)
	assert.ErrorIs(t, err, common.ErrTokenInvalid)
	assert.NotErrorIs(t, err, common.ErrTokenExpired)
}

func TestDecode_WrongAlgorithm(t *testing.T) {
	c := newTestCodec(t)
	claims := Claims{
		Type: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   alice.Email,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	hs256, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = c.Decode(hs256)
	assert.ErrorIs(t, err, common.ErrTokenInvalid)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = c.Decode(none)
	assert.ErrorIs(t, err, common.ErrTokenInvalid)
}

func TestDecode_Malformed(t *testing.T) {
	c := newTestCodec(t)
	for _, in := range []string{"", "abc", "a.b.c", "not-a-jwt.at.all"} {
		_, err := c.Decode(in)
		assert.ErrorIs(t, err, common.ErrTokenInvalid, in)
		assert.False(t, c.IsRefreshToken(in))
	}
}

func TestDecode_ForeignIssuer(t *testing.T) {
	c := newTestCodec(t)
	foreign, err := NewCodec(Config{Secret: testSecret, Issuer: "billing-service", AccessTTL: time.Hour, RefreshTTL: time.Hour})
	require.NoError(t, err)

	tok, err := foreign.MintRefresh(alice, "jti-1")
	require.NoError(t, err)
	_, err = c.Decode(tok)
	assert.ErrorIs(t, err, common.ErrTokenInvalid)
	assert.False(t, c.IsRefreshToken(tok))
}

func TestDecode_ErrorTextIsStable(t *testing.T) {
	c := newTestCodec(t)
	for _, in := range []string{"abc", "a.b.c"} {
		_, err := c.Decode(in)
		require.Error(t, err)
		assert.Equal(t, common.ErrTokenInvalid.Error(), err.Error(), in)
	}
}

func TestDecode_MissingExpiry(t *testing.T) {
	c := newTestCodec(t)
	tok, err := jwt.NewWithClaims(signingMethod, Claims{Type: TypeRefresh}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = c.Decode(tok)
	assert.ErrorIs(t, err, common.ErrTokenInvalid)
}

func TestValidate(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.MintAccess(alice, nil)
	require.NoError(t, err)

	ok, err := c.Validate(tok, "ALICE@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Validate(tok, "bob@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = c.Validate(tok, alice.Email)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}
