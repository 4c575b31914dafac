// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whiskeytracker/whiskeytracker/internal/auth"
	"github.com/whiskeytracker/whiskeytracker/pkg/errutil"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func TestNewTokenIssuer(t *testing.T) {
	t.Run("short secret rejected", func(t *testing.T) {
		_, err := auth.NewTokenIssuer([]byte("short"), "HS256")
		errutil.AssertErrorCode(t, err, "AUTH_WEAK_SECRET")
	})

	t.Run("non-HMAC algorithm rejected", func(t *testing.T) {
		for _, alg := range []string{"RS256", "ES256", "none", "HS1024"} {
			_, err := auth.NewTokenIssuer(testSecret, alg)
			errutil.AssertErrorCode(t, err, "AUTH_UNSUPPORTED_ALGORITHM")
		}
	})

	t.Run("empty algorithm defaults to HS256", func(t *testing.T) {
		issuer, err := auth.NewTokenIssuer(testSecret, "")
		require.NoError(t, err)
		token, err := issuer.Issue("42", nil, time.Minute)
		require.NoError(t, err)

		hs256, err := auth.NewTokenIssuer(testSecret, "HS256")
		require.NoError(t, err)
		_, err = hs256.Verify(token)
		require.NoError(t, err)

		hs512, err := auth.NewTokenIssuer(testSecret, "HS512")
		require.NoError(t, err)
		_, err = hs512.Verify(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	for _, alg := range []string{"HS256", "HS384", "HS512"} {
		t.Run(alg, func(t *testing.T) {
			clock := newClock()
			issuer, err := auth.NewTokenIssuer(testSecret, alg, auth.WithTokenClock(clock.Now))
			require.NoError(t, err)

			token, err := issuer.Issue("42", map[string]any{"email": "alice@example.com"}, 30*time.Minute)
			require.NoError(t, err)
			assert.Equal(t, 2, strings.Count(token, "."))

			claims, err := issuer.Verify(token)
			require.NoError(t, err)
			assert.Equal(t, "42", claims.Subject)
			assert.Equal(t, "alice@example.com", claims.Extra["email"])
			assert.True(t, claims.IssuedAt.Equal(clock.Now()))
			assert.True(t, claims.ExpiresAt.Equal(clock.Now().Add(30*time.Minute)))
		})
	}
}

func TestTokenIssuer_ExtraCannotOverrideRegisteredClaims(t *testing.T) {
	clock := newClock()
	issuer, err := auth.NewTokenIssuer(testSecret, "HS256", auth.WithTokenClock(clock.Now))
	require.NoError(t, err)

	token, err := issuer.Issue("7", map[string]any{
		"sub": "999",
		"exp": clock.Now().Add(100 * 365 * 24 * time.Hour).Unix(),
	}, time.Minute)
	require.NoError(t, err)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.Subject)
	assert.True(t, claims.ExpiresAt.Equal(clock.Now().Add(time.Minute)))
	assert.Empty(t, claims.Extra)
}

func TestTokenIssuer_IssueEmptySubject(t *testing.T) {
	issuer, err := auth.NewTokenIssuer(testSecret, "HS256")
	require.NoError(t, err)

	_, err = issuer.Issue("", nil, time.Minute)
	errutil.AssertErrorCode(t, err, "AUTH_TOKEN_ISSUE_FAILED")
}

func TestTokenIssuer_VerifyRejects(t *testing.T) {
	clock := newClock()
	issuer, err := auth.NewTokenIssuer(testSecret, "HS256", auth.WithTokenClock(clock.Now))
	require.NoError(t, err)

	valid, err := issuer.Issue("42", nil, 30*time.Minute)
	require.NoError(t, err)

	otherKey, err := auth.NewTokenIssuer([]byte("fedcba9876543210fedcba9876543210"), "HS256", auth.WithTokenClock(clock.Now))
	require.NoError(t, err)
	foreign, err := otherKey.Issue("42", nil, 30*time.Minute)
	require.NoError(t, err)

	hs512, err := auth.NewTokenIssuer(testSecret, "HS512", auth.WithTokenClock(clock.Now))
	require.NoError(t, err)
	wrongAlg, err := hs512.Issue("42", nil, 30*time.Minute)
	require.NoError(t, err)

	zeroTTL, err := issuer.Issue("42", nil, 0)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "42",
		"exp": clock.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": clock.Now().Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "42",
	}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.jwt"},
		{name: "truncated", token: valid[:len(valid)-4]},
		{name: "tampered payload", token: tamper(valid)},
		{name: "wrong key", token: foreign},
		{name: "algorithm mismatch", token: wrongAlg},
		{name: "zero ttl", token: zeroTTL},
		{name: "alg none", token: unsigned},
		{name: "missing subject", token: noSubject},
		{name: "missing expiry", token: noExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := issuer.Verify(tt.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

func TestTokenIssuer_Expiry(t *testing.T) {
	clock := newClock()
	issuer, err := auth.NewTokenIssuer(testSecret, "HS256", auth.WithTokenClock(clock.Now))
	require.NoError(t, err)

	token, err := issuer.Issue("42", nil, 30*time.Minute)
	require.NoError(t, err)

	clock.Advance(29 * time.Minute)
	_, err = issuer.Verify(token)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

// tamper flips one character of the payload segment.
func tamper(token string) string {
	parts := strings.Split(token, ".")
	payload := []byte(parts[1])
	if payload[0] == 'e' {
		payload[0] = 'f'
	} else {
		payload[0] = 'e'
	}
	parts[1] = string(payload)
	return strings.Join(parts, ".")
}
