package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/jwtauth/internal/common"
	"github.com/dmitrijs2005/jwtauth/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = strings.Repeat("k", MinSecretLength)

func fixedClock(t time.Time) Clock { return func() time.Time { return t } }

func testTokenConfig() TokenConfig {
	return TokenConfig{Secret: testSecret, Issuer: "jwtauth", Audience: "jwtauth-clients", TTL: 24 * time.Hour}
}

func TestSignAndVerify_RoundTrip(t *testing.T) {
	issued := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	signer, err := NewSigner(testTokenConfig(), fixedClock(issued))
	require.NoError(t, err)
	verifier, err := NewVerifier(testTokenConfig(), fixedClock(issued.Add(time.Hour)))
	require.NoError(t, err)

	user := &models.User{ID: "7f1c6e36-0c45-4b43-9d2e-3a9f5f7f0c11", UserName: "alice", Role: "Admin"}
	tok, err := signer.Sign(user)
	require.NoError(t, err)
	assert.Len(t, strings.Split(tok, "."), 3)

	claims, err := verifier.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.NameIdentifier)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, "alice", claims.Name)
	assert.Equal(t, "Admin", claims.Role)
	assert.Equal(t, "jwtauth", claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"jwtauth-clients"}, claims.Audience)
	assert.Equal(t, 24*time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
	assert.True(t, claims.IssuedAt.Time.Equal(issued))
}

func TestSign_UsesHS512(t *testing.T) {
	tok, err := GenerateToken("u1", "alice", "", "iss", "aud", []byte(testSecret), time.Hour, time.Now())
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(tok, &Claims{})
	require.NoError(t, err)
	assert.Equal(t, "HS512", parsed.Method.Alg())
	assert.Equal(t, "", parsed.Claims.(*Claims).Role)
}

func TestVerify_Expired(t *testing.T) {
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	signer, err := NewSigner(testTokenConfig(), fixedClock(issued))
	require.NoError(t, err)
	verifier, err := NewVerifier(testTokenConfig(), fixedClock(issued.Add(25*time.Hour)))
	require.NoError(t, err)

	tok, err := signer.Sign(&models.User{ID: "u1", UserName: "alice"})
	require.NoError(t, err)

	_, err = verifier.Verify(tok)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestVerify_Rejections(t *testing.T) {
	now := time.Now()
	cfg := testTokenConfig()
	verifier, err := NewVerifier(cfg, fixedClock(now))
	require.NoError(t, err)

	sign := func(secret, issuer, audience string) string {
		tok, err := GenerateToken("u1", "alice", "", issuer, audience, []byte(secret), time.Hour, now)
		require.NoError(t, err)
		return tok
	}

	hs256, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		NameIdentifier: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)

	tests := map[string]string{
		"wrong secret":   sign(strings.Repeat("x", MinSecretLength), cfg.Issuer, cfg.Audience),
		"wrong issuer":   sign(cfg.Secret, "someone-else", cfg.Audience),
		"wrong audience": sign(cfg.Secret, cfg.Issuer, "other-app"),
		"wrong alg":      hs256,
		"malformed":      "not.a.jwt",
		"empty":          "",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := verifier.Verify(tok)
			assert.ErrorIs(t, err, common.ErrInvalidToken)
		})
	}
}

func TestNewSigner_ConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*TokenConfig)
	}{
		{"short secret", func(c *TokenConfig) { c.Secret = "super-secret" }},
		{"63 byte secret", func(c *TokenConfig) { c.Secret = strings.Repeat("a", MinSecretLength-1) }},
		{"empty issuer", func(c *TokenConfig) { c.Issuer = "" }},
		{"empty audience", func(c *TokenConfig) { c.Audience = "" }},
		{"zero ttl", func(c *TokenConfig) { c.TTL = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testTokenConfig()
			tc.mut(&cfg)
			_, err := NewSigner(cfg, nil)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}

	_, err := NewVerifier(TokenConfig{Secret: "short", Issuer: "i", Audience: "a"}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}
