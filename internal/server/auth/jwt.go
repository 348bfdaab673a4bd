// Package auth holds the credential primitives of the server: password
// hashing, access-token signing and verification, and refresh-token
// issuance. None of it keeps mutable state between calls.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/jwtauth/internal/common"
	"github.com/dmitrijs2005/jwtauth/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest signing secret accepted for HS512: one
// full hash block of key material.
const MinSecretLength = 64

// Claims carried by every access token, next to the registered
// iss/aud/sub/exp/iat fields.
type Claims struct {
	Name           string `json:"name"`
	NameIdentifier string `json:"nameidentifier"`
	Role           string `json:"role"`
	jwt.RegisteredClaims
}

// TokenConfig is the signing material shared by Signer and Verifier.
type TokenConfig struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

func (c TokenConfig) validate() error {
	if len(c.Secret) < MinSecretLength {
		return fmt.Errorf("%w: signing secret must be at least %d bytes, got %d", common.ErrInvalidConfig, MinSecretLength, len(c.Secret))
	}
	if c.Issuer == "" {
		return fmt.Errorf("%w: issuer is empty", common.ErrInvalidConfig)
	}
	if c.Audience == "" {
		return fmt.Errorf("%w: audience is empty", common.ErrInvalidConfig)
	}
	return nil
}

// GenerateToken signs an HS512 access token for the given identity.
func GenerateToken(userID, userName, role, issuer, audience string, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		Name:           userName,
		NameIdentifier: userID,
		Role:           role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	return token.SignedString(secret)
}

// Signer issues access tokens with a fixed issuer, audience and lifetime.
type Signer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      Clock
}

func NewSigner(cfg TokenConfig, now Clock) (*Signer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("%w: access token ttl must be positive", common.ErrInvalidConfig)
	}
	if now == nil {
		now = SystemClock
	}
	return &Signer{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TTL,
		now:      now,
	}, nil
}

func (s *Signer) Sign(user *models.User) (string, error) {
	return GenerateToken(user.ID, user.UserName, user.Role, s.issuer, s.audience, s.secret, s.ttl, s.now())
}

// Verifier checks tokens produced by a Signer with the same TokenConfig.
type Verifier struct {
	parser *jwt.Parser
	secret []byte
}

func NewVerifier(cfg TokenConfig, now Clock) (*Verifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = SystemClock
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(now),
	)
	return &Verifier{parser: parser, secret: []byte(cfg.Secret)}, nil
}

// Verify validates signature, algorithm, issuer, audience and lifetime.
// Expired tokens yield common.ErrTokenExpired, anything else wrong yields
// common.ErrInvalidToken.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := v.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if !token.Valid || claims.NameIdentifier == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
