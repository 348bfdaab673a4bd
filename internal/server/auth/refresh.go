package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/jwtauth/internal/common"
	"github.com/dmitrijs2005/jwtauth/internal/server/models"
)

// UserSaver persists a mutated user record.
type UserSaver interface {
	Save(ctx context.Context, user *models.User) error
}

// RefreshTokenManager issues opaque refresh tokens into the user's single
// refresh-token slot and checks presented tokens against it.
type RefreshTokenManager struct {
	ttl    time.Duration
	random io.Reader
	now    Clock
}

type RefreshOption func(*RefreshTokenManager)

// WithRandom replaces the entropy source. Production code must keep the
// default crypto/rand.Reader.
func WithRandom(r io.Reader) RefreshOption {
	return func(m *RefreshTokenManager) { m.random = r }
}

func WithClock(now Clock) RefreshOption {
	return func(m *RefreshTokenManager) { m.now = now }
}

func NewRefreshTokenManager(ttl time.Duration, opts ...RefreshOption) (*RefreshTokenManager, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: refresh token ttl must be positive", common.ErrInvalidConfig)
	}
	m := &RefreshTokenManager{ttl: ttl, random: rand.Reader, now: SystemClock}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Now is the manager's idea of the current time.
func (m *RefreshTokenManager) Now() time.Time {
	return m.now()
}

// Generate returns 32 random bytes, base64 encoded.
func (m *RefreshTokenManager) Generate() (string, error) {
	return common.MakeRandBase64String(m.random, common.RefreshTokenBytes)
}

// IssueAndPersist stores a fresh token on user with expiry now+ttl and saves
// the record. Any previously stored token stops working. If the save fails
// the user's previous slot is restored and the error is returned.
func (m *RefreshTokenManager) IssueAndPersist(ctx context.Context, saver UserSaver, user *models.User) (string, error) {
	token, err := m.Generate()
	if err != nil {
		return "", fmt.Errorf("error generating refresh token: %w", err)
	}

	prevToken, prevExpiry := user.RefreshToken, user.RefreshTokenExpiresAt
	user.SetRefreshToken(token, m.now().Add(m.ttl))

	if err := saver.Save(ctx, user); err != nil {
		user.RefreshToken, user.RefreshTokenExpiresAt = prevToken, prevExpiry
		return "", err
	}
	return token, nil
}

// Validate reports whether presented is the user's live refresh token at
// time now. Absent, mismatched and expired tokens are indistinguishable to
// the caller.
func (m *RefreshTokenManager) Validate(user *models.User, presented string, now time.Time) bool {
	if user == nil || user.RefreshToken == nil || user.RefreshTokenExpiresAt == nil || presented == "" {
		return false
	}
	match := subtle.ConstantTimeCompare([]byte(*user.RefreshToken), []byte(presented)) == 1
	return match && now.Before(*user.RefreshTokenExpiresAt)
}
