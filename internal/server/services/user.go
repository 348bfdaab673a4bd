// Package services contains server-side business logic. UserService
// handles registration, login, and issuing/rotating the access and refresh
// token pair.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/jwtauth/internal/common"
	"github.com/dmitrijs2005/jwtauth/internal/logging"
	"github.com/dmitrijs2005/jwtauth/internal/server/auth"
	"github.com/dmitrijs2005/jwtauth/internal/server/events"
	"github.com/dmitrijs2005/jwtauth/internal/server/models"
	"github.com/dmitrijs2005/jwtauth/internal/server/repositories/users"
	"github.com/google/uuid"
)

// loginAttempts bounds the read-modify-write loop when concurrent logins of
// the same user race on the record version.
const loginAttempts = 3

// Reasons logged for rejected credentials. They never leave the server.
const (
	reasonUnknownUser     = "unknown_user"
	reasonBadPassword     = "bad_password"
	reasonBadRefreshToken = "bad_refresh_token"
	reasonMalformedUserID = "malformed_user_id"
	reasonAlreadyRotated  = "rotated_concurrently"
)

// TokenSigner mints access tokens for a user.
type TokenSigner interface {
	Sign(user *models.User) (string, error)
}

// RefreshTokenIssuer owns the user's refresh-token slot.
type RefreshTokenIssuer interface {
	Now() time.Time
	IssueAndPersist(ctx context.Context, saver auth.UserSaver, user *models.User) (string, error)
	Validate(user *models.User, presented string, now time.Time) bool
}

// rehasher is implemented by hashers that can tell when a stored hash was
// made with outdated parameters.
type rehasher interface {
	NeedsRehash(encodedHash string) bool
}

// UserService provides authentication operations:
//   - Register: create users
//   - Login: verify credentials and mint a token pair
//   - RefreshToken: rotate the refresh token and mint a new pair
//
// Expected failures come back as (nil, sentinel) where the sentinel is one
// of common.ErrorValidation, common.ErrorAlreadyExists or
// common.ErrorUnauthorized. Storage and entropy failures wrap
// common.ErrorInternal.
type UserService struct {
	users     users.Repository
	hasher    auth.PasswordHasher
	signer    TokenSigner
	refresh   RefreshTokenIssuer
	publisher events.Publisher
	logger    logging.Logger
	newID     func() string

	dummyMu   sync.Mutex
	dummyHash string
}

type Option func(*UserService)

func WithLogger(l logging.Logger) Option {
	return func(s *UserService) { s.logger = l }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *UserService) { s.publisher = p }
}

// WithIDGenerator replaces uuid.NewString for new user ids.
func WithIDGenerator(f func() string) Option {
	return func(s *UserService) { s.newID = f }
}

func NewUserService(repo users.Repository, hasher auth.PasswordHasher, signer TokenSigner, refresh RefreshTokenIssuer, opts ...Option) *UserService {
	s := &UserService{
		users:     repo,
		hasher:    hasher,
		signer:    signer,
		refresh:   refresh,
		publisher: events.NopPublisher{},
		logger:    logging.Nop{},
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user with an empty role and no refresh token. The
// returned copy has PasswordHash cleared.
func (s *UserService) Register(ctx context.Context, userName, password string) (*models.User, error) {
	if userName == "" || password == "" {
		return nil, common.ErrorValidation
	}

	exists, err := s.users.ExistsByUserName(ctx, userName)
	if err != nil {
		return nil, s.internal(ctx, "error checking username", err)
	}
	if exists {
		return nil, common.ErrorAlreadyExists
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, s.internal(ctx, "error hashing password", err)
	}

	user := &models.User{
		ID:           s.newID(),
		UserName:     userName,
		PasswordHash: hash,
	}

	// the pre-check above is advisory; Insert is what enforces uniqueness
	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, s.internal(ctx, "error creating user", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	s.publish(ctx, events.UserRegistered, user)

	out := user.Clone()
	out.PasswordHash = ""
	return out, nil
}

// Login verifies the password and, on success, returns a new token pair.
// Any refresh token issued earlier stops working.
func (s *UserService) Login(ctx context.Context, userName, password string) (*models.TokenPair, error) {
	var verifiedHash string

	for attempt := 0; attempt < loginAttempts; attempt++ {
		user, err := s.users.FindByUserName(ctx, userName)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				s.spendDummyVerify(ctx, password)
				return nil, s.reject(ctx, reasonUnknownUser)
			}
			return nil, s.internal(ctx, "error loading user", err)
		}

		if user.PasswordHash != verifiedHash {
			if !s.hasher.Verify(user.PasswordHash, password) {
				return nil, s.reject(ctx, reasonBadPassword, "user_id", user.ID)
			}
			verifiedHash = user.PasswordHash
		}

		s.maybeRehash(ctx, user, password)

		pair, err := s.issue(ctx, user)
		if errors.Is(err, common.ErrVersionConflict) {
			s.logger.Debug(ctx, "login lost version race, retrying", "user_id", user.ID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, s.internal(ctx, "error issuing tokens", err)
		}

		s.logger.Info(ctx, "user logged in", "user_id", user.ID)
		s.publish(ctx, events.UserLoggedIn, user)
		return pair, nil
	}

	return nil, s.internal(ctx, "error issuing tokens", common.ErrVersionConflict)
}

// RefreshToken exchanges the user's live refresh token for a new pair.
// Unknown users, malformed ids, mismatched and expired tokens all yield
// common.ErrorUnauthorized.
func (s *UserService) RefreshToken(ctx context.Context, userID, refreshToken string) (*models.TokenPair, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, s.reject(ctx, reasonMalformedUserID)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, s.reject(ctx, reasonUnknownUser)
		}
		return nil, s.internal(ctx, "error loading user", err)
	}

	if !s.refresh.Validate(user, refreshToken, s.refresh.Now()) {
		return nil, s.reject(ctx, reasonBadRefreshToken, "user_id", user.ID)
	}

	pair, err := s.issue(ctx, user)
	if err != nil {
		// a lost swap means another request already rotated this token
		if errors.Is(err, common.ErrVersionConflict) {
			return nil, s.reject(ctx, reasonAlreadyRotated, "user_id", user.ID)
		}
		return nil, s.internal(ctx, "error issuing tokens", err)
	}

	s.logger.Info(ctx, "refresh token rotated", "user_id", user.ID)
	s.publish(ctx, events.TokenRefreshed, user)
	return pair, nil
}

// issue signs an access token and persists a new refresh token on user.
func (s *UserService) issue(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	access, err := s.signer.Sign(user)
	if err != nil {
		return nil, fmt.Errorf("error signing access token: %w", err)
	}

	refresh, err := s.refresh.IssueAndPersist(ctx, s.users, user)
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *UserService) maybeRehash(ctx context.Context, user *models.User, password string) {
	r, ok := s.hasher.(rehasher)
	if !ok || !r.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn(ctx, "password rehash skipped", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
}

// spendDummyVerify costs about as much as checking a real password, so an
// unknown username is not distinguishable by timing.
func (s *UserService) spendDummyVerify(ctx context.Context, password string) {
	if h := s.dummy(ctx); h != "" {
		s.hasher.Verify(h, password)
		return
	}
	// no reference hash yet; hashing costs the same as verifying
	_, _ = s.hasher.Hash(password)
}

// dummy returns a reference hash, retrying on later calls until one is made.
func (s *UserService) dummy(ctx context.Context) string {
	s.dummyMu.Lock()
	h := s.dummyHash
	s.dummyMu.Unlock()
	if h != "" {
		return h
	}

	b := common.GenerateRandByteArray(16)
	h, err := s.hasher.Hash(string(b))
	if err != nil {
		s.logger.Warn(ctx, "dummy hash unavailable", "error", err)
		return ""
	}

	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()
	if s.dummyHash == "" {
		s.dummyHash = h
	}
	return s.dummyHash
}

func (s *UserService) reject(ctx context.Context, reason string, args ...any) error {
	s.logger.Warn(ctx, "authentication failed", append([]any{"reason", reason}, args...)...)
	return common.ErrorUnauthorized
}

func (s *UserService) internal(ctx context.Context, msg string, err error) error {
	s.logger.Error(ctx, msg, "error", err)
	return fmt.Errorf("%w: %s: %v", common.ErrorInternal, msg, err)
}

func (s *UserService) publish(ctx context.Context, t events.Type, user *models.User) {
	e := events.Event{
		Type:       t,
		UserID:     user.ID,
		UserName:   user.UserName,
		OccurredAt: s.refresh.Now(),
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn(ctx, "event publish failed", "type", string(t), "error", err)
	}
}
