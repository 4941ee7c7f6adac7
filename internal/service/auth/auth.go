package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akuznetsov/taskboard/internal/apperrors"
	"github.com/akuznetsov/taskboard/internal/logger"
	"github.com/akuznetsov/taskboard/internal/models"
	"github.com/akuznetsov/taskboard/internal/repository"
	"github.com/akuznetsov/taskboard/internal/service/auth/ratelimit"
	"github.com/akuznetsov/taskboard/internal/service/auth/tokenmanager"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

// Limiter for login attempts, keyed by normalized email
type LoginLimiter interface {
	Allow(key string) bool
	RecordAttempt(key string)
	RetryAfter(key string) time.Duration
	Clear(key string)
}

type Config struct {
	// Hasher used during registration and login
	// BcryptHasher with the default cost when nil
	Hasher PasswordHasher

	// Limiter applied to login attempts
	// A fresh one with default settings when nil
	Limiter LoginLimiter

	// NoOp logger when nil
	Logger logger.Logger
}

// What a successful register or login hands back: the user to render
// a profile from plus both tokens
type AuthResult struct {
	User models.User
	Pair models.TokenPair
}

type AuthService struct {
	// Manager to issue, redeem and parse tokens
	token *tokenmanager.TokenManager

	// Hasher to hash or compare user passwords
	hasher PasswordHasher

	// Limiter for login attempts
	limiter LoginLimiter

	// Repository to access long term data
	storage repository.Storage

	logger logger.Logger
}

func NewAuthService(cfg Config, token *tokenmanager.TokenManager, storage repository.Storage) (*AuthService, error) {
	if token == nil || storage == nil {
		return nil, errors.New("token manager and storage must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.Config{})
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &AuthService{
		token:   token,
		hasher:  hasher,
		limiter: limiter,
		storage: storage,
		logger:  log,
	}, nil
}

// AccessTTL of the issued access tokens
func (s *AuthService) AccessTTL() time.Duration {
	return s.token.AccessTTL()
}

// Register creates a user and logs them in right away.
// Emails are normalized before validation and storage, so the uniqueness
// check is effectively case insensitive.
func (s *AuthService) Register(ctx context.Context, email string, password string) (AuthResult, error) {
	email = NormalizeEmail(email)

	if err := ValidateEmail(email); err != nil {
		s.logger.Warn("registration failed: invalid email format", "email", email)
		return AuthResult{}, err
	}
	if err := ValidatePassword(password); err != nil {
		s.logger.Warn("registration failed: weak password", "email", email)
		return AuthResult{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	user, err := s.storage.User().CreateUser(ctx, email, hash)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserAlreadyExists) {
			s.logger.Warn("registration failed: duplicate email", "email", email)
		}
		return AuthResult{}, err
	}

	pair, err := s.token.GeneratePair(ctx, user)
	if err != nil {
		return AuthResult{}, fmt.Errorf("token could not be generated, sorry. %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email)
	return AuthResult{User: user, Pair: pair}, nil
}

// Login authenticates the user and issues a fresh token pair.
// Every failure the caller may see is the same generic error, the log
// carries the real reason. Successful login resets the rate limiter.
func (s *AuthService) Login(ctx context.Context, email string, password string) (AuthResult, error) {
	email = NormalizeEmail(email)

	if !s.limiter.Allow(email) {
		s.logger.Warn("login rate limited", "email", email)
		return AuthResult{}, &apperrors.RateLimitError{RetryAfter: s.limiter.RetryAfter(email)}
	}

	// Compare even when the user is missing, the zero value never matches
	user, getErr := s.storage.User().GetUserByEmail(ctx, email)
	compareErr := s.hasher.Compare(user.PasswordHash, password)
	if getErr != nil || compareErr != nil {
		s.limiter.RecordAttempt(email)
		s.logger.Warn("login failed: invalid credentials", "email", email)
		return AuthResult{}, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		// Looks like a credentials failure from outside, the log tells the truth
		s.logger.Warn("login failed: account disabled", "user_id", user.ID, "email", email)
		return AuthResult{}, apperrors.ErrInvalidCredentials
	}

	s.limiter.Clear(email)

	pair, err := s.token.GeneratePair(ctx, user)
	if err != nil {
		return AuthResult{}, fmt.Errorf("token could not be generated, sorry. %w", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID, "email", user.Email)
	return AuthResult{User: user, Pair: pair}, nil
}

// Refresh redeems a refresh secret and rotates it: the presented token is
// revoked no matter what, a new pair is issued only if everything checked out
func (s *AuthService) Refresh(ctx context.Context, refreshSecret string) (models.TokenPair, error) {
	token, err := s.token.UseRefresh(ctx, refreshSecret)
	if err != nil {
		s.logger.Warn("refresh failed", "error", err)
		return models.TokenPair{}, fmt.Errorf("%w. Err: %w", apperrors.ErrInvalidRefreshToken, err)
	}

	user, err := s.storage.User().GetUserByID(ctx, token.UserID)
	if err != nil {
		s.logger.Warn("refresh failed: user not found", "user_id", token.UserID)
		return models.TokenPair{}, fmt.Errorf("%w. Err: %w", apperrors.ErrInvalidRefreshToken, err)
	}

	if !user.IsActive {
		s.logger.Warn("refresh failed: account disabled", "user_id", user.ID)
		return models.TokenPair{}, apperrors.ErrInvalidRefreshToken
	}

	pair, err := s.token.GeneratePair(ctx, user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not be generated, sorry. %w", err)
	}

	s.logger.Info("tokens refreshed", "user_id", user.ID)
	return pair, nil
}

// Logout revokes every refresh token of the user, on all devices.
// Safe to call twice, the second call just revokes nothing.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	revoked, err := s.token.RevokeAllForUser(ctx, userID)
	if err != nil {
		return err
	}

	s.logger.Info("user logged out", "user_id", userID, "tokens_revoked", revoked)
	return nil
}

// Profile returns the user without any secret fields rendered downstream
func (s *AuthService) Profile(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

// Authenticate turns a bearer access token into the user it belongs to.
// Any failure comes back as ErrInvalidAccessToken so callers can't probe
// which check failed.
func (s *AuthService) Authenticate(ctx context.Context, access string) (models.User, error) {
	claims, err := s.token.ParseAccess(ctx, access)
	if err != nil {
		s.logger.Warn("authentication failed", "error", err)
		return models.User{}, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		s.logger.Warn("authentication failed: malformed subject", "subject", claims.Subject)
		return models.User{}, fmt.Errorf("%w: malformed subject", apperrors.ErrInvalidAccessToken)
	}

	user, err := s.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Warn("authentication failed: user not found", "user_id", userID)
		return models.User{}, fmt.Errorf("%w. Err: %w", apperrors.ErrInvalidAccessToken, err)
	}

	if !user.IsActive {
		s.logger.Warn("authentication failed: account disabled", "user_id", user.ID)
		return models.User{}, fmt.Errorf("%w: account disabled", apperrors.ErrInvalidAccessToken)
	}

	return user, nil
}
