package tokenmanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/akuznetsov/taskboard/internal/apperrors"
	"github.com/akuznetsov/taskboard/internal/models"
	"github.com/akuznetsov/taskboard/internal/repository"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultSigningMethod   = "HS256"
	defaultIssuer          = "taskboard"
	defaultAudience        = "taskboard-api"

	accessTokenType = "access"
)

type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	TokenType string `json:"type"`
}

// Token manager config with sensible defaults
type Config struct {
	// Secret key to sign access token
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Values for the iss and aud claims
	// If not set than defaults are used
	Issuer   string
	Audience string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenManager struct {
	// Secret key to sign access token
	key string

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Claim values every issued access token carries
	issuer   string
	audience string

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	// Storage for refresh token records
	storage repository.Storage
}

func New(cfg Config, storage repository.Storage) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}
	if cfg.Audience == "" {
		cfg.Audience = defaultAudience
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		key:        cfg.SecretKey,
		alg:        jwt.GetSigningMethod(cfg.Alg),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		storage:    storage,
	}, nil
}

// AccessTTL the manager signs tokens with
func (m *TokenManager) AccessTTL() time.Duration {
	return m.accessTTL
}

func (m *TokenManager) GeneratePair(ctx context.Context, user models.User) (models.TokenPair, error) {
	var pair models.TokenPair
	now := time.Now().Truncate(time.Second)
	accessExpiresAt := now.Add(m.accessTTL)
	refreshExpiresAt := now.Add(m.refreshTTL)

	// Generate JWT access token encoded as string
	accessToken := jwt.NewWithClaims(
		m.alg,
		AccessTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   user.ID.String(),
				Issuer:    m.issuer,
				Audience:  jwt.ClaimStrings{m.audience},
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(accessExpiresAt),
			},
			Email:     user.Email,
			TokenType: accessTokenType,
		},
	)
	access, err := accessToken.SignedString([]byte(m.key))
	if err != nil {
		return pair, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	// Generate opaque refresh secret, persist the digest only
	secret, digest, err := NewRefreshSecret()
	if err != nil {
		return pair, err
	}

	_, err = m.storage.RefreshToken().Save(ctx, models.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: digest,
		CreatedAt: now,
		ExpiresAt: refreshExpiresAt,
		RevokedAt: nil,
	})
	if err != nil {
		return pair, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return models.TokenPair{
		Access:  models.IssuedToken{Value: access, ExpiresAt: accessExpiresAt},
		Refresh: models.IssuedToken{Value: secret, ExpiresAt: refreshExpiresAt},
	}, nil
}

// UseRefresh redeems a refresh secret exactly once: the stored token is
// revoked and returned. Unknown, already revoked or expired secrets fail.
// Concurrent redeems of the same secret let exactly one caller through.
func (m *TokenManager) UseRefresh(ctx context.Context, secret string) (models.RefreshToken, error) {
	digest := HashRefreshSecret(secret)

	token, err := m.storage.RefreshToken().Revoke(ctx, digest)
	if err != nil {
		return token, fmt.Errorf("error while redeeming refresh token. Err: %w", err)
	}

	// The stored digest must match the presented one, compared in constant time
	if !SecretsEqual(token.TokenHash, digest) {
		return token, fmt.Errorf("error while redeeming refresh token. Err: %w", apperrors.ErrRefreshTokenNotFound)
	}

	if token.ExpiresAt.Before(time.Now()) {
		return token, fmt.Errorf("redeemed token is expired. Err: %w", apperrors.ErrRefreshTokenExpired)
	}

	return token, nil
}

// RevokeAllForUser invalidates every live refresh token of the user
func (m *TokenManager) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	revoked, err := m.storage.RefreshToken().RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("error while revoking user tokens. Err: %w", err)
	}
	return revoked, nil
}

// Parse and validate access token: signature with an allow-listed algorithm,
// expiry, issuer, audience, subject, issued-at and the access token type.
// A token missing any of those is rejected.
func (m *TokenManager) ParseAccess(ctx context.Context, access string) (AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}

	_, err := jwt.ParseWithClaims(
		access,
		claims,
		func(t *jwt.Token) (any, error) {
			return []byte(m.key), nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return AccessTokenClaims{}, fmt.Errorf("%w. Err: %w", apperrors.ErrInvalidAccessToken, err)
	}

	// Checks the parser does not enforce on its own
	switch {
	case claims.Subject == "":
		return AccessTokenClaims{}, fmt.Errorf("%w: token has no subject", apperrors.ErrInvalidAccessToken)
	case claims.IssuedAt == nil:
		return AccessTokenClaims{}, fmt.Errorf("%w: token has no issued-at", apperrors.ErrInvalidAccessToken)
	case claims.TokenType != accessTokenType:
		return AccessTokenClaims{}, fmt.Errorf("%w: unexpected token type %q", apperrors.ErrInvalidAccessToken, claims.TokenType)
	}

	return *claims, nil
}
