package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/akuznetsov/taskboard/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user with normalized email
	// If a user with the email exists already has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, email string, passwordHash string) (models.User, error)

	// Get user by id or normalized email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
}

// RefreshToken repository interface
// Tokens are addressed by their SHA-256 digest only, never by the raw secret
type RefreshTokenRepo interface {
	// Save token record
	// Token hash must be unique, the digest column is uniquely indexed
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Point lookup by digest (unique index)
	// If nothing found must return apperrors.ErrRefreshTokenNotFound
	GetByHash(ctx context.Context, tokenHash string) (models.RefreshToken, error)

	// Revoke the token if it is not revoked yet
	// Must not rewrite an existing revoked_at: the first revoker wins,
	// a second call has to return apperrors.ErrRefreshTokenRevoked
	Revoke(ctx context.Context, tokenHash string) (models.RefreshToken, error)

	// Revoke every live token of the user, returns the number of tokens touched
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)

	// Delete tokens that expired before the given moment, returns rows removed.
	// Revocation tombstones of live tokens must stay untouched
	DeleteExpiredBefore(ctx context.Context, moment time.Time) (int64, error)
}

// Filtering and ordering options for listing user tasks
type TaskFilter struct {
	Status   string
	Priority string
	Tags     []string
	SortBy   string
}

// Task repository interface
type TaskRepo interface {
	Create(ctx context.Context, task models.Task) (models.Task, error)

	// Get task by id regardless of the owner, ownership is the service's concern
	// If task not found must return apperrors.ErrTaskNotFound
	Get(ctx context.Context, taskID uuid.UUID) (models.Task, error)

	List(ctx context.Context, userID uuid.UUID, filter TaskFilter) ([]models.Task, error)

	// Full-row update, returns the stored task
	Update(ctx context.Context, task models.Task) (models.Task, error)

	// If task not found must return apperrors.ErrTaskNotFound
	Delete(ctx context.Context, taskID uuid.UUID) error
}

// Conversation repository interface, owns messages too
type ConversationRepo interface {
	Create(ctx context.Context, conv models.Conversation) (models.Conversation, error)

	// If conversation not found must return apperrors.ErrConversationNotFound
	Get(ctx context.Context, convID uuid.UUID) (models.Conversation, error)

	// Most recently updated first, limit must be positive
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Conversation, error)

	// Set title and touch updated_at
	SetTitle(ctx context.Context, convID uuid.UUID, title string) error

	TouchUpdatedAt(ctx context.Context, convID uuid.UUID, at time.Time) error

	// Deleting a conversation removes its messages as well
	Delete(ctx context.Context, convID uuid.UUID) error

	AddMessage(ctx context.Context, msg models.Message) (models.Message, error)

	// Chronological order
	ListMessages(ctx context.Context, convID uuid.UUID) ([]models.Message, error)
}

// Storage aggregates repositories over a single connection or transaction
type Storage interface {
	User() UserRepo
	RefreshToken() RefreshTokenRepo
	Task() TaskRepo
	Conversation() ConversationRepo

	// Run fn within a database transaction
	// The storage passed to fn operates on the transaction connection
	InTx(ctx context.Context, fn func(Storage) error) error
}
