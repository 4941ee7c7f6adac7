package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/akuznetsov/taskboard/internal/apperrors"
	"github.com/akuznetsov/taskboard/internal/models"
)

type ConversationRepo struct {
	DB DBTX
}

const createConversation = `-- name: CreateConversation
INSERT INTO conversations (id, user_id, title, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, user_id, title, created_at, updated_at
`

func (r *ConversationRepo) Create(ctx context.Context, conv models.Conversation) (models.Conversation, error) {
	now := time.Now().Truncate(time.Microsecond)

	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = now
	}

	rows, _ := r.DB.Query(ctx, createConversation, conv.ID, conv.UserID, conv.Title, conv.CreatedAt, conv.UpdatedAt)
	created, err := pgx.CollectOneRow(rows, rowToConversation)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

const getConversation = `-- name: GetConversation
SELECT id, user_id, title, created_at, updated_at
FROM conversations
WHERE id = $1
`

func (r *ConversationRepo) Get(ctx context.Context, convID uuid.UUID) (models.Conversation, error) {
	rows, _ := r.DB.Query(ctx, getConversation, convID)
	conv, err := pgx.CollectOneRow(rows, rowToConversation)

	switch {
	case err == nil:
		return conv, nil
	case errors.Is(err, pgx.ErrNoRows):
		return conv, apperrors.ErrConversationNotFound
	default:
		return conv, fmt.Errorf("db error: %w", err)
	}
}

const listConversationsForUser = `-- name: ListConversationsForUser
SELECT id, user_id, title, created_at, updated_at
FROM conversations
WHERE user_id = $1
ORDER BY updated_at DESC
LIMIT $2
`

func (r *ConversationRepo) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Conversation, error) {
	rows, _ := r.DB.Query(ctx, listConversationsForUser, userID, limit)
	convs, err := pgx.CollectRows(rows, rowToConversation)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return convs, nil
}

const setConversationTitle = `-- name: SetConversationTitle
UPDATE conversations
SET title = $2, updated_at = $3
WHERE id = $1
`

func (r *ConversationRepo) SetTitle(ctx context.Context, convID uuid.UUID, title string) error {
	now := time.Now().Truncate(time.Microsecond)
	tag, err := r.DB.Exec(ctx, setConversationTitle, convID, title, now)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConversationNotFound
	}
	return nil
}

const touchConversation = `-- name: TouchConversation
UPDATE conversations
SET updated_at = $2
WHERE id = $1
`

func (r *ConversationRepo) TouchUpdatedAt(ctx context.Context, convID uuid.UUID, at time.Time) error {
	tag, err := r.DB.Exec(ctx, touchConversation, convID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConversationNotFound
	}
	return nil
}

const deleteConversation = `-- name: DeleteConversation
DELETE FROM conversations
WHERE id = $1
`

// Messages go with the conversation, the FK cascades
func (r *ConversationRepo) Delete(ctx context.Context, convID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteConversation, convID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConversationNotFound
	}
	return nil
}

const addMessage = `-- name: AddMessage
INSERT INTO messages (id, conversation_id, role, content, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, conversation_id, role, content, metadata, created_at
`

func (r *ConversationRepo) AddMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().Truncate(time.Microsecond)
	}
	if msg.Metadata == nil {
		msg.Metadata = map[string]any{}
	}

	rows, _ := r.DB.Query(ctx, addMessage, msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.Metadata, msg.CreatedAt)
	created, err := pgx.CollectOneRow(rows, rowToMessage)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

const listMessages = `-- name: ListMessages
SELECT id, conversation_id, role, content, metadata, created_at
FROM messages
WHERE conversation_id = $1
ORDER BY created_at
`

func (r *ConversationRepo) ListMessages(ctx context.Context, convID uuid.UUID) ([]models.Message, error) {
	rows, _ := r.DB.Query(ctx, listMessages, convID)
	msgs, err := pgx.CollectRows(rows, rowToMessage)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return msgs, nil
}

func rowToConversation(row pgx.CollectableRow) (models.Conversation, error) {
	var c models.Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func rowToMessage(row pgx.CollectableRow) (models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Metadata, &m.CreatedAt)
	return m, err
}
