package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleSystem    = "system"
)

type Conversation struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Title     *string // nil until set explicitly or taken from the first user message
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Role           string
	Content        string
	Metadata       map[string]any
	CreatedAt      time.Time
}
