package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/akuznetsov/taskboard/internal/apperrors"
	"github.com/akuznetsov/taskboard/internal/models"
	"github.com/akuznetsov/taskboard/internal/repository"
)

const (
	defaultListLimit = 50
	maxTitleLen      = 255

	// Untitled conversations pick up a title from the first user message,
	// cut down to this many letters
	maxAutoTitleLen = 50
)

// A message to append to a conversation
type MessageParams struct {
	Role     string
	Content  string
	Metadata map[string]any
}

type ConversationService struct {
	// Repository to access long term data
	convRepo repository.ConversationRepo
}

func NewService(convRepo repository.ConversationRepo) *ConversationService {
	return &ConversationService{
		convRepo: convRepo,
	}
}

// Create starts a conversation, the title may be left empty
func (s *ConversationService) Create(ctx context.Context, userID uuid.UUID, title string) (models.Conversation, error) {
	title = strings.TrimSpace(title)
	if len(title) > maxTitleLen {
		return models.Conversation{}, fmt.Errorf("%w: title must not exceed %d characters", apperrors.ErrConversationInvalid, maxTitleLen)
	}

	conv := models.Conversation{UserID: userID}
	if title != "" {
		conv.Title = &title
	}

	return s.convRepo.Create(ctx, conv)
}

// Get returns the conversation if it belongs to the user.
// Someone else's conversation is access denied, an unknown id is not found.
func (s *ConversationService) Get(ctx context.Context, userID uuid.UUID, convID uuid.UUID) (models.Conversation, error) {
	conv, err := s.convRepo.Get(ctx, convID)
	if err != nil {
		return conv, err
	}

	if conv.UserID != userID {
		return models.Conversation{}, fmt.Errorf("%w: conversation belongs to another user", apperrors.ErrAccessDenied)
	}

	return conv, nil
}

// List returns the user's conversations, most recently updated first
func (s *ConversationService) List(ctx context.Context, userID uuid.UUID, limit int) ([]models.Conversation, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	return s.convRepo.ListForUser(ctx, userID, limit)
}

// AddMessage appends a message and touches the conversation.
// The first user message titles a conversation that has no title yet.
func (s *ConversationService) AddMessage(ctx context.Context, userID uuid.UUID, convID uuid.UUID, p MessageParams) (models.Message, error) {
	var msg models.Message

	switch p.Role {
	case models.MessageRoleUser, models.MessageRoleAssistant, models.MessageRoleSystem:
	default:
		return msg, fmt.Errorf("%w: unknown role %q", apperrors.ErrMessageInvalid, p.Role)
	}
	if strings.TrimSpace(p.Content) == "" {
		return msg, fmt.Errorf("%w: content must not be empty", apperrors.ErrMessageInvalid)
	}

	conv, err := s.Get(ctx, userID, convID)
	if err != nil {
		return msg, err
	}

	msg, err = s.convRepo.AddMessage(ctx, models.Message{
		ConversationID: convID,
		Role:           p.Role,
		Content:        p.Content,
		Metadata:       p.Metadata,
	})
	if err != nil {
		return msg, err
	}

	if conv.Title == nil && p.Role == models.MessageRoleUser {
		// SetTitle touches updated_at as well
		err = s.convRepo.SetTitle(ctx, convID, autoTitle(p.Content))
	} else {
		err = s.convRepo.TouchUpdatedAt(ctx, convID, time.Now().Truncate(time.Microsecond))
	}
	if err != nil {
		return msg, err
	}

	return msg, nil
}

// Messages returns every message of the conversation, oldest first
func (s *ConversationService) Messages(ctx context.Context, userID uuid.UUID, convID uuid.UUID) ([]models.Message, error) {
	if _, err := s.Get(ctx, userID, convID); err != nil {
		return nil, err
	}

	return s.convRepo.ListMessages(ctx, convID)
}

// Delete removes the conversation together with its messages
func (s *ConversationService) Delete(ctx context.Context, userID uuid.UUID, convID uuid.UUID) error {
	if _, err := s.Get(ctx, userID, convID); err != nil {
		return err
	}

	return s.convRepo.Delete(ctx, convID)
}

func autoTitle(content string) string {
	// Collapse runs of whitespace so multiline messages read as one line
	title := strings.Join(strings.Fields(content), " ")

	runes := []rune(title)
	if len(runes) > maxAutoTitleLen {
		title = string(runes[:maxAutoTitleLen])
	}
	return title
}
