package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/akuznetsov/taskboard/internal/apperrors"
	"github.com/akuznetsov/taskboard/internal/handlers/render"
	"github.com/akuznetsov/taskboard/internal/handlers/userctx"
	"github.com/akuznetsov/taskboard/internal/logger"
	"github.com/akuznetsov/taskboard/internal/models"
	"github.com/akuznetsov/taskboard/internal/service/conversation"
)

type conversationResponse struct {
	ID        uuid.UUID `json:"id"`
	Title     *string   `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type messageResponse struct {
	ID             uuid.UUID      `json:"id"`
	ConversationID uuid.UUID      `json:"conversation_id"`
	Role           string         `json:"role"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata"`
	CreatedAt      time.Time      `json:"created_at"`
}

func newConversationResponse(c models.Conversation) conversationResponse {
	return conversationResponse{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func newMessageResponse(m models.Message) messageResponse {
	return messageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		Metadata:       m.Metadata,
		CreatedAt:      m.CreatedAt,
	}
}

func handleCreateConversation(convService conversationService, l logger.Logger) http.Handler {
	type request struct {
		Title string `json:"title"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		created, err := convService.Create(r.Context(), user.ID, data.Title)
		if err != nil {
			renderConversationError(w, l, err)
			return
		}

		render.JSONWithStatus(w, newConversationResponse(created), http.StatusCreated)
	})
}

func handleListConversations(convService conversationService, l logger.Logger) http.Handler {
	type response struct {
		Conversations []conversationResponse `json:"conversations"`
		Total         int                    `json:"total"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		// Absent or junk limit falls back to the service default
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		convs, err := convService.List(r.Context(), user.ID, limit)
		if err != nil {
			renderConversationError(w, l, err)
			return
		}

		res := response{Conversations: make([]conversationResponse, 0, len(convs)), Total: len(convs)}
		for _, c := range convs {
			res.Conversations = append(res.Conversations, newConversationResponse(c))
		}
		render.JSON(w, res)
	})
}

func handleAddMessage(convService conversationService, l logger.Logger) http.Handler {
	type request struct {
		Role     string         `json:"role" validate:"required,oneof=user assistant system"`
		Content  string         `json:"content" validate:"required"`
		Metadata map[string]any `json:"metadata"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		convID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Invalid conversation id", http.StatusBadRequest)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		msg, err := convService.AddMessage(r.Context(), user.ID, convID, conversation.MessageParams{
			Role:     data.Role,
			Content:  data.Content,
			Metadata: data.Metadata,
		})
		if err != nil {
			renderConversationError(w, l, err)
			return
		}

		render.JSONWithStatus(w, newMessageResponse(msg), http.StatusCreated)
	})
}

func handleListMessages(convService conversationService, l logger.Logger) http.Handler {
	type response struct {
		Messages []messageResponse `json:"messages"`
		Total    int               `json:"total"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		convID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Invalid conversation id", http.StatusBadRequest)
			return
		}

		msgs, err := convService.Messages(r.Context(), user.ID, convID)
		if err != nil {
			renderConversationError(w, l, err)
			return
		}

		res := response{Messages: make([]messageResponse, 0, len(msgs)), Total: len(msgs)}
		for _, m := range msgs {
			res.Messages = append(res.Messages, newMessageResponse(m))
		}
		render.JSON(w, res)
	})
}

func handleDeleteConversation(convService conversationService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		convID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Invalid conversation id", http.StatusBadRequest)
			return
		}

		if err := convService.Delete(r.Context(), user.ID, convID); err != nil {
			renderConversationError(w, l, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func renderConversationError(w http.ResponseWriter, l logger.Logger, err error) {
	switch {
	case errors.Is(err, apperrors.ErrConversationInvalid), errors.Is(err, apperrors.ErrMessageInvalid):
		render.ServiceError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrAccessDenied):
		render.ServiceError(w, "Access denied", http.StatusForbidden)
	case errors.Is(err, apperrors.ErrConversationNotFound):
		render.ServiceError(w, "Conversation not found", http.StatusNotFound)
	default:
		l.Error("Conversation operation failed", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}
