package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akuznetsov/taskboard/internal/handlers/middleware"
	"github.com/akuznetsov/taskboard/internal/logger"
	"github.com/akuznetsov/taskboard/internal/models"
	"github.com/akuznetsov/taskboard/internal/repository"
	"github.com/akuznetsov/taskboard/internal/service/auth"
	"github.com/akuznetsov/taskboard/internal/service/conversation"
	"github.com/akuznetsov/taskboard/internal/service/task"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	taskService taskService,
	convService conversationService,
	ping func(ctx context.Context) error,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.Auth(authService)

	api := http.NewServeMux()

	api.Handle("POST /auth/register", handleRegister(authService, logger))
	api.Handle("POST /auth/login", handleLogin(authService, logger))
	api.Handle("POST /auth/refresh", handleTokenRefresh(authService, logger))
	api.Handle("POST /auth/logout", withAuth(handleLogout(authService, logger)))
	api.Handle("GET /auth/me", withAuth(handleUserMe()))

	api.Handle("POST /tasks", withAuth(handleCreateTask(taskService, logger)))
	api.Handle("GET /tasks", withAuth(handleListTasks(taskService, logger)))
	api.Handle("GET /tasks/{id}", withAuth(handleGetTask(taskService, logger)))
	api.Handle("PATCH /tasks/{id}", withAuth(handleUpdateTask(taskService, logger)))
	api.Handle("DELETE /tasks/{id}", withAuth(handleDeleteTask(taskService, logger)))

	api.Handle("POST /chat/conversations", withAuth(handleCreateConversation(convService, logger)))
	api.Handle("GET /chat/conversations", withAuth(handleListConversations(convService, logger)))
	api.Handle("POST /chat/conversations/{id}/messages", withAuth(handleAddMessage(convService, logger)))
	api.Handle("GET /chat/conversations/{id}/messages", withAuth(handleListMessages(convService, logger)))
	api.Handle("DELETE /chat/conversations/{id}", withAuth(handleDeleteConversation(convService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))
	root.Handle("GET /health", handleHealth(ping))
	root.Handle("GET /metrics", promhttp.Handler())

	handler := chain(root,
		middleware.Logger(logger),
		middleware.Metrics(),
	)

	return handler
}

type authService interface {
	// Register user with email and password
	// Has to return apperrors.ErrUserAlreadyExists if email is taken,
	// apperrors.ErrEmailInvalid or apperrors.ErrPasswordTooWeak on bad input
	Register(ctx context.Context, email string, password string) (auth.AuthResult, error)

	// Login user with email and password
	// Has to return apperrors.ErrInvalidCredentials on any credential failure
	// and *apperrors.RateLimitError when attempts are exhausted
	Login(ctx context.Context, email string, password string) (auth.AuthResult, error)

	// Rotate the pair for a valid refresh secret
	// Has to return apperrors.ErrInvalidRefreshToken otherwise
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	// Revoke every live refresh token of the user
	Logout(ctx context.Context, userID uuid.UUID) error

	// Resolve a raw access token into the user it belongs to
	Authenticate(ctx context.Context, access string) (models.User, error)

	// How long issued access tokens live
	AccessTTL() time.Duration
}

type taskService interface {
	Create(ctx context.Context, userID uuid.UUID, p task.CreateParams) (models.Task, error)
	Get(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) (models.Task, error)
	List(ctx context.Context, userID uuid.UUID, filter repository.TaskFilter) ([]models.Task, error)
	Update(ctx context.Context, userID uuid.UUID, taskID uuid.UUID, p task.UpdateParams) (models.Task, error)
	Delete(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) error
}

type conversationService interface {
	Create(ctx context.Context, userID uuid.UUID, title string) (models.Conversation, error)
	List(ctx context.Context, userID uuid.UUID, limit int) ([]models.Conversation, error)
	AddMessage(ctx context.Context, userID uuid.UUID, convID uuid.UUID, p conversation.MessageParams) (models.Message, error)
	Messages(ctx context.Context, userID uuid.UUID, convID uuid.UUID) ([]models.Message, error)
	Delete(ctx context.Context, userID uuid.UUID, convID uuid.UUID) error
}
