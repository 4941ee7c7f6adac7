// Package mcpserver exposes task operations as MCP tools over stdio, so
// MCP clients (AI assistants mostly) can manage tasks on behalf of a user.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/akuznetsov/taskboard/internal/logger"
	"github.com/akuznetsov/taskboard/internal/models"
	"github.com/akuznetsov/taskboard/internal/repository"
	"github.com/akuznetsov/taskboard/internal/service/task"
)

const (
	serverName    = "taskboard-mcp"
	serverVersion = "0.1.0"
)

// Task service the tools are built on
//
// Has to return apperrors.ErrTaskNotFound, apperrors.ErrAccessDenied or
// apperrors.ErrTaskInvalid the same way the HTTP layer expects them.
type taskService interface {
	Create(ctx context.Context, userID uuid.UUID, p task.CreateParams) (models.Task, error)
	Get(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) (models.Task, error)
	List(ctx context.Context, userID uuid.UUID, filter repository.TaskFilter) ([]models.Task, error)
	Update(ctx context.Context, userID uuid.UUID, taskID uuid.UUID, p task.UpdateParams) (models.Task, error)
	Delete(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) error
}

type Config struct {
	// User all tool calls act as. The stdio transport carries no
	// authentication, the server is started for exactly one user.
	UserID uuid.UUID

	// NoOp logger when nil
	Logger logger.Logger
}

type Server struct {
	mcpServer *mcp.Server
	logger    logger.Logger
}

func New(cfg Config, tasks taskService) (*Server, error) {
	if cfg.UserID == uuid.Nil {
		return nil, errors.New("user id must be set")
	}
	if tasks == nil {
		return nil, errors.New("task service must not be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)

	mcp.AddTool(mcpServer, addTaskTool(), addTaskHandler(tasks, cfg.UserID))
	mcp.AddTool(mcpServer, listTasksTool(), listTasksHandler(tasks, cfg.UserID))
	mcp.AddTool(mcpServer, completeTaskTool(), completeTaskHandler(tasks, cfg.UserID))
	mcp.AddTool(mcpServer, updateTaskTool(), updateTaskHandler(tasks, cfg.UserID))
	mcp.AddTool(mcpServer, deleteTaskTool(), deleteTaskHandler(tasks, cfg.UserID))

	return &Server{mcpServer: mcpServer, logger: cfg.Logger}, nil
}

// Serve runs the server on stdio until the client disconnects or the
// context is canceled. Cancellation is a normal way to stop, not an error.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("Starting MCP server on stdio")

	err := s.mcpServer.Run(ctx, &mcp.StdioTransport{})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}

	s.logger.Info("MCP server stopped")
	return nil
}
