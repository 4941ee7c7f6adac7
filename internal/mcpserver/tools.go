package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/akuznetsov/taskboard/internal/models"
	"github.com/akuznetsov/taskboard/internal/repository"
	"github.com/akuznetsov/taskboard/internal/service/task"
)

// Tool calls hit the database directly, anything slower than this is broken
const toolTimeout = 5 * time.Second

// TaskResult represents a task in MCP tool output.
type TaskResult struct {
	ID          string   `json:"id" jsonschema:"task identifier"`
	Title       string   `json:"title" jsonschema:"task title"`
	Description string   `json:"description,omitempty" jsonschema:"task description"`
	Status      string   `json:"status" jsonschema:"task status (todo, in-progress, completed)"`
	Priority    string   `json:"priority" jsonschema:"task priority (low, medium, high)"`
	Tags        []string `json:"tags,omitempty" jsonschema:"task tags"`
	CreatedAt   string   `json:"created_at" jsonschema:"creation time, RFC 3339"`
	UpdatedAt   string   `json:"updated_at" jsonschema:"last update time, RFC 3339"`
}

func newTaskResult(t models.Task) TaskResult {
	return TaskResult{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		Tags:        t.Tags,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
	}
}

// AddTaskInput represents the MCP tool input for task creation.
type AddTaskInput struct {
	Title       string   `json:"title" jsonschema:"task title"`
	Description string   `json:"description,omitempty" jsonschema:"optional longer description"`
	Priority    string   `json:"priority,omitempty" jsonschema:"task priority (low, medium, high), medium when omitted"`
	Tags        []string `json:"tags,omitempty" jsonschema:"tags to attach to the task"`
}

func addTaskTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "add_task",
		Description: "Creates a task for the current user, new tasks start in the todo status",
	}
}

func addTaskHandler(s taskService, userID uuid.UUID) mcp.ToolHandlerFor[AddTaskInput, TaskResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AddTaskInput) (*mcp.CallToolResult, TaskResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, toolTimeout)
		defer cancel()

		created, err := s.Create(runCtx, userID, task.CreateParams{
			Title:       input.Title,
			Description: input.Description,
			Priority:    input.Priority,
			Tags:        input.Tags,
		})
		if err != nil {
			return nil, TaskResult{}, fmt.Errorf("add task failed: %w", err)
		}

		return nil, newTaskResult(created), nil
	}
}

// ListTasksInput represents the MCP tool input for task listing.
type ListTasksInput struct {
	Status   string   `json:"status,omitempty" jsonschema:"filter by status (todo, in-progress, completed)"`
	Priority string   `json:"priority,omitempty" jsonschema:"filter by priority (low, medium, high)"`
	Tags     []string `json:"tags,omitempty" jsonschema:"only tasks carrying all of these tags"`
	SortBy   string   `json:"sort_by,omitempty" jsonschema:"sort order (created_at, updated_at, priority, status), newest first when omitted"`
}

// ListTasksResult represents the MCP tool output for task listing.
type ListTasksResult struct {
	Tasks []TaskResult `json:"tasks" jsonschema:"tasks matching the filter"`
	Total int          `json:"total" jsonschema:"number of tasks returned"`
}

func listTasksTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_tasks",
		Description: "Lists tasks of the current user, optionally filtered by status, priority or tags",
	}
}

func listTasksHandler(s taskService, userID uuid.UUID) mcp.ToolHandlerFor[ListTasksInput, ListTasksResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListTasksInput) (*mcp.CallToolResult, ListTasksResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, toolTimeout)
		defer cancel()

		tasks, err := s.List(runCtx, userID, repository.TaskFilter{
			Status:   input.Status,
			Priority: input.Priority,
			Tags:     input.Tags,
			SortBy:   input.SortBy,
		})
		if err != nil {
			return nil, ListTasksResult{}, fmt.Errorf("list tasks failed: %w", err)
		}

		result := ListTasksResult{
			Tasks: make([]TaskResult, 0, len(tasks)),
			Total: len(tasks),
		}
		for _, t := range tasks {
			result.Tasks = append(result.Tasks, newTaskResult(t))
		}

		return nil, result, nil
	}
}

// CompleteTaskInput represents the MCP tool input for completing a task.
type CompleteTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"identifier of the task to complete"`
}

func completeTaskTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "complete_task",
		Description: "Marks a task as completed",
	}
}

func completeTaskHandler(s taskService, userID uuid.UUID) mcp.ToolHandlerFor[CompleteTaskInput, TaskResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CompleteTaskInput) (*mcp.CallToolResult, TaskResult, error) {
		taskID, err := parseTaskID(input.TaskID)
		if err != nil {
			return nil, TaskResult{}, err
		}

		runCtx, cancel := context.WithTimeout(ctx, toolTimeout)
		defer cancel()

		completed := models.TaskStatusCompleted
		updated, err := s.Update(runCtx, userID, taskID, task.UpdateParams{Status: &completed})
		if err != nil {
			return nil, TaskResult{}, fmt.Errorf("complete task failed: %w", err)
		}

		return nil, newTaskResult(updated), nil
	}
}

// UpdateTaskInput represents the MCP tool input for a task patch.
// Omitted fields keep their stored values.
type UpdateTaskInput struct {
	TaskID      string   `json:"task_id" jsonschema:"identifier of the task to update"`
	Title       *string  `json:"title,omitempty" jsonschema:"new title"`
	Description *string  `json:"description,omitempty" jsonschema:"new description"`
	Status      *string  `json:"status,omitempty" jsonschema:"new status (todo, in-progress, completed)"`
	Priority    *string  `json:"priority,omitempty" jsonschema:"new priority (low, medium, high)"`
	Tags        []string `json:"tags,omitempty" jsonschema:"replacement tags, omitted keeps the stored ones"`
}

func updateTaskTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "update_task",
		Description: "Updates the given fields of a task, the rest stay as they are",
	}
}

func updateTaskHandler(s taskService, userID uuid.UUID) mcp.ToolHandlerFor[UpdateTaskInput, TaskResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input UpdateTaskInput) (*mcp.CallToolResult, TaskResult, error) {
		taskID, err := parseTaskID(input.TaskID)
		if err != nil {
			return nil, TaskResult{}, err
		}

		runCtx, cancel := context.WithTimeout(ctx, toolTimeout)
		defer cancel()

		updated, err := s.Update(runCtx, userID, taskID, task.UpdateParams{
			Title:       input.Title,
			Description: input.Description,
			Status:      input.Status,
			Priority:    input.Priority,
			Tags:        input.Tags,
		})
		if err != nil {
			return nil, TaskResult{}, fmt.Errorf("update task failed: %w", err)
		}

		return nil, newTaskResult(updated), nil
	}
}

// DeleteTaskInput represents the MCP tool input for task deletion.
type DeleteTaskInput struct {
	TaskID  string `json:"task_id" jsonschema:"identifier of the task to delete"`
	Confirm bool   `json:"confirm,omitempty" jsonschema:"must be true to actually delete the task"`
}

// DeleteTaskResult represents the MCP tool output for task deletion.
type DeleteTaskResult struct {
	Deleted bool   `json:"deleted" jsonschema:"whether the task was deleted"`
	Message string `json:"message" jsonschema:"what happened or what to do next"`
}

func deleteTaskTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "delete_task",
		Description: "Deletes a task. Destructive, asks for confirmation unless confirm is already true",
	}
}

func deleteTaskHandler(s taskService, userID uuid.UUID) mcp.ToolHandlerFor[DeleteTaskInput, DeleteTaskResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeleteTaskInput) (*mcp.CallToolResult, DeleteTaskResult, error) {
		taskID, err := parseTaskID(input.TaskID)
		if err != nil {
			return nil, DeleteTaskResult{}, err
		}

		runCtx, cancel := context.WithTimeout(ctx, toolTimeout)
		defer cancel()

		if !input.Confirm {
			// Name the task in the confirmation so the user knows what
			// they are about to lose
			t, err := s.Get(runCtx, userID, taskID)
			if err != nil {
				return nil, DeleteTaskResult{}, fmt.Errorf("delete task failed: %w", err)
			}

			return nil, DeleteTaskResult{
				Deleted: false,
				Message: fmt.Sprintf("Confirmation required: call delete_task again with confirm set to true to delete %q", t.Title),
			}, nil
		}

		if err := s.Delete(runCtx, userID, taskID); err != nil {
			return nil, DeleteTaskResult{}, fmt.Errorf("delete task failed: %w", err)
		}

		return nil, DeleteTaskResult{Deleted: true, Message: "Task deleted"}, nil
	}
}

func parseTaskID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid task id %q", raw)
	}
	return id, nil
}
