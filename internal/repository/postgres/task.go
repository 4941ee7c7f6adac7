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
	"github.com/akuznetsov/taskboard/internal/repository"
)

type TaskRepo struct {
	DB DBTX
}

const createTask = `-- name: CreateTask
INSERT INTO tasks (id, user_id, title, description, status, priority, tags, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, user_id, title, description, status, priority, tags, created_at, updated_at
`

func (r *TaskRepo) Create(ctx context.Context, task models.Task) (models.Task, error) {
	now := time.Now().Truncate(time.Microsecond)

	// Task with defaults
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = now
	}
	if task.Tags == nil {
		task.Tags = []string{}
	}

	rows, _ := r.DB.Query(ctx, createTask,
		task.ID, task.UserID, task.Title, task.Description, task.Status, task.Priority, task.Tags, task.CreatedAt, task.UpdatedAt)
	created, err := pgx.CollectOneRow(rows, rowToTask)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

const getTask = `-- name: GetTask
SELECT id, user_id, title, description, status, priority, tags, created_at, updated_at
FROM tasks
WHERE id = $1
`

func (r *TaskRepo) Get(ctx context.Context, taskID uuid.UUID) (models.Task, error) {
	rows, _ := r.DB.Query(ctx, getTask, taskID)
	task, err := pgx.CollectOneRow(rows, rowToTask)

	switch {
	case err == nil:
		return task, nil
	case errors.Is(err, pgx.ErrNoRows):
		return task, apperrors.ErrTaskNotFound
	default:
		return task, fmt.Errorf("db error: %w", err)
	}
}

func (r *TaskRepo) List(ctx context.Context, userID uuid.UUID, filter repository.TaskFilter) ([]models.Task, error) {
	query := `-- name: ListTasks
SELECT id, user_id, title, description, status, priority, tags, created_at, updated_at
FROM tasks
WHERE user_id = $1`
	args := []any{userID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		query += fmt.Sprintf(" AND priority = $%d", len(args))
	}
	if len(filter.Tags) > 0 {
		// Task must carry every requested tag
		args = append(args, filter.Tags)
		query += fmt.Sprintf(" AND tags @> $%d", len(args))
	}

	query += " ORDER BY " + taskOrderClause(filter.SortBy)

	rows, _ := r.DB.Query(ctx, query, args...)
	tasks, err := pgx.CollectRows(rows, rowToTask)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return tasks, nil
}

// Sort keys are whitelisted here, the raw filter value never reaches SQL
func taskOrderClause(sortBy string) string {
	switch sortBy {
	case "updated_at":
		return "updated_at DESC"
	case "priority": // high > medium > low
		return "CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC, created_at DESC"
	case "status": // todo > in-progress > completed
		return "CASE status WHEN 'todo' THEN 1 WHEN 'in-progress' THEN 2 ELSE 3 END, created_at DESC"
	default:
		return "created_at DESC"
	}
}

const updateTask = `-- name: UpdateTask
UPDATE tasks
SET title = $2, description = $3, status = $4, priority = $5, tags = $6, updated_at = $7
WHERE id = $1
RETURNING id, user_id, title, description, status, priority, tags, created_at, updated_at
`

func (r *TaskRepo) Update(ctx context.Context, task models.Task) (models.Task, error) {
	now := time.Now().Truncate(time.Microsecond)
	rows, _ := r.DB.Query(ctx, updateTask,
		task.ID, task.Title, task.Description, task.Status, task.Priority, task.Tags, now)
	updated, err := pgx.CollectOneRow(rows, rowToTask)

	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, pgx.ErrNoRows):
		return updated, apperrors.ErrTaskNotFound
	default:
		return updated, fmt.Errorf("db error: %w", err)
	}
}

const deleteTask = `-- name: DeleteTask
DELETE FROM tasks
WHERE id = $1
`

func (r *TaskRepo) Delete(ctx context.Context, taskID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteTask, taskID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrTaskNotFound
	}
	return nil
}

func rowToTask(row pgx.CollectableRow) (models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Tags, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}
