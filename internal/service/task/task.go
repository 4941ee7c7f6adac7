package task

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/akuznetsov/taskboard/internal/apperrors"
	"github.com/akuznetsov/taskboard/internal/models"
	"github.com/akuznetsov/taskboard/internal/repository"
)

const (
	maxTitleLen       = 255
	maxDescriptionLen = 5000
)

// Fields for a new task. Zero values for status and priority fall back
// to the defaults, tags may be nil.
type CreateParams struct {
	Title       string
	Description string
	Status      string
	Priority    string
	Tags        []string
}

// Patch for an existing task. Nil pointer means keep the stored value.
// For tags nil keeps the stored ones, an empty non-nil slice clears them.
type UpdateParams struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	Tags        []string
}

type TaskService struct {
	// Repository to access long term data
	taskRepo repository.TaskRepo
}

func NewService(taskRepo repository.TaskRepo) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
	}
}

// Create stores a task owned by the user
func (s *TaskService) Create(ctx context.Context, userID uuid.UUID, p CreateParams) (models.Task, error) {
	var task models.Task

	title, err := cleanTitle(p.Title)
	if err != nil {
		return task, err
	}
	description, err := cleanDescription(p.Description)
	if err != nil {
		return task, err
	}

	status := p.Status
	if status == "" {
		status = models.TaskStatusTodo
	}
	priority := p.Priority
	if priority == "" {
		priority = models.TaskPriorityMedium
	}
	if err := validateStatus(status); err != nil {
		return task, err
	}
	if err := validatePriority(priority); err != nil {
		return task, err
	}

	return s.taskRepo.Create(ctx, models.Task{
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      status,
		Priority:    priority,
		Tags:        NormalizeTags(p.Tags),
	})
}

// Get returns the task if it belongs to the user.
// A task of another user is reported as access denied, not as missing,
// while an unknown id stays a not-found.
func (s *TaskService) Get(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) (models.Task, error) {
	task, err := s.taskRepo.Get(ctx, taskID)
	if err != nil {
		return task, err
	}

	if task.UserID != userID {
		return models.Task{}, fmt.Errorf("%w: task belongs to another user", apperrors.ErrAccessDenied)
	}

	return task, nil
}

// List returns the user's tasks matching the filter.
// Unknown sort values fall back to newest first.
func (s *TaskService) List(ctx context.Context, userID uuid.UUID, filter repository.TaskFilter) ([]models.Task, error) {
	if filter.Status != "" {
		if err := validateStatus(filter.Status); err != nil {
			return nil, err
		}
	}
	if filter.Priority != "" {
		if err := validatePriority(filter.Priority); err != nil {
			return nil, err
		}
	}
	filter.Tags = NormalizeTags(filter.Tags)

	return s.taskRepo.List(ctx, userID, filter)
}

// Update patches the task with the provided fields only
func (s *TaskService) Update(ctx context.Context, userID uuid.UUID, taskID uuid.UUID, p UpdateParams) (models.Task, error) {
	task, err := s.Get(ctx, userID, taskID)
	if err != nil {
		return task, err
	}

	if p.Title != nil {
		task.Title, err = cleanTitle(*p.Title)
		if err != nil {
			return models.Task{}, err
		}
	}
	if p.Description != nil {
		task.Description, err = cleanDescription(*p.Description)
		if err != nil {
			return models.Task{}, err
		}
	}
	if p.Status != nil {
		if err := validateStatus(*p.Status); err != nil {
			return models.Task{}, err
		}
		task.Status = *p.Status
	}
	if p.Priority != nil {
		if err := validatePriority(*p.Priority); err != nil {
			return models.Task{}, err
		}
		task.Priority = *p.Priority
	}
	if p.Tags != nil {
		task.Tags = NormalizeTags(p.Tags)
	}

	return s.taskRepo.Update(ctx, task)
}

// Delete removes the user's task for good
func (s *TaskService) Delete(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) error {
	if _, err := s.Get(ctx, userID, taskID); err != nil {
		return err
	}

	return s.taskRepo.Delete(ctx, taskID)
}

func cleanTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	switch {
	case title == "":
		return "", fmt.Errorf("%w: title must not be empty", apperrors.ErrTaskInvalid)
	case len(title) > maxTitleLen:
		return "", fmt.Errorf("%w: title must not exceed %d characters", apperrors.ErrTaskInvalid, maxTitleLen)
	}
	return title, nil
}

func cleanDescription(description string) (string, error) {
	if len(description) > maxDescriptionLen {
		return "", fmt.Errorf("%w: description must not exceed %d characters", apperrors.ErrTaskInvalid, maxDescriptionLen)
	}
	return strings.TrimSpace(description), nil
}

func validateStatus(status string) error {
	switch status {
	case models.TaskStatusTodo, models.TaskStatusInProgress, models.TaskStatusCompleted:
		return nil
	}
	return fmt.Errorf("%w: unknown status %q", apperrors.ErrTaskInvalid, status)
}

func validatePriority(priority string) error {
	switch priority {
	case models.TaskPriorityLow, models.TaskPriorityMedium, models.TaskPriorityHigh:
		return nil
	}
	return fmt.Errorf("%w: unknown priority %q", apperrors.ErrTaskInvalid, priority)
}

// NormalizeTags lowercases, trims and deduplicates tags keeping their order.
// Empty tags are dropped, the result is never nil.
func NormalizeTags(tags []string) []string {
	normalized := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))

	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		normalized = append(normalized, tag)
	}

	return normalized
}
