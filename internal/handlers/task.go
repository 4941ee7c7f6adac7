package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/akuznetsov/taskboard/internal/apperrors"
	"github.com/akuznetsov/taskboard/internal/handlers/render"
	"github.com/akuznetsov/taskboard/internal/handlers/userctx"
	"github.com/akuznetsov/taskboard/internal/logger"
	"github.com/akuznetsov/taskboard/internal/models"
	"github.com/akuznetsov/taskboard/internal/repository"
	"github.com/akuznetsov/taskboard/internal/service/task"
)

type taskResponse struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newTaskResponse(t models.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		Tags:        t.Tags,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func handleCreateTask(taskService taskService, l logger.Logger) http.Handler {
	type request struct {
		Title       string   `json:"title" validate:"required,max=255"`
		Description string   `json:"description" validate:"omitempty,max=5000"`
		Status      string   `json:"status" validate:"omitempty,oneof=todo in-progress completed"`
		Priority    string   `json:"priority" validate:"omitempty,oneof=low medium high"`
		Tags        []string `json:"tags"`
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

		created, err := taskService.Create(r.Context(), user.ID, task.CreateParams{
			Title:       data.Title,
			Description: data.Description,
			Status:      data.Status,
			Priority:    data.Priority,
			Tags:        data.Tags,
		})
		if err != nil {
			renderTaskError(w, l, err)
			return
		}

		render.JSONWithStatus(w, newTaskResponse(created), http.StatusCreated)
	})
}

func handleListTasks(taskService taskService, l logger.Logger) http.Handler {
	type response struct {
		Tasks []taskResponse `json:"tasks"`
		Total int            `json:"total"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		query := r.URL.Query()
		filter := repository.TaskFilter{
			Status:   query.Get("status"),
			Priority: query.Get("priority"),
			SortBy:   query.Get("sort_by"),
		}
		if tags := query.Get("tags"); tags != "" {
			filter.Tags = strings.Split(tags, ",")
		}

		tasks, err := taskService.List(r.Context(), user.ID, filter)
		if err != nil {
			renderTaskError(w, l, err)
			return
		}

		res := response{Tasks: make([]taskResponse, 0, len(tasks)), Total: len(tasks)}
		for _, t := range tasks {
			res.Tasks = append(res.Tasks, newTaskResponse(t))
		}
		render.JSON(w, res)
	})
}

func handleGetTask(taskService taskService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		taskID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Invalid task id", http.StatusBadRequest)
			return
		}

		found, err := taskService.Get(r.Context(), user.ID, taskID)
		if err != nil {
			renderTaskError(w, l, err)
			return
		}

		render.JSON(w, newTaskResponse(found))
	})
}

func handleUpdateTask(taskService taskService, l logger.Logger) http.Handler {
	type request struct {
		Title       *string  `json:"title" validate:"omitempty,max=255"`
		Description *string  `json:"description" validate:"omitempty,max=5000"`
		Status      *string  `json:"status" validate:"omitempty,oneof=todo in-progress completed"`
		Priority    *string  `json:"priority" validate:"omitempty,oneof=low medium high"`
		Tags        []string `json:"tags"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		taskID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Invalid task id", http.StatusBadRequest)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		updated, err := taskService.Update(r.Context(), user.ID, taskID, task.UpdateParams{
			Title:       data.Title,
			Description: data.Description,
			Status:      data.Status,
			Priority:    data.Priority,
			Tags:        data.Tags,
		})
		if err != nil {
			renderTaskError(w, l, err)
			return
		}

		render.JSON(w, newTaskResponse(updated))
	})
}

func handleDeleteTask(taskService taskService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		taskID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Invalid task id", http.StatusBadRequest)
			return
		}

		if err := taskService.Delete(r.Context(), user.ID, taskID); err != nil {
			renderTaskError(w, l, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func renderTaskError(w http.ResponseWriter, l logger.Logger, err error) {
	switch {
	case errors.Is(err, apperrors.ErrTaskInvalid):
		render.ServiceError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrAccessDenied):
		render.ServiceError(w, "Access denied", http.StatusForbidden)
	case errors.Is(err, apperrors.ErrTaskNotFound):
		render.ServiceError(w, "Task not found", http.StatusNotFound)
	default:
		l.Error("Task operation failed", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}
