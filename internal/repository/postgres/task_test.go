package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akuznetsov/taskboard/internal/apperrors"
	"github.com/akuznetsov/taskboard/internal/models"
	"github.com/akuznetsov/taskboard/internal/repository"
	"github.com/akuznetsov/taskboard/internal/testutil"
)

func Test_TaskRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	createUser := func(t *testing.T, tx pgx.Tx, email string) models.User {
		t.Helper()
		user, err := (&UserRepo{DB: tx}).CreateUser(t.Context(), email, "hashed-password")
		require.NoError(t, err)
		return user
	}

	t.Run("create fills defaults", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := TaskRepo{DB: tx}
			user := createUser(t, tx, "user@example.com")

			task, err := repo.Create(t.Context(), models.Task{
				UserID:   user.ID,
				Title:    "Buy milk",
				Status:   models.TaskStatusTodo,
				Priority: models.TaskPriorityMedium,
			})

			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, task.ID, "ID should be generated")
			assert.Equal(t, []string{}, task.Tags, "nil tags should come back as empty array")
			assert.WithinDuration(t, time.Now(), task.CreatedAt, time.Second)
			assert.WithinDuration(t, time.Now(), task.UpdatedAt, time.Second)
		})
	})

	t.Run("create keeps provided values", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := TaskRepo{DB: tx}
			user := createUser(t, tx, "user@example.com")

			given := models.Task{
				ID:          uuid.New(),
				UserID:      user.ID,
				Title:       "Plan the trip",
				Description: "Flights and hotel",
				Status:      models.TaskStatusInProgress,
				Priority:    models.TaskPriorityHigh,
				Tags:        []string{"travel", "urgent"},
				CreatedAt:   mustParseTime("2024-01-01 19:00:01Z"),
				UpdatedAt:   mustParseTime("2024-01-02 19:00:01Z"),
			}

			task, err := repo.Create(t.Context(), given)

			require.NoError(t, err)
			assert.Equal(t, given.ID, task.ID)
			assert.Equal(t, given.Title, task.Title)
			assert.Equal(t, given.Description, task.Description)
			assert.Equal(t, given.Status, task.Status)
			assert.Equal(t, given.Priority, task.Priority)
			assert.Equal(t, given.Tags, task.Tags, "text[] column should round trip")
			assert.WithinDuration(t, given.CreatedAt, task.CreatedAt, time.Microsecond)
			assert.WithinDuration(t, given.UpdatedAt, task.UpdatedAt, time.Microsecond)
		})
	})

	t.Run("get not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := TaskRepo{DB: tx}

			_, err := repo.Get(t.Context(), uuid.New())
			require.ErrorIs(t, err, apperrors.ErrTaskNotFound)
		})
	})

	t.Run("list returns empty slice for no tasks", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := TaskRepo{DB: tx}
			user := createUser(t, tx, "user@example.com")

			tasks, err := repo.List(t.Context(), user.ID, repository.TaskFilter{})

			require.NoError(t, err)
			require.NotNil(t, tasks, "no rows should still be a slice")
			require.Empty(t, tasks)
		})
	})

	t.Run("update rewrites the row and bumps updated_at", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := TaskRepo{DB: tx}
			user := createUser(t, tx, "user@example.com")

			created, err := repo.Create(t.Context(), models.Task{
				UserID:   user.ID,
				Title:    "Buy milk",
				Status:   models.TaskStatusTodo,
				Priority: models.TaskPriorityMedium,
			})
			require.NoError(t, err)

			created.Title = "Buy oat milk"
			created.Status = models.TaskStatusCompleted
			created.Tags = []string{"errands"}

			updated, err := repo.Update(t.Context(), created)

			require.NoError(t, err)
			assert.Equal(t, "Buy oat milk", updated.Title)
			assert.Equal(t, models.TaskStatusCompleted, updated.Status)
			assert.Equal(t, []string{"errands"}, updated.Tags)
			assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt), "updated_at must not move backwards")

			got, err := repo.Get(t.Context(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, "Buy oat milk", got.Title, "change should be persisted")
		})
	})

	t.Run("update not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := TaskRepo{DB: tx}

			_, err := repo.Update(t.Context(), models.Task{
				ID:       uuid.New(),
				Title:    "ghost",
				Status:   models.TaskStatusTodo,
				Priority: models.TaskPriorityLow,
			})
			require.ErrorIs(t, err, apperrors.ErrTaskNotFound)
		})
	})

	t.Run("delete task", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := TaskRepo{DB: tx}
			user := createUser(t, tx, "user@example.com")

			created, err := repo.Create(t.Context(), models.Task{
				UserID:   user.ID,
				Title:    "Buy milk",
				Status:   models.TaskStatusTodo,
				Priority: models.TaskPriorityMedium,
			})
			require.NoError(t, err)

			require.NoError(t, repo.Delete(t.Context(), created.ID))

			_, err = repo.Get(t.Context(), created.ID)
			require.ErrorIs(t, err, apperrors.ErrTaskNotFound)
		})
	})

	t.Run("delete not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := TaskRepo{DB: tx}

			err := repo.Delete(t.Context(), uuid.New())
			require.ErrorIs(t, err, apperrors.ErrTaskNotFound)
		})
	})

	t.Run("unknown sort value falls back to newest first", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := TaskRepo{DB: tx}
			user := createUser(t, tx, "user@example.com")

			older, err := repo.Create(t.Context(), models.Task{
				UserID: user.ID, Title: "older", Status: models.TaskStatusTodo, Priority: models.TaskPriorityLow,
				CreatedAt: mustParseTime("2024-01-01 10:00:00Z"), UpdatedAt: mustParseTime("2024-01-01 10:00:00Z"),
			})
			require.NoError(t, err)
			newer, err := repo.Create(t.Context(), models.Task{
				UserID: user.ID, Title: "newer", Status: models.TaskStatusTodo, Priority: models.TaskPriorityLow,
				CreatedAt: mustParseTime("2024-01-02 10:00:00Z"), UpdatedAt: mustParseTime("2024-01-02 10:00:00Z"),
			})
			require.NoError(t, err)

			tasks, err := repo.List(t.Context(), user.ID, repository.TaskFilter{SortBy: "something-else"})

			require.NoError(t, err)
			require.Len(t, tasks, 2)
			assert.Equal(t, newer.ID, tasks[0].ID)
			assert.Equal(t, older.ID, tasks[1].ID)
		})
	})
}
