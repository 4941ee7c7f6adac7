package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/akuznetsov/taskboard/internal/logger"
	"github.com/akuznetsov/taskboard/internal/repository/postgres"
	"github.com/akuznetsov/taskboard/internal/service/auth"
	"github.com/akuznetsov/taskboard/internal/service/auth/tokenmanager"
	"github.com/akuznetsov/taskboard/internal/service/conversation"
	"github.com/akuznetsov/taskboard/internal/service/task"
	"github.com/akuznetsov/taskboard/internal/testutil"
)

type conversationBody struct {
	ID    string  `json:"id"`
	Title *string `json:"title"`
}

type messageBody struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Role           string         `json:"role"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata"`
}

func Test_ConversationHandlers(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withRouter := func(t *testing.T, fn func(url string, access string, yaAccess string)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)

			tm, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret-key"}, storage)
			require.NoError(t, err, "token manager should be created without errors")

			svc, err := auth.NewAuthService(auth.Config{
				Hasher: auth.BcryptHasher{Cost: bcrypt.MinCost},
			}, tm, storage)
			require.NoError(t, err, "auth service should be created without errors")

			router := NewRouter(
				svc,
				task.NewService(storage.Task()),
				conversation.NewService(storage.Conversation()),
				tx.Conn().Ping,
				logger.NewNoOpLogger(),
			)
			srv := httptest.NewServer(router)
			defer srv.Close()

			user, err := svc.Register(t.Context(), "user@example.com", "Str0ng!Pass")
			require.NoError(t, err)
			yaUser, err := svc.Register(t.Context(), "ya-user@example.com", "Str0ng!Pass")
			require.NoError(t, err)

			fn(srv.URL, user.Pair.Access.Value, yaUser.Pair.Access.Value)
		})
	}

	createConv := func(t *testing.T, url string, access string, body string) conversationBody {
		t.Helper()

		resp, data := doRequest(t, http.MethodPost, url+"/api/chat/conversations", access, body)
		require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", data)

		var created conversationBody
		require.NoError(t, json.Unmarshal([]byte(data), &created))
		return created
	}

	t.Run("create without title", func(t *testing.T) {
		withRouter(t, func(url string, access string, yaAccess string) {
			created := createConv(t, url, access, `{}`)

			assert.NotEmpty(t, created.ID)
			assert.Nil(t, created.Title, "title should be null until the first user message")
		})
	})

	t.Run("create with title", func(t *testing.T) {
		withRouter(t, func(url string, access string, yaAccess string) {
			created := createConv(t, url, access, `{"title": "Week planning"}`)

			require.NotNil(t, created.Title)
			assert.Equal(t, "Week planning", *created.Title)
		})
	})

	t.Run("list own conversations", func(t *testing.T) {
		withRouter(t, func(url string, access string, yaAccess string) {
			createConv(t, url, access, `{"title": "first"}`)
			createConv(t, url, access, `{"title": "second"}`)
			createConv(t, url, yaAccess, `{"title": "other users"}`)

			type response struct {
				Conversations []conversationBody `json:"conversations"`
				Total         int                `json:"total"`
			}

			resp, body := doRequest(t, http.MethodGet, url+"/api/chat/conversations", access, "")

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			var res response
			require.NoError(t, json.Unmarshal([]byte(body), &res))
			require.Equal(t, 2, res.Total, "should list own conversations only")
		})
	})

	t.Run("first user message titles the conversation", func(t *testing.T) {
		withRouter(t, func(url string, access string, yaAccess string) {
			created := createConv(t, url, access, `{}`)

			data := `{"role": "user", "content": "Plan my week", "metadata": {"client": "web"}}`
			resp, body := doRequest(t, http.MethodPost, url+"/api/chat/conversations/"+created.ID+"/messages", access, data)

			require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)
			var msg messageBody
			require.NoError(t, json.Unmarshal([]byte(body), &msg))
			assert.Equal(t, "user", msg.Role)
			assert.Equal(t, "Plan my week", msg.Content)
			assert.Equal(t, map[string]any{"client": "web"}, msg.Metadata)

			type listResponse struct {
				Conversations []conversationBody `json:"conversations"`
			}
			resp, body = doRequest(t, http.MethodGet, url+"/api/chat/conversations", access, "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			var res listResponse
			require.NoError(t, json.Unmarshal([]byte(body), &res))
			require.Len(t, res.Conversations, 1)
			require.NotNil(t, res.Conversations[0].Title)
			assert.Equal(t, "Plan my week", *res.Conversations[0].Title)
		})
	})

	t.Run("message with unknown role", func(t *testing.T) {
		withRouter(t, func(url string, access string, yaAccess string) {
			created := createConv(t, url, access, `{}`)

			data := `{"role": "robot", "content": "beep"}`
			resp, body := doRequest(t, http.MethodPost, url+"/api/chat/conversations/"+created.ID+"/messages", access, data)

			require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "not expected code. Body: %s", body)
			assert.Contains(t, body, "validation_failed")
			assert.Contains(t, body, "user assistant system")
		})
	})

	t.Run("messages come back in order", func(t *testing.T) {
		withRouter(t, func(url string, access string, yaAccess string) {
			created := createConv(t, url, access, `{}`)

			messagesURL := url + "/api/chat/conversations/" + created.ID + "/messages"
			resp, _ := doRequest(t, http.MethodPost, messagesURL, access, `{"role": "user", "content": "hello"}`)
			require.Equal(t, http.StatusCreated, resp.StatusCode)
			resp, _ = doRequest(t, http.MethodPost, messagesURL, access, `{"role": "assistant", "content": "hi there"}`)
			require.Equal(t, http.StatusCreated, resp.StatusCode)

			type response struct {
				Messages []messageBody `json:"messages"`
				Total    int           `json:"total"`
			}

			resp, body := doRequest(t, http.MethodGet, messagesURL, access, "")

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			var res response
			require.NoError(t, json.Unmarshal([]byte(body), &res))
			require.Equal(t, 2, res.Total)
			assert.Equal(t, "hello", res.Messages[0].Content)
			assert.Equal(t, "hi there", res.Messages[1].Content)
			assert.Equal(t, map[string]any{}, res.Messages[0].Metadata, "missing metadata should come back empty")
		})
	})

	t.Run("foreign conversation is off limits", func(t *testing.T) {
		withRouter(t, func(url string, access string, yaAccess string) {
			created := createConv(t, url, access, `{}`)

			messagesURL := url + "/api/chat/conversations/" + created.ID + "/messages"
			resp, body := doRequest(t, http.MethodPost, messagesURL, yaAccess, `{"role": "user", "content": "sneaky"}`)

			require.Equalf(t, http.StatusForbidden, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Access denied"
				}`, body)
		})
	})

	t.Run("delete conversation with messages", func(t *testing.T) {
		withRouter(t, func(url string, access string, yaAccess string) {
			created := createConv(t, url, access, `{}`)
			messagesURL := url + "/api/chat/conversations/" + created.ID + "/messages"
			resp, _ := doRequest(t, http.MethodPost, messagesURL, access, `{"role": "user", "content": "hello"}`)
			require.Equal(t, http.StatusCreated, resp.StatusCode)

			resp, body := doRequest(t, http.MethodDelete, url+"/api/chat/conversations/"+created.ID, access, "")
			require.Equalf(t, http.StatusNoContent, resp.StatusCode, "not expected code. Body: %s", body)

			resp, _ = doRequest(t, http.MethodGet, messagesURL, access, "")
			require.Equal(t, http.StatusNotFound, resp.StatusCode)
		})
	})

	t.Run("malformed conversation id", func(t *testing.T) {
		withRouter(t, func(url string, access string, yaAccess string) {
			resp, body := doRequest(t, http.MethodDelete, url+"/api/chat/conversations/not-a-uuid", access, "")

			require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Invalid conversation id"
				}`, body)
		})
	})
}
