package e2e

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/akuznetsov/taskboard/internal/handlers"
	"github.com/akuznetsov/taskboard/internal/logger"
	"github.com/akuznetsov/taskboard/internal/repository/postgres"
	"github.com/akuznetsov/taskboard/internal/service/auth"
	"github.com/akuznetsov/taskboard/internal/service/auth/tokenmanager"
	"github.com/akuznetsov/taskboard/internal/service/conversation"
	"github.com/akuznetsov/taskboard/internal/service/task"
	"github.com/akuznetsov/taskboard/internal/testutil"
)

type Services struct {
	AuthService         *auth.AuthService
	TaskService         *task.TaskService
	ConversationService *conversation.ConversationService
}

// Create db transaction and run server with that connection (one connection cause one transaction)
// The created transaction passed to inner function: so, you can safely use testutil.WithTx with it
func ServeWithTx(dbpool *pgxpool.Pool, t *testing.T, fn func(tx pgx.Tx, srvURL string, services Services)) {
	testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
		// Initialize repositories
		storage := postgres.NewStorage(tx)

		// Initialize services
		tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"}, storage)
		require.NoError(t, err, "token manager should be created without errors")

		as, err := auth.NewAuthService(auth.Config{
			Hasher: auth.BcryptHasher{Cost: bcrypt.MinCost},
		}, tokenManager, storage)
		require.NoError(t, err, "auth service should be created without errors")

		ts := task.NewService(storage.Task())
		cs := conversation.NewService(storage.Conversation())

		// Complete all together as router and run http server in transaction
		router := handlers.NewRouter(as, ts, cs, tx.Conn().Ping, logger.NewNoOpLogger())
		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(tx, srv.URL, Services{
			AuthService:         as,
			TaskService:         ts,
			ConversationService: cs,
		})
	})
}

// DoRequest performs a request with optional bearer token and json body
func DoRequest(t *testing.T, method string, url string, access string, body string) (*http.Response, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "should make request to test server")
	defer resp.Body.Close() // nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "should read response body")

	return resp, string(data)
}
