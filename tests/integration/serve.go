package integration

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
	"github.com/akuznetsov/taskboard/internal/service/auth/ratelimit"
	"github.com/akuznetsov/taskboard/internal/service/auth/tokenmanager"
	"github.com/akuznetsov/taskboard/internal/service/conversation"
	"github.com/akuznetsov/taskboard/internal/service/task"
	"github.com/akuznetsov/taskboard/internal/testutil"
)

type Services struct {
	AuthService *auth.AuthService
}

// RunTx runs the whole API server on a single rolled-back transaction.
// Every call builds fresh services, limiter state included, so tests
// never see each other's attempts.
func RunTx(dbpool *pgxpool.Pool, t *testing.T, fn func(srvURL string, services Services)) {
	testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
		storage := postgres.NewStorage(tx)

		tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"}, storage)
		require.NoError(t, err, "token manager should be created without errors")

		// Default limits, the login tests count on 5 attempts per window
		as, err := auth.NewAuthService(auth.Config{
			Hasher:  auth.BcryptHasher{Cost: bcrypt.MinCost},
			Limiter: ratelimit.New(ratelimit.Config{}),
		}, tokenManager, storage)
		require.NoError(t, err, "auth service should be created without errors")

		router := handlers.NewRouter(
			as,
			task.NewService(storage.Task()),
			conversation.NewService(storage.Conversation()),
			tx.Conn().Ping,
			logger.NewNoOpLogger(),
		)
		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(srv.URL, Services{AuthService: as})
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
