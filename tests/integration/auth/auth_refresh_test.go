package auth

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akuznetsov/taskboard/internal/testutil"
	"github.com/akuznetsov/taskboard/tests/integration"
)

const (
	RefreshURL = "/api/auth/refresh"
)

type tokensBody struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func Test_AuthRefresh(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("refresh token ok", func(t *testing.T) {
		integration.RunTx(pg.Pool, t, func(srvURL string, s integration.Services) {
			registered, err := s.AuthService.Register(t.Context(), "user@example.com", "Str0ng!Pass")
			require.NoError(t, err)

			resp, body := integration.DoRequest(t, http.MethodPost, srvURL+RefreshURL, "", `{"refresh_token": "`+registered.Pair.Refresh.Value+`"}`)

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			var rotated tokensBody
			require.NoError(t, json.Unmarshal([]byte(body), &rotated))
			require.NotEmpty(t, rotated.AccessToken)
			require.NotEmpty(t, rotated.RefreshToken)
			require.NotEqual(t, registered.Pair.Refresh.Value, rotated.RefreshToken, "refresh token should be changed after refresh")
			require.NotEqual(t, registered.Pair.Access.Value, rotated.AccessToken, "access token should be changed after refresh")
		})
	})

	t.Run("refresh twice fails", func(t *testing.T) {
		integration.RunTx(pg.Pool, t, func(srvURL string, s integration.Services) {
			registered, err := s.AuthService.Register(t.Context(), "user@example.com", "Str0ng!Pass")
			require.NoError(t, err)

			data := `{"refresh_token": "` + registered.Pair.Refresh.Value + `"}`

			resp, body := integration.DoRequest(t, http.MethodPost, srvURL+RefreshURL, "", data)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			// The token was spent by the first refresh
			resp, body = integration.DoRequest(t, http.MethodPost, srvURL+RefreshURL, "", data)

			require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Invalid or expired refresh token"
				}`, body)
		})
	})

	t.Run("garbage refresh token", func(t *testing.T) {
		integration.RunTx(pg.Pool, t, func(srvURL string, _ integration.Services) {
			resp, body := integration.DoRequest(t, http.MethodPost, srvURL+RefreshURL, "", `{"refresh_token": "never-issued"}`)

			require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Invalid or expired refresh token"
				}`, body)
		})
	})
}
