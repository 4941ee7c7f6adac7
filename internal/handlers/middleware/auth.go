package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/akuznetsov/taskboard/internal/handlers/render"
	"github.com/akuznetsov/taskboard/internal/handlers/userctx"
	"github.com/akuznetsov/taskboard/internal/models"
)

type authService interface {
	// Authenticate resolves a raw access token into the user it belongs to
	Authenticate(ctx context.Context, access string) (models.User, error)
}

// Auth guards handlers behind bearer authentication. It reads the
// Authorization header, resolves the token and puts the user into the
// request context. Every failure looks the same from outside.
func Auth(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access, ok := bearerToken(r)
			if !ok {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := as.Authenticate(r.Context(), access)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}
