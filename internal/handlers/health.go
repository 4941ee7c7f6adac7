package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/akuznetsov/taskboard/internal/handlers/render"
)

func handleHealth(ping func(ctx context.Context) error) http.Handler {
	type response struct {
		Status  string `json:"status"`
		Service string `json:"service"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()

		if err := ping(ctx); err != nil {
			render.ServiceError(w, "Database unreachable", http.StatusServiceUnavailable)
			return
		}

		render.JSON(w, response{Status: "ok", Service: "taskboard"})
	})
}
