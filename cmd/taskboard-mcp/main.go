// Command taskboard-mcp serves task tools to MCP clients over stdio.
// It connects to the same database as the main server and acts as the
// single user given by TASKBOARD_USER_ID.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/akuznetsov/taskboard/internal/db"
	"github.com/akuznetsov/taskboard/internal/logger"
	"github.com/akuznetsov/taskboard/internal/mcpserver"
	"github.com/akuznetsov/taskboard/internal/repository/postgres"
	"github.com/akuznetsov/taskboard/internal/service/task"
)

func run(ctx context.Context, getenv func(string) string, args []string) error {
	fs := pflag.NewFlagSet("taskboard-mcp", pflag.ContinueOnError)

	databaseDSN := fs.StringP("database", "d", getenv("DATABASE_URI"), "Database connection string")
	rawUserID := fs.StringP("user", "u", getenv("TASKBOARD_USER_ID"), "Id of the user the tools act as")
	logLevel := fs.StringP("log-level", "l", envOr(getenv, "LOG_LEVEL", logger.LevelInfo), "Logging level (debug, info, warn, error)")
	environment := fs.StringP("environment", "e", envOr(getenv, "ENVIRONMENT", logger.EnvProduction), "Environment (development, production)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	userID, err := uuid.Parse(*rawUserID)
	if err != nil {
		return fmt.Errorf("invalid user id %q. Err: %w", *rawUserID, err)
	}

	log, err := logger.New(*environment, *logLevel)
	if err != nil {
		return fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect only, the main server owns the schema and its migrations
	pool, err := db.Connect(ctx, *databaseDSN)
	if err != nil {
		return fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	defer pool.Close()

	storage := postgres.NewStorage(pool)
	srv, err := mcpserver.New(mcpserver.Config{UserID: userID, Logger: log}, task.NewService(storage.Task()))
	if err != nil {
		return err
	}

	return srv.Serve(ctx)
}

func envOr(getenv func(string) string, key string, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Getenv, os.Args[1:]); err != nil {
		slog.Error("MCP server stopped with error", "error", err.Error())
		os.Exit(1)
	}
}
