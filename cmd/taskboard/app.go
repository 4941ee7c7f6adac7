package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akuznetsov/taskboard/internal/db"
	"github.com/akuznetsov/taskboard/internal/handlers"
	"github.com/akuznetsov/taskboard/internal/logger"
	"github.com/akuznetsov/taskboard/internal/repository/postgres"
	"github.com/akuznetsov/taskboard/internal/service/auth"
	"github.com/akuznetsov/taskboard/internal/service/auth/ratelimit"
	"github.com/akuznetsov/taskboard/internal/service/auth/tokenmanager"
	"github.com/akuznetsov/taskboard/internal/service/conversation"
	"github.com/akuznetsov/taskboard/internal/service/task"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	pool    *pgxpool.Pool
	cleaner *auth.TokenCleaner
	logger  logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  c.SecretKey,
		Issuer:     c.TokenIssuer,
		Audience:   c.TokenAudience,
		AccessTTL:  c.AccessTokenTTL,
		RefreshTTL: c.RefreshTokenTTL,
	}, storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	authService, err := auth.NewAuthService(auth.Config{
		Hasher:  auth.BcryptHasher{Cost: c.BcryptCost},
		Limiter: ratelimit.New(ratelimit.Config{MaxAttempts: c.LoginMaxAttempts, Window: c.LoginWindow}),
		Logger:  logger,
	}, tokenManager, storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	taskService := task.NewService(storage.Task())
	conversationService := conversation.NewService(storage.Conversation())

	mux := handlers.NewRouter(
		authService,
		taskService,
		conversationService,
		pool.Ping,
		logger,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		pool:       pool,
		cleaner:    auth.NewTokenCleaner(auth.CleanerConfig{Logger: logger}, storage),
		logger:     logger,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation.
// The refresh token cleaner runs alongside the server and stops with it.
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	cleanerStopped := s.cleaner.Run(srvCtx)

	idleConnsClosed := make(chan struct{})
	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-cleanerStopped
	s.pool.Close()

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
