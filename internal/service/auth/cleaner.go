package auth

import (
	"context"
	"time"

	"github.com/akuznetsov/taskboard/internal/logger"
	"github.com/akuznetsov/taskboard/internal/repository"
)

const (
	defaultCleanInterval  = 1 * time.Hour  // How often to sweep expired refresh tokens
	defaultCleanRetention = 24 * time.Hour // How long expired rows stay around before the sweep
)

// Revoked tokens keep their row as a tombstone, expired ones are useless
// for auth and for audit once retention passed. The cleaner deletes them
// so the table does not grow forever.
type TokenCleaner struct {
	interval  time.Duration
	retention time.Duration
	storage   repository.Storage
	logger    logger.Logger
}

type CleanerConfig struct {
	// How often to sweep, defaultCleanInterval when zero
	Interval time.Duration

	// How long after expiry a row is kept, defaultCleanRetention when zero
	Retention time.Duration

	// NoOp logger when nil
	Logger logger.Logger
}

func NewTokenCleaner(cfg CleanerConfig, storage repository.Storage) *TokenCleaner {
	if cfg.Interval == 0 {
		cfg.Interval = defaultCleanInterval
	}
	if cfg.Retention == 0 {
		cfg.Retention = defaultCleanRetention
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}

	return &TokenCleaner{
		interval:  cfg.Interval,
		retention: cfg.Retention,
		storage:   storage,
		logger:    cfg.Logger,
	}
}

// Run sweeps on every tick until the context is canceled.
// The returned channel is closed when the cleaner fully stopped.
func (c *TokenCleaner) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	c.logger.Debug("Starting token cleaner", "interval", c.interval, "retention", c.retention)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.logger.Debug("Token cleaner stopped by context")
				return

			case <-ticker.C:
				c.sweep(ctx)
			}
		}
	}()

	return idleStopped
}

func (c *TokenCleaner) sweep(ctx context.Context) {
	deleted, err := c.storage.RefreshToken().DeleteExpiredBefore(ctx, time.Now().Add(-c.retention))
	if err != nil {
		c.logger.Error("Failed to delete expired refresh tokens", "error", err)
		return
	}

	if deleted > 0 {
		c.logger.Info("Expired refresh tokens deleted", "count", deleted)
	}
}
