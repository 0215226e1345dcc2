// File: cmd/components.go
package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/internal/auth"
	"github.com/couchwatch/couchwatch/internal/browser"
	"github.com/couchwatch/couchwatch/internal/config"
	"github.com/couchwatch/couchwatch/internal/platforms"
	"github.com/couchwatch/couchwatch/internal/scrape"
	"github.com/couchwatch/couchwatch/internal/store"
)

// components holds the initialized service graph shared by subcommands.
type components struct {
	DBPool   *pgxpool.Pool
	Store    *store.Store
	Registry *platforms.Registry
	Runner   *scrape.Runner
	Batch    *scrape.BatchRunner
}

// Shutdown releases everything initializeComponents acquired.
func (c *components) Shutdown() {
	if c.DBPool != nil {
		c.DBPool.Close()
	}
}

// initializeComponents handles dependency injection for the scrape pipeline.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	c := &components{}

	// 1. Database and store.
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database URL is not configured (COUCHWATCH_DATABASE_URL)")
	}
	if cfg.Database.EncryptionKey == "" {
		return nil, fmt.Errorf("credential encryption key is not configured (COUCHWATCH_DATABASE_ENCRYPTION_KEY)")
	}
	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DBPool = dbPool

	dbStore, err := store.New(ctx, dbPool, cfg.Database.EncryptionKey, logger)
	if err != nil {
		return c, fmt.Errorf("failed to initialize database store: %w", err)
	}
	c.Store = dbStore

	// 2. Platform adapters.
	registry, err := platforms.NewDefaultRegistry(dbStore, logger)
	if err != nil {
		return c, fmt.Errorf("failed to build platform registry: %w", err)
	}
	c.Registry = registry

	// 3. Scrape pipeline.
	factory := browser.NewFactory(cfg.Browser, cfg.Scrape, cfg.Environment, logger)
	authOrch := auth.NewOrchestrator(dbStore, cfg.Scrape, logger)
	c.Runner = scrape.NewRunner(factory, dbStore, authOrch, cfg.Scrape, logger)
	c.Batch = scrape.NewBatchRunner(c.Runner, registry, dbStore, logger)

	return c, nil
}
