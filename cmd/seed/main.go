// Seed populates a development database with the fixture data set.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"backend-fliptok/internal/config"
	"backend-fliptok/internal/db"
	"backend-fliptok/internal/fixtures"
	"backend-fliptok/internal/logging"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type seedDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	migrate         func(context.Context, db.Querier) error
	seed            func(context.Context, db.Querier) error
}

func defaultDeps() seedDeps {
	return seedDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		migrate:         db.Migrate,
		seed:            fixtures.Seed,
	}
}

func main() {
	skipMigrate := flag.Bool("skip-migrate", false, "do not apply the schema before seeding")
	flag.Parse()

	if err := run(context.Background(), defaultDeps(), !*skipMigrate); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

func run(ctx context.Context, deps seedDeps, migrate bool) error {
	cfg := deps.loadConfig()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	pool, err := deps.connectPostgres(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	start := time.Now()
	if migrate {
		if err := deps.migrate(ctx, pool); err != nil {
			return err
		}
	}
	if err := deps.seed(ctx, pool); err != nil {
		return err
	}
	logger.Info("fixtures seeded",
		zap.Int("users", len(fixtures.Users())),
		zap.Int("feed_items", len(fixtures.FeedItems())),
		zap.Int("comments", len(fixtures.Comments())),
		zap.Duration("took", time.Since(start).Truncate(time.Millisecond)),
	)
	return nil
}
