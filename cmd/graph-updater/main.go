// Command graph-updater runs a single projection's C8 change-stream
// worker in the foreground, without the C9 orchestrator's multi-
// projection supervision. Useful for running one projection's updater
// as its own process, or for local debugging.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	rediscache "github.com/avataa-hq/avataa-graphs/internal/cache"
	"github.com/avataa-hq/avataa-graphs/internal/changestream"
	"github.com/avataa-hq/avataa-graphs/internal/config"
	"github.com/avataa-hq/avataa-graphs/internal/dlq"
	"github.com/avataa-hq/avataa-graphs/internal/graphstore"
	"github.com/avataa-hq/avataa-graphs/internal/inventory"
	"github.com/avataa-hq/avataa-graphs/internal/logging"
	"github.com/avataa-hq/avataa-graphs/internal/registry"
	"github.com/avataa-hq/avataa-graphs/internal/staging"
)

var (
	cfgFile string
	tmoID   int64
)

func main() {
	root := &cobra.Command{
		Use:   "graph-updater",
		Short: "Run the change-stream worker for a single projection",
		RunE:  run,
	}
	root.Flags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.Flags().Int64Var(&tmoID, "tmo-id", 0, "root TMO id of the projection to update (required)")
	_ = root.MarkFlagRequired("tmo-id")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.NewLogger(logging.DefaultConfig(false))
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := graphstore.Open(ctx, cfg.GraphStore.URI, cfg.GraphStore.Username, cfg.GraphStore.Password)
	if err != nil {
		return fmt.Errorf("connecting to graph store: %w", err)
	}
	defer store.Close(ctx)

	reg := registry.New(store)
	rec, err := reg.Get(ctx, tmoID)
	if err != nil {
		return fmt.Errorf("looking up projection %d: %w", tmoID, err)
	}

	stagingStore, err := staging.Open(ctx, cfg.Staging)
	if err != nil {
		return fmt.Errorf("connecting to staging database: %w", err)
	}
	defer stagingStore.Close()

	dlqDB, err := sql.Open("postgres", cfg.Staging.DSN)
	if err != nil {
		return fmt.Errorf("connecting to dlq database: %w", err)
	}
	defer dlqDB.Close()
	dlqQueue := dlq.NewQueue(dlqDB)

	inv, err := inventory.Dial(ctx, cfg.Inventory, cfg.Retry)
	if err != nil {
		return fmt.Errorf("dialing inventory service: %w", err)
	}
	defer inv.Close()

	var redisCache *rediscache.Client
	if rc, err := rediscache.NewClient(ctx, cfg.Cache); err != nil {
		logger.Warn("schema cache disabled: redis unavailable", "error", err)
	} else {
		redisCache = rc
		defer redisCache.Close()
	}

	worker := changestream.NewWorker(cfg.Kafka, cfg.Retry, rec.Database, rec.TmoID, store, reg, inv, stagingStore, dlqQueue, redisCache, logger)
	logger.Info("starting change-stream worker", "tmo_id", tmoID, "database", rec.Database)
	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("worker exited: %w", err)
	}
	return nil
}
