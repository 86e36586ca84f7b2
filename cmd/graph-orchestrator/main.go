// Command graph-orchestrator runs the C9 projection supervisor: it
// recovers stale projections on startup, then polls the registry
// forever, spawning and reaping one change-stream worker (C8) per
// registered projection (spec §4.8).
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

	"github.com/avataa-hq/avataa-graphs/internal/config"
	"github.com/avataa-hq/avataa-graphs/internal/dlq"
	"github.com/avataa-hq/avataa-graphs/internal/graphstore"
	"github.com/avataa-hq/avataa-graphs/internal/logging"
	"github.com/avataa-hq/avataa-graphs/internal/orchestrator"
	"github.com/avataa-hq/avataa-graphs/internal/registry"
	"github.com/avataa-hq/avataa-graphs/internal/staging"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:   "graph-orchestrator",
		Short: "Supervise change-stream workers for every registered graph projection",
		RunE:  run,
	}
	root.Flags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

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

	o := orchestrator.New(cfg, store, reg, stagingStore, dlqQueue, logger)
	logger.Info("starting orchestrator", "poll_interval", cfg.Orchestrator.PollInterval)
	if err := o.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("orchestrator exited: %w", err)
	}
	return nil
}
