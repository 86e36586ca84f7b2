// Command graph-build runs a single full C6 build pass for one already
// bootstrapped projection: it fetches every TMO/TPRM/MO/PRM from the
// inventory service and materializes them into the projection's graph
// database, replacing whatever was there before.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avataa-hq/avataa-graphs/internal/builder"
	"github.com/avataa-hq/avataa-graphs/internal/config"
	"github.com/avataa-hq/avataa-graphs/internal/graphstore"
	"github.com/avataa-hq/avataa-graphs/internal/inventory"
	"github.com/avataa-hq/avataa-graphs/internal/logging"
	"github.com/avataa-hq/avataa-graphs/internal/model"
	"github.com/avataa-hq/avataa-graphs/internal/registry"
)

var (
	cfgFile string
	tmoID   int64
)

func main() {
	root := &cobra.Command{
		Use:   "graph-build",
		Short: "Run a full graph build pass for a registered projection",
		RunE:  run,
	}
	root.Flags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.Flags().Int64Var(&tmoID, "tmo-id", 0, "root TMO id of the projection to build (required)")
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

	settings, err := reg.GetConfig(ctx, rec.Database, model.ConfigKeyStartFrom)
	if err != nil {
		return fmt.Errorf("loading projection settings: %w", err)
	}

	inv, err := inventory.Dial(ctx, cfg.Inventory, cfg.Retry)
	if err != nil {
		return fmt.Errorf("dialing inventory service: %w", err)
	}
	defer inv.Close()

	b := builder.New(inv, store, cfg.Builder, logger)
	logger.Info("starting build", "tmo_id", tmoID, "database", rec.Database)
	if err := b.Run(ctx, rec.Database, tmoID, settings); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	logger.Info("build complete", "tmo_id", tmoID, "database", rec.Database)
	return nil
}
