// Command graph-init bootstraps a brand-new projection (C5): it
// registers the projection, provisions its graph database and schema
// layer, and persists the operator-supplied settings the builder and
// change-stream updater will read afterward.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avataa-hq/avataa-graphs/internal/config"
	"github.com/avataa-hq/avataa-graphs/internal/graphstore"
	"github.com/avataa-hq/avataa-graphs/internal/initializer"
	"github.com/avataa-hq/avataa-graphs/internal/inventory"
	"github.com/avataa-hq/avataa-graphs/internal/logging"
	"github.com/avataa-hq/avataa-graphs/internal/registry"
)

var (
	cfgFile              string
	rootTmoID            int64
	name                 string
	startFromTmoID       int64
	startFromTprmID      int64
	traceTmoID           int64
	traceTprmID          int64
	groupByTprmIDs       []int64
	deleteOrphanBranches bool
)

func main() {
	root := &cobra.Command{
		Use:   "graph-init",
		Short: "Bootstrap a new graph projection",
		RunE:  run,
	}
	root.Flags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.Flags().Int64Var(&rootTmoID, "tmo-id", 0, "root TMO id to project (required)")
	root.Flags().StringVar(&name, "name", "", "human-readable projection name")
	root.Flags().Int64Var(&startFromTmoID, "start-from-tmo-id", 0, "TMO id the builder's traversal starts from (0 = same as --tmo-id)")
	root.Flags().Int64Var(&startFromTprmID, "start-from-tprm-id", 0, "TPRM id gating the start-from TMO, if any")
	root.Flags().Int64Var(&traceTmoID, "trace-tmo-id", 0, "TMO id path/trace queries resolve from, if any")
	root.Flags().Int64Var(&traceTprmID, "trace-tprm-id", 0, "TPRM id gating the trace TMO, if any")
	root.Flags().Int64SliceVar(&groupByTprmIDs, "group-by-tprm-id", nil, "TPRM ids MOs are grouped by (repeatable)")
	root.Flags().BoolVar(&deleteOrphanBranches, "delete-orphan-branches", false, "prune branches left without a live path to the root")
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

	inv, err := inventory.Dial(ctx, cfg.Inventory, cfg.Retry)
	if err != nil {
		return fmt.Errorf("dialing inventory service: %w", err)
	}
	defer inv.Close()

	settings := initializer.Settings{
		Name:                 name,
		StartFromTmoID:       optionalInt64(startFromTmoID),
		StartFromTprmID:      optionalInt64(startFromTprmID),
		TraceTmoID:           optionalInt64(traceTmoID),
		TraceTprmID:          optionalInt64(traceTprmID),
		GroupByTprmIDs:       groupByTprmIDs,
		DeleteOrphanBranches: deleteOrphanBranches,
	}

	init := initializer.New(inv, store, reg)
	rec, err := init.Bootstrap(ctx, rootTmoID, settings)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	logger.Info("projection bootstrapped", "tmo_id", rec.TmoID, "database", rec.Database, "status", rec.Status)
	return nil
}

func optionalInt64(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
