// Command graph-query runs C7 path/trace lookups against an already
// built projection and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avataa-hq/avataa-graphs/internal/config"
	"github.com/avataa-hq/avataa-graphs/internal/graphstore"
	"github.com/avataa-hq/avataa-graphs/internal/model"
	"github.com/avataa-hq/avataa-graphs/internal/pathtrace"
	"github.com/avataa-hq/avataa-graphs/internal/registry"
)

var (
	cfgFile  string
	tmoID    int64
	fromKey  string
	toKey    string
	nodeKey  string
	level    string
)

func main() {
	root := &cobra.Command{
		Use:   "graph-query",
		Short: "Query paths and traces in a built graph projection",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.PersistentFlags().Int64Var(&tmoID, "tmo-id", 0, "root TMO id of the projection to query (required)")
	root.PersistentFlags().StringVar(&level, "level", string(model.TrackingFull), "trace squash level: FULL|LOCAL|NONE|GRAPH|STRAIGHT")
	_ = root.MarkPersistentFlagRequired("tmo-id")

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Find the shortest path between two node keys",
		RunE:  runPath,
	}
	pathCmd.Flags().StringVar(&fromKey, "from", "", "source node key (required)")
	pathCmd.Flags().StringVar(&toKey, "to", "", "destination node key (required)")
	_ = pathCmd.MarkFlagRequired("from")
	_ = pathCmd.MarkFlagRequired("to")

	nodePathsCmd := &cobra.Command{
		Use:   "node-paths",
		Short: "List every path reachable from a node toward the projection's trace TMO",
		RunE:  runNodePaths,
	}
	nodePathsCmd.Flags().StringVar(&nodeKey, "node", "", "node key to start from (required)")
	_ = nodePathsCmd.MarkFlagRequired("node")

	traceCmd := &cobra.Command{
		Use:   "trace",
		Short: "Reconstruct the trace anchored at a trace node",
		RunE:  runTrace,
	}
	traceCmd.Flags().StringVar(&nodeKey, "node", "", "trace node key (required)")
	_ = traceCmd.MarkFlagRequired("node")

	root.AddCommand(pathCmd, nodePathsCmd, traceCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func dial(ctx context.Context) (*graphstore.Store, model.MainRecord, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, model.MainRecord{}, fmt.Errorf("loading config: %w", err)
	}
	store, err := graphstore.Open(ctx, cfg.GraphStore.URI, cfg.GraphStore.Username, cfg.GraphStore.Password)
	if err != nil {
		return nil, model.MainRecord{}, fmt.Errorf("connecting to graph store: %w", err)
	}
	rec, err := registry.New(store).Get(ctx, tmoID)
	if err != nil {
		store.Close(ctx)
		return nil, model.MainRecord{}, fmt.Errorf("looking up projection %d: %w", tmoID, err)
	}
	return store, rec, nil
}

func runPath(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, rec, err := dial(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	finder := pathtrace.NewFinder(store)
	traces, err := finder.FindPath(ctx, rec.Database, fromKey, toKey, model.TrackingType(level), cfg.Query.SearchLimit, cfg.Query.ResponseLimit)
	if err != nil {
		return fmt.Errorf("finding path: %w", err)
	}
	return printJSON(traces)
}

func runNodePaths(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, rec, err := dial(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	// Every projection database holds exactly one ConfigDoc, keyed
	// model.ConfigKeyStartFrom, with TraceTmoID as one of its fields —
	// there is no separate ConfigDoc keyed "trace_tmo_id".
	doc, err := registry.New(store).GetConfig(ctx, rec.Database, model.ConfigKeyStartFrom)
	if err != nil {
		return fmt.Errorf("loading projection settings: %w", err)
	}
	if doc.TraceTmoID == nil {
		return fmt.Errorf("projection %d has no trace_tmo_id configured", tmoID)
	}

	finder := pathtrace.NewFinder(store)
	nodes, err := finder.AllPathsForNode(ctx, rec.Database, nodeKey, *doc.TraceTmoID)
	if err != nil {
		return fmt.Errorf("listing paths: %w", err)
	}
	return printJSON(nodes)
}

func runTrace(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, rec, err := dial(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	finder := pathtrace.NewFinder(store)
	trace, err := finder.GetPath(ctx, rec.Database, nodeKey, model.TrackingType(level))
	if err != nil {
		return fmt.Errorf("reconstructing trace: %w", err)
	}
	return printJSON(trace)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
