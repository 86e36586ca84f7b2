// Package builder implements C6: the full graph builder. It runs the
// ordered passes that turn an inventory's raw MO/PRM data into the
// instance-layer graph (spec §4.5): clear the previous instance layer,
// materialize real nodes, derive structural and constraint-based edges,
// project path edges, synthesize grouping nodes, forward line/service
// connections, spread virtual connectivity up the hierarchy, stamp
// breadcrumbs, index searchable fields, and resolve link-typed parameter
// values.
//
// Each pass is a separate file/function. Of these passes, changestream
// (C8) reuses only LinkEdgesForPrm; its incremental updates are written
// separately.
package builder

import (
	"context"
	"fmt"

	"github.com/avataa-hq/avataa-graphs/internal/config"
	"github.com/avataa-hq/avataa-graphs/internal/graphstore"
	"github.com/avataa-hq/avataa-graphs/internal/inventory"
	"github.com/avataa-hq/avataa-graphs/internal/logging"
	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// Builder runs the ordered construction passes against one projection
// database.
type Builder struct {
	inventory *inventory.Client
	store     *graphstore.Store
	cfg       config.BuilderConfig
	logger    *logging.Logger
}

func New(inv *inventory.Client, store *graphstore.Store, cfg config.BuilderConfig, logger *logging.Logger) *Builder {
	return &Builder{inventory: inv, store: store, cfg: cfg, logger: logger}
}

// Run executes a full build for the projection rooted at rootTmoID
// against database, in the spec-mandated order (§4.5 steps 1-13). It
// first deletes every Mo node together with its MO_LINK and PATH_EDGE
// relationships; the Tmo layer is kept.
func (b *Builder) Run(ctx context.Context, database string, rootTmoID int64, settings model.ConfigDoc) error {
	b.logStep("truncate")
	if err := b.store.WriteQuery(ctx, database, `MATCH (m:Mo) DETACH DELETE m`, nil); err != nil {
		return fmt.Errorf("truncating instance layer: %w", err)
	}

	tmos, err := b.loadTmoNodes(ctx, database)
	if err != nil {
		return fmt.Errorf("loading tmo schema layer: %w", err)
	}

	b.logStep("materialize")
	if err := b.materializeMoNodes(ctx, database, tmos); err != nil {
		return fmt.Errorf("materializing mo nodes: %w", err)
	}

	if settings.TraceTmoID != nil {
		b.logStep("materialize trace layer")
		if err := b.materializeTraceLayer(ctx, database, tmos, *settings.TraceTmoID); err != nil {
			return fmt.Errorf("materializing trace layer: %w", err)
		}
	}

	b.logStep("structural links")
	if err := b.buildStructuralEdges(ctx, database, tmos); err != nil {
		return fmt.Errorf("building structural edges: %w", err)
	}

	b.logStep("constraint links")
	if err := b.buildConstraintEdges(ctx, database, tmos); err != nil {
		return fmt.Errorf("building constraint edges: %w", err)
	}

	if settings.TraceTmoID != nil {
		b.logStep("mark trace edges")
		if err := b.markTraceEdges(ctx, database); err != nil {
			return fmt.Errorf("marking trace edges: %w", err)
		}
	}

	b.logStep("path edges")
	if err := b.fillPathEdgeCollection(ctx, database); err != nil {
		return fmt.Errorf("filling path edge collection: %w", err)
	}

	if len(settings.GroupByTprmIDs) > 0 {
		b.logStep("group nodes")
		if err := b.groupNodes(ctx, database, settings.GroupByTprmIDs); err != nil {
			return fmt.Errorf("grouping nodes: %w", err)
		}
	}

	b.logStep("forward line connections")
	if err := b.forwardLineConnections(ctx, database, tmos); err != nil {
		return fmt.Errorf("forwarding line connections: %w", err)
	}

	// Spread runs last among the hierarchy-shaping passes: it must see
	// the tree after grouping reparents nodes and line-forwarding adds
	// its own bridge/trace edges, not before (spec §4.5 "each pass
	// assumes the previous pass's invariants").
	b.logStep("spread connections")
	if err := b.spreadConnections(ctx, database, tmos); err != nil {
		return fmt.Errorf("spreading connections: %w", err)
	}

	b.logStep("breadcrumbs")
	if err := b.addBreadcrumbs(ctx, database); err != nil {
		return fmt.Errorf("adding breadcrumbs: %w", err)
	}

	b.logStep("indexed fields")
	if err := b.addIndexedFields(ctx, database, tmos); err != nil {
		return fmt.Errorf("adding indexed fields: %w", err)
	}

	b.logStep("prm values")
	if err := b.fillPrmValues(ctx, database, tmos); err != nil {
		return fmt.Errorf("filling prm values: %w", err)
	}

	if settings.DeleteOrphanBranches {
		b.logStep("delete orphan branches")
		if err := b.deleteOrphanBranches(ctx, database, rootTmoID, tmos); err != nil {
			return fmt.Errorf("deleting orphan branches: %w", err)
		}
	}

	return nil
}

func (b *Builder) logStep(name string) {
	if b.logger != nil {
		b.logger.Info("build step starting", "step", name)
	}
}

func (b *Builder) loadTmoNodes(ctx context.Context, database string) ([]model.TmoNode, error) {
	rows, err := b.store.ReadRecords(ctx, database, `MATCH (t:Tmo) RETURN t`, nil)
	if err != nil {
		return nil, err
	}
	return graphstore.DecodeTmoNodes(rows), nil
}
