package changestream

import (
	"context"
	"fmt"
	"strconv"

	"github.com/avataa-hq/avataa-graphs/internal/builder"
	"github.com/avataa-hq/avataa-graphs/internal/graphstore"
	"github.com/avataa-hq/avataa-graphs/internal/inventory"
	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// PrmOrchestrator applies PRM created/updated/deleted events (spec
// §4.7 "PRM.*").
type PrmOrchestrator struct {
	store     *graphstore.Store
	inventory *inventory.Client
	cache     *SchemaCache
}

func NewPrmOrchestrator(store *graphstore.Store, inv *inventory.Client, cache *SchemaCache) *PrmOrchestrator {
	return &PrmOrchestrator{store: store, inventory: inv, cache: cache}
}

// Created attaches a PRM to its owning MO: for link-typed TPRMs it
// creates the outbound mo_link/two-way-link edges, and updates the
// searchable `indexed` property (spec §4.7 "PRM.created").
func (o *PrmOrchestrator) Created(ctx context.Context, database string, prm model.Prm) (OperationResponse, error) {
	if !o.cache.TprmActive(prm.TprmID) {
		return OperationResponse{}, nil
	}
	tprm, err := o.inventory.TprmConst(ctx, prm.TprmID)
	if err != nil {
		return OperationResponse{}, fmt.Errorf("resolving tprm %d: %w", prm.TprmID, err)
	}

	if err := o.reconcileLinkEdges(ctx, database, prm, tprm); err != nil {
		return OperationResponse{}, err
	}
	if err := o.refreshIndexed(ctx, database, prm, tprm); err != nil {
		return OperationResponse{}, err
	}
	return OperationResponse{}, nil
}

// Updated replaces a PRM's mo_link/two-way-link edges with ones built
// from its new value and refreshes the owning MO's `indexed` entry
// (spec §4.7 "PRM.updated"). Grouping membership is not changed, even
// when the TPRM is a group-by key.
func (o *PrmOrchestrator) Updated(ctx context.Context, database string, prm model.Prm) (OperationResponse, error) {
	if !o.cache.TprmActive(prm.TprmID) {
		return OperationResponse{}, nil
	}
	tprm, err := o.inventory.TprmConst(ctx, prm.TprmID)
	if err != nil {
		return OperationResponse{}, fmt.Errorf("resolving tprm %d: %w", prm.TprmID, err)
	}

	moKey := strconv.FormatInt(prm.MoID, 10)
	if _, err := o.store.GetMoNode(ctx, database, moKey); err != nil {
		return OperationResponse{}, nil
	}

	if err := o.pruneLinkEdges(ctx, database, prm, tprm); err != nil {
		return OperationResponse{}, err
	}
	if err := o.reconcileLinkEdges(ctx, database, prm, tprm); err != nil {
		return OperationResponse{}, err
	}
	if err := o.refreshIndexed(ctx, database, prm, tprm); err != nil {
		return OperationResponse{}, err
	}
	return OperationResponse{}, nil
}

// Deleted removes a PRM's incident mo_link/two-way-link edges (spec
// §4.7 "PRM.deleted").
func (o *PrmOrchestrator) Deleted(ctx context.Context, database string, prmID int64) (OperationResponse, error) {
	if err := o.store.WriteQuery(ctx, database, `
		MATCH ()-[r:MO_LINK]->() WHERE $prmId IN r.prm
		DELETE r
	`, map[string]any{"prmId": prmID}); err != nil {
		return OperationResponse{}, fmt.Errorf("deleting edges for prm %d: %w", prmID, err)
	}
	return OperationResponse{}, nil
}

func (o *PrmOrchestrator) reconcileLinkEdges(ctx context.Context, database string, prm model.Prm, tprm model.Tprm) error {
	if !tprm.IsLinkType() {
		return nil
	}
	moKey := strconv.FormatInt(prm.MoID, 10)
	dto := model.PrmDto{Prm: prm}
	edges := builder.LinkEdgesForPrm(moKey, dto, tprm)
	if len(edges) == 0 {
		return nil
	}
	return o.store.UpsertMoEdges(ctx, database, edges)
}

func (o *PrmOrchestrator) pruneLinkEdges(ctx context.Context, database string, prm model.Prm, tprm model.Tprm) error {
	if !tprm.IsLinkType() {
		return nil
	}
	return o.store.WriteQuery(ctx, database, `
		MATCH (m:Mo {tmo: $tmoId})-[r:MO_LINK]->() WHERE $prmId IN r.prm
		DELETE r
	`, map[string]any{"tmoId": tprm.TmoID, "prmId": prm.ID})
}

// refreshIndexed resolves a single PRM's parsed value and folds it into
// the owning MoNode's `indexed` search property, mirroring the
// corresponding slice of the builder's add_indexed_fields pass (spec
// §4.5 step 2) scoped to one changed field instead of the whole node.
func (o *PrmOrchestrator) refreshIndexed(ctx context.Context, database string, prm model.Prm, tprm model.Tprm) error {
	if !tprm.Returnable {
		return nil
	}
	parsed, err := model.ResolveParsedValue(ctx, prm, tprm, o.inventory)
	if err != nil {
		return fmt.Errorf("resolving parsed value for prm %d: %w", prm.ID, err)
	}
	value := prm.Value
	if parsed != nil {
		value = parsed.Value
	}
	entry := fmt.Sprintf("%d=%s", tprm.ID, model.StringifyValue(value))
	moKey := strconv.FormatInt(prm.MoID, 10)
	return o.store.WriteQuery(ctx, database, `
		MATCH (m:Mo {key: $key})
		SET m.indexed = [x IN coalesce(m.indexed, []) WHERE NOT x STARTS WITH $prefix] + [$entry]
	`, map[string]any{"key": moKey, "prefix": fmt.Sprintf("%d=", tprm.ID), "entry": entry})
}
