package changestream

import (
	"context"
	"fmt"
	"strconv"

	"github.com/avataa-hq/avataa-graphs/internal/graphstore"
	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// TprmOrchestrator applies TPRM created/updated/deleted events (spec
// §4.7 "TPRM.*").
type TprmOrchestrator struct {
	store *graphstore.Store
	cache *SchemaCache
}

func NewTprmOrchestrator(store *graphstore.Store, cache *SchemaCache) *TprmOrchestrator {
	return &TprmOrchestrator{store: store, cache: cache}
}

// Upsert records a TPRM's owning TMO in the cache (TPRM definitions
// themselves are never persisted in the graph — every builder pass
// re-fetches them live via inventory.GetTprmsByTmoID, same as the full
// builder). For link TPRMs it diffs Constraint against the currently
// stored TmoEdges of that type, emitting new ones and removing stale
// ones.
func (o *TprmOrchestrator) Upsert(ctx context.Context, database string, tprm model.Tprm) (OperationResponse, error) {
	o.cache.SetTprm(tprm.ID, tprm.TmoID)

	if !tprm.IsLinkType() {
		return OperationResponse{}, nil
	}
	return OperationResponse{}, o.reconcileLinkEdges(ctx, database, tprm)
}

func (o *TprmOrchestrator) reconcileLinkEdges(ctx context.Context, database string, tprm model.Tprm) error {
	desired := make(map[string]struct{}, len(tprm.Constraint))
	edges := make([]model.TmoEdge, 0, len(tprm.Constraint))
	tmoKey := strconv.FormatInt(tprm.TmoID, 10)
	for _, targetTmoID := range tprm.Constraint {
		targetKey := strconv.FormatInt(targetTmoID, 10)
		desired[targetKey] = struct{}{}
		edges = append(edges, model.TmoEdge{
			From: tmoKey, To: targetKey, LinkType: model.LinkType(tprm.ValType), Enabled: true, TprmID: &tprm.ID,
		})
	}

	rows, err := o.store.ReadRecords(ctx, database, `
		MATCH (t:Tmo {key: $tmoKey})-[r:TMO_LINK {tprm_id: $tprmId}]->(target:Tmo)
		RETURN target.key AS target_key
	`, map[string]any{"tmoKey": tmoKey, "tprmId": tprm.ID})
	if err != nil {
		return fmt.Errorf("reading tprm %d link edges: %w", tprm.ID, err)
	}
	var stale []string
	for _, row := range rows {
		targetKey, _ := row["target_key"].(string)
		if _, ok := desired[targetKey]; !ok {
			stale = append(stale, targetKey)
		}
	}
	if len(stale) > 0 {
		if err := o.store.WriteQuery(ctx, database, `
			UNWIND $targets AS target
			MATCH (t:Tmo {key: $tmoKey})-[r:TMO_LINK {tprm_id: $tprmId}]->(:Tmo {key: target})
			DELETE r
		`, map[string]any{"tmoKey": tmoKey, "tprmId": tprm.ID, "targets": stale}); err != nil {
			return fmt.Errorf("deleting stale tprm %d link edges: %w", tprm.ID, err)
		}
	}
	if len(edges) == 0 {
		return nil
	}
	return o.store.UpsertTmoEdges(ctx, database, edges)
}

// Delete removes a TPRM's link TmoEdges and its id from the
// configuration singleton's group_by_tprm_ids. Other references to the
// TPRM (busyParameterGroups, start or trace settings) are left as they
// are. Every projection database holds exactly one ConfigDoc,
// keyed model.ConfigKeyStartFrom, with group_by_tprm_ids as one of its
// fields — there is no separate ConfigDoc keyed "group_by".
func (o *TprmOrchestrator) Delete(ctx context.Context, database string, tprmID int64) (OperationResponse, error) {
	if err := o.store.WriteQuery(ctx, database, `
		MATCH ()-[r:TMO_LINK {tprm_id: $id}]->()
		DELETE r
	`, map[string]any{"id": tprmID}); err != nil {
		return OperationResponse{}, fmt.Errorf("deleting tprm %d link edges: %w", tprmID, err)
	}
	if err := o.store.WriteQuery(ctx, database, `
		MATCH (c:ConfigDoc {key: $key})
		SET c.group_by_tprm_ids = [x IN coalesce(c.group_by_tprm_ids, []) WHERE x <> $id]
	`, map[string]any{"key": model.ConfigKeyStartFrom, "id": tprmID}); err != nil {
		return OperationResponse{}, fmt.Errorf("pruning tprm %d from group_by config: %w", tprmID, err)
	}
	o.cache.RemoveTprm(tprmID)
	return OperationResponse{}, nil
}
