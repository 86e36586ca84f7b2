package changestream

import (
	"context"
	"fmt"
	"strconv"

	"github.com/avataa-hq/avataa-graphs/internal/graphstore"
	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// TmoOrchestrator applies TMO created/updated/deleted events to the
// schema layer (spec §4.7 "TMO.*").
type TmoOrchestrator struct {
	store    *graphstore.Store
	cache    *SchemaCache
	rootTmoID int64
}

func NewTmoOrchestrator(store *graphstore.Store, cache *SchemaCache, rootTmoID int64) *TmoOrchestrator {
	return &TmoOrchestrator{store: store, cache: cache, rootTmoID: rootTmoID}
}

// Upsert handles both TMO.created and TMO.updated: it writes the node,
// and if the parent changed it drops the old p_id TmoEdge and creates
// the new one. If pointsConstraintByTmo changed it reconciles
// point_tmo_constraint edges.
func (o *TmoOrchestrator) Upsert(ctx context.Context, database string, tmo model.Tmo) (OperationResponse, error) {
	key := strconv.FormatInt(tmo.ID, 10)
	node := model.TmoNode{
		Key:                   key,
		TmoID:                 tmo.ID,
		PID:                   tmo.PID,
		Name:                  tmo.Name,
		Enabled:               tmo.Enabled,
		GlobalUniqueness:      tmo.GlobalUniqueness,
		Virtual:               tmo.Virtual,
		Materialize:           tmo.Materialize,
		GeometryType:          tmo.GeometryType,
		LineType:              tmo.LineType,
		Icon:                  tmo.Icon,
		Label:                 tmo.Label,
		PointsConstraintByTmo: tmo.PointsConstraintByTmo,
		CommutationTprms:      tmo.CommutationTprms,
		ShowAsATable:          tmo.ShowAsATable,
		BusyParameterGroups:   tmo.BusyParameterGroups,
	}
	if err := o.store.UpsertTmoNodes(ctx, database, []model.TmoNode{node}); err != nil {
		return OperationResponse{}, fmt.Errorf("upserting tmo %d: %w", tmo.ID, err)
	}
	o.cache.SetTmoActive(tmo.ID, tmo.Enabled)

	if err := o.reconcileParent(ctx, database, tmo); err != nil {
		return OperationResponse{}, err
	}
	if err := o.reconcilePointConstraints(ctx, database, tmo); err != nil {
		return OperationResponse{}, err
	}
	return OperationResponse{}, nil
}

func (o *TmoOrchestrator) reconcileParent(ctx context.Context, database string, tmo model.Tmo) error {
	key := strconv.FormatInt(tmo.ID, 10)
	rows, err := o.store.ReadRecords(ctx, database, `
		MATCH (t:Tmo {key: $key})<-[r:TMO_LINK {link_type: $pid}]-(old:Tmo)
		RETURN old.key AS old_parent
	`, map[string]any{"key": key, "pid": string(model.LinkTypePID)})
	if err != nil {
		return fmt.Errorf("reading tmo %d parent: %w", tmo.ID, err)
	}
	var oldParent string
	if len(rows) > 0 {
		oldParent, _ = rows[0]["old_parent"].(string)
	}
	newParent := ""
	if tmo.PID != nil {
		newParent = strconv.FormatInt(*tmo.PID, 10)
	}
	if oldParent == newParent {
		return nil
	}
	if err := o.store.WriteQuery(ctx, database, `
		MATCH (t:Tmo {key: $key})<-[r:TMO_LINK {link_type: $pid}]-(:Tmo)
		DELETE r
	`, map[string]any{"key": key, "pid": string(model.LinkTypePID)}); err != nil {
		return fmt.Errorf("deleting stale tmo parent link: %w", err)
	}
	if newParent == "" {
		return nil
	}
	return o.store.UpsertTmoEdges(ctx, database, []model.TmoEdge{
		{From: newParent, To: key, LinkType: model.LinkTypePID, Enabled: true},
	})
}

func (o *TmoOrchestrator) reconcilePointConstraints(ctx context.Context, database string, tmo model.Tmo) error {
	key := strconv.FormatInt(tmo.ID, 10)
	desired := make(map[string]struct{}, len(tmo.PointsConstraintByTmo))
	edges := make([]model.TmoEdge, 0, len(tmo.PointsConstraintByTmo))
	for _, pointTmoID := range tmo.PointsConstraintByTmo {
		pointKey := strconv.FormatInt(pointTmoID, 10)
		desired[pointKey] = struct{}{}
		edges = append(edges, model.TmoEdge{From: key, To: pointKey, LinkType: model.LinkTypePointTmoConstraint, Enabled: true})
	}

	rows, err := o.store.ReadRecords(ctx, database, `
		MATCH (t:Tmo {key: $key})-[r:TMO_LINK {link_type: $lt}]->(target:Tmo)
		RETURN target.key AS target_key
	`, map[string]any{"key": key, "lt": string(model.LinkTypePointTmoConstraint)})
	if err != nil {
		return fmt.Errorf("reading tmo %d point constraints: %w", tmo.ID, err)
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
			MATCH (t:Tmo {key: $key})-[r:TMO_LINK {link_type: $lt}]->(:Tmo {key: target})
			DELETE r
		`, map[string]any{"key": key, "lt": string(model.LinkTypePointTmoConstraint), "targets": stale}); err != nil {
			return fmt.Errorf("deleting stale point constraints for tmo %d: %w", tmo.ID, err)
		}
	}
	if len(edges) > 0 {
		if err := o.store.UpsertTmoEdges(ctx, database, edges); err != nil {
			return fmt.Errorf("upserting point constraints for tmo %d: %w", tmo.ID, err)
		}
	}
	return nil
}

// Delete handles TMO.deleted. If the target is the projection's root
// TMO, the caller (Worker) deletes the whole projection instead of
// calling this method. Otherwise it removes the TMO and its
// descendants by p_id, every incident TmoEdge, and every MoNode whose
// tmo falls in that set.
func (o *TmoOrchestrator) Delete(ctx context.Context, database string, tmoID int64) (OperationResponse, error) {
	key := strconv.FormatInt(tmoID, 10)
	rows, err := o.store.ReadRecords(ctx, database, `
		MATCH (root:Tmo {key: $key})
		OPTIONAL MATCH (root)-[:TMO_LINK*1.. {link_type: $pid}]->(desc:Tmo)
		RETURN collect(DISTINCT root.tmo_id) + collect(DISTINCT desc.tmo_id) AS ids
	`, map[string]any{"key": key, "pid": string(model.LinkTypePID)})
	if err != nil {
		return OperationResponse{}, fmt.Errorf("resolving tmo %d descendants: %w", tmoID, err)
	}
	var affected []int64
	if len(rows) > 0 {
		if raw, ok := rows[0]["ids"].([]any); ok {
			for _, v := range raw {
				switch id := v.(type) {
				case int64:
					affected = append(affected, id)
				}
			}
		}
	}
	if len(affected) == 0 {
		affected = []int64{tmoID}
	}

	if err := o.store.WriteQuery(ctx, database, `
		UNWIND $ids AS id
		MATCH (m:Mo {tmo: id})
		DETACH DELETE m
	`, map[string]any{"ids": affected}); err != nil {
		return OperationResponse{}, fmt.Errorf("deleting mo nodes for tmo %d: %w", tmoID, err)
	}
	if err := o.store.WriteQuery(ctx, database, `
		UNWIND $ids AS id
		MATCH (t:Tmo {tmo_id: id})
		DETACH DELETE t
	`, map[string]any{"ids": affected}); err != nil {
		return OperationResponse{}, fmt.Errorf("deleting tmo nodes %v: %w", affected, err)
	}
	for _, id := range affected {
		o.cache.RemoveTmo(id)
	}
	return OperationResponse{}, nil
}
