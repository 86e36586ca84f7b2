package changestream

import (
	"context"
	"fmt"
	"strconv"

	"github.com/avataa-hq/avataa-graphs/internal/graphstore"
	"github.com/avataa-hq/avataa-graphs/internal/inventory"
	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// MoOrchestrator applies MO created/updated/deleted events (spec §4.7
// "MO.*"). Unlike the full builder (C6), which recomputes every pass
// over the whole projection, it touches only the changed vertex and its
// direct neighborhood: breadcrumbs are recomputed for the affected
// subtree and point_a/point_b/geometry_line edges are refreshed. Spread
// (virtual) edges and path edges are not created or updated here, and
// no grouping node is created for a new MO.
type MoOrchestrator struct {
	store     *graphstore.Store
	inventory *inventory.Client
	cache     *SchemaCache
}

func NewMoOrchestrator(store *graphstore.Store, inv *inventory.Client, cache *SchemaCache) *MoOrchestrator {
	return &MoOrchestrator{store: store, inventory: inv, cache: cache}
}

// Created materializes a new vertex: resolves its parent, writes the
// node and its p_id edge, stamps breadcrumbs, and — for a line TMO with
// both points already present — the point_a/point_b/geometry_line
// edges (spec §4.7 "MO.created").
func (o *MoOrchestrator) Created(ctx context.Context, database string, mo model.Mo) (OperationResponse, error) {
	if !o.cache.TmoActive(mo.TmoID) {
		return OperationResponse{}, nil
	}
	key := strconv.FormatInt(mo.ID, 10)

	if _, err := o.store.GetMoNode(ctx, database, key); err == nil {
		// Already materialized: reclassify as update (spec §4.7
		// "create encounters a pre-existing MO -> reissued as update").
		return OperationResponse{Update: []Event{{Class: ClassMO, Entity: mo}}}, nil
	}

	node := model.MoNode{Key: key, Name: mo.Name, Tmo: mo.TmoID, MoIDs: []int64{mo.ID}}
	if err := o.store.UpsertMoNodes(ctx, database, []model.MoNode{node}); err != nil {
		return OperationResponse{}, fmt.Errorf("creating mo node %d: %w", mo.ID, err)
	}

	parentKey := ""
	if mo.PID != nil {
		parentKey = strconv.FormatInt(*mo.PID, 10)
		if err := o.store.UpsertMoEdges(ctx, database, []model.MoEdge{
			{Key: fmt.Sprintf("pid-%s-%s", key, parentKey), From: key, To: parentKey, ConnectionType: model.ConnectionTypePID},
		}); err != nil {
			return OperationResponse{}, fmt.Errorf("creating p_id edge for mo %d: %w", mo.ID, err)
		}
	}

	if err := o.rebuildBreadcrumb(ctx, database, key, parentKey); err != nil {
		return OperationResponse{}, err
	}

	if mo.PointAID != 0 && mo.PointBID != 0 {
		if err := o.reconcileGeometry(ctx, database, key, mo); err != nil {
			return OperationResponse{}, err
		}
	}
	return OperationResponse{}, nil
}

// Updated detects a parent or point change and recomputes the affected
// breadcrumb/geometry subset (spec §4.7 "MO.updated").
func (o *MoOrchestrator) Updated(ctx context.Context, database string, mo model.Mo) (OperationResponse, error) {
	if !o.cache.TmoActive(mo.TmoID) {
		return OperationResponse{}, nil
	}
	key := strconv.FormatInt(mo.ID, 10)

	existing, err := o.store.GetMoNode(ctx, database, key)
	if err != nil {
		// Update on a vertex that doesn't exist: reclassify as create
		// (spec §4.7).
		return OperationResponse{Create: []Event{{Class: ClassMO, Entity: mo}}}, nil
	}

	if !mo.Active {
		return OperationResponse{Delete: []Event{{Class: ClassMO, Entity: mo}}}, nil
	}

	if mo.Name != existing.Name {
		if err := o.store.WriteQuery(ctx, database, `
			MATCH (m:Mo {key: $key}) SET m.name = $name
		`, map[string]any{"key": key, "name": mo.Name}); err != nil {
			return OperationResponse{}, fmt.Errorf("renaming mo %d: %w", mo.ID, err)
		}
	}

	rows, err := o.store.ReadRecords(ctx, database, `
		MATCH (m:Mo {key: $key})-[:MO_LINK {connection_type: $pid}]->(p:Mo)
		RETURN p.key AS parent_key
	`, map[string]any{"key": key, "pid": string(model.ConnectionTypePID)})
	if err != nil {
		return OperationResponse{}, fmt.Errorf("reading mo %d current parent: %w", mo.ID, err)
	}
	currentParent := ""
	if len(rows) > 0 {
		currentParent, _ = rows[0]["parent_key"].(string)
	}
	newParent := ""
	if mo.PID != nil {
		newParent = strconv.FormatInt(*mo.PID, 10)
	}
	if currentParent != newParent {
		if err := o.store.WriteQuery(ctx, database, `
			MATCH (m:Mo {key: $key})-[r:MO_LINK {connection_type: $pid}]->(:Mo)
			DELETE r
		`, map[string]any{"key": key, "pid": string(model.ConnectionTypePID)}); err != nil {
			return OperationResponse{}, fmt.Errorf("deleting stale parent edge for mo %d: %w", mo.ID, err)
		}
		if newParent != "" {
			if err := o.store.UpsertMoEdges(ctx, database, []model.MoEdge{
				{Key: fmt.Sprintf("pid-%s-%s", key, newParent), From: key, To: newParent, ConnectionType: model.ConnectionTypePID},
			}); err != nil {
				return OperationResponse{}, fmt.Errorf("creating new parent edge for mo %d: %w", mo.ID, err)
			}
		}
		if err := o.rebuildBreadcrumb(ctx, database, key, newParent); err != nil {
			return OperationResponse{}, err
		}
		if err := o.propagateBreadcrumbsToDescendants(ctx, database, key); err != nil {
			return OperationResponse{}, err
		}
	}

	if mo.PointAID != 0 && mo.PointBID != 0 {
		if err := o.reconcileGeometry(ctx, database, key, mo); err != nil {
			return OperationResponse{}, err
		}
	}
	return OperationResponse{}, nil
}

// Deleted removes a vertex and every incident main/path edge. If its
// grouping parent becomes empty as a result, the grouping node is
// removed too (spec §4.7 "MO.deleted").
func (o *MoOrchestrator) Deleted(ctx context.Context, database string, moID int64) (OperationResponse, error) {
	key := strconv.FormatInt(moID, 10)

	rows, err := o.store.ReadRecords(ctx, database, `
		MATCH (m:Mo {key: $key})-[:MO_LINK {connection_type: $pid}]->(g:Mo)
		WHERE g.is_grouping = true
		RETURN g.key AS group_key
	`, map[string]any{"key": key, "pid": string(model.ConnectionTypePID)})
	if err != nil {
		return OperationResponse{}, fmt.Errorf("reading mo %d grouping parent: %w", moID, err)
	}
	var groupKey string
	if len(rows) > 0 {
		groupKey, _ = rows[0]["group_key"].(string)
	}

	if err := o.store.DeletePathEdgesTouching(ctx, database, []string{key}); err != nil {
		return OperationResponse{}, fmt.Errorf("deleting path edges touching mo %d: %w", moID, err)
	}
	if err := o.store.DeleteMoNodes(ctx, database, []string{key}); err != nil {
		return OperationResponse{}, fmt.Errorf("deleting mo node %d: %w", moID, err)
	}

	if groupKey != "" {
		if err := o.deleteGroupIfEmpty(ctx, database, groupKey); err != nil {
			return OperationResponse{}, err
		}
	}
	return OperationResponse{}, nil
}

func (o *MoOrchestrator) deleteGroupIfEmpty(ctx context.Context, database, groupKey string) error {
	rows, err := o.store.ReadRecords(ctx, database, `
		MATCH (g:Mo {key: $key})
		OPTIONAL MATCH (c:Mo)-[:MO_LINK {connection_type: $pid}]->(g)
		RETURN count(c) AS children
	`, map[string]any{"key": groupKey, "pid": string(model.ConnectionTypePID)})
	if err != nil {
		return fmt.Errorf("checking grouping node %s membership: %w", groupKey, err)
	}
	if len(rows) == 0 {
		return nil
	}
	children, _ := rows[0]["children"].(int64)
	if children > 0 {
		return nil
	}
	return o.store.DeleteMoNodes(ctx, database, []string{groupKey})
}

// rebuildBreadcrumb sets a single node's breadcrumb from its (possibly
// new) parent's, mirroring the builder's BFS rule without walking the
// whole tree.
func (o *MoOrchestrator) rebuildBreadcrumb(ctx context.Context, database, key, parentKey string) error {
	breadcrumb := "/" + key + "/"
	if parentKey != "" {
		node, err := o.store.GetMoNode(ctx, database, parentKey)
		if err != nil {
			return fmt.Errorf("reading parent %s breadcrumb: %w", parentKey, err)
		}
		breadcrumb = node.Breadcrumbs + key + "/"
	}
	return o.store.WriteQuery(ctx, database, `
		MATCH (m:Mo {key: $key}) SET m.breadcrumbs = $breadcrumb
	`, map[string]any{"key": key, "breadcrumb": breadcrumb})
}

// propagateBreadcrumbsToDescendants re-derives the breadcrumb of every
// descendant of key after its own breadcrumb changed (a parent change
// cascades down the p_id subtree).
func (o *MoOrchestrator) propagateBreadcrumbsToDescendants(ctx context.Context, database, key string) error {
	rows, err := o.store.ReadRecords(ctx, database, `
		MATCH (root:Mo {key: $key})
		MATCH (root)<-[:MO_LINK* {connection_type: $pid}]-(desc:Mo)
		RETURN desc.key AS key
	`, map[string]any{"key": key, "pid": string(model.ConnectionTypePID)})
	if err != nil {
		return fmt.Errorf("resolving descendants of mo %s: %w", key, err)
	}
	for _, row := range rows {
		descKey, _ := row["key"].(string)
		if descKey == "" {
			continue
		}
		parentRows, err := o.store.ReadRecords(ctx, database, `
			MATCH (m:Mo {key: $key})-[:MO_LINK {connection_type: $pid}]->(p:Mo)
			RETURN p.key AS parent_key
		`, map[string]any{"key": descKey, "pid": string(model.ConnectionTypePID)})
		if err != nil {
			return err
		}
		parentKey := ""
		if len(parentRows) > 0 {
			parentKey, _ = parentRows[0]["parent_key"].(string)
		}
		if err := o.rebuildBreadcrumb(ctx, database, descKey, parentKey); err != nil {
			return err
		}
	}
	return nil
}

// reconcileGeometry creates/refreshes the point_a/point_b edges and the
// derived geometry_line bridge for a line MO once both endpoints
// resolve (spec §4.5 step 5 / §4.7 "emit geometry_line when both points
// resolve").
func (o *MoOrchestrator) reconcileGeometry(ctx context.Context, database, key string, mo model.Mo) error {
	aKey := strconv.FormatInt(mo.PointAID, 10)
	bKey := strconv.FormatInt(mo.PointBID, 10)
	edges := []model.MoEdge{
		{Key: fmt.Sprintf("pa-%s-%s", key, aKey), From: key, To: aKey, ConnectionType: model.ConnectionTypePointA},
		{Key: fmt.Sprintf("pb-%s-%s", key, bKey), From: key, To: bKey, ConnectionType: model.ConnectionTypePointB},
	}
	if err := o.store.UpsertMoEdges(ctx, database, edges); err != nil {
		return fmt.Errorf("upserting point edges for mo %s: %w", key, err)
	}
	lineKey := key
	bridge := model.MoEdge{
		Key: fmt.Sprintf("line-%s-%s-%s", aKey, bKey, lineKey), From: aKey, To: bKey,
		ConnectionType: model.ConnectionTypeGeometryLine, Virtual: true, SourceID: &lineKey,
	}
	return o.store.UpsertMoEdges(ctx, database, []model.MoEdge{bridge})
}
