package graphstore

import (
	"context"

	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// UpsertTmoEdges bulk-writes schema-layer edges, generalizing
// Neo4jBackend.CreateEdges' UNWIND pattern to the Tmo label.
func (s *Store) UpsertTmoEdges(ctx context.Context, database string, edges []model.TmoEdge) error {
	if len(edges) == 0 {
		return nil
	}
	params := make([]map[string]any, len(edges))
	for i, e := range edges {
		p := map[string]any{
			"from":      e.From,
			"to":        e.To,
			"link_type": string(e.LinkType),
			"enabled":   e.Enabled,
		}
		if e.TprmID != nil {
			p["tprm_id"] = *e.TprmID
		}
		params[i] = p
	}
	return s.run(ctx, database, `
		UNWIND $edges AS edge
		MATCH (from:Tmo {key: edge.from})
		MATCH (to:Tmo {key: edge.to})
		MERGE (from)-[r:TMO_LINK {link_type: edge.link_type}]->(to)
		SET r.enabled = edge.enabled, r.tprm_id = edge.tprm_id
	`, map[string]any{"edges": params})
}

// UpsertMoEdges bulk-writes instance-layer edges (real p_id/mo_link/
// two-way link/point_a/point_b/geometry_line edges, plus virtual spread
// edges), spec §4.5 steps 3-6.
func (s *Store) UpsertMoEdges(ctx context.Context, database string, edges []model.MoEdge) error {
	if len(edges) == 0 {
		return nil
	}
	params := make([]map[string]any, len(edges))
	for i, e := range edges {
		p := map[string]any{
			"key":             e.Key,
			"from":            e.From,
			"to":              e.To,
			"connection_type": string(e.ConnectionType),
			"prm":             e.Prm,
			"is_trace":        e.IsTrace,
			"virtual":         e.Virtual,
		}
		if e.Tprm != nil {
			p["tprm"] = *e.Tprm
		}
		if e.SourceID != nil {
			p["source_id"] = *e.SourceID
		}
		params[i] = p
	}
	return s.run(ctx, database, `
		UNWIND $edges AS edge
		MATCH (from:Mo {key: edge.from})
		MATCH (to:Mo {key: edge.to})
		MERGE (from)-[r:MO_LINK {key: edge.key}]->(to)
		SET r += edge
	`, map[string]any{"edges": params})
}

// UpsertVirtualMoEdges bulk-writes spread-connection virtual edges (spec
// §4.5 step 9), merging by (from, to, connection_type, tprm) instead of
// by surrogate key: two different source edges that spread to the same
// virtual pair must land on one relationship with prm ids unioned, not
// one relationship each. tprmKey carries *e.Tprm, or -1 when e.Tprm is
// nil, so the MERGE pattern key never has to match against a null
// property.
func (s *Store) UpsertVirtualMoEdges(ctx context.Context, database string, edges []model.MoEdge) error {
	if len(edges) == 0 {
		return nil
	}
	params := make([]map[string]any, len(edges))
	for i, e := range edges {
		tprmKey := int64(-1)
		if e.Tprm != nil {
			tprmKey = *e.Tprm
		}
		p := map[string]any{
			"key":             e.Key,
			"from":            e.From,
			"to":              e.To,
			"connection_type": string(e.ConnectionType),
			"tprm_key":        tprmKey,
			"is_trace":        e.IsTrace,
			"prm":             e.Prm,
		}
		if e.Tprm != nil {
			p["tprm"] = *e.Tprm
		}
		if e.SourceID != nil {
			p["source_id"] = *e.SourceID
		}
		params[i] = p
	}
	return s.run(ctx, database, `
		UNWIND $edges AS edge
		MATCH (from:Mo {key: edge.from})
		MATCH (to:Mo {key: edge.to})
		MERGE (from)-[r:MO_LINK {virtual: true, connection_type: edge.connection_type, tprm_key: edge.tprm_key}]->(to)
		ON CREATE SET r.key = edge.key, r.is_trace = edge.is_trace, r.source_id = edge.source_id,
		              r.tprm = edge.tprm, r.prm = coalesce(edge.prm, [])
		ON MATCH SET r.prm = reduce(acc = coalesce(r.prm, []), x IN coalesce(edge.prm, []) |
		              CASE WHEN x IN acc THEN acc ELSE acc + x END)
	`, map[string]any{"edges": params})
}

// DeleteMoEdges removes instance-layer edges by surrogate key.
func (s *Store) DeleteMoEdges(ctx context.Context, database string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.run(ctx, database, `
		UNWIND $keys AS key
		MATCH ()-[r:MO_LINK {key: key}]->()
		DELETE r
	`, map[string]any{"keys": keys})
}

// UpsertPathEdges bulk-writes the undirected PathEdge projection used
// exclusively by k-shortest-paths queries (spec §4.6). Stored as a
// distinct relationship type so path queries never traverse p_id/virtual
// structural edges by accident.
func (s *Store) UpsertPathEdges(ctx context.Context, database string, edges []model.PathEdge) error {
	if len(edges) == 0 {
		return nil
	}
	params := make([]map[string]any, len(edges))
	for i, e := range edges {
		sig := e.Signature()
		params[i] = map[string]any{"from": sig[0], "to": sig[1]}
	}
	return s.run(ctx, database, `
		UNWIND $edges AS edge
		MATCH (from:Mo {key: edge.from})
		MATCH (to:Mo {key: edge.to})
		MERGE (from)-[:PATH_EDGE]-(to)
	`, map[string]any{"edges": params})
}

// DeletePathEdgesTouching removes every PathEdge incident on the given
// node keys, used when the builder recomputes the path-edge projection
// for a changed subgraph (spec §4.5 step 4, §4.7 cascade).
func (s *Store) DeletePathEdgesTouching(ctx context.Context, database string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.run(ctx, database, `
		UNWIND $keys AS key
		MATCH (m:Mo {key: key})-[r:PATH_EDGE]-()
		DELETE r
	`, map[string]any{"keys": keys})
}
