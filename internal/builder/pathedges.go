package builder

import (
	"context"

	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// fillPathEdgeCollection implements spec §4.5 step 4/6
// (fill_path_edge_collection.py): project every real, non-structural
// MoEdge (everything except p_id, which exists purely for hierarchy
// traversal) into the undirected PathEdge collection k-shortest-paths
// queries (C7) read exclusively.
func (b *Builder) fillPathEdgeCollection(ctx context.Context, database string) error {
	rows, err := b.store.ReadRecords(ctx, database, `
		MATCH (from:Mo)-[r:MO_LINK]->(to:Mo)
		WHERE r.connection_type <> $pid
		RETURN from.key AS from_key, to.key AS to_key
	`, map[string]any{"pid": string(model.ConnectionTypePID)})
	if err != nil {
		return err
	}

	seen := make(map[[2]string]struct{}, len(rows))
	var edges []model.PathEdge
	for _, row := range rows {
		from, fromOK := row["from_key"].(string)
		to, toOK := row["to_key"].(string)
		if !fromOK || !toOK {
			continue
		}
		edge := model.PathEdge{From: from, To: to}
		sig := edge.Signature()
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		edges = append(edges, edge)
	}
	return b.store.UpsertPathEdges(ctx, database, edges)
}
