package pathtrace

import (
	"context"

	"github.com/avataa-hq/avataa-graphs/internal/graphstore"
	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// AllPathsForNode resolves the trace (service) nodes reachable from a
// given MO, mirroring find_trace_nodes_by_mo_id.py /
// GetAllPathsForNodeTask: if the node itself belongs to the trace TMO it
// is the sole result, otherwise every directly linked MO of that TMO is
// returned.
func (f *Finder) AllPathsForNode(ctx context.Context, database, nodeKey string, traceTmoID int64) ([]model.MoNode, error) {
	rows, err := f.store.ReadRecords(ctx, database, `
		MATCH (m:Mo {key: $key})
		WHERE m.tmo = $tmoId
		RETURN m
		LIMIT 1
	`, map[string]any{"key": nodeKey, "tmoId": traceTmoID})
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		if n, ok := graphstore.DecodeMoNode(rows[0], "m"); ok {
			return []model.MoNode{n}, nil
		}
	}

	rows, err = f.store.ReadRecords(ctx, database, `
		MATCH (m:Mo {key: $key})-[:MO_LINK]->(v:Mo)
		WHERE v.tmo = $tmoId
		RETURN DISTINCT v
	`, map[string]any{"key": nodeKey, "tmoId": traceTmoID})
	if err != nil {
		return nil, err
	}
	out := make([]model.MoNode, 0, len(rows))
	for _, row := range rows {
		if n, ok := graphstore.DecodeMoNode(row, "v"); ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// GetPath reconstructs the local connectivity trace around a single
// trace (service) node, mirroring GetPathTask: it gathers the MOs
// directly linked to traceNodeKey via mo_link/two-way link, the real
// edges among them, squashes to level, and trims any line-geometry node
// left dangling at either end of the result (delete_end_lines).
func (f *Finder) GetPath(ctx context.Context, database, traceNodeKey string, level model.TrackingType) (Trace, error) {
	rows, err := f.store.ReadRecords(ctx, database, `
		MATCH (v:Mo)-[e:MO_LINK]->(:Mo {key: $key})
		WHERE e.connection_type IN [$moLink, $twoWayLink]
		RETURN DISTINCT v
	`, map[string]any{
		"key":        traceNodeKey,
		"moLink":     string(model.ConnectionTypeMoLink),
		"twoWayLink": string(model.ConnectionTypeTwoWayLink),
	})
	if err != nil {
		return Trace{}, err
	}
	nodes := make([]model.MoNode, 0, len(rows))
	nodeKeys := make([]string, 0, len(rows))
	for _, row := range rows {
		if n, ok := graphstore.DecodeMoNode(row, "v"); ok {
			nodes = append(nodes, n)
			nodeKeys = append(nodeKeys, n.Key)
		}
	}
	if len(nodes) == 0 {
		return Trace{}, nil
	}

	edgeRows, err := f.store.ReadRecords(ctx, database, `
		MATCH (a:Mo)-[r:MO_LINK]->(b:Mo)
		WHERE a.key IN $keys AND b.key IN $keys AND r.connection_type <> $geometryLine
		RETURN DISTINCT r.key AS key, a.key AS from_key, b.key AS to_key, r.connection_type AS connection_type,
		       r.is_trace AS is_trace, r.virtual AS virtual
	`, map[string]any{"keys": nodeKeys, "geometryLine": string(model.ConnectionTypeGeometryLine)})
	if err != nil {
		return Trace{}, err
	}
	edges := make([]model.MoEdge, 0, len(edgeRows))
	for _, row := range edgeRows {
		key, _ := row["key"].(string)
		fromKey, _ := row["from_key"].(string)
		toKey, _ := row["to_key"].(string)
		connType, _ := row["connection_type"].(string)
		isTrace, _ := row["is_trace"].(bool)
		virtual, _ := row["virtual"].(bool)
		edges = append(edges, model.MoEdge{
			Key: key, From: fromKey, To: toKey,
			ConnectionType: model.ConnectionType(connType),
			IsTrace:        isTrace,
			Virtual:        virtual,
		})
	}

	tmos, err := f.loadTmoNodes(ctx, database)
	if err != nil {
		return Trace{}, err
	}
	tmoByID := make(map[int64]model.TmoNode, len(tmos))
	for _, tmo := range tmos {
		tmoByID[tmo.TmoID] = tmo
	}
	pathTmos := tmosForNodes(nodes, tmoByID)

	tr := newTracker(nodes, edges, pathTmos).getTrace(level)
	if level == model.TrackingStraight {
		tr = straighten(tr)
	}
	return deleteEndLines(tr, tmoByID), nil
}

// deleteEndLines strips a leading/trailing line-geometry node (and the
// edges that dangle off it) from a trace, mirroring GetPathTask.
// delete_end_lines's recursive trim.
func deleteEndLines(t Trace, tmoByID map[int64]model.TmoNode) Trace {
	for {
		if len(t.Nodes) == 0 {
			return t
		}
		toDelete := make(map[string]struct{}, 2)
		first := t.Nodes[0]
		last := t.Nodes[len(t.Nodes)-1]
		if tmo, ok := tmoByID[first.Tmo]; ok && tmo.IsLine() {
			toDelete[first.Key] = struct{}{}
			t.Nodes = t.Nodes[1:]
		}
		if len(t.Nodes) > 0 {
			last = t.Nodes[len(t.Nodes)-1]
		}
		if first.Key != last.Key {
			if tmo, ok := tmoByID[last.Tmo]; ok && tmo.IsLine() {
				toDelete[last.Key] = struct{}{}
				if len(t.Nodes) > 0 {
					t.Nodes = t.Nodes[:len(t.Nodes)-1]
				}
			}
		}
		if len(toDelete) == 0 {
			return t
		}
		kept := t.Edges[:0]
		for _, e := range t.Edges {
			if _, ok := toDelete[e.From]; ok {
				continue
			}
			if _, ok := toDelete[e.To]; ok {
				continue
			}
			kept = append(kept, e)
		}
		t.Edges = kept
	}
}
