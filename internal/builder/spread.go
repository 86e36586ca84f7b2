package builder

import (
	"context"
	"fmt"

	"github.com/avataa-hq/avataa-graphs/internal/graphstore"
	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// ancestorNode is one step of a p_id ancestor chain: a node key paired
// with the TmoNode it's an instance of, nearest-first.
type ancestorNode struct {
	key string
	tmo model.TmoNode
}

// spreadConnections implements spec §4.5 step 9 (spread_connections.py):
// for every real, non-p_id edge (u,v), find lca(u,v) — the nearest
// common p_id ancestor of both endpoints — then emit one virtual edge
// from each ancestor of u strictly above lca to the single node
// nearestGlobalAncestor(v). Higher abstraction levels (e.g. "Site A" to
// "Site B") stay connected even though the real connection exists
// between two leaf MOs deep inside each site.
//
// Per the resolved Open Question on isTracking (SPEC_FULL §4c): when
// exactly one endpoint is a trace node (to.is_trace && !from.is_trace),
// only a single link (u,v,virtual=true) is emitted and no ancestor
// spreading happens; when both or neither endpoint is a trace node, the
// full lca-bounded spread applies.
func (b *Builder) spreadConnections(ctx context.Context, database string, tmos []model.TmoNode) error {
	rows, err := b.store.ReadRecords(ctx, database, `
		MATCH (from:Mo)-[r:MO_LINK]->(to:Mo)
		WHERE r.connection_type <> $pid AND r.virtual = false
		RETURN from.key AS from_key, to.key AS to_key, r.key AS edge_key, r.connection_type AS connection_type,
		       r.tprm AS tprm, from.is_trace AS from_trace, to.is_trace AS to_trace
	`, map[string]any{"pid": string(model.ConnectionTypePID)})
	if err != nil {
		return err
	}

	var virtualEdges []model.MoEdge
	for _, row := range rows {
		fromKey, _ := row["from_key"].(string)
		toKey, _ := row["to_key"].(string)
		edgeKey, _ := row["edge_key"].(string)
		connType, _ := row["connection_type"].(string)
		fromTrace, _ := row["from_trace"].(bool)
		toTrace, _ := row["to_trace"].(bool)
		if fromKey == "" || toKey == "" {
			continue
		}
		var tprm *int64
		if v, ok := row["tprm"].(int64); ok {
			tprm = &v
		}

		// isTracking shortcut: a single non-spreading link when only the
		// "to" side is a trace node.
		if toTrace && !fromTrace {
			virtualEdges = append(virtualEdges, b.virtualEdge(fromKey, toKey, edgeKey, connType, tprm, toTrace))
			continue
		}

		fromChain, err := b.ancestorChainNodes(ctx, database, fromKey)
		if err != nil {
			return err
		}
		toChain, err := b.ancestorChainNodes(ctx, database, toKey)
		if err != nil {
			return err
		}

		lca := nearestCommonAncestor(fromChain, toChain)
		target := nearestGlobalAncestor(toChain)
		if target == "" {
			target = toKey
		}

		for _, a := range ancestorsAbove(fromChain, lca) {
			if a.key == target {
				continue
			}
			virtualEdges = append(virtualEdges, b.virtualEdge(a.key, target, edgeKey, connType, tprm, toTrace))
		}
	}
	return b.store.UpsertVirtualMoEdges(ctx, database, virtualEdges)
}

func (b *Builder) virtualEdge(from, to, edgeKey, connType string, tprm *int64, isTrace bool) model.MoEdge {
	sourceID := edgeKey
	return model.MoEdge{
		Key:            fmt.Sprintf("virtual-%s-%s", from, to),
		From:           from,
		To:             to,
		ConnectionType: model.ConnectionType(connType),
		Tprm:           tprm,
		Prm:            []int64{},
		IsTrace:        isTrace,
		Virtual:        true,
		SourceID:       &sourceID,
	}
}

// ancestorChainNodes returns key, then every p_id ancestor of key up to
// the root, nearest-first, each paired with its TmoNode.
func (b *Builder) ancestorChainNodes(ctx context.Context, database, key string) ([]ancestorNode, error) {
	rows, err := b.store.ReadRecords(ctx, database, `
		MATCH (start:Mo {key: $key})
		OPTIONAL MATCH path = (start)<-[:MO_LINK*0..]-(ancestor:Mo)
		WHERE ALL(r IN relationships(path) WHERE r.connection_type = $pid)
		OPTIONAL MATCH (tmo:Tmo {tmo_id: ancestor.tmo})
		RETURN ancestor.key AS key, tmo AS tmo, length(path) AS depth
		ORDER BY depth ASC
	`, map[string]any{"key": key, "pid": string(model.ConnectionTypePID)})
	if err != nil {
		return nil, fmt.Errorf("walking ancestor chain for %s: %w", key, err)
	}
	out := make([]ancestorNode, 0, len(rows))
	for _, row := range rows {
		k, ok := row["key"].(string)
		if !ok {
			continue
		}
		tmoNode, _ := graphstore.DecodeTmoNodeFromRow(row, "tmo")
		out = append(out, ancestorNode{key: k, tmo: tmoNode})
	}
	if len(out) == 0 {
		out = append(out, ancestorNode{key: key})
	}
	return out, nil
}

// nearestCommonAncestor returns the key nearest the leaves that appears
// in both chains (nearest-first, so the first match walking from is the
// lowest common ancestor), matching HierarchicalDbMo.get_nearest_parent_id.
// Returns "" when the chains share no ancestor.
func nearestCommonAncestor(from, to []ancestorNode) string {
	inTo := make(map[string]struct{}, len(to))
	for _, n := range to {
		inTo[n.key] = struct{}{}
	}
	for _, n := range from {
		if _, ok := inTo[n.key]; ok {
			return n.key
		}
	}
	return ""
}

// ancestorsAbove returns every element of chain strictly above lca
// (i.e. positioned after lca toward the root), excluding lca itself and
// everything between the leaf and lca. Returns nil when lca is absent or
// is the root of chain.
func ancestorsAbove(chain []ancestorNode, lca string) []ancestorNode {
	if lca == "" {
		return nil
	}
	for i, n := range chain {
		if n.key == lca {
			if i+1 >= len(chain) {
				return nil
			}
			return chain[i+1:]
		}
	}
	return nil
}

// nearestGlobalAncestor returns the key of the nearest-to-leaf node in
// chain whose TMO has global_uniqueness set, walking from the leaf
// toward the root. Falls back to the chain's root when no node qualifies.
func nearestGlobalAncestor(chain []ancestorNode) string {
	for _, n := range chain {
		if n.tmo.GlobalUniqueness {
			return n.key
		}
	}
	if len(chain) > 0 {
		return chain[len(chain)-1].key
	}
	return ""
}
