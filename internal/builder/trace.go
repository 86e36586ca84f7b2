package builder

import (
	"context"
	"fmt"

	"github.com/avataa-hq/avataa-graphs/internal/model"
)

// materializeTraceLayer implements spec §4.5 step 3: when a projection
// configures trace_tmo_id, the TMO subtree rooted there is materialized
// a second time, same streaming pass as materializeMoNodes, with every
// resulting MoNode flagged IsTrace:true.
func (b *Builder) materializeTraceLayer(ctx context.Context, database string, tmos []model.TmoNode, traceTmoID int64) error {
	byID := make(map[int64]model.TmoNode, len(tmos))
	childrenOf := make(map[int64][]model.TmoNode, len(tmos))
	for _, t := range tmos {
		byID[t.TmoID] = t
		if t.PID != nil {
			childrenOf[*t.PID] = append(childrenOf[*t.PID], t)
		}
	}
	root, ok := byID[traceTmoID]
	if !ok {
		return fmt.Errorf("trace tmo %d not found in schema layer", traceTmoID)
	}

	var subtree []model.TmoNode
	var walk func(model.TmoNode)
	walk = func(t model.TmoNode) {
		subtree = append(subtree, t)
		for _, child := range childrenOf[t.TmoID] {
			walk(child)
		}
	}
	walk(root)

	for _, tmo := range subtree {
		if !tmo.Materialize {
			continue
		}
		if err := b.materializeTMO(ctx, database, tmo, true); err != nil {
			return err
		}
	}
	return nil
}

// markTraceEdges flags every real, non-virtual MO_LINK edge landing on a
// trace-layer node as is_trace=true. Step 4 (create semantic links)
// builds real edges before the trace layer's own node flag is known to
// it, so forwardServiceConnections and the line-forwarding trace branch
// (spec §4.5 steps 6/8, which both key off the edge's is_trace property)
// need this separate sweep to ever have a starting edge to extend past.
func (b *Builder) markTraceEdges(ctx context.Context, database string) error {
	return b.store.WriteQuery(ctx, database, `
		MATCH (u:Mo)-[r:MO_LINK {virtual: false}]->(s:Mo {is_trace: true})
		SET r.is_trace = true
	`, nil)
}
