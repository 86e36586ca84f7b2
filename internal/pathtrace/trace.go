// Package pathtrace implements C7: path-finding between two instance
// nodes and reconstruction of the resulting connectivity trace at a
// caller-chosen squash level (spec §4.6).
package pathtrace

import "github.com/avataa-hq/avataa-graphs/internal/model"

// Trace is a reconstructed connectivity result: the nodes and edges a
// client should render for one path between two MOs.
type Trace struct {
	Nodes []model.MoNode
	Edges []model.MoEdge
}

// extend appends another trace's nodes/edges in place, mirroring
// TraceResponse.extend (trace_levels_task.py).
func (t *Trace) extend(other Trace) {
	t.Nodes = append(t.Nodes, other.Nodes...)
	t.Edges = append(t.Edges, other.Edges...)
}

// dropOrphanEdges removes edges whose target isn't among the retained
// nodes, mirroring TraceResponse.drop_orphan_edges.
func (t *Trace) dropOrphanEdges() {
	present := make(map[string]struct{}, len(t.Nodes))
	for _, n := range t.Nodes {
		present[n.Key] = struct{}{}
	}
	kept := t.Edges[:0]
	for _, e := range t.Edges {
		if _, ok := present[e.To]; ok {
			kept = append(kept, e)
		}
	}
	t.Edges = kept
}

// dedupEdges removes repeated edges by key, mirroring
// TraceResponse.filter_same_edges.
func (t *Trace) dedupEdges() {
	seen := make(map[string]struct{}, len(t.Edges))
	kept := t.Edges[:0]
	for _, e := range t.Edges {
		if _, ok := seen[e.Key]; ok {
			continue
		}
		seen[e.Key] = struct{}{}
		kept = append(kept, e)
	}
	t.Edges = kept
}
