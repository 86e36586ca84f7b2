package pathtrace

import "github.com/avataa-hq/avataa-graphs/internal/model"

// trackNode mirrors trace_levels_task.py's TrackNode: a path node plus
// the links attached to it, organized into a p_id tree so squashing can
// walk parent/child relationships.
type trackNode struct {
	node        model.MoNode
	isGlobal    bool
	parent      *trackNode
	parentLink  *model.MoEdge
	realLinks   []model.MoEdge
	virtualLinks []model.MoEdge
	children    []*trackNode
}

func (n *trackNode) parentID() string {
	if n.parent == nil {
		return ""
	}
	return n.parent.node.Key
}

func (n *trackNode) addLink(edge model.MoEdge) {
	switch {
	case edge.ConnectionType == model.ConnectionTypePID:
		e := edge
		n.parentLink = &e
	case edge.Virtual:
		n.virtualLinks = append(n.virtualLinks, edge)
	default:
		n.realLinks = append(n.realLinks, edge)
	}
}

func (n *trackNode) selfTrace() Trace {
	t := Trace{Nodes: []model.MoNode{n.node}, Edges: append([]model.MoEdge(nil), n.realLinks...)}
	if n.parentLink != nil {
		t.Edges = append(t.Edges, *n.parentLink)
	}
	return t
}

// nearestGlobalParent walks up until a globally-unique TMO instance (or
// the root) is found, mirroring get_nearest_global_parent.
func (n *trackNode) nearestGlobalParent() string {
	if n.isGlobal || n.parent == nil {
		return n.node.Key
	}
	return n.parent.nearestGlobalParent()
}

// tracker mirrors Tracker: a node/edge set organized into a p_id forest,
// with global-uniqueness flags looked up per TMO.
type tracker struct {
	byKey map[string]*trackNode
	roots []*trackNode
}

func newTracker(nodes []model.MoNode, edges []model.MoEdge, tmos []model.TmoNode) *tracker {
	global := make(map[int64]bool, len(tmos))
	for _, tmo := range tmos {
		global[tmo.TmoID] = tmo.GlobalUniqueness
	}

	byKey := make(map[string]*trackNode, len(nodes))
	for _, n := range nodes {
		byKey[n.Key] = &trackNode{node: n, isGlobal: global[n.Tmo]}
	}
	for _, e := range edges {
		from, ok := byKey[e.From]
		if !ok {
			continue
		}
		from.addLink(e)
		if e.ConnectionType == model.ConnectionTypePID {
			if to, ok := byKey[e.To]; ok {
				from.parent = to
				to.children = append(to.children, from)
			}
		}
	}

	var roots []*trackNode
	for _, n := range byKey {
		if n.parent == nil {
			roots = append(roots, n)
		}
	}
	return &tracker{byKey: byKey, roots: roots}
}

// getTrace squashes the forest to the requested TrackingType, mirroring
// Tracker.get_trace / TrackNode.get_trace.
func (tr *tracker) getTrace(level model.TrackingType) Trace {
	var result Trace
	for _, root := range tr.roots {
		if sub := tr.nodeTrace(root, level); sub != nil {
			result.extend(*sub)
		}
	}
	if level != model.TrackingGraph {
		result.dropOrphanEdges()
	}
	result.dedupEdges()
	return result
}

func (tr *tracker) nodeTrace(n *trackNode, level model.TrackingType) *Trace {
	if n.node.IsGrouping() {
		// A grouping node is itself invisible to every tracking level:
		// its children's edges are reattached to its parent (or dropped
		// if it's a root), mirroring TrackNode.get_trace's else branch.
		var merged Trace
		for _, child := range n.children {
			childTrace := tr.nodeTrace(child, level)
			if childTrace == nil {
				continue
			}
			if n.parent != nil {
				for i := range childTrace.Edges {
					if childTrace.Edges[i].To == n.node.Key {
						childTrace.Edges[i].To = n.parent.node.Key
					}
				}
			} else {
				kept := childTrace.Edges[:0]
				for _, e := range childTrace.Edges {
					if e.To != n.node.Key {
						kept = append(kept, e)
					}
				}
				childTrace.Edges = kept
			}
			merged.extend(*childTrace)
		}
		if len(merged.Nodes) == 0 && len(merged.Edges) == 0 {
			return nil
		}
		return &merged
	}

	switch level {
	case model.TrackingFull:
		t := n.selfTrace()
		t.Edges = append(t.Edges, n.virtualLinks...)
		return &t

	case model.TrackingLocal:
		if !n.isGlobal {
			edges := tr.convertSelfLinksToParentLinks(n)
			return &Trace{Edges: edges}
		}
		t := n.selfTrace()
		for _, child := range n.children {
			childTrace := tr.nodeTrace(child, level)
			if childTrace == nil {
				continue
			}
			if len(childTrace.Nodes) > 0 {
				t.extend(*childTrace)
				continue
			}
			toSet := make(map[string]struct{}, len(childTrace.Edges))
			for _, e := range childTrace.Edges {
				toSet[e.To] = struct{}{}
			}
			for _, v := range n.virtualLinks {
				if _, ok := toSet[v.To]; ok {
					t.Edges = append(t.Edges, v)
				}
			}
		}
		return &t

	case model.TrackingNone, model.TrackingStraight:
		t := n.selfTrace()
		for _, child := range n.children {
			if childTrace := tr.nodeTrace(child, level); childTrace != nil {
				t.extend(*childTrace)
			}
		}
		if len(n.children) == 0 {
			t.Edges = append(t.Edges, n.virtualLinks...)
		}
		return &t

	case model.TrackingGraph:
		t := n.selfTrace()
		for _, child := range n.children {
			if childTrace := tr.nodeTrace(child, level); childTrace != nil {
				t.extend(*childTrace)
			}
		}
		return &t
	}
	return nil
}

// convertSelfLinksToParentLinks re-homes a non-global node's outgoing
// links onto its nearest global ancestor (both ends), mirroring
// TrackNode._convert_self_links_to_parent_links.
func (tr *tracker) convertSelfLinksToParentLinks(n *trackNode) []model.MoEdge {
	if n.parent == nil {
		return nil
	}
	var results []model.MoEdge
	all := append(append([]model.MoEdge(nil), n.realLinks...), n.virtualLinks...)
	for _, link := range all {
		toNode, ok := tr.byKey[link.To]
		if !ok {
			continue
		}
		toParentID := toNode.nearestGlobalParent()
		if toParentID == "" {
			continue
		}
		results = append(results, model.MoEdge{
			Key:            link.Key,
			From:           n.parentID(),
			To:             toParentID,
			ConnectionType: link.ConnectionType,
			Virtual:        true,
			IsTrace:        link.IsTrace,
			SourceID:       link.SourceID,
		})
	}
	return results
}
