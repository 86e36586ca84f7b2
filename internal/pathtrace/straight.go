package pathtrace

// straighten collapses repeated visits to the same node into a single
// pass-through, mirroring trace_tasks.py's _get_straight_way: if a node
// key appears more than once in the ordered node list, everything
// between its first and last occurrence is dropped (the loop it
// represents squashed flat), and edges dangling off the removed nodes
// are dropped with them.
func straighten(t Trace) Trace {
	keys := make([]string, len(t.Nodes))
	for i, n := range t.Nodes {
		keys[i] = n.Key
	}
	count := make(map[string]int, len(keys))
	for _, k := range keys {
		count[k]++
	}

	for key, c := range count {
		if c <= 1 {
			continue
		}
		first := indexOf(keys, key)
		last := lastIndexOf(keys, key)
		if first < 0 || last < 0 || first >= last {
			continue
		}
		keys = append(keys[:first], keys[last:]...)
		t.Nodes = append(t.Nodes[:first], t.Nodes[last:]...)
	}

	present := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		present[k] = struct{}{}
	}
	kept := t.Edges[:0]
	for _, e := range t.Edges {
		_, fromOK := present[e.From]
		_, toOK := present[e.To]
		if fromOK && toOK {
			kept = append(kept, e)
		}
	}
	t.Edges = kept
	return t
}

func indexOf(xs []string, v string) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	return -1
}

func lastIndexOf(xs []string, v string) int {
	for i := len(xs) - 1; i >= 0; i-- {
		if xs[i] == v {
			return i
		}
	}
	return -1
}
