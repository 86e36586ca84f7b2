package pathtrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avataa-hq/avataa-graphs/internal/model"
)

func mo(key string, tmo int64) model.MoNode {
	return model.MoNode{Key: key, Tmo: tmo}
}

func pidEdge(key, from, to string) model.MoEdge {
	return model.MoEdge{Key: key, From: from, To: to, ConnectionType: model.ConnectionTypePID}
}

func TestTrackerFullLevelKeepsVirtualLinksOnEachNode(t *testing.T) {
	nodes := []model.MoNode{mo("a", 1), mo("b", 1)}
	edges := []model.MoEdge{
		{Key: "v1", From: "a", To: "b", ConnectionType: model.ConnectionTypeMoLink, Virtual: true},
	}
	tmos := []model.TmoNode{{TmoID: 1, GlobalUniqueness: true}}

	tr := newTracker(nodes, edges, tmos).getTrace(model.TrackingFull)
	assert.Len(t, tr.Nodes, 2)
	require.Len(t, tr.Edges, 1)
	assert.Equal(t, "v1", tr.Edges[0].Key)
}

func TestTrackerLocalLevelRehomesNonGlobalNodeLinks(t *testing.T) {
	// global parent "p" owns a non-global child "c" that has a real link
	// to another global node "g"; at Local level the link should be
	// re-homed onto "p" rather than reported at "c".
	nodes := []model.MoNode{mo("p", 1), mo("c", 2), mo("g", 1)}
	edges := []model.MoEdge{
		pidEdge("pid1", "c", "p"),
		{Key: "link1", From: "c", To: "g", ConnectionType: model.ConnectionTypeMoLink},
	}
	tmos := []model.TmoNode{
		{TmoID: 1, GlobalUniqueness: true},
		{TmoID: 2, GlobalUniqueness: false},
	}

	tr := newTracker(nodes, edges, tmos).getTrace(model.TrackingLocal)
	require.Len(t, tr.Edges, 1)
	assert.Equal(t, "p", tr.Edges[0].From)
	assert.Equal(t, "g", tr.Edges[0].To)
}

func TestTrackerGroupingNodeIsInvisible(t *testing.T) {
	groupTprm := int64(5)
	nodes := []model.MoNode{
		mo("parent", 1),
		{Key: "group", GroupedByTprm: &groupTprm, Tmo: 2},
		mo("child", 3),
	}
	edges := []model.MoEdge{
		pidEdge("pid1", "group", "parent"),
		pidEdge("pid2", "child", "group"),
	}
	tmos := []model.TmoNode{
		{TmoID: 1, GlobalUniqueness: true},
		{TmoID: 2, GlobalUniqueness: true},
		{TmoID: 3, GlobalUniqueness: true},
	}

	tr := newTracker(nodes, edges, tmos).getTrace(model.TrackingGraph)
	for _, n := range tr.Nodes {
		assert.NotEqual(t, "group", n.Key)
	}
	require.Len(t, tr.Edges, 1)
	assert.Equal(t, "child", tr.Edges[0].From)
	assert.Equal(t, "parent", tr.Edges[0].To)
}

func TestStraightenCollapsesRepeatedNodeVisit(t *testing.T) {
	tr := Trace{
		Nodes: []model.MoNode{mo("a", 1), mo("b", 1), mo("c", 1), mo("b", 1), mo("d", 1)},
		Edges: []model.MoEdge{
			{Key: "e1", From: "a", To: "b"},
			{Key: "e2", From: "b", To: "c"},
			{Key: "e3", From: "c", To: "b"},
			{Key: "e4", From: "b", To: "d"},
		},
	}
	out := straighten(tr)

	keys := make([]string, len(out.Nodes))
	for i, n := range out.Nodes {
		keys[i] = n.Key
	}
	assert.Equal(t, []string{"a", "b", "d"}, keys)
	for _, e := range out.Edges {
		assert.NotEqual(t, "e2", e.Key)
		assert.NotEqual(t, "e3", e.Key)
	}
}

func TestDeleteEndLinesTrimsLeadingAndTrailingLineNodes(t *testing.T) {
	lineGeom := model.GeometryTypeLine
	tmoByID := map[int64]model.TmoNode{
		1: {TmoID: 1, GeometryType: &lineGeom},
		2: {TmoID: 2},
	}
	tr := Trace{
		Nodes: []model.MoNode{mo("line1", 1), mo("svc", 2), mo("line2", 1)},
		Edges: []model.MoEdge{
			{Key: "e1", From: "line1", To: "svc"},
			{Key: "e2", From: "svc", To: "line2"},
		},
	}
	out := deleteEndLines(tr, tmoByID)
	require.Len(t, out.Nodes, 1)
	assert.Equal(t, "svc", out.Nodes[0].Key)
	assert.Empty(t, out.Edges)
}
