package graphstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avataa-hq/avataa-graphs/internal/model"
)

func TestTmoNodeProps_OptionalFieldsOmittedWhenNil(t *testing.T) {
	props := tmoNodeProps(model.TmoNode{TmoID: 10, Name: "Site"})
	_, hasPID := props["p_id"]
	assert.False(t, hasPID)
	assert.Equal(t, int64(10), props["tmo_id"])
}

func TestTmoNodeProps_IncludesPID(t *testing.T) {
	pid := int64(1)
	props := tmoNodeProps(model.TmoNode{TmoID: 10, PID: &pid})
	assert.Equal(t, int64(1), props["p_id"])
}

func TestMoNodeProps_GroupingNode(t *testing.T) {
	tprmID := int64(5)
	props := moNodeProps(model.MoNode{Key: "g1", GroupedByTprm: &tprmID, Tmo: 10})
	assert.Equal(t, true, props["is_grouping"])
	assert.Equal(t, int64(5), props["grouped_by_tprm"])
}

func TestMoNodeProps_RealMoIncludesDataFields(t *testing.T) {
	props := moNodeProps(model.MoNode{
		Key:  "m1",
		Tmo:  10,
		Data: &model.MoDto{Mo: model.Mo{ID: 42, Active: true, Latitude: 1.5}},
	})
	assert.Equal(t, int64(42), props["mo_id"])
	assert.Equal(t, true, props["active"])
	assert.Equal(t, 1.5, props["latitude"])
}

func TestChunkMoNodes_SplitsIntoSizedBatches(t *testing.T) {
	nodes := make([]model.MoNode, 5)
	batches := chunkMoNodes(nodes, 2)
	assert.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[2], 1)
}
