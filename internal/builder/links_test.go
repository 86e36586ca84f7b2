package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avataa-hq/avataa-graphs/internal/model"
)

func TestLinkEdgesForPrm_MoLinkSingleValue(t *testing.T) {
	tprm := model.Tprm{ID: 5, ValType: model.ValTypeMoLink}
	prm := model.PrmDto{Prm: model.Prm{ID: 50, Value: int64(42)}}

	edges := LinkEdgesForPrm("1", prm, tprm)

	assert.Len(t, edges, 1)
	assert.Equal(t, "1", edges[0].From)
	assert.Equal(t, "42", edges[0].To)
	assert.Equal(t, model.ConnectionTypeMoLink, edges[0].ConnectionType)
	assert.Equal(t, []int64{50}, edges[0].Prm)
	assert.Equal(t, int64(5), *edges[0].Tprm)
}

func TestLinkEdgesForPrm_TwoWayLinkMultipleValues(t *testing.T) {
	tprm := model.Tprm{ID: 7, ValType: model.ValTypeTwoWayLink}
	prm := model.PrmDto{Prm: model.Prm{ID: 51, Value: []int64{10, 20}}}

	edges := LinkEdgesForPrm("1", prm, tprm)

	assert.Len(t, edges, 2)
	assert.Equal(t, model.ConnectionTypeTwoWayLink, edges[0].ConnectionType)
	assert.Equal(t, "10", edges[0].To)
	assert.Equal(t, "20", edges[1].To)
}

func TestLinkEdgesForPrm_NonLinkValueYieldsNoEdges(t *testing.T) {
	tprm := model.Tprm{ID: 9, ValType: model.ValTypeMoLink}
	prm := model.PrmDto{Prm: model.Prm{ID: 52, Value: "not a link"}}

	edges := LinkEdgesForPrm("1", prm, tprm)

	assert.Empty(t, edges)
}

func TestLinkEdgesForPrm_KeyDiffersAcrossTargets(t *testing.T) {
	tprm := model.Tprm{ID: 5, ValType: model.ValTypeMoLink}
	prm := model.PrmDto{Prm: model.Prm{ID: 50, Value: []int64{1, 2}}}

	edges := LinkEdgesForPrm("9", prm, tprm)

	assert.NotEqual(t, edges[0].Key, edges[1].Key)
}
