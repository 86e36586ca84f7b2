package inventory

import (
	"testing"

	"github.com/avataa-hq/avataa-graphs/internal/inventory/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertTmoNode(t *testing.T) {
	node := pb.TmoTreeNode{
		ID:           "10",
		PID:          "1",
		Name:         "Site",
		Enabled:      true,
		GeometryType: "line",
		Label:        []string{"5", "6"},
		Child: []pb.TmoTreeNode{
			{ID: "11", PID: "10", Name: "Rack"},
		},
	}

	tmo := convertTmoNode(node)
	assert.Equal(t, int64(10), tmo.ID)
	require.NotNil(t, tmo.PID)
	assert.Equal(t, int64(1), *tmo.PID)
	require.NotNil(t, tmo.GeometryType)
	assert.Equal(t, "line", string(*tmo.GeometryType))
	assert.Equal(t, []int64{5, 6}, tmo.Label)
	require.Len(t, tmo.Children, 1)
	assert.Equal(t, int64(11), tmo.Children[0].ID)
}

func TestConvertTprms(t *testing.T) {
	tprms, err := convertTprms([]pb.TprmMessage{
		{ID: "100", TmoID: "10", Name: "vendor", ValType: "str"},
		{ID: "101", TmoID: "10", Name: "uplink", ValType: "mo_link", Constraint: "[20,21]"},
	})
	require.NoError(t, err)
	require.Len(t, tprms, 2)
	assert.Equal(t, int64(100), tprms[0].ID)
	assert.False(t, tprms[0].IsLinkType())
	assert.True(t, tprms[1].IsLinkType())
	assert.Equal(t, []int64{20, 21}, tprms[1].Constraint)
}

func TestConvertMo_WidensLargeIDs(t *testing.T) {
	// 2147483648 overflows int32, exercising the same widening the
	// original's tmp_int64_to_int guards against.
	mo, err := convertMo(pb.MoMessage{
		ID:    "2147483648",
		TmoID: "10",
		Name:  "core-switch-1",
		Params: []pb.PrmMessage{
			{ID: "1", TprmID: "100", MoID: "2147483648", Value: "edge1"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2147483648), mo.ID)
	require.Len(t, mo.Params, 1)
	assert.Equal(t, int64(2147483648), mo.Params[0].MoID)
}

func TestParseIDs_SkipsUnparseable(t *testing.T) {
	ids := parseIDs([]string{"1", "bad", "3"})
	assert.Equal(t, []int64{1, 3}, ids)
}
