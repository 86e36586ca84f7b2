package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertValue_Scalars(t *testing.T) {
	cases := []struct {
		name    string
		raw     interface{}
		valType ValType
		want    interface{}
	}{
		{"int from string", "42", ValTypeInt, int64(42)},
		{"float from string", "3.5", ValTypeFloat, 3.5},
		{"bool true", "true", ValTypeBool, true},
		{"bool one", "1", ValTypeBool, true},
		{"mo_link widens", "2147483648", ValTypeMoLink, int64(2147483648)},
		{"str passthrough", "hello", ValTypeStr, "hello"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ConvertValue(tc.raw, Tprm{ValType: tc.valType})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestConvertValue_Multiple(t *testing.T) {
	got, err := ConvertValue([]interface{}{"1", "2", "3"}, Tprm{ValType: ValTypeInt, Multiple: true})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(1), int64(2), int64(3)}, got)
}

type fakeResolver struct {
	mos  []Mo
	prms []Prm
}

func (f fakeResolver) MosByMoIDs(ctx context.Context, moIDs []int64) ([]Mo, error) {
	return f.mos, nil
}

func (f fakeResolver) PrmsByPrmIDs(ctx context.Context, prmIDs []int64) ([]Prm, error) {
	return f.prms, nil
}

func TestResolveParsedValue_MoLink(t *testing.T) {
	resolver := fakeResolver{mos: []Mo{{ID: 7, Name: "Site A"}, {ID: 9, Name: "Site B"}}}
	prm := Prm{ID: 1, Value: []int64{7, 9}}
	tprm := Tprm{ValType: ValTypeMoLink}

	pv, err := ResolveParsedValue(context.Background(), prm, tprm, resolver)
	require.NoError(t, err)
	require.NotNil(t, pv)
	assert.Equal(t, []string{"Site A", "Site B"}, pv.Value)
	assert.Equal(t, []int64{7, 9}, pv.Triggers.Mos)
}

func TestResolveParsedValue_TwoWayLinkDelegatesToPrmLink(t *testing.T) {
	// two-way link must resolve like prm_link (via PrmsByPrmIDs), not
	// mo_link (via MosByMoIDs) — the asymmetry documented in codec.go.
	resolver := fakeResolver{prms: []Prm{{ID: 55, MoID: 3, Value: "reciprocal"}}}
	prm := Prm{ID: 1, Value: []int64{55}}
	tprm := Tprm{ValType: ValTypeTwoWayLink}

	pv, err := ResolveParsedValue(context.Background(), prm, tprm, resolver)
	require.NoError(t, err)
	require.NotNil(t, pv)
	assert.Equal(t, []int64{55}, pv.Triggers.Prms)
	assert.Equal(t, []int64{3}, pv.Triggers.Mos)
}

func TestResolveParsedValue_NonLinkReturnsNil(t *testing.T) {
	pv, err := ResolveParsedValue(context.Background(), Prm{Value: "x"}, Tprm{ValType: ValTypeStr}, fakeResolver{})
	require.NoError(t, err)
	assert.Nil(t, pv)
}

func TestStringifyValue(t *testing.T) {
	assert.Equal(t, "null", StringifyValue(nil))
	assert.Equal(t, "hello", StringifyValue("hello"))
	assert.Equal(t, `{"a":1,"b":2}`, StringifyValue(map[string]interface{}{"b": 2, "a": 1}))
}
