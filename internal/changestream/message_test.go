package changestream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey_ValidCombinations(t *testing.T) {
	key, err := ParseKey("MO:created")
	require.NoError(t, err)
	assert.Equal(t, Key{Class: ClassMO, Op: OpCreated}, key)

	key, err = ParseKey("TPRM:deleted")
	require.NoError(t, err)
	assert.Equal(t, Key{Class: ClassTPRM, Op: OpDeleted}, key)
}

func TestParseKey_RejectsUnknownClass(t *testing.T) {
	_, err := ParseKey("WIDGET:created")
	assert.Error(t, err)
}

func TestParseKey_RejectsUnknownOp(t *testing.T) {
	_, err := ParseKey("MO:renamed")
	assert.Error(t, err)
}

func TestParseKey_RejectsMalformedKey(t *testing.T) {
	_, err := ParseKey("MO-created")
	assert.Error(t, err)
}

func TestEnvelope_DecodeTmos(t *testing.T) {
	env := Envelope{Payload: []byte(`[{"id":1,"name":"Site"},{"id":2,"name":"Region"}]`)}
	tmos, err := env.DecodeTmos()
	require.NoError(t, err)
	require.Len(t, tmos, 2)
	assert.Equal(t, int64(1), tmos[0].ID)
	assert.Equal(t, "Region", tmos[1].Name)
}

func TestEnvelope_DecodeMos_RejectsMalformedPayload(t *testing.T) {
	env := Envelope{Payload: []byte(`not json`)}
	_, err := env.DecodeMos()
	assert.Error(t, err)
}

func TestEnvelope_DecodePrms(t *testing.T) {
	env := Envelope{Payload: []byte(`[{"id":7,"tprm_id":3,"mo_id":42,"value":5}]`)}
	prms, err := env.DecodePrms()
	require.NoError(t, err)
	require.Len(t, prms, 1)
	assert.Equal(t, int64(42), prms[0].MoID)
}
