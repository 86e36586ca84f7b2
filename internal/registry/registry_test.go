package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avataa-hq/avataa-graphs/internal/model"
)

func TestValidTransition(t *testing.T) {
	cases := []struct {
		from, to model.Status
		want     bool
	}{
		{model.StatusNew, model.StatusInProcess, true},
		{model.StatusNew, model.StatusComplete, false},
		{model.StatusInProcess, model.StatusComplete, true},
		{model.StatusInProcess, model.StatusError, true},
		{model.StatusComplete, model.StatusInProcess, true},
		{model.StatusError, model.StatusInProcess, true},
		{model.StatusComplete, model.StatusError, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, validTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestMainRecordKey(t *testing.T) {
	assert.Equal(t, "main_42", mainRecordKey(42))
}
