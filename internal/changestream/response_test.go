package changestream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationResponse_MergeAppendsAllThreeArrays(t *testing.T) {
	r := OperationResponse{
		Create: []Event{{Class: ClassMO}},
	}
	r.merge(OperationResponse{
		Update: []Event{{Class: ClassPRM}},
		Delete: []Event{{Class: ClassTPRM}, {Class: ClassTMO}},
	})

	assert.Len(t, r.Create, 1)
	assert.Len(t, r.Update, 1)
	assert.Len(t, r.Delete, 2)
	assert.Equal(t, ClassPRM, r.Update[0].Class)
}

func TestOperationResponse_MergeOnZeroValue(t *testing.T) {
	var r OperationResponse
	r.merge(OperationResponse{Create: []Event{{Class: ClassMO}}})
	assert.Len(t, r.Create, 1)
}
