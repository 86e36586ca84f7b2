package changestream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaCache_TmoActiveDefaultsFalse(t *testing.T) {
	c := NewSchemaCache()
	assert.False(t, c.TmoActive(1))
}

func TestSchemaCache_SetTmoActive(t *testing.T) {
	c := NewSchemaCache()
	c.SetTmoActive(1, true)
	assert.True(t, c.TmoActive(1))
	c.SetTmoActive(1, false)
	assert.False(t, c.TmoActive(1))
}

func TestSchemaCache_TprmOwnerAndActive(t *testing.T) {
	c := NewSchemaCache()
	c.SetTmoActive(10, true)
	c.SetTprm(100, 10)

	owner, ok := c.TprmOwner(100)
	assert.True(t, ok)
	assert.Equal(t, int64(10), owner)
	assert.True(t, c.TprmActive(100))

	c.SetTmoActive(10, false)
	assert.False(t, c.TprmActive(100))
}

func TestSchemaCache_TprmActiveFalseWhenUnknown(t *testing.T) {
	c := NewSchemaCache()
	assert.False(t, c.TprmActive(999))
}

func TestSchemaCache_RemoveTmoDropsItsTprms(t *testing.T) {
	c := NewSchemaCache()
	c.SetTmoActive(10, true)
	c.SetTprm(100, 10)
	c.SetTprm(101, 10)
	c.SetTprm(200, 20)

	c.RemoveTmo(10)

	assert.False(t, c.TmoActive(10))
	_, ok := c.TprmOwner(100)
	assert.False(t, ok)
	_, ok = c.TprmOwner(101)
	assert.False(t, ok)
	owner, ok := c.TprmOwner(200)
	assert.True(t, ok)
	assert.Equal(t, int64(20), owner)
}

func TestSchemaCache_RemoveTprm(t *testing.T) {
	c := NewSchemaCache()
	c.SetTprm(100, 10)
	c.RemoveTprm(100)
	_, ok := c.TprmOwner(100)
	assert.False(t, ok)
}
