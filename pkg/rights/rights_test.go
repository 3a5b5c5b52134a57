package rights

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHas(t *testing.T) {
	r := Read | Write
	assert.True(t, r.Has(Read))
	assert.True(t, r.Has(Read|Write))
	assert.False(t, r.Has(Stat))
	assert.True(t, None.Has(None))
	assert.False(t, None.Has(Read))
}

func TestMaskNeverRaises(t *testing.T) {
	ceiling := Read | Stat
	assert.Equal(t, Read, (Read | Write).Mask(ceiling))
	assert.Equal(t, None, Write.Mask(ceiling))
	assert.Equal(t, ceiling, All.Mask(ceiling))
}
