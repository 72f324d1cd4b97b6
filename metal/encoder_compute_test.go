package metal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatchThreadsRejectsPartialThreadgroup(t *testing.T) {
	e := &ComputeCommandEncoder{touched: map[Texture]*touchedTexture{}}

	err := e.DispatchThreads([3]uint32{100, 8, 1}, [3]uint32{8, 8, 1})
	assert.Error(t, err)
	assert.Equal(t, KindUnsupported, KindOf(err))
}

func TestDispatchThreadsRejectsZeroThreadgroupDimension(t *testing.T) {
	e := &ComputeCommandEncoder{touched: map[Texture]*touchedTexture{}}

	err := e.DispatchThreads([3]uint32{64, 64, 1}, [3]uint32{8, 0, 1})
	assert.Error(t, err)
	assert.Equal(t, KindUnsupported, KindOf(err))
}
