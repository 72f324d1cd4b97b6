package metal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	vk "github.com/goki/vulkan"

	"github.com/driftwood-gpu/metalvk/metal/types"
)

// fakeTexture satisfies the Texture interface for validation-only tests
// that never reach an actual Vulkan call.
type fakeTexture struct {
	desc types.TextureDescriptor
}

func (f *fakeTexture) image() vk.Image                                     { return nil }
func (f *fakeTexture) imageView() vk.ImageView                             { return nil }
func (f *fakeTexture) descriptor() types.TextureDescriptor                 { return f.desc }
func (f *fakeTexture) acquire() (uint64, *BinarySemaphore, uint64)         { return 0, nil, 0 }
func (f *fakeTexture) beginUpdatingPresentationSemaphore(*BinarySemaphore) {}
func (f *fakeTexture) endUpdatingPresentationSemaphore()                   {}
func (f *fakeTexture) synchronizePresentation() *BinarySemaphore           { return nil }
func (f *fakeTexture) timelineSemaphore() vk.Semaphore                     { return nil }

func TestCopyTextureToTextureRejectsMismatchedDimensions(t *testing.T) {
	e := &BlitCommandEncoder{touched: map[Texture]*touchedTexture{}}
	src := &fakeTexture{desc: types.TextureDescriptor{Width: 64, Height: 64, Depth: 1, MipLevels: 1, ArrayLength: 1}}
	dst := &fakeTexture{desc: types.TextureDescriptor{Width: 32, Height: 32, Depth: 1, MipLevels: 1, ArrayLength: 1}}

	err := e.CopyTextureToTexture(src, dst)
	assert.Error(t, err)
	assert.Equal(t, KindUnsupported, KindOf(err))
}

func TestFillBufferRejectsUnalignedRange(t *testing.T) {
	e := &BlitCommandEncoder{touched: map[Texture]*touchedTexture{}}
	buf := &Buffer{}

	err := e.FillBuffer(buf, 1, 4, 0xAB)
	assert.Error(t, err)
	assert.Equal(t, KindInvalidUsage, KindOf(err))

	err = e.FillBuffer(buf, 0, 5, 0xAB)
	assert.Error(t, err)
	assert.Equal(t, KindInvalidUsage, KindOf(err))
}
