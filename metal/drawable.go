package metal

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/driftwood-gpu/metalvk/metal/types"
)

// Drawable is a Texture variant wrapping one acquired swapchain image. Its
// sync state is shared with the swapchain image it was acquired from,
// since that image's GPU-access discipline outlives this particular
// acquisition.
type Drawable struct {
	layer *Layer
	index uint32

	handle vk.Image
	view   vk.ImageView
	desc   types.TextureDescriptor

	acquireSema *BinarySemaphore
	sync        *syncState
}

func (d *Drawable) image() vk.Image                     { return d.handle }
func (d *Drawable) imageView() vk.ImageView              { return d.view }
func (d *Drawable) descriptor() types.TextureDescriptor   { return d.desc }
func (d *Drawable) acquire() (uint64, *BinarySemaphore, uint64) {
	return d.sync.doAcquire()
}
func (d *Drawable) beginUpdatingPresentationSemaphore(s *BinarySemaphore) { d.sync.beginUpdatingPresentation(s) }
func (d *Drawable) endUpdatingPresentationSemaphore()                     { d.sync.endUpdatingPresentation() }
func (d *Drawable) synchronizePresentation() *BinarySemaphore             { return d.sync.synchronizePresentation() }
func (d *Drawable) timelineSemaphore() vk.Semaphore                       { return d.sync.timelineSemaphore() }

// Present takes the presentation semaphore published by the last
// command-buffer use of this drawable and calls vkQueuePresentKHR with it
// as a wait.
func (d *Drawable) Present() error {
	presentSema := d.sync.synchronizePresentation()

	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{d.layer.swapchain},
		PImageIndices:  []uint32{d.index},
	}
	if presentSema != nil {
		presentInfo.WaitSemaphoreCount = 1
		presentInfo.PWaitSemaphores = []vk.Semaphore{presentSema.Handle()}
	}
	presentInfo.Deref()

	if res := vk.QueuePresent(d.layer.device.graphicsQueue, &presentInfo); res != vk.Success && res != vk.Suboptimal {
		return newError("Present", KindGPU, fmt.Errorf("vkQueuePresentKHR: %d", res))
	}
	return nil
}
