package metal

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/google/uuid"

	vk "github.com/goki/vulkan"

	"github.com/driftwood-gpu/metalvk/metal/types"
)

// Texture is the common interface satisfied by concrete textures, texture
// views, and drawables. Concrete owns its Vulkan image; View and Drawable
// delegate image/layout operations to a parent.
type Texture interface {
	image() vk.Image
	imageView() vk.ImageView
	descriptor() types.TextureDescriptor
	acquire() (waitValue uint64, extraWait *BinarySemaphore, signalValue uint64)
	beginUpdatingPresentationSemaphore(sema *BinarySemaphore)
	endUpdatingPresentationSemaphore()
	synchronizePresentation() *BinarySemaphore
	timelineSemaphore() vk.Semaphore
}

// syncState holds a texture's persistent timeline semaphore and monotonic
// sync counter, plus the swapchain "extra wait" / presentation semaphore
// slots described in spec.md §3.
type syncState struct {
	mu          sync.Mutex
	sema        vk.Semaphore
	counter     uint64
	extraWait   *BinarySemaphore
	presentMu   sync.Mutex
	presentSema *BinarySemaphore
}

func newSyncState(d *Device) (syncState, error) {
	typeInfo := vk.SemaphoreTypeCreateInfo{
		SType:         vk.StructureTypeSemaphoreTypeCreateInfo,
		SemaphoreType: vk.SemaphoreTypeTimeline,
	}
	typeInfo.Deref()
	createInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
		PNext: unsafe.Pointer(&typeInfo),
	}
	createInfo.Deref()

	var sema vk.Semaphore
	if res := vk.CreateSemaphore(d.logicalDevice, &createInfo, nil, &sema); res != vk.Success {
		return syncState{}, fmt.Errorf("vkCreateSemaphore: %d", res)
	}
	return syncState{sema: sema}, nil
}

// timelineSemaphore returns the texture's own persistent timeline
// semaphore, used by CommandBuffer.Commit to build the submit's wait/
// signal arrays.
func (s *syncState) timelineSemaphore() vk.Semaphore { return s.sema }

func (s *syncState) doAcquire() (uint64, *BinarySemaphore, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wait := s.counter
	extra := s.extraWait
	s.extraWait = nil
	s.counter++
	signal := s.counter
	return wait, extra, signal
}

func (s *syncState) setExtraWait(sem *BinarySemaphore) {
	s.mu.Lock()
	s.extraWait = sem
	s.mu.Unlock()
}

func (s *syncState) beginUpdatingPresentation(sema *BinarySemaphore) {
	s.presentMu.Lock()
	s.presentSema = sema
}

func (s *syncState) endUpdatingPresentation() {
	s.presentMu.Unlock()
}

func (s *syncState) synchronizePresentation() *BinarySemaphore {
	s.presentMu.Lock()
	defer s.presentMu.Unlock()
	sema := s.presentSema
	s.presentSema = nil
	return sema
}

// ConcreteTexture owns a Vulkan image, image view, and memory allocation.
// It is eagerly transitioned to GENERAL layout at creation and kept there
// between operations.
type ConcreteTexture struct {
	ID uuid.UUID

	device *Device
	desc   types.TextureDescriptor

	handle vk.Image
	view   vk.ImageView
	memory vk.DeviceMemory

	sync syncState
}

// NewTexture creates a concrete texture per desc: infers image/view type,
// computes aspect mask, picks tiling, requests every usage the system
// might need, and transitions UNDEFINED -> GENERAL via a one-shot command
// before returning.
func (d *Device) NewTexture(desc types.TextureDescriptor) (*ConcreteTexture, error) {
	const op = "NewTexture"

	format, ok := desc.PixelFormat.ToVulkan()
	if !ok {
		return nil, newError(op, KindBadEnumValue, fmt.Errorf("unrecognized pixel format %v", desc.PixelFormat))
	}

	tiling := vk.ImageTilingOptimal
	if !desc.PixelFormat.IsDepthFormat() && !desc.PixelFormat.IsStencilFormat() && desc.MipLevels == 1 {
		tiling = vk.ImageTilingLinear
	}

	usage := vk.ImageUsageFlagBits(vk.ImageUsageSampledBit | vk.ImageUsageStorageBit |
		vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit)
	if desc.PixelFormat.IsDepthFormat() || desc.PixelFormat.IsStencilFormat() {
		usage |= vk.ImageUsageDepthStencilAttachmentBit
	} else {
		usage |= vk.ImageUsageColorAttachmentBit
	}

	arrayLayers := desc.ArrayLength
	if desc.TextureType.IsArray() {
		arrayLayers = desc.ArrayLength
	} else if arrayLayers == 0 {
		arrayLayers = 1
	}
	if desc.TextureType == types.TextureTypeCube || desc.TextureType == types.TextureTypeCubeArray {
		arrayLayers *= 6
	}

	createInfo := vk.ImageCreateInfo{
		SType:       vk.StructureTypeImageCreateInfo,
		ImageType:   desc.TextureType.ImageType(),
		Format:      format,
		Extent:      vk.Extent3D{Width: desc.Width, Height: desc.Height, Depth: max1(desc.Depth)},
		MipLevels:   max1(desc.MipLevels),
		ArrayLayers: max1(arrayLayers),
		Samples:     sampleCountFlag(desc.SampleCount),
		Tiling:      tiling,
		Usage:       vk.ImageUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	createInfo.Deref()
	createInfo.Extent.Deref()

	var image vk.Image
	if res := vk.CreateImage(d.logicalDevice, &createInfo, nil, &image); res != vk.Success {
		return nil, newError(op, KindAllocationFailed, fmt.Errorf("vkCreateImage: %d", res))
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.logicalDevice, image, &requirements)
	requirements.Deref()

	typeIndex, err := d.findMemoryType(requirements.MemoryTypeBits, memoryPropertyFlagsFor(desc.StorageMode))
	if err != nil {
		vk.DestroyImage(d.logicalDevice, image, nil)
		return nil, newError(op, KindAllocationFailed, err)
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: typeIndex,
	}
	allocInfo.Deref()

	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(d.logicalDevice, &allocInfo, nil, &memory); res != vk.Success {
		vk.DestroyImage(d.logicalDevice, image, nil)
		return nil, newError(op, KindAllocationFailed, fmt.Errorf("vkAllocateMemory: %d", res))
	}
	if res := vk.BindImageMemory(d.logicalDevice, image, memory, 0); res != vk.Success {
		vk.FreeMemory(d.logicalDevice, memory, nil)
		vk.DestroyImage(d.logicalDevice, image, nil)
		return nil, newError(op, KindAllocationFailed, fmt.Errorf("vkBindImageMemory: %d", res))
	}

	aspect := aspectMaskFor(desc.PixelFormat)
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: desc.TextureType.ViewType(),
		Format:   format,
		Components: desc.Swizzle.ToVulkan(),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     max1(desc.MipLevels),
			BaseArrayLayer: 0,
			LayerCount:     max1(arrayLayers),
		},
	}
	viewInfo.Deref()
	viewInfo.Components.Deref()
	viewInfo.SubresourceRange.Deref()

	var view vk.ImageView
	if res := vk.CreateImageView(d.logicalDevice, &viewInfo, nil, &view); res != vk.Success {
		vk.FreeMemory(d.logicalDevice, memory, nil)
		vk.DestroyImage(d.logicalDevice, image, nil)
		return nil, newError(op, KindAllocationFailed, fmt.Errorf("vkCreateImageView: %d", res))
	}

	sync, err := newSyncState(d)
	if err != nil {
		vk.DestroyImageView(d.logicalDevice, view, nil)
		vk.FreeMemory(d.logicalDevice, memory, nil)
		vk.DestroyImage(d.logicalDevice, image, nil)
		return nil, newError(op, KindAllocationFailed, err)
	}

	t := &ConcreteTexture{
		ID:     uuid.New(),
		device: d,
		desc:   desc,
		handle: image,
		view:   view,
		memory: memory,
		sync:   sync,
	}

	if err := d.transitionImageLayout(image, aspect, vk.ImageLayoutUndefined, vk.ImageLayoutGeneral); err != nil {
		t.Destroy()
		return nil, newError(op, KindGPU, err)
	}

	return t, nil
}

func max1(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	return v
}

func sampleCountFlag(count uint32) vk.SampleCountFlagBits {
	switch count {
	case 2:
		return vk.SampleCount2Bit
	case 4:
		return vk.SampleCount4Bit
	case 8:
		return vk.SampleCount8Bit
	case 16:
		return vk.SampleCount16Bit
	default:
		return vk.SampleCount1Bit
	}
}

func aspectMaskFor(format types.PixelFormat) vk.ImageAspectFlagBits {
	switch {
	case format.IsDepthFormat() && format.IsStencilFormat():
		return vk.ImageAspectDepthBit | vk.ImageAspectStencilBit
	case format.IsDepthFormat():
		return vk.ImageAspectDepthBit
	case format.IsStencilFormat():
		return vk.ImageAspectStencilBit
	default:
		return vk.ImageAspectColorBit
	}
}

// transitionImageLayout submits a single-use command buffer that inserts
// one image barrier and waits on a fence before returning, per the
// one-shot transition policy used at texture-creation time.
func (d *Device) transitionImageLayout(image vk.Image, aspect vk.ImageAspectFlagBits, from, to vk.ImageLayout) error {
	return d.submitOneShot(func(cmd vk.CommandBuffer) {
		barrier := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			OldLayout:           from,
			NewLayout:           to,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: aspect,
				LevelCount: vk.RemainingMipLevels,
				LayerCount: vk.RemainingArrayLayers,
			},
			SrcAccessMask: 0,
			DstAccessMask: vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit),
		}
		barrier.Deref()
		barrier.SubresourceRange.Deref()
		vk.CmdPipelineBarrier(cmd,
			vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
			0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	})
}

func (t *ConcreteTexture) image() vk.Image                      { return t.handle }
func (t *ConcreteTexture) imageView() vk.ImageView               { return t.view }
func (t *ConcreteTexture) descriptor() types.TextureDescriptor    { return t.desc }
func (t *ConcreteTexture) acquire() (uint64, *BinarySemaphore, uint64) {
	return t.sync.doAcquire()
}
func (t *ConcreteTexture) beginUpdatingPresentationSemaphore(s *BinarySemaphore) { t.sync.beginUpdatingPresentation(s) }
func (t *ConcreteTexture) endUpdatingPresentationSemaphore()                      { t.sync.endUpdatingPresentation() }
func (t *ConcreteTexture) synchronizePresentation() *BinarySemaphore              { return t.sync.synchronizePresentation() }
func (t *ConcreteTexture) timelineSemaphore() vk.Semaphore                        { return t.sync.timelineSemaphore() }

// Destroy destroys the image view, image, timeline semaphore, and frees
// memory, in that order.
func (t *ConcreteTexture) Destroy() {
	vk.DestroyImageView(t.device.logicalDevice, t.view, nil)
	vk.DestroyImage(t.device.logicalDevice, t.handle, nil)
	if t.sync.sema != nil {
		vk.DestroySemaphore(t.device.logicalDevice, t.sync.sema, nil)
	}
	vk.FreeMemory(t.device.logicalDevice, t.memory, nil)
}

// TextureView is a non-owning alias over a parent Concrete or View texture
// with an independent pixel format, texture type, swizzle, and mip/array
// ranges. All image/layout operations delegate to the parent.
type TextureView struct {
	ID uuid.UUID

	device *Device
	parent Texture

	desc          types.TextureDescriptor
	baseMipLevel  uint32
	baseArrayLayer uint32

	handle vk.Image
	view   vk.ImageView
}

// NewTextureView creates a view over parent, clipping the requested
// mip/array range against the parent's own range.
func (d *Device) NewTextureView(parent Texture, pixelFormat types.PixelFormat, textureType types.TextureType,
	swizzle types.TextureSwizzleChannels, mipStart, mipCount, layerStart, layerCount uint32) (*TextureView, error) {
	const op = "NewTextureView"

	format, ok := pixelFormat.ToVulkan()
	if !ok {
		return nil, newError(op, KindBadEnumValue, fmt.Errorf("unrecognized pixel format %v", pixelFormat))
	}

	parentDesc := parent.descriptor()
	if mipStart+mipCount > max1(parentDesc.MipLevels) {
		mipCount = max1(parentDesc.MipLevels) - mipStart
	}
	if layerStart+layerCount > max1(parentDesc.ArrayLength) {
		layerCount = max1(parentDesc.ArrayLength) - layerStart
	}

	aspect := aspectMaskFor(pixelFormat)
	viewInfo := vk.ImageViewCreateInfo{
		SType:      vk.StructureTypeImageViewCreateInfo,
		Image:      parent.image(),
		ViewType:   textureType.ViewType(),
		Format:     format,
		Components: swizzle.ToVulkan(),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   mipStart,
			LevelCount:     mipCount,
			BaseArrayLayer: layerStart,
			LayerCount:     layerCount,
		},
	}
	viewInfo.Deref()
	viewInfo.Components.Deref()
	viewInfo.SubresourceRange.Deref()

	var view vk.ImageView
	if res := vk.CreateImageView(d.logicalDevice, &viewInfo, nil, &view); res != vk.Success {
		return nil, newError(op, KindAllocationFailed, fmt.Errorf("vkCreateImageView: %d", res))
	}

	desc := parentDesc
	desc.PixelFormat = pixelFormat
	desc.TextureType = textureType
	desc.Swizzle = swizzle
	desc.MipLevels = mipCount
	desc.ArrayLength = layerCount

	return &TextureView{
		ID:             uuid.New(),
		device:         d,
		parent:         parent,
		desc:           desc,
		baseMipLevel:   mipStart,
		baseArrayLayer: layerStart,
		handle:         parent.image(),
		view:           view,
	}, nil
}

func (v *TextureView) image() vk.Image                   { return v.handle }
func (v *TextureView) imageView() vk.ImageView            { return v.view }
func (v *TextureView) descriptor() types.TextureDescriptor { return v.desc }
func (v *TextureView) acquire() (uint64, *BinarySemaphore, uint64) {
	return v.parent.acquire()
}
func (v *TextureView) beginUpdatingPresentationSemaphore(s *BinarySemaphore) {
	v.parent.beginUpdatingPresentationSemaphore(s)
}
func (v *TextureView) endUpdatingPresentationSemaphore() { v.parent.endUpdatingPresentationSemaphore() }
func (v *TextureView) synchronizePresentation() *BinarySemaphore {
	return v.parent.synchronizePresentation()
}
func (v *TextureView) timelineSemaphore() vk.Semaphore { return v.parent.timelineSemaphore() }

// Destroy destroys the view's own image view. The parent image is
// untouched since the view does not own it.
func (v *TextureView) Destroy() {
	vk.DestroyImageView(v.device.logicalDevice, v.view, nil)
}
