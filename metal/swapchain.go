package metal

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/driftwood-gpu/metalvk/metal/types"
)

// swapchainMinImageCount is the minimum image count requested at
// swapchain creation, per spec.md §4.4.
const swapchainMinImageCount = 5

// Layer wraps a Vulkan swapchain bound to one presentation surface,
// vending Drawables that satisfy the Texture interface.
type Layer struct {
	device *Device
	surface vk.Surface

	swapchain vk.Swapchain
	format    vk.Format
	extent    vk.Extent2D
	pixelFormat types.PixelFormat

	images     []vk.Image
	imageViews []vk.ImageView

	// perImageSync holds one persistent syncState per swapchain image,
	// since the underlying image (and thus its sync discipline) outlives
	// any single Drawable wrapping it.
	perImageSync []syncState
}

// NewLayer queries surface capabilities, picks FIFO present mode, and builds
// a swapchain with min-image-count 5, SRGB-nonlinear colorspace, and
// color-attachment usage, then creates one image view per image.
func (d *Device) NewLayer(surface vk.Surface, pixelFormat types.PixelFormat, width, height uint32) (*Layer, error) {
	const op = "NewLayer"

	format, ok := pixelFormat.ToVulkan()
	if !ok {
		return nil, newError(op, KindBadEnumValue, fmt.Errorf("unrecognized pixel format %v", pixelFormat))
	}

	var capabilities vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(d.physicalDevice, surface, &capabilities); res != vk.Success {
		return nil, newError(op, KindGPU, fmt.Errorf("vkGetPhysicalDeviceSurfaceCapabilities: %d", res))
	}
	capabilities.Deref()
	capabilities.CurrentExtent.Deref()

	extent := vk.Extent2D{Width: width, Height: height}
	if capabilities.CurrentExtent.Width != 0xFFFFFFFF {
		extent = capabilities.CurrentExtent
	}

	minImages := uint32(swapchainMinImageCount)
	if capabilities.MaxImageCount > 0 && minImages > capabilities.MaxImageCount {
		minImages = capabilities.MaxImageCount
	}
	if minImages < capabilities.MinImageCount {
		minImages = capabilities.MinImageCount
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    minImages,
		ImageFormat:      format,
		ImageColorSpace:  vk.ColorSpaceSrgbNonlinear,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
	}
	createInfo.Deref()
	createInfo.ImageExtent.Deref()

	var swapchain vk.Swapchain
	if res := vk.CreateSwapchain(d.logicalDevice, &createInfo, nil, &swapchain); res != vk.Success {
		return nil, newError(op, KindAllocationFailed, fmt.Errorf("vkCreateSwapchain: %d", res))
	}

	var count uint32
	vk.GetSwapchainImages(d.logicalDevice, swapchain, &count, nil)
	images := make([]vk.Image, count)
	vk.GetSwapchainImages(d.logicalDevice, swapchain, &count, images)

	views := make([]vk.ImageView, count)
	for i, img := range images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    img,
			ViewType: vk.ImageViewType2d,
			Format:   format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectColorBit,
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		viewInfo.Deref()
		viewInfo.SubresourceRange.Deref()
		if res := vk.CreateImageView(d.logicalDevice, &viewInfo, nil, &views[i]); res != vk.Success {
			return nil, newError(op, KindAllocationFailed, fmt.Errorf("vkCreateImageView: %d", res))
		}
	}

	perImageSync := make([]syncState, count)
	for i := range perImageSync {
		s, err := newSyncState(d)
		if err != nil {
			return nil, newError(op, KindAllocationFailed, err)
		}
		perImageSync[i] = s
	}

	return &Layer{
		device:       d,
		surface:      surface,
		swapchain:    swapchain,
		format:       format,
		extent:       extent,
		pixelFormat:  pixelFormat,
		images:       images,
		imageViews:   views,
		perImageSync: perImageSync,
	}, nil
}

// NextDrawable borrows a binary semaphore from the device, acquires the
// next swapchain image with a one-second timeout, and returns a Drawable
// wrapping it. The acquire semaphore becomes the Drawable's extra wait the
// first time the Drawable is used.
func (l *Layer) NextDrawable() (*Drawable, error) {
	const oneSecondNanos = uint64(1_000_000_000)

	acquireSema, err := l.device.semaphorePool.getBinarySemaphore(false)
	if err != nil {
		return nil, newError("NextDrawable", KindAllocationFailed, err)
	}

	var index uint32
	res := vk.AcquireNextImage(l.device.logicalDevice, l.swapchain, oneSecondNanos, acquireSema.Handle(), nil, &index)
	if res != vk.Success && res != vk.Suboptimal {
		acquireSema.Release()
		return nil, newError("NextDrawable", KindGPU, fmt.Errorf("vkAcquireNextImageKHR: %d", res))
	}

	desc := types.TextureDescriptor{
		TextureType: types.TextureType2D,
		PixelFormat: l.pixelFormat,
		Width:       l.extent.Width,
		Height:      l.extent.Height,
		Depth:       1,
		MipLevels:   1,
		ArrayLength: 1,
		SampleCount: 1,
		Swizzle:     types.IdentitySwizzle(),
	}

	d := &Drawable{
		layer:       l,
		index:       index,
		handle:      l.images[index],
		view:        l.imageViews[index],
		desc:        desc,
		acquireSema: acquireSema,
		sync:        &l.perImageSync[index],
	}
	d.sync.setExtraWait(acquireSema)
	return d, nil
}

// Destroy destroys every image view, every per-image timeline semaphore,
// and the swapchain itself. The swapchain images are owned by the
// swapchain and are not separately freed.
func (l *Layer) Destroy() {
	for _, v := range l.imageViews {
		vk.DestroyImageView(l.device.logicalDevice, v, nil)
	}
	for i := range l.perImageSync {
		if l.perImageSync[i].sema != nil {
			vk.DestroySemaphore(l.device.logicalDevice, l.perImageSync[i].sema, nil)
		}
	}
	vk.DestroySwapchain(l.device.logicalDevice, l.swapchain, nil)
}
