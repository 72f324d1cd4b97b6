package metal

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/driftwood-gpu/metalvk/metal/types"
)

// BlitCommandEncoder records copy, fill, and mipmap-generation commands.
type BlitCommandEncoder struct {
	cb     *CommandBuffer
	device *Device
	cmd    vk.CommandBuffer

	touched map[Texture]*touchedTexture
	ended   bool
}

// NewBlitCommandEncoder opens a blit encoder against cb.
func (cb *CommandBuffer) NewBlitCommandEncoder() *BlitCommandEncoder {
	e := &BlitCommandEncoder{
		cb:      cb,
		device:  cb.device,
		cmd:     cb.handle,
		touched: map[Texture]*touchedTexture{},
	}
	cb.addEncoder(e)
	return e
}

func (e *BlitCommandEncoder) touch(t Texture, readWrite bool) {
	existing, ok := e.touched[t]
	if !ok {
		e.touched[t] = &touchedTexture{texture: t, readWrite: readWrite}
		return
	}
	if readWrite {
		existing.readWrite = true
	}
}

func (e *BlitCommandEncoder) barrier(image vk.Image, aspect vk.ImageAspectFlagBits, level, levelCount, layer, layerCount uint32, from, to vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   level,
			LevelCount:     levelCount,
			BaseArrayLayer: layer,
			LayerCount:     layerCount,
		},
		SrcAccessMask: vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit),
		DstAccessMask: vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit),
	}
	barrier.Deref()
	barrier.SubresourceRange.Deref()
	vk.CmdPipelineBarrier(e.cmd,
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit), vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

// CopyBufferToBuffer issues a plain vkCmdCopyBuffer.
func (e *BlitCommandEncoder) CopyBufferToBuffer(src *Buffer, srcOffset uint64, dst *Buffer, dstOffset uint64, size uint64) {
	region := vk.BufferCopy{SrcOffset: vk.DeviceSize(srcOffset), DstOffset: vk.DeviceSize(dstOffset), Size: vk.DeviceSize(size)}
	region.Deref()
	vk.CmdCopyBuffer(e.cmd, src.handle, dst.handle, 1, []vk.BufferCopy{region})
}

// CopyBufferToTexture wraps vkCmdCopyBufferToImage in a GENERAL ->
// TRANSFER_DST_OPTIMAL -> GENERAL barrier pair, per spec.md §4.11.
func (e *BlitCommandEncoder) CopyBufferToTexture(src *Buffer, srcOffset uint64, bytesPerRow, bytesPerImage uint32,
	dst Texture, level, slice uint32, origin [3]uint32, size [3]uint32) error {
	desc := dst.descriptor()
	aspect := aspectMaskFor(desc.PixelFormat)
	blockSize := desc.PixelFormat.BytesPerBlock()
	if blockSize == 0 {
		return newError("CopyBufferToTexture", KindUnsupported, fmt.Errorf("pixel format %v has no known block size", desc.PixelFormat))
	}
	rowLength := bytesPerRow / blockSize
	imageHeight := uint32(0)
	if bytesPerRow > 0 {
		imageHeight = bytesPerImage / bytesPerRow
	}

	e.barrier(dst.image(), aspect, level, 1, slice, 1, stableImageLayout, vk.ImageLayoutTransferDstOptimal)

	region := vk.BufferImageCopy{
		BufferOffset:      vk.DeviceSize(srcOffset),
		BufferRowLength:   rowLength,
		BufferImageHeight: imageHeight,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     aspect,
			MipLevel:       level,
			BaseArrayLayer: slice,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: int32(origin[0]), Y: int32(origin[1]), Z: int32(origin[2])},
		ImageExtent: vk.Extent3D{Width: size[0], Height: size[1], Depth: size[2]},
	}
	region.Deref()
	region.ImageSubresource.Deref()
	region.ImageOffset.Deref()
	region.ImageExtent.Deref()
	vk.CmdCopyBufferToImage(e.cmd, src.handle, dst.image(), vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})

	e.barrier(dst.image(), aspect, level, 1, slice, 1, vk.ImageLayoutTransferDstOptimal, stableImageLayout)
	e.touch(dst, true)
	return nil
}

// CopyTextureToBuffer is the symmetric inverse of CopyBufferToTexture,
// transitioning the source through TRANSFER_SRC_OPTIMAL instead.
func (e *BlitCommandEncoder) CopyTextureToBuffer(src Texture, level, slice uint32, origin [3]uint32, size [3]uint32,
	dst *Buffer, dstOffset uint64, bytesPerRow, bytesPerImage uint32) error {
	desc := src.descriptor()
	aspect := aspectMaskFor(desc.PixelFormat)
	blockSize := desc.PixelFormat.BytesPerBlock()
	if blockSize == 0 {
		return newError("CopyTextureToBuffer", KindUnsupported, fmt.Errorf("pixel format %v has no known block size", desc.PixelFormat))
	}
	rowLength := bytesPerRow / blockSize
	imageHeight := uint32(0)
	if bytesPerRow > 0 {
		imageHeight = bytesPerImage / bytesPerRow
	}

	e.barrier(src.image(), aspect, level, 1, slice, 1, stableImageLayout, vk.ImageLayoutTransferSrcOptimal)

	region := vk.BufferImageCopy{
		BufferOffset:      vk.DeviceSize(dstOffset),
		BufferRowLength:   rowLength,
		BufferImageHeight: imageHeight,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     aspect,
			MipLevel:       level,
			BaseArrayLayer: slice,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: int32(origin[0]), Y: int32(origin[1]), Z: int32(origin[2])},
		ImageExtent: vk.Extent3D{Width: size[0], Height: size[1], Depth: size[2]},
	}
	region.Deref()
	region.ImageSubresource.Deref()
	region.ImageOffset.Deref()
	region.ImageExtent.Deref()
	vk.CmdCopyImageToBuffer(e.cmd, src.image(), vk.ImageLayoutTransferSrcOptimal, dst.handle, 1, []vk.BufferImageCopy{region})

	e.barrier(src.image(), aspect, level, 1, slice, 1, vk.ImageLayoutTransferSrcOptimal, stableImageLayout)
	e.touch(src, false)
	return nil
}

// CopyTextureToTextureRegion copies a single region between two textures
// via vkCmdCopyImage, transitioning both sides through their transfer
// layouts and back.
func (e *BlitCommandEncoder) CopyTextureToTextureRegion(src Texture, srcLevel, srcSlice uint32, srcOrigin [3]uint32,
	dst Texture, dstLevel, dstSlice uint32, dstOrigin [3]uint32, size [3]uint32) error {
	srcAspect := aspectMaskFor(src.descriptor().PixelFormat)
	dstAspect := aspectMaskFor(dst.descriptor().PixelFormat)

	e.barrier(src.image(), srcAspect, srcLevel, 1, srcSlice, 1, stableImageLayout, vk.ImageLayoutTransferSrcOptimal)
	e.barrier(dst.image(), dstAspect, dstLevel, 1, dstSlice, 1, stableImageLayout, vk.ImageLayoutTransferDstOptimal)

	region := vk.ImageCopy{
		SrcSubresource: vk.ImageSubresourceLayers{AspectMask: srcAspect, MipLevel: srcLevel, BaseArrayLayer: srcSlice, LayerCount: 1},
		SrcOffset:      vk.Offset3D{X: int32(srcOrigin[0]), Y: int32(srcOrigin[1]), Z: int32(srcOrigin[2])},
		DstSubresource: vk.ImageSubresourceLayers{AspectMask: dstAspect, MipLevel: dstLevel, BaseArrayLayer: dstSlice, LayerCount: 1},
		DstOffset:      vk.Offset3D{X: int32(dstOrigin[0]), Y: int32(dstOrigin[1]), Z: int32(dstOrigin[2])},
		Extent:         vk.Extent3D{Width: size[0], Height: size[1], Depth: size[2]},
	}
	region.Deref()
	region.SrcSubresource.Deref()
	region.SrcOffset.Deref()
	region.DstSubresource.Deref()
	region.DstOffset.Deref()
	region.Extent.Deref()
	vk.CmdCopyImage(e.cmd, src.image(), vk.ImageLayoutTransferSrcOptimal, dst.image(), vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageCopy{region})

	e.barrier(src.image(), srcAspect, srcLevel, 1, srcSlice, 1, vk.ImageLayoutTransferSrcOptimal, stableImageLayout)
	e.barrier(dst.image(), dstAspect, dstLevel, 1, dstSlice, 1, vk.ImageLayoutTransferDstOptimal, stableImageLayout)
	e.touch(src, false)
	e.touch(dst, true)
	return nil
}

// CopyTextureToTexture copies every overlapping mip/slice of src into dst
// with no explicit region, per spec.md §4.11's whole-texture copy rule: it
// picks the src mip level whose dimensions equal dst's base level (or else
// the dst mip level whose dimensions equal src's base level) and copies
// from that pair of levels onward, halving per level. If no level matches,
// the copy is rejected.
func (e *BlitCommandEncoder) CopyTextureToTexture(src, dst Texture) error {
	sd := src.descriptor()
	dd := dst.descriptor()
	matches := func(a types.TextureDescriptor, l uint32, b types.TextureDescriptor) bool {
		return max1(a.Width>>l) == max1(b.Width) && max1(a.Height>>l) == max1(b.Height) && max1(a.Depth>>l) == max1(b.Depth)
	}
	var srcBase, dstBase uint32
	found := false
	for l := uint32(0); l < max1(sd.MipLevels) && !found; l++ {
		srcBase, found = l, matches(sd, l, dd)
	}
	for l := uint32(0); l < max1(dd.MipLevels) && !found; l++ {
		srcBase, dstBase, found = 0, l, matches(dd, l, sd)
	}
	if !found {
		return newError("CopyTextureToTexture", KindUnsupported, fmt.Errorf("no mip level with matching dimensions: src %dx%dx%d dst %dx%dx%d", sd.Width, sd.Height, sd.Depth, dd.Width, dd.Height, dd.Depth))
	}

	levels := sd.MipLevels - srcBase
	if dd.MipLevels-dstBase < levels {
		levels = dd.MipLevels - dstBase
	}
	slices := sd.ArrayLength
	if dd.ArrayLength < slices {
		slices = dd.ArrayLength
	}

	for level := uint32(0); level < levels; level++ {
		w := max1(dd.Width >> (dstBase + level))
		h := max1(dd.Height >> (dstBase + level))
		d := max1(dd.Depth >> (dstBase + level))
		for slice := uint32(0); slice < slices; slice++ {
			if err := e.CopyTextureToTextureRegion(src, srcBase+level, slice, [3]uint32{}, dst, dstBase+level, slice, [3]uint32{}, [3]uint32{w, h, d}); err != nil {
				return err
			}
		}
	}
	return nil
}

// FillBuffer fills [offset, offset+size) with byteValue replicated into
// 32-bit words. The range must be 4-byte aligned, matching vkCmdFillBuffer.
func (e *BlitCommandEncoder) FillBuffer(buf *Buffer, offset, size uint64, byteValue byte) error {
	if offset%4 != 0 || size%4 != 0 {
		return newError("FillBuffer", KindInvalidUsage, fmt.Errorf("fill range must be 4-byte aligned: offset=%d size=%d", offset, size))
	}
	word := uint32(byteValue)
	word |= word << 8
	word |= word << 16
	vk.CmdFillBuffer(e.cmd, buf.handle, vk.DeviceSize(offset), vk.DeviceSize(size), word)
	return nil
}

// GenerateMipmapsForTexture fills every mip level beyond 0 by repeatedly
// blitting from the previous level, per spec.md §4.11: the whole image is
// transitioned to TRANSFER_DST, then per level the source mip is flipped
// to TRANSFER_SRC, blitted from, and returned to the stable layout. The
// last level, which is only ever blitted into, is returned to the stable
// layout after the loop, so every level ends at the stable layout.
func (e *BlitCommandEncoder) GenerateMipmapsForTexture(t Texture) error {
	desc := t.descriptor()
	if desc.MipLevels < 2 {
		return nil
	}
	aspect := aspectMaskFor(desc.PixelFormat)
	image := t.image()

	e.barrier(image, aspect, 0, desc.MipLevels, 0, desc.ArrayLength, stableImageLayout, vk.ImageLayoutTransferDstOptimal)

	for level := uint32(1); level < desc.MipLevels; level++ {
		srcLevel := level - 1
		e.barrier(image, aspect, srcLevel, 1, 0, desc.ArrayLength, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutTransferSrcOptimal)

		srcW, srcH, srcD := int32(max1(desc.Width>>srcLevel)), int32(max1(desc.Height>>srcLevel)), int32(max1(desc.Depth>>srcLevel))
		dstW, dstH, dstD := int32(max1(desc.Width>>level)), int32(max1(desc.Height>>level)), int32(max1(desc.Depth>>level))

		blit := vk.ImageBlit{
			SrcSubresource: vk.ImageSubresourceLayers{AspectMask: aspect, MipLevel: srcLevel, LayerCount: desc.ArrayLength},
			SrcOffsets:     [2]vk.Offset3D{{}, {X: srcW, Y: srcH, Z: srcD}},
			DstSubresource: vk.ImageSubresourceLayers{AspectMask: aspect, MipLevel: level, LayerCount: desc.ArrayLength},
			DstOffsets:     [2]vk.Offset3D{{}, {X: dstW, Y: dstH, Z: dstD}},
		}
		blit.Deref()
		blit.SrcSubresource.Deref()
		blit.DstSubresource.Deref()
		vk.CmdBlitImage(e.cmd, image, vk.ImageLayoutTransferSrcOptimal, image, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageBlit{blit}, vk.FilterLinear)

		e.barrier(image, aspect, srcLevel, 1, 0, desc.ArrayLength, vk.ImageLayoutTransferSrcOptimal, stableImageLayout)
	}

	lastLevel := desc.MipLevels - 1
	e.barrier(image, aspect, lastLevel, 1, 0, desc.ArrayLength, vk.ImageLayoutTransferDstOptimal, stableImageLayout)
	e.touch(t, true)
	return nil
}

// EndEncoding is a no-op beyond marking the encoder closed; blit commands
// need no pass, framebuffer, or descriptor pool to tear down.
func (e *BlitCommandEncoder) EndEncoding() {
	e.ended = true
}

func (e *BlitCommandEncoder) preCommit() []touchedTexture {
	out := make([]touchedTexture, 0, len(e.touched))
	for _, t := range e.touched {
		out = append(out, *t)
	}
	return out
}
