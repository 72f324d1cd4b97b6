package metal

import (
	vk "github.com/goki/vulkan"

	"github.com/driftwood-gpu/metalvk/metal/types"
)

// stableImageLayout is the layout every ConcreteTexture is transitioned to
// at creation and kept at between operations, per texture.go's eager
// UNDEFINED->GENERAL transition.
const stableImageLayout = vk.ImageLayoutGeneral

// RenderPassColorAttachment binds a target Texture to a color attachment's
// load/store behavior.
type RenderPassColorAttachment struct {
	Texture Texture
	types.RenderPassColorAttachmentDescriptor
}

// RenderPassDepthAttachment binds a target Texture to the render pass's
// optional depth attachment.
type RenderPassDepthAttachment struct {
	Texture Texture
	types.RenderPassDepthAttachmentDescriptor
}

// RenderPassDescriptor names the attachments a render command encoder
// targets, per spec.md §4.9.
type RenderPassDescriptor struct {
	ColorAttachments []RenderPassColorAttachment
	DepthAttachment  *RenderPassDepthAttachment
}
