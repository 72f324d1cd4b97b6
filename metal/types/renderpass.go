package types

import vk "github.com/goki/vulkan"

// LoadAction mirrors MTLLoadAction.
type LoadAction int

const (
	LoadActionDontCare LoadAction = iota
	LoadActionLoad
	LoadActionClear
)

// ToVulkan translates a LoadAction into its Vulkan attachment load op.
func (a LoadAction) ToVulkan() vk.AttachmentLoadOp {
	switch a {
	case LoadActionLoad:
		return vk.AttachmentLoadOpLoad
	case LoadActionClear:
		return vk.AttachmentLoadOpClear
	default:
		return vk.AttachmentLoadOpDontCare
	}
}

// StoreAction mirrors MTLStoreAction.
type StoreAction int

const (
	StoreActionDontCare StoreAction = iota
	StoreActionStore
)

// ToVulkan translates a StoreAction into its Vulkan attachment store op.
func (a StoreAction) ToVulkan() vk.AttachmentStoreOp {
	if a == StoreActionStore {
		return vk.AttachmentStoreOpStore
	}
	return vk.AttachmentStoreOpDontCare
}

// ClearColor mirrors MTLClearColor.
type ClearColor struct {
	Red, Green, Blue, Alpha float64
}

// RenderPassColorAttachmentDescriptor describes one color attachment of a
// render pass, including its load/store behavior and target texture.
type RenderPassColorAttachmentDescriptor struct {
	LoadAction  LoadAction
	StoreAction StoreAction
	ClearColor  ClearColor
}

// RenderPassDepthAttachmentDescriptor describes the optional depth
// attachment of a render pass.
type RenderPassDepthAttachmentDescriptor struct {
	LoadAction  LoadAction
	StoreAction StoreAction
	ClearDepth  float64
}
