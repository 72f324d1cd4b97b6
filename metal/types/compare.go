package types

import vk "github.com/goki/vulkan"

// CompareFunction mirrors MTLCompareFunction.
type CompareFunction int

const (
	CompareFunctionNever CompareFunction = iota
	CompareFunctionLess
	CompareFunctionEqual
	CompareFunctionLessEqual
	CompareFunctionGreater
	CompareFunctionNotEqual
	CompareFunctionGreaterEqual
	CompareFunctionAlways
)

var compareOps = map[CompareFunction]vk.CompareOp{
	CompareFunctionNever:        vk.CompareOpNever,
	CompareFunctionLess:         vk.CompareOpLess,
	CompareFunctionEqual:        vk.CompareOpEqual,
	CompareFunctionLessEqual:    vk.CompareOpLessOrEqual,
	CompareFunctionGreater:      vk.CompareOpGreater,
	CompareFunctionNotEqual:     vk.CompareOpNotEqual,
	CompareFunctionGreaterEqual: vk.CompareOpGreaterOrEqual,
	CompareFunctionAlways:       vk.CompareOpAlways,
}

// ToVulkan translates a CompareFunction into its Vulkan equivalent.
func (f CompareFunction) ToVulkan() (vk.CompareOp, bool) {
	op, ok := compareOps[f]
	return op, ok
}

// StencilOperation mirrors MTLStencilOperation.
type StencilOperation int

const (
	StencilOperationKeep StencilOperation = iota
	StencilOperationZero
	StencilOperationReplace
	StencilOperationIncrementClamp
	StencilOperationDecrementClamp
	StencilOperationInvert
	StencilOperationIncrementWrap
	StencilOperationDecrementWrap
)

var stencilOps = map[StencilOperation]vk.StencilOp{
	StencilOperationKeep:           vk.StencilOpKeep,
	StencilOperationZero:           vk.StencilOpZero,
	StencilOperationReplace:        vk.StencilOpReplace,
	StencilOperationIncrementClamp: vk.StencilOpIncrementAndClamp,
	StencilOperationDecrementClamp: vk.StencilOpDecrementAndClamp,
	StencilOperationInvert:         vk.StencilOpInvert,
	StencilOperationIncrementWrap:  vk.StencilOpIncrementAndWrap,
	StencilOperationDecrementWrap:  vk.StencilOpDecrementAndWrap,
}

// ToVulkan translates a StencilOperation into its Vulkan equivalent.
func (o StencilOperation) ToVulkan() (vk.StencilOp, bool) {
	op, ok := stencilOps[o]
	return op, ok
}

// StencilFaceState is a value record of one face's stencil configuration,
// materialized dynamically by the render encoder via vkCmdSetStencilOp
// and friends rather than baked into a pipeline.
type StencilFaceState struct {
	StencilCompareFunction CompareFunction
	StencilFailureOp       StencilOperation
	DepthFailureOp         StencilOperation
	DepthStencilPassOp     StencilOperation
	ReadMask               uint32
	WriteMask              uint32
}
