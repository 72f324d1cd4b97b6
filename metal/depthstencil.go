package metal

import "github.com/driftwood-gpu/metalvk/metal/types"

// DepthStencilState is a value record of depth/stencil test configuration.
// Unlike most Runtime objects it owns no Vulkan handle: Vulkan 1.3's
// extended dynamic state lets every field here be set per-draw, so it is
// materialized at record time rather than at creation time.
type DepthStencilState struct {
	CompareFunction  types.CompareFunction
	DepthWriteEnable bool

	FrontFaceStencil *types.StencilFaceState
	BackFaceStencil  *types.StencilFaceState
}

// NewDepthStencilState is a plain constructor; DepthStencilState carries no
// device-owned resources to allocate.
func NewDepthStencilState(compare types.CompareFunction, writeEnable bool, front, back *types.StencilFaceState) *DepthStencilState {
	return &DepthStencilState{
		CompareFunction:  compare,
		DepthWriteEnable: writeEnable,
		FrontFaceStencil: front,
		BackFaceStencil:  back,
	}
}
