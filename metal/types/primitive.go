package types

import vk "github.com/goki/vulkan"

// PrimitiveType mirrors MTLPrimitiveType.
type PrimitiveType int

const (
	PrimitiveTypePoint PrimitiveType = iota
	PrimitiveTypeLine
	PrimitiveTypeLineStrip
	PrimitiveTypeTriangle
	PrimitiveTypeTriangleStrip
)

var primitiveTopologies = map[PrimitiveType]vk.PrimitiveTopology{
	PrimitiveTypePoint:         vk.PrimitiveTopologyPointList,
	PrimitiveTypeLine:          vk.PrimitiveTopologyLineList,
	PrimitiveTypeLineStrip:     vk.PrimitiveTopologyLineStrip,
	PrimitiveTypeTriangle:      vk.PrimitiveTopologyTriangleList,
	PrimitiveTypeTriangleStrip: vk.PrimitiveTopologyTriangleStrip,
}

// ToVulkan translates a PrimitiveType into its Vulkan dynamic-state topology.
func (t PrimitiveType) ToVulkan() (vk.PrimitiveTopology, bool) {
	topology, ok := primitiveTopologies[t]
	return topology, ok
}

// TopologyClass is the coarsest grouping of primitive topologies that can
// share a single Vulkan pipeline: points, lines, or triangles. Exactly
// three pipelines exist per RenderPipelineState, one per class.
type TopologyClass int

const (
	TopologyClassPoint TopologyClass = iota
	TopologyClassLine
	TopologyClassTriangle
	topologyClassCount
)

// Class maps a PrimitiveType down to its pipeline topology class.
func (t PrimitiveType) Class() TopologyClass {
	switch t {
	case PrimitiveTypePoint:
		return TopologyClassPoint
	case PrimitiveTypeLine, PrimitiveTypeLineStrip:
		return TopologyClassLine
	default:
		return TopologyClassTriangle
	}
}

// TopologyClassCount is the fixed number of pipelines a RenderPipelineState
// caches, one per TopologyClass.
const TopologyClassCount = int(topologyClassCount)

// IndexType mirrors MTLIndexType.
type IndexType int

const (
	IndexTypeUInt16 IndexType = iota
	IndexTypeUInt32
)

// ToVulkan translates an IndexType into its Vulkan equivalent.
func (t IndexType) ToVulkan() vk.IndexType {
	if t == IndexTypeUInt32 {
		return vk.IndexTypeUint32
	}
	return vk.IndexTypeUint16
}

// FaceCullMode mirrors MTLCullMode.
type FaceCullMode int

const (
	FaceCullModeNone FaceCullMode = iota
	FaceCullModeFront
	FaceCullModeBack
)

// ToVulkan translates a FaceCullMode into its Vulkan cull-mode flags.
func (m FaceCullMode) ToVulkan() vk.CullModeFlagBits {
	switch m {
	case FaceCullModeFront:
		return vk.CullModeFrontBit
	case FaceCullModeBack:
		return vk.CullModeBackBit
	default:
		return vk.CullModeNone
	}
}

// Winding mirrors MTLWinding.
type Winding int

const (
	WindingClockwise Winding = iota
	WindingCounterClockwise
)

// ToVulkan translates a Winding into its Vulkan front-face enum.
func (w Winding) ToVulkan() vk.FrontFace {
	if w == WindingCounterClockwise {
		return vk.FrontFaceCounterClockwise
	}
	return vk.FrontFaceClockwise
}

// TriangleFillMode mirrors MTLTriangleFillMode. No pipeline or encoder call
// takes this type: every render pipeline is created with fill polygon
// mode, and no Unsupported error is raised for Lines.
type TriangleFillMode int

const (
	TriangleFillModeFill TriangleFillMode = iota
	TriangleFillModeLines
)
