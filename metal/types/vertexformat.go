package types

import vk "github.com/goki/vulkan"

// VertexFormat mirrors MTLVertexFormat for the subset this runtime supports.
type VertexFormat int

const (
	VertexFormatInvalid VertexFormat = iota
	VertexFormatFloat
	VertexFormatFloat2
	VertexFormatFloat3
	VertexFormatFloat4
	VertexFormatHalf2
	VertexFormatHalf4
	VertexFormatUChar4Normalized
	VertexFormatUInt
	VertexFormatUInt2
	VertexFormatUInt4
	VertexFormatInt
)

var vertexVulkanFormats = map[VertexFormat]vk.Format{
	VertexFormatFloat:               vk.FormatR32Sfloat,
	VertexFormatFloat2:              vk.FormatR32g32Sfloat,
	VertexFormatFloat3:              vk.FormatR32g32b32Sfloat,
	VertexFormatFloat4:              vk.FormatR32g32b32a32Sfloat,
	VertexFormatHalf2:               vk.FormatR16g16Sfloat,
	VertexFormatHalf4:                vk.FormatR16g16b16a16Sfloat,
	VertexFormatUChar4Normalized:     vk.FormatR8g8b8a8Unorm,
	VertexFormatUInt:                 vk.FormatR32Uint,
	VertexFormatUInt2:                vk.FormatR32g32Uint,
	VertexFormatUInt4:                vk.FormatR32g32b32a32Uint,
	VertexFormatInt:                  vk.FormatR32Sint,
}

// ToVulkan translates a VertexFormat into its Vulkan equivalent.
func (f VertexFormat) ToVulkan() (vk.Format, bool) {
	format, ok := vertexVulkanFormats[f]
	return format, ok
}

// Size returns the byte size of one vertex-attribute element.
func (f VertexFormat) Size() uint32 {
	switch f {
	case VertexFormatFloat, VertexFormatUInt, VertexFormatInt, VertexFormatUChar4Normalized:
		return 4
	case VertexFormatFloat2, VertexFormatHalf4, VertexFormatUInt2:
		return 8
	case VertexFormatFloat3:
		return 12
	case VertexFormatFloat4, VertexFormatUInt4:
		return 16
	case VertexFormatHalf2:
		return 4
	}
	return 0
}

// VertexStepFunction mirrors MTLVertexStepFunction.
type VertexStepFunction int

const (
	VertexStepFunctionPerVertex VertexStepFunction = iota
	VertexStepFunctionPerInstance
	VertexStepFunctionConstant
)

// ToVulkan translates a VertexStepFunction into its Vulkan input rate.
// Constant has no Vulkan counterpart and is reported via the bool.
func (f VertexStepFunction) ToVulkan() (vk.VertexInputRate, bool) {
	switch f {
	case VertexStepFunctionPerVertex:
		return vk.VertexInputRateVertex, true
	case VertexStepFunctionPerInstance:
		return vk.VertexInputRateInstance, true
	default:
		return 0, false
	}
}

// VertexAttributeDescriptor describes one shader-visible vertex attribute:
// its format, byte offset within its buffer's stride, the Metal buffer
// index it is sourced from, and the shader-visible attribute index.
type VertexAttributeDescriptor struct {
	Format          VertexFormat
	Offset          uint32
	BufferIndex     uint32
	ShaderLocation  uint32
}

// VertexBufferLayoutDescriptor describes the stride and step behavior of
// one Metal vertex buffer slot.
type VertexBufferLayoutDescriptor struct {
	Stride       uint32
	StepFunction VertexStepFunction
}

// VertexDescriptor is the full input-assembly description of a render
// pipeline's vertex stage, indexed by Metal buffer index.
type VertexDescriptor struct {
	Attributes []VertexAttributeDescriptor
	Layouts    map[uint32]VertexBufferLayoutDescriptor
}
