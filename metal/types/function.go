package types

import vk "github.com/goki/vulkan"

// FunctionType mirrors the AIR function-kind tag that the library container
// records for every function, corresponding to spec.md §6's TYPE tag values
// 0-6. Only vertex, fragment and kernel functions get a SPIR-V entry point
// and a non-zero ShaderStage; functions of types 3-6 are still listed in
// the library and Library.NewFunction does not reject them.
type FunctionType uint8

const (
	FunctionTypeVertex FunctionType = iota
	FunctionTypeFragment
	FunctionTypeKernel
	FunctionTypeUnqualified
	FunctionTypeVisible
	FunctionTypeExtern
	FunctionTypeIntersection
)

// ShaderStage returns the Vulkan shader-stage bit for the function type.
// Only the three entry-point-bearing kinds are meaningful.
func (t FunctionType) ShaderStage() vk.ShaderStageFlagBits {
	switch t {
	case FunctionTypeVertex:
		return vk.ShaderStageVertexBit
	case FunctionTypeFragment:
		return vk.ShaderStageFragmentBit
	case FunctionTypeKernel:
		return vk.ShaderStageComputeBit
	}
	return 0
}

// BindingType mirrors the kind of a resource binding consumed by a shader
// function, per spec.md §3's Binding record.
type BindingType int

const (
	BindingTypeBuffer BindingType = iota
	BindingTypeVertexInput
	BindingTypeTexture
	BindingTypeSampler
)

// TextureAccessType mirrors a texture binding's declared access, used to
// pick SAMPLED_IMAGE vs STORAGE_IMAGE in the descriptor-set-layout builder.
type TextureAccessType int

const (
	TextureAccessSample TextureAccessType = iota
	TextureAccessRead
	TextureAccessWrite
	TextureAccessReadWrite
)

// DescriptorType returns the Vulkan descriptor type for a texture binding
// with this access, per the builder's rule in spec.md §4.6.
func (a TextureAccessType) DescriptorType() vk.DescriptorType {
	if a == TextureAccessSample {
		return vk.DescriptorTypeSampledImage
	}
	return vk.DescriptorTypeStorageImage
}

// Binding is one entry in a FunctionInfo's ordered binding list.
type Binding struct {
	Type                BindingType
	ExternalIndex        uint32
	InternalIndex        uint32
	TextureAccessType    TextureAccessType
	EmbeddedSamplerIndex int // -1 if this binding is not an embedded sampler
}

// EmbeddedSampler is a sampler literal baked into the shader source and
// materialized as a concrete SamplerState when the Library is created.
type EmbeddedSampler struct {
	Descriptor SamplerDescriptor
}
