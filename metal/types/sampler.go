package types

import vk "github.com/goki/vulkan"

// SamplerAddressMode mirrors MTLSamplerAddressMode.
type SamplerAddressMode int

const (
	SamplerAddressModeClampToEdge SamplerAddressMode = iota
	SamplerAddressModeRepeat
	SamplerAddressModeMirrorRepeat
	SamplerAddressModeClampToZero
	SamplerAddressModeClampToBorderColor
)

var addressModes = map[SamplerAddressMode]vk.SamplerAddressMode{
	SamplerAddressModeClampToEdge:        vk.SamplerAddressModeClampToEdge,
	SamplerAddressModeRepeat:             vk.SamplerAddressModeRepeat,
	SamplerAddressModeMirrorRepeat:       vk.SamplerAddressModeMirroredRepeat,
	SamplerAddressModeClampToZero:        vk.SamplerAddressModeClampToBorder,
	SamplerAddressModeClampToBorderColor: vk.SamplerAddressModeClampToBorder,
}

// ToVulkan translates a SamplerAddressMode into its Vulkan equivalent.
func (m SamplerAddressMode) ToVulkan() (vk.SamplerAddressMode, bool) {
	mode, ok := addressModes[m]
	return mode, ok
}

// SamplerMinMagFilter mirrors MTLSamplerMinMagFilter.
type SamplerMinMagFilter int

const (
	SamplerMinMagFilterNearest SamplerMinMagFilter = iota
	SamplerMinMagFilterLinear
)

// ToVulkan translates a SamplerMinMagFilter into its Vulkan equivalent.
func (f SamplerMinMagFilter) ToVulkan() vk.Filter {
	if f == SamplerMinMagFilterLinear {
		return vk.FilterLinear
	}
	return vk.FilterNearest
}

// SamplerMipFilter mirrors MTLSamplerMipFilter.
type SamplerMipFilter int

const (
	SamplerMipFilterNotMipmapped SamplerMipFilter = iota
	SamplerMipFilterNearest
	SamplerMipFilterLinear
)

// ToVulkan translates a SamplerMipFilter into its Vulkan equivalent.
func (f SamplerMipFilter) ToVulkan() vk.SamplerMipmapMode {
	if f == SamplerMipFilterLinear {
		return vk.SamplerMipmapModeLinear
	}
	return vk.SamplerMipmapModeNearest
}

// SamplerDescriptor carries the creation parameters for a SamplerState.
type SamplerDescriptor struct {
	MinFilter     SamplerMinMagFilter
	MagFilter     SamplerMinMagFilter
	MipFilter     SamplerMipFilter
	AddressModeU  SamplerAddressMode
	AddressModeV  SamplerAddressMode
	AddressModeW  SamplerAddressMode
	MaxAnisotropy uint32
	CompareFunction CompareFunction
	CompareEnabled  bool
	LodMinClamp   float32
	LodMaxClamp   float32
}
