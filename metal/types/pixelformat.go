// Package types holds the Metal-shaped enumerations consumed across the
// runtime and their translation tables into Vulkan equivalents.
package types

import vk "github.com/goki/vulkan"

// PixelFormat mirrors the subset of MTLPixelFormat this runtime supports.
type PixelFormat int

const (
	PixelFormatInvalid PixelFormat = iota
	PixelFormatA8Unorm
	PixelFormatR8Unorm
	PixelFormatR8Snorm
	PixelFormatR8Uint
	PixelFormatR8Sint
	PixelFormatR16Float
	PixelFormatR16Unorm
	PixelFormatRG8Unorm
	PixelFormatRG8Snorm
	PixelFormatR32Float
	PixelFormatR32Uint
	PixelFormatR32Sint
	PixelFormatRG16Float
	PixelFormatRG16Unorm
	PixelFormatRGBA8Unorm
	PixelFormatRGBA8Unorm_sRGB
	PixelFormatRGBA8Snorm
	PixelFormatBGRA8Unorm
	PixelFormatBGRA8Unorm_sRGB
	PixelFormatRGB10A2Unorm
	PixelFormatRG11B10Float
	PixelFormatRG32Float
	PixelFormatRG32Uint
	PixelFormatRGBA16Float
	PixelFormatRGBA16Unorm
	PixelFormatRGBA32Float
	PixelFormatRGBA32Uint
	PixelFormatDepth32Float
	PixelFormatDepth32Float_Stencil8
	PixelFormatDepth24Unorm_Stencil8
	PixelFormatStencil8
)

// vulkanFormats maps every supported PixelFormat to its Vulkan equivalent.
// Built once; the depth entries name fixed Vulkan formats and are not
// checked against what the physical device supports.
var vulkanFormats = map[PixelFormat]vk.Format{
	PixelFormatA8Unorm:                vk.FormatR8Unorm,
	PixelFormatR8Unorm:                vk.FormatR8Unorm,
	PixelFormatR8Snorm:                vk.FormatR8Snorm,
	PixelFormatR8Uint:                 vk.FormatR8Uint,
	PixelFormatR8Sint:                 vk.FormatR8Sint,
	PixelFormatR16Float:               vk.FormatR16Sfloat,
	PixelFormatR16Unorm:               vk.FormatR16Unorm,
	PixelFormatRG8Unorm:               vk.FormatR8g8Unorm,
	PixelFormatRG8Snorm:               vk.FormatR8g8Snorm,
	PixelFormatR32Float:               vk.FormatR32Sfloat,
	PixelFormatR32Uint:                vk.FormatR32Uint,
	PixelFormatR32Sint:                vk.FormatR32Sint,
	PixelFormatRG16Float:              vk.FormatR16g16Sfloat,
	PixelFormatRG16Unorm:              vk.FormatR16g16Unorm,
	PixelFormatRGBA8Unorm:             vk.FormatR8g8b8a8Unorm,
	PixelFormatRGBA8Unorm_sRGB:        vk.FormatR8g8b8a8Srgb,
	PixelFormatRGBA8Snorm:             vk.FormatR8g8b8a8Snorm,
	PixelFormatBGRA8Unorm:             vk.FormatB8g8r8a8Unorm,
	PixelFormatBGRA8Unorm_sRGB:        vk.FormatB8g8r8a8Srgb,
	PixelFormatRGB10A2Unorm:           vk.FormatA2r10g10b10UnormPack32,
	PixelFormatRG11B10Float:           vk.FormatB10g11r11UfloatPack32,
	PixelFormatRG32Float:              vk.FormatR32g32Sfloat,
	PixelFormatRG32Uint:               vk.FormatR32g32Uint,
	PixelFormatRGBA16Float:            vk.FormatR16g16b16a16Sfloat,
	PixelFormatRGBA16Unorm:            vk.FormatR16g16b16a16Unorm,
	PixelFormatRGBA32Float:            vk.FormatR32g32b32a32Sfloat,
	PixelFormatRGBA32Uint:             vk.FormatR32g32b32a32Uint,
	PixelFormatDepth32Float:           vk.FormatD32Sfloat,
	PixelFormatDepth32Float_Stencil8:  vk.FormatD32SfloatS8Uint,
	PixelFormatDepth24Unorm_Stencil8:  vk.FormatD24UnormS8Uint,
	PixelFormatStencil8:               vk.FormatS8Uint,
}

// ToVulkan translates a PixelFormat into its Vulkan equivalent. The second
// return is false for an unmapped enum value (a BadEnumValue condition).
func (f PixelFormat) ToVulkan() (vk.Format, bool) {
	format, ok := vulkanFormats[f]
	return format, ok
}

// IsDepthFormat reports whether the format carries a depth component.
func (f PixelFormat) IsDepthFormat() bool {
	switch f {
	case PixelFormatDepth32Float, PixelFormatDepth32Float_Stencil8, PixelFormatDepth24Unorm_Stencil8:
		return true
	}
	return false
}

// IsStencilFormat reports whether the format carries a stencil component.
func (f PixelFormat) IsStencilFormat() bool {
	switch f {
	case PixelFormatDepth32Float_Stencil8, PixelFormatDepth24Unorm_Stencil8, PixelFormatStencil8:
		return true
	}
	return false
}

// BytesPerBlock returns the size, in bytes, of a single texel for
// uncompressed formats. Compressed formats are not modeled (matching the
// teacher's texture system, which never introduced block-compressed
// formats either).
func (f PixelFormat) BytesPerBlock() uint32 {
	switch f {
	case PixelFormatA8Unorm, PixelFormatR8Unorm, PixelFormatR8Snorm, PixelFormatR8Uint, PixelFormatR8Sint, PixelFormatStencil8:
		return 1
	case PixelFormatR16Float, PixelFormatR16Unorm, PixelFormatRG8Unorm, PixelFormatRG8Snorm:
		return 2
	case PixelFormatR32Float, PixelFormatR32Uint, PixelFormatR32Sint, PixelFormatRG16Float, PixelFormatRG16Unorm,
		PixelFormatRGBA8Unorm, PixelFormatRGBA8Unorm_sRGB, PixelFormatRGBA8Snorm, PixelFormatBGRA8Unorm,
		PixelFormatBGRA8Unorm_sRGB, PixelFormatRGB10A2Unorm, PixelFormatRG11B10Float, PixelFormatDepth32Float,
		PixelFormatDepth32Float_Stencil8, PixelFormatDepth24Unorm_Stencil8:
		return 4
	case PixelFormatRG32Float, PixelFormatRG32Uint, PixelFormatRGBA16Float, PixelFormatRGBA16Unorm:
		return 8
	case PixelFormatRGBA32Float, PixelFormatRGBA32Uint:
		return 16
	}
	return 0
}
