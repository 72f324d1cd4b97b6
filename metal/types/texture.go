package types

import vk "github.com/goki/vulkan"

// TextureType mirrors MTLTextureType.
type TextureType int

const (
	TextureType2D TextureType = iota
	TextureType2DArray
	TextureTypeCube
	TextureTypeCubeArray
	TextureType3D
	TextureType2DMultisample
	TextureType1D
)

// ImageType returns the Vulkan image type backing this texture type.
func (t TextureType) ImageType() vk.ImageType {
	if t == TextureType3D {
		return vk.ImageType3d
	}
	if t == TextureType1D {
		return vk.ImageType1d
	}
	return vk.ImageType2d
}

// ViewType returns the Vulkan image view type for this texture type.
func (t TextureType) ViewType() vk.ImageViewType {
	switch t {
	case TextureType2D, TextureType2DMultisample:
		return vk.ImageViewType2d
	case TextureType2DArray:
		return vk.ImageViewType2dArray
	case TextureTypeCube:
		return vk.ImageViewTypeCube
	case TextureTypeCubeArray:
		return vk.ImageViewTypeCubeArray
	case TextureType3D:
		return vk.ImageViewType3d
	case TextureType1D:
		return vk.ImageViewType1d
	}
	return vk.ImageViewType2d
}

// IsArray reports whether the texture type carries more than one array
// layer conceptually (cube types included, since Vulkan represents cube
// faces as six array layers).
func (t TextureType) IsArray() bool {
	switch t {
	case TextureType2DArray, TextureTypeCube, TextureTypeCubeArray:
		return true
	}
	return false
}

// TextureUsage mirrors MTLTextureUsage as a bitmask.
type TextureUsage uint8

const (
	TextureUsageShaderRead   TextureUsage = 1 << 0
	TextureUsageShaderWrite  TextureUsage = 1 << 1
	TextureUsageRenderTarget TextureUsage = 1 << 2
)

// StorageMode mirrors MTLStorageMode.
type StorageMode int

const (
	StorageModeShared StorageMode = iota
	StorageModeManaged
	StorageModePrivate
	StorageModeMemoryless
)

// TextureSwizzle mirrors MTLTextureSwizzle.
type TextureSwizzle int

const (
	TextureSwizzleZero TextureSwizzle = iota
	TextureSwizzleOne
	TextureSwizzleRed
	TextureSwizzleGreen
	TextureSwizzleBlue
	TextureSwizzleAlpha
)

// TextureSwizzleChannels mirrors MTLTextureSwizzleChannels, the identity
// arrangement matching Vulkan's VK_COMPONENT_SWIZZLE_IDENTITY default.
type TextureSwizzleChannels struct {
	Red, Green, Blue, Alpha TextureSwizzle
}

// IdentitySwizzle is the default, no-op channel mapping.
func IdentitySwizzle() TextureSwizzleChannels {
	return TextureSwizzleChannels{TextureSwizzleRed, TextureSwizzleGreen, TextureSwizzleBlue, TextureSwizzleAlpha}
}

func (s TextureSwizzle) toVulkan() vk.ComponentSwizzle {
	switch s {
	case TextureSwizzleZero:
		return vk.ComponentSwizzleZero
	case TextureSwizzleOne:
		return vk.ComponentSwizzleOne
	case TextureSwizzleRed:
		return vk.ComponentSwizzleR
	case TextureSwizzleGreen:
		return vk.ComponentSwizzleG
	case TextureSwizzleBlue:
		return vk.ComponentSwizzleB
	case TextureSwizzleAlpha:
		return vk.ComponentSwizzleA
	}
	return vk.ComponentSwizzleIdentity
}

// ToVulkan translates the channel mapping into a vk.ComponentMapping.
func (s TextureSwizzleChannels) ToVulkan() vk.ComponentMapping {
	return vk.ComponentMapping{
		R: s.Red.toVulkan(),
		G: s.Green.toVulkan(),
		B: s.Blue.toVulkan(),
		A: s.Alpha.toVulkan(),
	}
}

// TextureDescriptor carries the creation parameters for a concrete
// texture, matching spec.md's Concrete Texture field list.
type TextureDescriptor struct {
	TextureType TextureType
	PixelFormat PixelFormat
	Width       uint32
	Height      uint32
	Depth       uint32
	MipLevels   uint32
	ArrayLength uint32
	SampleCount uint32
	Usage       TextureUsage
	StorageMode StorageMode
	Swizzle     TextureSwizzleChannels
}
