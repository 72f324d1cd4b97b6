package metal

import (
	"fmt"

	"github.com/google/uuid"

	vk "github.com/goki/vulkan"

	"github.com/driftwood-gpu/metalvk/metal/types"
)

// SamplerState is an immutable Vulkan sampler.
type SamplerState struct {
	ID uuid.UUID

	device *Device
	desc   types.SamplerDescriptor
	handle vk.Sampler
}

// NewSamplerState creates an immutable sampler from desc.
func (d *Device) NewSamplerState(desc types.SamplerDescriptor) (*SamplerState, error) {
	const op = "NewSamplerState"

	addressU, ok := desc.AddressModeU.ToVulkan()
	if !ok {
		return nil, newError(op, KindBadEnumValue, fmt.Errorf("unrecognized address mode %v", desc.AddressModeU))
	}
	addressV, ok := desc.AddressModeV.ToVulkan()
	if !ok {
		return nil, newError(op, KindBadEnumValue, fmt.Errorf("unrecognized address mode %v", desc.AddressModeV))
	}
	addressW, ok := desc.AddressModeW.ToVulkan()
	if !ok {
		return nil, newError(op, KindBadEnumValue, fmt.Errorf("unrecognized address mode %v", desc.AddressModeW))
	}

	createInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               desc.MagFilter.ToVulkan(),
		MinFilter:               desc.MinFilter.ToVulkan(),
		MipmapMode:              desc.MipFilter.ToVulkan(),
		AddressModeU:            addressU,
		AddressModeV:            addressV,
		AddressModeW:            addressW,
		AnisotropyEnable:        vk.Bool32(boolToVk(desc.MaxAnisotropy > 1)),
		MaxAnisotropy:           float32(desc.MaxAnisotropy),
		CompareEnable:           vk.Bool32(boolToVk(desc.CompareEnabled)),
		CompareOp:               desc.CompareFunction.ToVulkan(),
		MinLod:                  desc.LodMinClamp,
		MaxLod:                  desc.LodMaxClamp,
		BorderColor:             vk.BorderColorFloatTransparentBlack,
		UnnormalizedCoordinates: vk.False,
	}
	createInfo.Deref()

	var handle vk.Sampler
	if res := vk.CreateSampler(d.logicalDevice, &createInfo, nil, &handle); res != vk.Success {
		return nil, newError(op, KindAllocationFailed, fmt.Errorf("vkCreateSampler: %d", res))
	}

	return &SamplerState{ID: uuid.New(), device: d, desc: desc, handle: handle}, nil
}

func boolToVk(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// CloneWithClamps produces a new SamplerState with overridden LOD clamps,
// leaving the original undisturbed.
func (s *SamplerState) CloneWithClamps(lodMin, lodMax float32) (*SamplerState, error) {
	desc := s.desc
	desc.LodMinClamp = lodMin
	desc.LodMaxClamp = lodMax
	return s.device.NewSamplerState(desc)
}

// Destroy destroys the underlying Vulkan sampler.
func (s *SamplerState) Destroy() {
	vk.DestroySampler(s.device.logicalDevice, s.handle, nil)
}
