package metal

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/driftwood-gpu/metalvk/metal/types"
)

// buildDescriptorSetLayout produces a Vulkan descriptor-set layout from a
// function's binding list: binding 0 is a UNIFORM_BUFFER if the function
// has any buffer bindings (the engine stores GPU addresses there), each
// texture binding gets a SAMPLED_IMAGE or STORAGE_IMAGE entry at its
// internal index, and each sampler binding gets a SAMPLER entry, all with
// stage flags derived from the function's type.
func (d *Device) buildDescriptorSetLayout(info *FunctionInfo) (vk.DescriptorSetLayout, error) {
	stage := vk.ShaderStageFlags(info.FunctionType.ShaderStage())
	if stage == 0 {
		return nil, newError("buildDescriptorSetLayout", KindUnsupported, fmt.Errorf("function type %d has no shader stage", info.FunctionType))
	}

	var bindings []vk.DescriptorSetLayoutBinding

	hasBuffers := false
	for _, b := range info.Bindings {
		if b.Type == types.BindingTypeBuffer {
			hasBuffers = true
			break
		}
	}
	if hasBuffers {
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         0,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      stage,
		})
	}

	for _, b := range info.Bindings {
		switch b.Type {
		case types.BindingTypeTexture:
			bindings = append(bindings, vk.DescriptorSetLayoutBinding{
				Binding:         b.InternalIndex,
				DescriptorType:  b.TextureAccessType.DescriptorType(),
				DescriptorCount: 1,
				StageFlags:      stage,
			})
		case types.BindingTypeSampler:
			bindings = append(bindings, vk.DescriptorSetLayoutBinding{
				Binding:         b.InternalIndex,
				DescriptorType:  vk.DescriptorTypeSampler,
				DescriptorCount: 1,
				StageFlags:      stage,
			})
		}
	}

	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	createInfo.Deref()

	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(d.logicalDevice, &createInfo, nil, &layout); res != vk.Success {
		return nil, newError("buildDescriptorSetLayout", KindAllocationFailed, fmt.Errorf("vkCreateDescriptorSetLayout: %d", res))
	}
	return layout, nil
}

// descriptorPoolSizesFor returns pool sizes sufficient to allocate maxSets
// descriptor sets for a function with this binding list. The encoders do
// not call it: their transient descriptor pools use fixed per-type counts.
func descriptorPoolSizesFor(info *FunctionInfo, maxSets uint32) []vk.DescriptorPoolSize {
	var uniform, sampledImage, storageImage, sampler uint32

	hasBuffers := false
	for _, b := range info.Bindings {
		if b.Type == types.BindingTypeBuffer {
			hasBuffers = true
		}
	}
	if hasBuffers {
		uniform = maxSets
	}

	for _, b := range info.Bindings {
		switch b.Type {
		case types.BindingTypeTexture:
			if b.TextureAccessType == types.TextureAccessSample {
				sampledImage += maxSets
			} else {
				storageImage += maxSets
			}
		case types.BindingTypeSampler:
			sampler += maxSets
		}
	}

	var sizes []vk.DescriptorPoolSize
	if uniform > 0 {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: uniform})
	}
	if sampledImage > 0 {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: vk.DescriptorTypeSampledImage, DescriptorCount: sampledImage})
	}
	if storageImage > 0 {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: vk.DescriptorTypeStorageImage, DescriptorCount: storageImage})
	}
	if sampler > 0 {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: vk.DescriptorTypeSampler, DescriptorCount: sampler})
	}
	return sizes
}
