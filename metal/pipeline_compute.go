package metal

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// ComputePipelineState holds a compute function's descriptor-set layout
// and pipeline layout. Because Metal lets callers pick threads-per-
// threadgroup at dispatch time while Vulkan bakes workgroup size into the
// shader, the actual vk.Pipeline is created per distinct dispatch size via
// specialization constants and cached by that size.
type ComputePipelineState struct {
	device *Device
	fn     *Function

	descriptorLayout vk.DescriptorSetLayout
	layout           vk.PipelineLayout

	pipelines map[threadgroupKey]vk.Pipeline
}

type threadgroupKey struct{ x, y, z uint32 }

// NewComputePipelineState builds the descriptor-set and pipeline layouts
// for a compute function. Actual vk.Pipeline objects are created lazily,
// one per threads-per-threadgroup size requested at dispatch time.
func (d *Device) NewComputePipelineState(fn *Function) (*ComputePipelineState, error) {
	const op = "NewComputePipelineState"

	layout, err := d.buildDescriptorSetLayout(fn.Info)
	if err != nil {
		return nil, err
	}

	layoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{layout},
	}
	layoutCreateInfo.Deref()

	var pipelineLayout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(d.logicalDevice, &layoutCreateInfo, nil, &pipelineLayout); res != vk.Success {
		return nil, newError(op, KindAllocationFailed, fmt.Errorf("vkCreatePipelineLayout: %d", res))
	}

	return &ComputePipelineState{
		device:           d,
		fn:               fn,
		descriptorLayout: layout,
		layout:           pipelineLayout,
		pipelines:        make(map[threadgroupKey]vk.Pipeline),
	}, nil
}

// pipelineForThreadgroupSize returns (creating and retaining if
// necessary) the vk.Pipeline specialized for the given threads-per-
// threadgroup, setting the shader's three workgroup-size specialization
// constants.
func (p *ComputePipelineState) pipelineForThreadgroupSize(x, y, z uint32) (vk.Pipeline, error) {
	key := threadgroupKey{x, y, z}
	if existing, ok := p.pipelines[key]; ok {
		return existing, nil
	}

	specData := make([]byte, 12)
	putUint32LE(specData[0:4], x)
	putUint32LE(specData[4:8], y)
	putUint32LE(specData[8:12], z)

	entries := []vk.SpecializationMapEntry{
		{ConstantID: 0, Offset: 0, Size: 4},
		{ConstantID: 1, Offset: 4, Size: 4},
		{ConstantID: 2, Offset: 8, Size: 4},
	}
	specInfo := vk.SpecializationInfo{
		MapEntryCount: uint32(len(entries)),
		PMapEntries:   entries,
		DataSize:      uint(len(specData)),
		PData:         specData,
	}
	specInfo.Deref()

	stage := vk.PipelineShaderStageCreateInfo{
		SType:               vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:               vk.ShaderStageComputeBit,
		Module:              p.fn.Library.module,
		PName:               safeCString(p.fn.Name),
		PSpecializationInfo: &specInfo,
	}

	createInfo := vk.ComputePipelineCreateInfo{
		SType:              vk.StructureTypeComputePipelineCreateInfo,
		Stage:              stage,
		Layout:             p.layout,
		BasePipelineIndex:  -1,
	}
	createInfo.Deref()

	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateComputePipelines(p.device.logicalDevice, vk.NullPipelineCache, 1, []vk.ComputePipelineCreateInfo{createInfo}, nil, pipelines); res != vk.Success {
		return nil, newError("pipelineForThreadgroupSize", KindAllocationFailed, fmt.Errorf("vkCreateComputePipelines: %d", res))
	}

	p.pipelines[key] = pipelines[0]
	return pipelines[0], nil
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// Destroy destroys every created pipeline, the pipeline layout, and the
// descriptor-set layout. The compute encoder does not call it: pipelines
// created for dispatches stay cached on this state until Destroy is
// called.
func (p *ComputePipelineState) Destroy() {
	for _, handle := range p.pipelines {
		vk.DestroyPipeline(p.device.logicalDevice, handle, nil)
	}
	vk.DestroyPipelineLayout(p.device.logicalDevice, p.layout, nil)
	vk.DestroyDescriptorSetLayout(p.device.logicalDevice, p.descriptorLayout, nil)
}
