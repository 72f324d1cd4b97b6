package metal

import (
	"fmt"
	"sort"

	vk "github.com/goki/vulkan"

	"github.com/driftwood-gpu/metalvk/metal/types"
)

// dynamicRenderStates is the extensive dynamic-state list a render
// pipeline is built with, so the encoder can reprogram the whole
// rasterization/blend/depth-stencil state machine per draw instead of
// baking it into the PSO.
var dynamicRenderStates = []vk.DynamicState{
	vk.DynamicStateViewportWithCount,
	vk.DynamicStateScissorWithCount,
	vk.DynamicStatePrimitiveTopology,
	vk.DynamicStateCullMode,
	vk.DynamicStateFrontFace,
	vk.DynamicStateDepthBias,
	vk.DynamicStateDepthTestEnable,
	vk.DynamicStateDepthWriteEnable,
	vk.DynamicStateDepthCompareOp,
	vk.DynamicStateDepthBoundsTestEnable,
	vk.DynamicStateStencilTestEnable,
	vk.DynamicStateStencilOp,
	vk.DynamicStateStencilCompareMask,
	vk.DynamicStateStencilWriteMask,
	vk.DynamicStateStencilReference,
	vk.DynamicStateBlendConstants,
	vk.DynamicStateRasterizerDiscardEnable,
}

// RenderPipelineState is a Vulkan render pipeline family: one pipeline per
// topology class (points, lines, triangles), sharing one pipeline layout
// and two descriptor-set layouts (set 0 vertex, set 1 fragment). Pipelines
// are created lazily against a
// specific render pass the first time setRenderPipelineState sees it,
// since Vulkan graphics pipelines are bound to a render-pass-compatible
// subpass.
type RenderPipelineState struct {
	device *Device
	desc   types.RenderPipelineDescriptor

	vertexFn   *Function
	fragmentFn *Function

	layout          vk.PipelineLayout
	descriptorLayouts []vk.DescriptorSetLayout

	// vertexInputBindings maps a compacted Vulkan binding index back to
	// the Metal buffer index it was rebound from, so the render encoder
	// can translate encoder-local buffer slots into the right (binding,
	// offset) pairs at draw time.
	vertexInputBindings map[uint32]uint32

	vertexBindingDescs   []vk.VertexInputBindingDescription
	vertexAttributeDescs []vk.VertexInputAttributeDescription

	// pipelines[class][renderPass] caches the per-topology-class, per-
	// render-pass-compatible pipeline.
	pipelines [types.TopologyClassCount]map[vk.RenderPass]vk.Pipeline
}

// NewRenderPipelineState compiles a vertex input state from the Metal
// vertex descriptor (compacting distinct Metal buffer slots into dense
// Vulkan binding indices), builds one descriptor-set layout per function
// (set 0 vertex, set 1 fragment), and creates the shared pipeline layout
// over both. The three topology-
// class pipelines are created lazily per render pass.
func (d *Device) NewRenderPipelineState(vertexFn, fragmentFn *Function, desc types.RenderPipelineDescriptor) (*RenderPipelineState, error) {
	const op = "NewRenderPipelineState"

	if vertexFn.Info.FunctionType != types.FunctionTypeVertex {
		return nil, newError(op, KindInvalidUsage, fmt.Errorf("vertex function has type %d", vertexFn.Info.FunctionType))
	}
	if fragmentFn.Info.FunctionType != types.FunctionTypeFragment {
		return nil, newError(op, KindInvalidUsage, fmt.Errorf("fragment function has type %d", fragmentFn.Info.FunctionType))
	}

	vertexLayout, err := d.buildDescriptorSetLayout(vertexFn.Info)
	if err != nil {
		return nil, err
	}
	fragmentLayout, err := d.buildDescriptorSetLayout(fragmentFn.Info)
	if err != nil {
		return nil, err
	}
	descriptorLayouts := []vk.DescriptorSetLayout{vertexLayout, fragmentLayout}

	layoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(descriptorLayouts)),
		PSetLayouts:    descriptorLayouts,
	}
	layoutCreateInfo.Deref()

	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(d.logicalDevice, &layoutCreateInfo, nil, &layout); res != vk.Success {
		return nil, newError(op, KindAllocationFailed, fmt.Errorf("vkCreatePipelineLayout: %d", res))
	}

	bindingDescs, attributeDescs, rebind := compactVertexInputState(desc.VertexDescriptor)

	pso := &RenderPipelineState{
		device:              d,
		desc:                desc,
		vertexFn:            vertexFn,
		fragmentFn:          fragmentFn,
		layout:              layout,
		descriptorLayouts:   descriptorLayouts,
		vertexInputBindings: rebind,
		vertexBindingDescs:  bindingDescs,
		vertexAttributeDescs: attributeDescs,
	}
	for i := range pso.pipelines {
		pso.pipelines[i] = make(map[vk.RenderPass]vk.Pipeline)
	}
	return pso, nil
}

// compactVertexInputState assigns each distinct Metal buffer slot a dense
// Vulkan binding index in ascending Metal-index order, recording the
// rebinding map the render encoder needs at draw time.
func compactVertexInputState(vd types.VertexDescriptor) ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription, map[uint32]uint32) {
	metalIndices := make([]uint32, 0, len(vd.Layouts))
	for idx := range vd.Layouts {
		metalIndices = append(metalIndices, idx)
	}
	sort.Slice(metalIndices, func(i, j int) bool { return metalIndices[i] < metalIndices[j] })

	rebind := make(map[uint32]uint32, len(metalIndices))
	metalToVulkan := make(map[uint32]uint32, len(metalIndices))
	var bindingDescs []vk.VertexInputBindingDescription
	for vulkanBinding, metalIndex := range metalIndices {
		layout := vd.Layouts[metalIndex]
		inputRate, ok := layout.StepFunction.ToVulkan()
		if !ok {
			inputRate = vk.VertexInputRateVertex
		}
		bindingDescs = append(bindingDescs, vk.VertexInputBindingDescription{
			Binding:   uint32(vulkanBinding),
			Stride:    layout.Stride,
			InputRate: inputRate,
		})
		rebind[uint32(vulkanBinding)] = metalIndex
		metalToVulkan[metalIndex] = uint32(vulkanBinding)
	}

	var attributeDescs []vk.VertexInputAttributeDescription
	for _, attr := range vd.Attributes {
		format, ok := attr.Format.ToVulkan()
		if !ok {
			continue
		}
		attributeDescs = append(attributeDescs, vk.VertexInputAttributeDescription{
			Location: attr.ShaderLocation,
			Binding:  metalToVulkan[attr.BufferIndex],
			Format:   format,
			Offset:   attr.Offset,
		})
	}

	return bindingDescs, attributeDescs, rebind
}

// pipelineForClass returns (creating if necessary) the pipeline for the
// given topology class and render pass, per spec.md §4.7/4.9's rule that
// setRenderPipelineState must ensure pipelines compatible with the
// current render pass exist.
func (p *RenderPipelineState) pipelineForClass(class types.TopologyClass, renderPass vk.RenderPass) (vk.Pipeline, error) {
	if existing, ok := p.pipelines[class][renderPass]; ok {
		return existing, nil
	}

	topology := topologyForClass(class)

	vertexModule := p.vertexFn.Library.module
	fragmentModule := p.fragmentFn.Library.module

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vertexModule,
			PName:  safeCString(p.vertexFn.Name),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragmentModule,
			PName:  safeCString(p.fragmentFn.Name),
		},
	}

	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(p.vertexBindingDescs)),
		PVertexBindingDescriptions:      p.vertexBindingDescs,
		VertexAttributeDescriptionCount: uint32(len(p.vertexAttributeDescs)),
		PVertexAttributeDescriptions:    p.vertexAttributeDescs,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: topology,
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterization := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType: vk.StructureTypePipelineDepthStencilStateCreateInfo,
	}

	colorBlendAttachments := make([]vk.PipelineColorBlendAttachmentState, len(p.desc.ColorAttachments))
	for i, ca := range p.desc.ColorAttachments {
		state := vk.PipelineColorBlendAttachmentState{
			BlendEnable:    vk.Bool32(boolToVk(ca.BlendingEnabled)),
			ColorWriteMask: vk.ColorComponentFlags(ca.WriteMask.ToVulkan()),
		}
		if ca.BlendingEnabled {
			if f, ok := ca.SourceRGBBlendFactor.ToVulkan(); ok {
				state.SrcColorBlendFactor = f
			}
			if f, ok := ca.DestinationRGBBlendFactor.ToVulkan(); ok {
				state.DstColorBlendFactor = f
			}
			if op, ok := ca.RGBBlendOperation.ToVulkan(); ok {
				state.ColorBlendOp = op
			}
			if f, ok := ca.SourceAlphaBlendFactor.ToVulkan(); ok {
				state.SrcAlphaBlendFactor = f
			}
			if f, ok := ca.DestinationAlphaBlendFactor.ToVulkan(); ok {
				state.DstAlphaBlendFactor = f
			}
			if op, ok := ca.AlphaBlendOperation.ToVulkan(); ok {
				state.AlphaBlendOp = op
			}
		}
		colorBlendAttachments[i] = state
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(colorBlendAttachments)),
		PAttachments:    colorBlendAttachments,
	}

	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicRenderStates)),
		PDynamicStates:    dynamicRenderStates,
	}

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:           uint32(len(stages)),
		PStages:              stages,
		PVertexInputState:    &vertexInputInfo,
		PInputAssemblyState:  &inputAssembly,
		PViewportState:       &viewportState,
		PRasterizationState:  &rasterization,
		PMultisampleState:    &multisample,
		PDepthStencilState:   &depthStencil,
		PColorBlendState:     &colorBlend,
		PDynamicState:        &dynamicState,
		Layout:               p.layout,
		RenderPass:            renderPass,
		BasePipelineIndex:    -1,
	}
	createInfo.Deref()

	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(p.device.logicalDevice, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{createInfo}, nil, pipelines); res != vk.Success {
		return nil, newError("pipelineForClass", KindAllocationFailed, fmt.Errorf("vkCreateGraphicsPipelines: %d", res))
	}

	p.pipelines[class][renderPass] = pipelines[0]
	return pipelines[0], nil
}

func topologyForClass(class types.TopologyClass) vk.PrimitiveTopology {
	switch class {
	case types.TopologyClassPoint:
		return vk.PrimitiveTopologyPointList
	case types.TopologyClassLine:
		return vk.PrimitiveTopologyLineList
	default:
		return vk.PrimitiveTopologyTriangleList
	}
}

// Destroy destroys every created pipeline, the pipeline layout, and the
// two descriptor-set layouts.
func (p *RenderPipelineState) Destroy() {
	for class := range p.pipelines {
		for _, handle := range p.pipelines[class] {
			vk.DestroyPipeline(p.device.logicalDevice, handle, nil)
		}
	}
	vk.DestroyPipelineLayout(p.device.logicalDevice, p.layout, nil)
	for _, l := range p.descriptorLayouts {
		vk.DestroyDescriptorSetLayout(p.device.logicalDevice, l, nil)
	}
}
