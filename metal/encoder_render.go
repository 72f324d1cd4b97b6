package metal

import (
	"fmt"
	"sort"

	vk "github.com/goki/vulkan"

	"github.com/driftwood-gpu/metalvk/metal/types"
)

const encoderMaxDescriptorSets = 64

// stageBufferSlot is one encoder-local buffer binding: a Metal buffer
// index bound to a *Buffer plus byte offset, set by SetVertexBuffer /
// SetFragmentBuffer and consumed both for descriptor-set GPU-address
// assembly and for vertex-input binding.
type stageBufferSlot struct {
	buffer *Buffer
	offset uint64
}

// stageResources is one shader stage's encoder-local resource table.
type stageResources struct {
	buffers  map[uint32]stageBufferSlot
	textures map[uint32]Texture
	samplers map[uint32]*SamplerState
}

func newStageResources() stageResources {
	return stageResources{
		buffers:  map[uint32]stageBufferSlot{},
		textures: map[uint32]Texture{},
		samplers: map[uint32]*SamplerState{},
	}
}

// RenderCommandEncoder records draw commands into one render pass built
// over the target attachments named by a RenderPassDescriptor.
type RenderCommandEncoder struct {
	cb     *CommandBuffer
	device *Device
	cmd    vk.CommandBuffer

	renderPass  vk.RenderPass
	framebuffer vk.Framebuffer
	width       uint32
	height      uint32

	descriptorPool vk.DescriptorPool

	pso *RenderPipelineState

	vertex   stageResources
	fragment stageResources

	touched map[Texture]*touchedTexture

	// retainedBuffers holds the per-draw GPU-address uniform buffers, whose
	// lifetime must outlast the draws that reference them. No snapshot of
	// the stage resource tables is taken at draw time: each draw's
	// descriptors are written from the tables as they stand when it is
	// recorded.
	retainedBuffers []*Buffer

	ended bool
}

// NewRenderCommandEncoder builds a single-subpass render pass over desc's
// attachments, creates a matching framebuffer, begins the pass, and
// issues the default dynamic-state commands spec.md §4.9 requires.
func (cb *CommandBuffer) NewRenderCommandEncoder(desc RenderPassDescriptor) (*RenderCommandEncoder, error) {
	const op = "NewRenderCommandEncoder"

	if len(desc.ColorAttachments) == 0 {
		return nil, newError(op, KindInvalidUsage, fmt.Errorf("render pass needs at least one color attachment"))
	}

	var attachments []vk.AttachmentDescription
	var colorRefs []vk.AttachmentReference
	var views []vk.ImageView
	width := desc.ColorAttachments[0].Texture.descriptor().Width
	height := desc.ColorAttachments[0].Texture.descriptor().Height

	for i, ca := range desc.ColorAttachments {
		format, _ := ca.Texture.descriptor().PixelFormat.ToVulkan()
		initial := vk.ImageLayoutUndefined
		if ca.LoadAction == types.LoadActionLoad {
			initial = stableImageLayout
		}
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         ca.LoadAction.ToVulkan(),
			StoreOp:        ca.StoreAction.ToVulkan(),
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  initial,
			FinalLayout:    stableImageLayout,
		})
		colorRefs = append(colorRefs, vk.AttachmentReference{Attachment: uint32(i), Layout: stableImageLayout})
		views = append(views, ca.Texture.imageView())
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorRefs)),
		PColorAttachments:    colorRefs,
	}

	var depthRef vk.AttachmentReference
	if desc.DepthAttachment != nil {
		da := desc.DepthAttachment
		format, _ := da.Texture.descriptor().PixelFormat.ToVulkan()
		initial := vk.ImageLayoutUndefined
		if da.LoadAction == types.LoadActionLoad {
			initial = stableImageLayout
		}
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         da.LoadAction.ToVulkan(),
			StoreOp:        da.StoreAction.ToVulkan(),
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  initial,
			FinalLayout:    stableImageLayout,
		})
		depthRef = vk.AttachmentReference{Attachment: uint32(len(attachments) - 1), Layout: stableImageLayout}
		subpass.PDepthStencilAttachment = &depthRef
		views = append(views, da.Texture.imageView())
	}

	renderPassInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
	}
	renderPassInfo.Deref()

	var renderPass vk.RenderPass
	if res := vk.CreateRenderPass(cb.device.logicalDevice, &renderPassInfo, nil, &renderPass); res != vk.Success {
		return nil, newError(op, KindAllocationFailed, fmt.Errorf("vkCreateRenderPass: %d", res))
	}

	fbInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderPass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           width,
		Height:          height,
		Layers:          1,
	}
	fbInfo.Deref()

	var framebuffer vk.Framebuffer
	if res := vk.CreateFramebuffer(cb.device.logicalDevice, &fbInfo, nil, &framebuffer); res != vk.Success {
		vk.DestroyRenderPass(cb.device.logicalDevice, renderPass, nil)
		return nil, newError(op, KindAllocationFailed, fmt.Errorf("vkCreateFramebuffer: %d", res))
	}

	poolInfo := vk.DescriptorPoolCreateInfo{
		SType: vk.StructureTypeDescriptorPoolCreateInfo,
		Flags: vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets: encoderMaxDescriptorSets,
		PoolSizeCount: 4,
		PPoolSizes: []vk.DescriptorPoolSize{
			{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: encoderMaxDescriptorSets},
			{Type: vk.DescriptorTypeSampledImage, DescriptorCount: encoderMaxDescriptorSets * 8},
			{Type: vk.DescriptorTypeStorageImage, DescriptorCount: encoderMaxDescriptorSets * 8},
			{Type: vk.DescriptorTypeSampler, DescriptorCount: encoderMaxDescriptorSets * 8},
		},
	}
	poolInfo.Deref()

	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(cb.device.logicalDevice, &poolInfo, nil, &pool); res != vk.Success {
		vk.DestroyFramebuffer(cb.device.logicalDevice, framebuffer, nil)
		vk.DestroyRenderPass(cb.device.logicalDevice, renderPass, nil)
		return nil, newError(op, KindAllocationFailed, fmt.Errorf("vkCreateDescriptorPool: %d", res))
	}

	var clearValues []vk.ClearValue
	for _, ca := range desc.ColorAttachments {
		var cv vk.ClearValue
		cv.SetColor([]float32{float32(ca.ClearColor.Red), float32(ca.ClearColor.Green), float32(ca.ClearColor.Blue), float32(ca.ClearColor.Alpha)})
		clearValues = append(clearValues, cv)
	}
	if desc.DepthAttachment != nil {
		var cv vk.ClearValue
		cv.SetDepthStencil(float32(desc.DepthAttachment.ClearDepth), 0)
		clearValues = append(clearValues, cv)
	}

	beginInfo := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      renderPass,
		Framebuffer:     framebuffer,
		RenderArea:      vk.Rect2D{Offset: vk.Offset2D{}, Extent: vk.Extent2D{Width: width, Height: height}},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	beginInfo.Deref()
	beginInfo.RenderArea.Deref()
	vk.CmdBeginRenderPass(cb.handle, &beginInfo, vk.SubpassContentsInline)

	e := &RenderCommandEncoder{
		cb:             cb,
		device:         cb.device,
		cmd:            cb.handle,
		renderPass:     renderPass,
		framebuffer:    framebuffer,
		width:          width,
		height:         height,
		descriptorPool: pool,
		vertex:         newStageResources(),
		fragment:       newStageResources(),
		touched:        map[Texture]*touchedTexture{},
	}
	for _, ca := range desc.ColorAttachments {
		e.touch(ca.Texture, true)
	}
	if desc.DepthAttachment != nil {
		e.touch(desc.DepthAttachment.Texture, true)
	}
	e.setDefaultState()
	cb.addEncoder(e)
	return e, nil
}

// setDefaultState issues viewport (Y-flipped so Metal's top-left origin
// maps to Vulkan's), full-target scissor, cull-none, clockwise front face,
// disabled depth/stencil test, zero blend color, and rasterizer-discard
// disabled, per spec.md §4.9.
func (e *RenderCommandEncoder) setDefaultState() {
	viewport := vk.Viewport{
		X: 0, Y: float32(e.height),
		Width: float32(e.width), Height: -float32(e.height),
		MinDepth: 0, MaxDepth: 1,
	}
	vk.CmdSetViewport(e.cmd, 0, 1, []vk.Viewport{viewport})

	scissor := vk.Rect2D{Offset: vk.Offset2D{}, Extent: vk.Extent2D{Width: e.width, Height: e.height}}
	scissor.Extent.Deref()
	vk.CmdSetScissor(e.cmd, 0, 1, []vk.Rect2D{scissor})

	vk.CmdSetCullMode(e.cmd, vk.CullModeFlags(vk.CullModeNone))
	vk.CmdSetFrontFace(e.cmd, vk.FrontFaceClockwise)
	vk.CmdSetDepthTestEnable(e.cmd, vk.False)
	vk.CmdSetDepthWriteEnable(e.cmd, vk.False)
	vk.CmdSetStencilTestEnable(e.cmd, vk.False)
	vk.CmdSetBlendConstants(e.cmd, [4]float32{0, 0, 0, 0})
	vk.CmdSetRasterizerDiscardEnable(e.cmd, vk.False)
}

func (e *RenderCommandEncoder) touch(t Texture, readWrite bool) {
	existing, ok := e.touched[t]
	if !ok {
		e.touched[t] = &touchedTexture{texture: t, readWrite: readWrite}
		return
	}
	if readWrite {
		existing.readWrite = true
	}
}

// SetVertexBuffer binds buf at Metal buffer index idx for the vertex
// stage, used both for vertex-attribute input and GPU-address assembly.
func (e *RenderCommandEncoder) SetVertexBuffer(buf *Buffer, offset uint64, idx uint32) {
	e.vertex.buffers[idx] = stageBufferSlot{buffer: buf, offset: offset}
}

// SetFragmentBuffer binds buf at Metal buffer index idx for the fragment
// stage.
func (e *RenderCommandEncoder) SetFragmentBuffer(buf *Buffer, offset uint64, idx uint32) {
	e.fragment.buffers[idx] = stageBufferSlot{buffer: buf, offset: offset}
}

// SetVertexTexture binds tex at Metal texture index idx for the vertex
// stage.
func (e *RenderCommandEncoder) SetVertexTexture(tex Texture, idx uint32) {
	e.vertex.textures[idx] = tex
}

// SetFragmentTexture binds tex at Metal texture index idx for the
// fragment stage.
func (e *RenderCommandEncoder) SetFragmentTexture(tex Texture, idx uint32) {
	e.fragment.textures[idx] = tex
}

// SetVertexSamplerState binds s at Metal sampler index idx for the vertex
// stage.
func (e *RenderCommandEncoder) SetVertexSamplerState(s *SamplerState, idx uint32) {
	e.vertex.samplers[idx] = s
}

// SetFragmentSamplerState binds s at Metal sampler index idx for the
// fragment stage.
func (e *RenderCommandEncoder) SetFragmentSamplerState(s *SamplerState, idx uint32) {
	e.fragment.samplers[idx] = s
}

// SetRenderPipelineState ensures pso has a pipeline compatible with this
// encoder's render pass and records it as the active pipeline.
func (e *RenderCommandEncoder) SetRenderPipelineState(pso *RenderPipelineState) error {
	for class := types.TopologyClass(0); int(class) < types.TopologyClassCount; class++ {
		if _, err := pso.pipelineForClass(class, e.renderPass); err != nil {
			return err
		}
	}
	e.pso = pso
	return nil
}

// SetDepthStencilState pushes depth/stencil dynamic state for subsequent
// draws.
func (e *RenderCommandEncoder) SetDepthStencilState(s *DepthStencilState) error {
	op, ok := s.CompareFunction.ToVulkan()
	if !ok {
		return newError("SetDepthStencilState", KindBadEnumValue, fmt.Errorf("unrecognized compare function %v", s.CompareFunction))
	}
	vk.CmdSetDepthTestEnable(e.cmd, vk.True)
	vk.CmdSetDepthCompareOp(e.cmd, op)
	vk.CmdSetDepthWriteEnable(e.cmd, vk.Bool32(boolToVk(s.DepthWriteEnable)))

	hasStencil := s.FrontFaceStencil != nil || s.BackFaceStencil != nil
	vk.CmdSetStencilTestEnable(e.cmd, vk.Bool32(boolToVk(hasStencil)))
	if s.FrontFaceStencil != nil {
		if err := e.setStencilFace(vk.StencilFaceFrontBit, s.FrontFaceStencil); err != nil {
			return err
		}
	}
	if s.BackFaceStencil != nil {
		if err := e.setStencilFace(vk.StencilFaceBackBit, s.BackFaceStencil); err != nil {
			return err
		}
	}
	return nil
}

func (e *RenderCommandEncoder) setStencilFace(face vk.StencilFaceFlagBits, st *types.StencilFaceState) error {
	fail, ok := st.StencilFailureOp.ToVulkan()
	if !ok {
		return newError("SetDepthStencilState", KindBadEnumValue, fmt.Errorf("unrecognized stencil op %v", st.StencilFailureOp))
	}
	pass, ok := st.DepthStencilPassOp.ToVulkan()
	if !ok {
		return newError("SetDepthStencilState", KindBadEnumValue, fmt.Errorf("unrecognized stencil op %v", st.DepthStencilPassOp))
	}
	depthFail, ok := st.DepthFailureOp.ToVulkan()
	if !ok {
		return newError("SetDepthStencilState", KindBadEnumValue, fmt.Errorf("unrecognized stencil op %v", st.DepthFailureOp))
	}
	compare, ok := st.StencilCompareFunction.ToVulkan()
	if !ok {
		return newError("SetDepthStencilState", KindBadEnumValue, fmt.Errorf("unrecognized compare function %v", st.StencilCompareFunction))
	}
	vk.CmdSetStencilOp(e.cmd, vk.StencilFaceFlags(face), fail, pass, depthFail, compare)
	vk.CmdSetStencilCompareMask(e.cmd, vk.StencilFaceFlags(face), st.ReadMask)
	vk.CmdSetStencilWriteMask(e.cmd, vk.StencilFaceFlags(face), st.WriteMask)
	return nil
}

// SetCullMode, SetFrontFacingWinding, SetStencilReferenceValue,
// SetDepthBias, and SetBlendColor push the remaining dynamic state a
// Metal render encoder exposes.
func (e *RenderCommandEncoder) SetCullMode(m types.FaceCullMode) {
	vk.CmdSetCullMode(e.cmd, vk.CullModeFlags(m.ToVulkan()))
}

func (e *RenderCommandEncoder) SetFrontFacingWinding(w types.Winding) {
	vk.CmdSetFrontFace(e.cmd, w.ToVulkan())
}

func (e *RenderCommandEncoder) SetStencilReferenceValue(ref uint32) {
	vk.CmdSetStencilReference(e.cmd, vk.StencilFaceFlags(vk.StencilFaceFrontAndBack), ref)
}

func (e *RenderCommandEncoder) SetDepthBias(constant, slope, clamp float32) {
	vk.CmdSetDepthBias(e.cmd, constant, clamp, slope)
}

func (e *RenderCommandEncoder) SetBlendColor(r, g, b, a float32) {
	vk.CmdSetBlendConstants(e.cmd, [4]float32{r, g, b, a})
}

// UseResource inserts a barrier translating usage/stages from Metal's
// resource-usage model into Vulkan access and pipeline-stage masks, per
// spec.md §4.9.
func (e *RenderCommandEncoder) UseResource(t Texture, usage types.ResourceUsage, stages types.RenderStages) {
	access := usage.ToVulkanAccess()
	stageMask := stages.ToVulkanPipelineStage()
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           stableImageLayout,
		NewLayout:           stableImageLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               t.image(),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspectMaskFor(t.descriptor().PixelFormat),
			LevelCount: vk.RemainingMipLevels,
			LayerCount: vk.RemainingArrayLayers,
		},
		SrcAccessMask: vk.AccessFlags(access),
		DstAccessMask: vk.AccessFlags(access),
	}
	barrier.Deref()
	barrier.SubresourceRange.Deref()
	vk.CmdPipelineBarrier(e.cmd,
		vk.PipelineStageFlags(stageMask), vk.PipelineStageFlags(stageMask),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	e.touch(t, usage&types.ResourceUsageWrite != 0)
}

// updateDescriptors allocates two descriptor sets on every call (set 0
// vertex, set 1 fragment, whether or not a stage has bindings), assembles
// the GPU-address buffer, writes every binding, and binds both sets to the
// current pipeline.
func (e *RenderCommandEncoder) updateDescriptors() error {
	if e.pso == nil {
		return newError("draw", KindInvalidUsage, fmt.Errorf("no render pipeline state bound"))
	}

	sets := make([]vk.DescriptorSet, 0, 2)
	layouts := []vk.DescriptorSetLayout{e.pso.descriptorLayouts[0], e.pso.descriptorLayouts[1]}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     e.descriptorPool,
		DescriptorSetCount: uint32(len(layouts)),
		PSetLayouts:        layouts,
	}
	allocInfo.Deref()

	handles := make([]vk.DescriptorSet, len(layouts))
	if res := vk.AllocateDescriptorSets(e.device.logicalDevice, &allocInfo, handles); res != vk.Success {
		return newError("draw", KindAllocationFailed, fmt.Errorf("vkAllocateDescriptorSets: %d", res))
	}
	sets = handles

	if err := e.writeStageDescriptors(sets[0], e.pso.vertexFn.Info, e.vertex); err != nil {
		return err
	}
	if err := e.writeStageDescriptors(sets[1], e.pso.fragmentFn.Info, e.fragment); err != nil {
		return err
	}

	vk.CmdBindDescriptorSets(e.cmd, vk.PipelineBindPointGraphics, e.pso.layout, 0, uint32(len(sets)), sets, 0, nil)
	return nil
}

func (e *RenderCommandEncoder) writeStageDescriptors(set vk.DescriptorSet, info *FunctionInfo, res stageResources) error {
	var writes []vk.WriteDescriptorSet

	var bufferBindings []types.Binding
	for _, b := range info.Bindings {
		if b.Type == types.BindingTypeBuffer {
			bufferBindings = append(bufferBindings, b)
		}
	}
	sort.Slice(bufferBindings, func(i, j int) bool { return bufferBindings[i].ExternalIndex < bufferBindings[j].ExternalIndex })

	if len(bufferBindings) > 0 {
		addresses := make([]byte, 8*len(bufferBindings))
		for i, b := range bufferBindings {
			slot, ok := res.buffers[b.ExternalIndex]
			var addr uint64
			if ok {
				addr = slot.buffer.GPUAddress() + slot.offset
			}
			putUint64LE(addresses[i*8:i*8+8], addr)
		}
		addrBuf, err := e.device.NewBuffer(uint64(len(addresses)), types.StorageModeShared, addresses)
		if err != nil {
			return err
		}
		e.retainedBuffers = append(e.retainedBuffers, addrBuf)

		bufferInfo := vk.DescriptorBufferInfo{Buffer: addrBuf.handle, Offset: 0, Range: vk.DeviceSize(len(addresses))}
		bufferInfo.Deref()
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo:     []vk.DescriptorBufferInfo{bufferInfo},
		})
	}

	for _, b := range info.Bindings {
		switch b.Type {
		case types.BindingTypeTexture:
			tex, ok := res.textures[b.ExternalIndex]
			if !ok {
				continue
			}
			imgInfo := vk.DescriptorImageInfo{ImageView: tex.imageView(), ImageLayout: stableImageLayout}
			imgInfo.Deref()
			writes = append(writes, vk.WriteDescriptorSet{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          set,
				DstBinding:      b.InternalIndex,
				DescriptorCount: 1,
				DescriptorType:  b.TextureAccessType.DescriptorType(),
				PImageInfo:      []vk.DescriptorImageInfo{imgInfo},
			})
			e.touch(tex, b.TextureAccessType != types.TextureAccessSample)
		case types.BindingTypeSampler:
			var sampler *SamplerState
			if b.EmbeddedSamplerIndex >= 0 && b.EmbeddedSamplerIndex < len(info.EmbeddedSamplers) {
				sampler = info.EmbeddedSamplers[b.EmbeddedSamplerIndex]
			} else if s, ok := res.samplers[b.ExternalIndex]; ok {
				sampler = s
			}
			if sampler == nil {
				continue
			}
			imgInfo := vk.DescriptorImageInfo{Sampler: sampler.handle}
			imgInfo.Deref()
			writes = append(writes, vk.WriteDescriptorSet{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          set,
				DstBinding:      b.InternalIndex,
				DescriptorCount: 1,
				DescriptorType:  vk.DescriptorTypeSampler,
				PImageInfo:      []vk.DescriptorImageInfo{imgInfo},
			})
		}
	}

	if len(writes) > 0 {
		vk.UpdateDescriptorSets(e.device.logicalDevice, uint32(len(writes)), writes, 0, nil)
	}
	return nil
}

func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// bindVertexBuffers walks the pipeline's Metal->Vulkan rebind map, binding
// the encoder-local buffer at each Metal index to its compacted Vulkan
// binding slot.
func (e *RenderCommandEncoder) bindVertexBuffers() {
	if len(e.pso.vertexInputBindings) == 0 {
		return
	}
	bindings := make([]uint32, 0, len(e.pso.vertexInputBindings))
	for b := range e.pso.vertexInputBindings {
		bindings = append(bindings, b)
	}
	sort.Slice(bindings, func(i, j int) bool { return bindings[i] < bindings[j] })

	buffers := make([]vk.Buffer, len(bindings))
	offsets := make([]vk.DeviceSize, len(bindings))
	for i, vulkanBinding := range bindings {
		metalIndex := e.pso.vertexInputBindings[vulkanBinding]
		slot := e.vertex.buffers[metalIndex]
		if slot.buffer != nil {
			buffers[i] = slot.buffer.handle
			offsets[i] = vk.DeviceSize(slot.offset)
		}
	}
	vk.CmdBindVertexBuffers(e.cmd, bindings[0], uint32(len(buffers)), buffers, offsets)
}

// DrawPrimitives issues a non-indexed draw.
func (e *RenderCommandEncoder) DrawPrimitives(primitiveType types.PrimitiveType, vertexStart, vertexCount, instanceCount uint32) error {
	if err := e.prepareDraw(primitiveType); err != nil {
		return err
	}
	vk.CmdDraw(e.cmd, vertexCount, instanceCount, vertexStart, 0)
	return nil
}

// DrawIndexedPrimitives issues an indexed draw.
func (e *RenderCommandEncoder) DrawIndexedPrimitives(primitiveType types.PrimitiveType, indexCount uint32, indexType types.IndexType,
	indexBuffer *Buffer, indexBufferOffset uint64, instanceCount uint32) error {
	if err := e.prepareDraw(primitiveType); err != nil {
		return err
	}
	vk.CmdBindIndexBuffer(e.cmd, indexBuffer.handle, vk.DeviceSize(indexBufferOffset), indexType.ToVulkan())
	vk.CmdDrawIndexed(e.cmd, indexCount, instanceCount, 0, 0, 0)
	return nil
}

func (e *RenderCommandEncoder) prepareDraw(primitiveType types.PrimitiveType) error {
	if e.pso == nil {
		return newError("draw", KindInvalidUsage, fmt.Errorf("no render pipeline state bound"))
	}
	topology, ok := primitiveType.ToVulkan()
	if !ok {
		return newError("draw", KindBadEnumValue, fmt.Errorf("unrecognized primitive type %v", primitiveType))
	}

	pipeline, err := e.pso.pipelineForClass(primitiveType.Class(), e.renderPass)
	if err != nil {
		return err
	}
	vk.CmdBindPipeline(e.cmd, vk.PipelineBindPointGraphics, pipeline)
	vk.CmdSetPrimitiveTopology(e.cmd, topology)

	if err := e.updateDescriptors(); err != nil {
		return err
	}
	e.bindVertexBuffers()
	return nil
}

// EndEncoding ends the render pass. The render pass, framebuffer, and
// descriptor pool are destroyed once the owning command buffer completes.
func (e *RenderCommandEncoder) EndEncoding() {
	if e.ended {
		return
	}
	e.ended = true
	vk.CmdEndRenderPass(e.cmd)
	e.cb.AddCompletedHandler(func(*CommandBuffer) {
		for _, b := range e.retainedBuffers {
			b.Destroy()
		}
		vk.DestroyDescriptorPool(e.device.logicalDevice, e.descriptorPool, nil)
		vk.DestroyFramebuffer(e.device.logicalDevice, e.framebuffer, nil)
		vk.DestroyRenderPass(e.device.logicalDevice, e.renderPass, nil)
	})
}

// preCommit returns every texture this encoder referenced, satisfying the
// encoder interface.
func (e *RenderCommandEncoder) preCommit() []touchedTexture {
	out := make([]touchedTexture, 0, len(e.touched))
	for _, t := range e.touched {
		out = append(out, *t)
	}
	return out
}
