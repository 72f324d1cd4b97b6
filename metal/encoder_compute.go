package metal

import (
	"fmt"
	"sort"

	vk "github.com/goki/vulkan"

	"github.com/driftwood-gpu/metalvk/metal/types"
)

// ComputeCommandEncoder records dispatch commands against a single
// compute pipeline, re-specialized per distinct threads-per-threadgroup
// size as spec.md §4.10 requires.
type ComputeCommandEncoder struct {
	cb     *CommandBuffer
	device *Device
	cmd    vk.CommandBuffer

	descriptorPool vk.DescriptorPool

	pso *ComputePipelineState

	resources stageResources
	touched   map[Texture]*touchedTexture

	retainedBuffers []*Buffer

	ended bool
}

// NewComputeCommandEncoder opens a compute encoder against cb.
func (cb *CommandBuffer) NewComputeCommandEncoder() (*ComputeCommandEncoder, error) {
	const op = "NewComputeCommandEncoder"

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
		return nil, newError(op, KindAllocationFailed, fmt.Errorf("vkCreateDescriptorPool: %d", res))
	}

	e := &ComputeCommandEncoder{
		cb:             cb,
		device:         cb.device,
		cmd:            cb.handle,
		descriptorPool: pool,
		resources:      newStageResources(),
		touched:        map[Texture]*touchedTexture{},
	}
	cb.addEncoder(e)
	return e, nil
}

func (e *ComputeCommandEncoder) touch(t Texture, readWrite bool) {
	existing, ok := e.touched[t]
	if !ok {
		e.touched[t] = &touchedTexture{texture: t, readWrite: readWrite}
		return
	}
	if readWrite {
		existing.readWrite = true
	}
}

// SetBuffer binds buf at Metal buffer index idx.
func (e *ComputeCommandEncoder) SetBuffer(buf *Buffer, offset uint64, idx uint32) {
	e.resources.buffers[idx] = stageBufferSlot{buffer: buf, offset: offset}
}

// SetTexture binds tex at Metal texture index idx.
func (e *ComputeCommandEncoder) SetTexture(tex Texture, idx uint32) {
	e.resources.textures[idx] = tex
}

// SetSamplerState binds s at Metal sampler index idx.
func (e *ComputeCommandEncoder) SetSamplerState(s *SamplerState, idx uint32) {
	e.resources.samplers[idx] = s
}

// SetComputePipelineState records pso as the active pipeline state.
func (e *ComputeCommandEncoder) SetComputePipelineState(pso *ComputePipelineState) {
	e.pso = pso
}

// UseResource inserts a barrier translating usage/stages into Vulkan
// access/pipeline-stage masks, mirroring the render encoder's method.
func (e *ComputeCommandEncoder) UseResource(t Texture, usage types.ResourceUsage) {
	access := usage.ToVulkanAccess()
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
		vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit), vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	e.touch(t, usage&types.ResourceUsageWrite != 0)
}

func (e *ComputeCommandEncoder) updateDescriptors() (vk.DescriptorSet, error) {
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     e.descriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{e.pso.descriptorLayout},
	}
	allocInfo.Deref()

	sets := make([]vk.DescriptorSet, 1)
	if res := vk.AllocateDescriptorSets(e.device.logicalDevice, &allocInfo, sets); res != vk.Success {
		return nil, newError("dispatch", KindAllocationFailed, fmt.Errorf("vkAllocateDescriptorSets: %d", res))
	}
	set := sets[0]

	info := e.pso.fn.Info
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
			slot, ok := e.resources.buffers[b.ExternalIndex]
			var addr uint64
			if ok {
				addr = slot.buffer.GPUAddress() + slot.offset
			}
			putUint64LE(addresses[i*8:i*8+8], addr)
		}
		addrBuf, err := e.device.NewBuffer(uint64(len(addresses)), types.StorageModeShared, addresses)
		if err != nil {
			return nil, err
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
			tex, ok := e.resources.textures[b.ExternalIndex]
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
			} else if s, ok := e.resources.samplers[b.ExternalIndex]; ok {
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
	return set, nil
}

// DispatchThreadgroups dispatches gridSize threadgroups, each sized
// tgSize, specializing (and caching) the pipeline for tgSize.
func (e *ComputeCommandEncoder) DispatchThreadgroups(gridSize, tgSize [3]uint32) error {
	if e.pso == nil {
		return newError("DispatchThreadgroups", KindInvalidUsage, fmt.Errorf("no compute pipeline state bound"))
	}
	pipeline, err := e.pso.pipelineForThreadgroupSize(tgSize[0], tgSize[1], tgSize[2])
	if err != nil {
		return err
	}
	vk.CmdBindPipeline(e.cmd, vk.PipelineBindPointCompute, pipeline)

	set, err := e.updateDescriptors()
	if err != nil {
		return err
	}
	vk.CmdBindDescriptorSets(e.cmd, vk.PipelineBindPointCompute, e.pso.layout, 0, 1, []vk.DescriptorSet{set}, 0, nil)

	vk.CmdDispatch(e.cmd, gridSize[0], gridSize[1], gridSize[2])
	return nil
}

// DispatchThreads dispatches over a threads-sized grid, requiring tgSize
// to evenly divide gridSize in every dimension, per spec.md §4.10.
func (e *ComputeCommandEncoder) DispatchThreads(gridSize, tgSize [3]uint32) error {
	var groups [3]uint32
	for i := 0; i < 3; i++ {
		if tgSize[i] == 0 || gridSize[i]%tgSize[i] != 0 {
			return newError("DispatchThreads", KindUnsupported, fmt.Errorf("unsupported partial threadgroup: grid %v not divisible by threadgroup %v", gridSize, tgSize))
		}
		groups[i] = gridSize[i] / tgSize[i]
	}
	return e.DispatchThreadgroups(groups, tgSize)
}

// EndEncoding releases the encoder's transient descriptor pool once the
// owning command buffer completes.
func (e *ComputeCommandEncoder) EndEncoding() {
	if e.ended {
		return
	}
	e.ended = true
	e.cb.AddCompletedHandler(func(*CommandBuffer) {
		for _, b := range e.retainedBuffers {
			b.Destroy()
		}
		vk.DestroyDescriptorPool(e.device.logicalDevice, e.descriptorPool, nil)
	})
}

func (e *ComputeCommandEncoder) preCommit() []touchedTexture {
	out := make([]touchedTexture, 0, len(e.touched))
	for _, t := range e.touched {
		out = append(out, *t)
	}
	return out
}
