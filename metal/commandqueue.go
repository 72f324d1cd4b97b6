package metal

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// CommandQueue allocates command buffers from a single Vulkan command
// pool, bound to the device's graphics queue.
type CommandQueue struct {
	device *Device
	pool   vk.CommandPool
}

// NewCommandQueue creates a resettable command pool against the
// graphics queue family.
func (d *Device) NewCommandQueue() (*CommandQueue, error) {
	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: d.queues.Graphics,
	}
	poolInfo.Deref()

	var pool vk.CommandPool
	if res := vk.CreateCommandPool(d.logicalDevice, &poolInfo, nil, &pool); res != vk.Success {
		return nil, newError("NewCommandQueue", KindAllocationFailed, fmt.Errorf("vkCreateCommandPool: %d", res))
	}
	return &CommandQueue{device: d, pool: pool}, nil
}

// CommandBuffer allocates and begins recording a new primary command
// buffer.
func (q *CommandQueue) CommandBuffer() (*CommandBuffer, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        q.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	allocInfo.Deref()

	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(q.device.logicalDevice, &allocInfo, handles); res != vk.Success {
		return nil, newError("CommandBuffer", KindAllocationFailed, fmt.Errorf("vkAllocateCommandBuffers: %d", res))
	}

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	beginInfo.Deref()
	if res := vk.BeginCommandBuffer(handles[0], &beginInfo); res != vk.Success {
		vk.FreeCommandBuffers(q.device.logicalDevice, q.pool, 1, handles)
		return nil, newError("CommandBuffer", KindGPU, fmt.Errorf("vkBeginCommandBuffer: %d", res))
	}

	cb := &CommandBuffer{
		device: q.device,
		queue:  q,
		handle: handles[0],
		state:  commandBufferStateRecording,
	}
	cb.init()
	return cb, nil
}

// Destroy destroys the queue's command pool.
func (q *CommandQueue) Destroy() {
	vk.DestroyCommandPool(q.device.logicalDevice, q.pool, nil)
}
