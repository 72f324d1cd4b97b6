package metal

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// submitOneShot allocates a single-use command buffer from the device's
// staging pool, records fn into it, submits to the graphics queue, and
// waits for completion before freeing it.
func (d *Device) submitOneShot(fn func(cmd vk.CommandBuffer)) error {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.stagingCommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	allocInfo.Deref()

	cmds := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(d.logicalDevice, &allocInfo, cmds); res != vk.Success {
		return fmt.Errorf("vkAllocateCommandBuffers: %d", res)
	}
	cmd := cmds[0]
	defer vk.FreeCommandBuffers(d.logicalDevice, d.stagingCommandPool, 1, cmds)

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	beginInfo.Deref()
	if res := vk.BeginCommandBuffer(cmd, &beginInfo); res != vk.Success {
		return fmt.Errorf("vkBeginCommandBuffer: %d", res)
	}

	fn(cmd)

	if res := vk.EndCommandBuffer(cmd); res != vk.Success {
		return fmt.Errorf("vkEndCommandBuffer: %d", res)
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    cmds,
	}
	submitInfo.Deref()

	fenceInfo := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	fenceInfo.Deref()
	var fence vk.Fence
	if res := vk.CreateFence(d.logicalDevice, &fenceInfo, nil, &fence); res != vk.Success {
		return fmt.Errorf("vkCreateFence: %d", res)
	}
	defer vk.DestroyFence(d.logicalDevice, fence, nil)

	if res := vk.QueueSubmit(d.graphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence); res != vk.Success {
		return fmt.Errorf("vkQueueSubmit: %d", res)
	}
	if res := vk.WaitForFences(d.logicalDevice, 1, []vk.Fence{fence}, vk.True, vk.MaxUint64); res != vk.Success {
		return fmt.Errorf("vkWaitForFences: %d", res)
	}
	return nil
}
