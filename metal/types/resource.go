package types

import vk "github.com/goki/vulkan"

// ResourceUsage mirrors MTLResourceUsage as a bitmask, consumed by
// useResource(s) to translate into a Vulkan pipeline barrier.
type ResourceUsage uint8

const (
	ResourceUsageRead   ResourceUsage = 1 << 0
	ResourceUsageWrite  ResourceUsage = 1 << 1
	ResourceUsageSample ResourceUsage = 1 << 2
)

// ToVulkanAccess translates the usage mask into the Vulkan access flags
// useResource's barrier should wait/signal on.
func (u ResourceUsage) ToVulkanAccess() vk.AccessFlagBits {
	var out vk.AccessFlagBits
	if u&ResourceUsageRead != 0 || u&ResourceUsageSample != 0 {
		out |= vk.AccessShaderReadBit
	}
	if u&ResourceUsageWrite != 0 {
		out |= vk.AccessShaderWriteBit
	}
	return out
}

// RenderStages mirrors MTLRenderStages as a bitmask of the stages a
// useResource barrier should span.
type RenderStages uint8

const (
	RenderStageVertex   RenderStages = 1 << 0
	RenderStageFragment RenderStages = 1 << 1
	RenderStageMesh      RenderStages = 1 << 2
	RenderStageTile      RenderStages = 1 << 3
)

// ToVulkanPipelineStage translates the stage mask into Vulkan pipeline
// stage flags. Metal's tile-shading stage has no direct Vulkan analogue;
// the teacher's rendering model has no tile-shader stage either, so it is
// stood in for with tessellation-control per spec.md §4.9.
func (s RenderStages) ToVulkanPipelineStage() vk.PipelineStageFlagBits {
	var out vk.PipelineStageFlagBits
	if s&RenderStageVertex != 0 {
		out |= vk.PipelineStageVertexShaderBit
	}
	if s&RenderStageFragment != 0 {
		out |= vk.PipelineStageFragmentShaderBit
	}
	if s&RenderStageMesh != 0 {
		out |= vk.PipelineStageMeshShaderBitExt
	}
	if s&RenderStageTile != 0 {
		out |= vk.PipelineStageTessellationControlShaderBit
	}
	return out
}

// MemoryRange is a half-open byte range, used by fillBuffer and push
// constants alike.
type MemoryRange struct {
	Start  uint64
	Length uint64
}

// ResourceOptions mirrors the subset of MTLResourceOptions this runtime
// interprets: storage mode selection. CPU cache mode and hazard tracking
// hints exist on Metal but have no Vulkan-side effect here and are not
// modeled, matching spec.md's scope (resource lifecycle and storage mode
// are the only options that change allocation behavior in §4.2).
type ResourceOptions struct {
	StorageMode StorageMode
}
