package metal

import (
	"fmt"
	"unsafe"

	"github.com/google/uuid"

	vk "github.com/goki/vulkan"

	"github.com/driftwood-gpu/metalvk/metal/types"
)

// Buffer is a Vulkan buffer plus a device-memory allocation chosen for the
// requested storage mode. Buffers are simultaneously usable as vertex,
// index, uniform, storage, indirect, and transfer resources; addressability
// is always requested so GPU addresses can be captured.
type Buffer struct {
	ID uuid.UUID

	device *Device

	handle vk.Buffer
	memory vk.DeviceMemory
	size   uint64

	storageMode types.StorageMode
	mapped      unsafe.Pointer
}

// allBufferUsages is the usage set requested for every buffer regardless
// of the caller's intended use, matching the Runtime's "request everything"
// policy so a Buffer is valid in any encoder role without recreation.
const allBufferUsages = vk.BufferUsageFlagBits(
	vk.BufferUsageVertexBufferBit |
		vk.BufferUsageIndexBufferBit |
		vk.BufferUsageUniformBufferBit |
		vk.BufferUsageStorageBufferBit |
		vk.BufferUsageIndirectBufferBit |
		vk.BufferUsageTransferSrcBit |
		vk.BufferUsageTransferDstBit |
		vk.BufferUsageShaderDeviceAddressBit,
)

// NewBuffer allocates a buffer of size bytes with the given storage mode.
// If initial is non-nil, its contents are copied in immediately: mapped,
// copied, unmapped if managed, and flushed.
func (d *Device) NewBuffer(size uint64, mode types.StorageMode, initial []byte) (*Buffer, error) {
	const op = "NewBuffer"

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(allBufferUsages),
		SharingMode: vk.SharingModeExclusive,
	}
	createInfo.Deref()

	var handle vk.Buffer
	if res := vk.CreateBuffer(d.logicalDevice, &createInfo, nil, &handle); res != vk.Success {
		return nil, newError(op, KindAllocationFailed, fmt.Errorf("vkCreateBuffer: %d", res))
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.logicalDevice, handle, &requirements)
	requirements.Deref()

	propertyFlags := memoryPropertyFlagsFor(mode)
	typeIndex, err := d.findMemoryType(requirements.MemoryTypeBits, propertyFlags)
	if err != nil {
		vk.DestroyBuffer(d.logicalDevice, handle, nil)
		return nil, newError(op, KindAllocationFailed, err)
	}

	allocFlags := vk.MemoryAllocateFlagsInfo{
		SType: vk.StructureTypeMemoryAllocateFlagsInfo,
		Flags: vk.MemoryAllocateFlags(vk.MemoryAllocateDeviceAddressBit),
	}
	allocFlags.Deref()

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: typeIndex,
		PNext:           unsafe.Pointer(&allocFlags),
	}
	allocInfo.Deref()

	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(d.logicalDevice, &allocInfo, nil, &memory); res != vk.Success {
		vk.DestroyBuffer(d.logicalDevice, handle, nil)
		return nil, newError(op, KindAllocationFailed, fmt.Errorf("vkAllocateMemory: %d", res))
	}
	if res := vk.BindBufferMemory(d.logicalDevice, handle, memory, 0); res != vk.Success {
		vk.FreeMemory(d.logicalDevice, memory, nil)
		vk.DestroyBuffer(d.logicalDevice, handle, nil)
		return nil, newError(op, KindAllocationFailed, fmt.Errorf("vkBindBufferMemory: %d", res))
	}

	b := &Buffer{
		ID:          uuid.New(),
		device:      d,
		handle:      handle,
		memory:      memory,
		size:        size,
		storageMode: mode,
	}

	if initial != nil {
		if mode == types.StorageModePrivate || mode == types.StorageModeMemoryless {
			return nil, newError(op, KindInvalidUsage, fmt.Errorf("cannot seed a %v buffer with initial contents", mode))
		}
		ptr, err := b.contents()
		if err != nil {
			return nil, err
		}
		copy(unsafe.Slice((*byte)(ptr), size), initial)
		if mode == types.StorageModeManaged {
			if err := b.didModifyRange(types.MemoryRange{Start: 0, Length: size}); err != nil {
				return nil, err
			}
			b.unmap()
		}
	}

	return b, nil
}

func memoryPropertyFlagsFor(mode types.StorageMode) vk.MemoryPropertyFlagBits {
	switch mode {
	case types.StorageModeShared:
		return vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	case types.StorageModeManaged:
		return vk.MemoryPropertyHostVisibleBit
	default:
		return vk.MemoryPropertyDeviceLocalBit
	}
}

// Length returns the buffer's size in bytes.
func (b *Buffer) Length() uint64 { return b.size }

// Contents returns a persistent host-mapped pointer, mapping lazily on
// first use. Fails for private/memoryless storage.
func (b *Buffer) Contents() (unsafe.Pointer, error) { return b.contents() }

func (b *Buffer) contents() (unsafe.Pointer, error) {
	if b.storageMode == types.StorageModePrivate || b.storageMode == types.StorageModeMemoryless {
		return nil, newError("Buffer.Contents", KindInvalidUsage, fmt.Errorf("storage mode %v is not host-visible", b.storageMode))
	}
	if b.mapped != nil {
		return b.mapped, nil
	}
	var ptr unsafe.Pointer
	if res := vk.MapMemory(b.device.logicalDevice, b.memory, 0, vk.DeviceSize(b.size), 0, &ptr); res != vk.Success {
		return nil, newError("Buffer.Contents", KindAllocationFailed, fmt.Errorf("vkMapMemory: %d", res))
	}
	b.mapped = ptr
	return ptr, nil
}

func (b *Buffer) unmap() {
	if b.mapped != nil {
		vk.UnmapMemory(b.device.logicalDevice, b.memory)
		b.mapped = nil
	}
}

// DidModifyRange flushes the given byte range of a managed buffer's mapped
// memory. A no-op for shared (already coherent) storage.
func (b *Buffer) DidModifyRange(r types.MemoryRange) error { return b.didModifyRange(r) }

func (b *Buffer) didModifyRange(r types.MemoryRange) error {
	if b.storageMode != types.StorageModeManaged {
		return nil
	}
	flushRange := vk.MappedMemoryRange{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: b.memory,
		Offset: vk.DeviceSize(r.Start),
		Size:   vk.DeviceSize(r.Length),
	}
	flushRange.Deref()
	if res := vk.FlushMappedMemoryRanges(b.device.logicalDevice, 1, []vk.MappedMemoryRange{flushRange}); res != vk.Success {
		return newError("Buffer.DidModifyRange", KindGPU, fmt.Errorf("vkFlushMappedMemoryRanges: %d", res))
	}
	return nil
}

// GPUAddress returns the buffer's device address, valid since every buffer
// requests address capability at allocation time.
func (b *Buffer) GPUAddress() uint64 {
	info := vk.BufferDeviceAddressInfo{
		SType:  vk.StructureTypeBufferDeviceAddressInfo,
		Buffer: b.handle,
	}
	info.Deref()
	return uint64(vk.GetBufferDeviceAddress(b.device.logicalDevice, &info))
}

// Destroy unmaps if mapped, destroys the buffer, and frees the backing
// memory, in that order.
func (b *Buffer) Destroy() {
	b.unmap()
	vk.DestroyBuffer(b.device.logicalDevice, b.handle, nil)
	vk.FreeMemory(b.device.logicalDevice, b.memory, nil)
}
