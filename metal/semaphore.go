package metal

import (
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// TimelineSemaphore is an ownership-wrapping handle over a Vulkan timeline
// semaphore. Releasing it returns the semaphore to the owning device's
// pool.
type TimelineSemaphore struct {
	handle vk.Semaphore
	pool   *semaphorePool
}

// Handle returns the underlying Vulkan semaphore.
func (s *TimelineSemaphore) Handle() vk.Semaphore { return s.handle }

// Release returns the semaphore to its device's pool.
func (s *TimelineSemaphore) Release() {
	s.pool.putTimelineSemaphore(s)
}

// BinarySemaphore is an ownership-wrapping handle over a Vulkan binary
// semaphore, optionally created with external-handle export support for
// swapchain-acquire interop.
type BinarySemaphore struct {
	handle     vk.Semaphore
	exportable bool
	pool       *semaphorePool
}

func (s *BinarySemaphore) Handle() vk.Semaphore { return s.handle }

func (s *BinarySemaphore) Release() {
	s.pool.putBinarySemaphore(s)
}

// binarySemaphoreFreeListSize bounds how many non-exportable binary
// semaphores the pool keeps recycled before falling back to destroying
// them; exportable ones are never pooled since callers expect a fresh
// external handle each time.
const binarySemaphoreFreeListSize = 32

// semaphorePool hands out timeline and binary semaphores. Timeline
// semaphores are destroyed and recreated on every cycle since they carry
// a monotonic counter tied to one command buffer's lifetime; binary
// semaphores are recycled through a bounded free list instead, since they
// are requested and released at a much higher rate (once per touched
// texture per submission).
type semaphorePool struct {
	device *Device
	mu     sync.Mutex
	free   *ringQueue[vk.Semaphore]
}

func newSemaphorePool(d *Device) *semaphorePool {
	return &semaphorePool{device: d, free: newRingQueue[vk.Semaphore](binarySemaphoreFreeListSize)}
}

func (p *semaphorePool) getTimelineSemaphore() (*TimelineSemaphore, error) {
	typeInfo := vk.SemaphoreTypeCreateInfo{
		SType:         vk.StructureTypeSemaphoreTypeCreateInfo,
		SemaphoreType: vk.SemaphoreTypeTimeline,
	}
	typeInfo.Deref()

	createInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
		PNext: unsafe.Pointer(&typeInfo),
	}
	createInfo.Deref()

	var sem vk.Semaphore
	if res := vk.CreateSemaphore(p.device.logicalDevice, &createInfo, nil, &sem); res != vk.Success {
		return nil, newError("getTimelineSemaphore", KindAllocationFailed, nil)
	}
	return &TimelineSemaphore{handle: sem, pool: p}, nil
}

func (p *semaphorePool) putTimelineSemaphore(s *TimelineSemaphore) {
	vk.DestroySemaphore(p.device.logicalDevice, s.handle, nil)
}

// getBinarySemaphore returns a binary semaphore: a non-exportable request
// reuses one from the pool's free list when one is available, and any
// other request creates a new one. The exportable flag is
// recorded on the handle for callers that need external-fd interop with
// the presentation engine; the actual VK_KHR_external_semaphore_fd export
// chain is not threaded through here since nothing in this runtime crosses
// a process boundary yet.
func (p *semaphorePool) getBinarySemaphore(exportable bool) (*BinarySemaphore, error) {
	if !exportable {
		p.mu.Lock()
		sem, err := p.free.Dequeue()
		p.mu.Unlock()
		if err == nil {
			return &BinarySemaphore{handle: sem, pool: p}, nil
		}
	}

	createInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	createInfo.Deref()

	var sem vk.Semaphore
	if res := vk.CreateSemaphore(p.device.logicalDevice, &createInfo, nil, &sem); res != vk.Success {
		return nil, newError("getBinarySemaphore", KindAllocationFailed, nil)
	}
	return &BinarySemaphore{handle: sem, exportable: exportable, pool: p}, nil
}

func (p *semaphorePool) putBinarySemaphore(s *BinarySemaphore) {
	if !s.exportable {
		p.mu.Lock()
		err := p.free.Enqueue(s.handle)
		p.mu.Unlock()
		if err == nil {
			return
		}
	}
	vk.DestroySemaphore(p.device.logicalDevice, s.handle, nil)
}
