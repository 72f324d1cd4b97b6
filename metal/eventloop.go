package metal

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// eventCallback runs once a waited-on semaphore reaches its target value.
type eventCallback func()

type eventEntry struct {
	semaphore vk.Semaphore
	target    uint64
	callback  eventCallback
}

// eventLoop is a single-threaded cooperative scheduler over timeline
// semaphores. Index 0 of the tracked entries is a reserved wakeup
// semaphore whose target value is bumped to abort an in-flight wait.
type eventLoop struct {
	device *Device

	mu      sync.Mutex
	entries []eventEntry

	pollMu sync.Mutex

	wakeupSemaphore vk.Semaphore
	wakeupTarget    uint64
}

func newEventLoop(d *Device) *eventLoop {
	el := &eventLoop{device: d}

	typeInfo := vk.SemaphoreTypeCreateInfo{
		SType:         vk.StructureTypeSemaphoreTypeCreateInfo,
		SemaphoreType: vk.SemaphoreTypeTimeline,
		InitialValue:  0,
	}
	typeInfo.Deref()

	createInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
		PNext: unsafe.Pointer(&typeInfo),
	}
	createInfo.Deref()

	var sem vk.Semaphore
	if res := vk.CreateSemaphore(d.logicalDevice, &createInfo, nil, &sem); res != vk.Success {
		LogError("failed to create event loop wakeup semaphore: %d", res)
	}
	el.wakeupSemaphore = sem
	el.entries = append(el.entries, eventEntry{semaphore: sem, target: 0, callback: func() {}})
	return el
}

// waitForSemaphore appends an entry under the mutex and wakes the loop so
// a subsequent pollEvents call observes it.
func (el *eventLoop) waitForSemaphore(sem vk.Semaphore, target uint64, cb eventCallback) {
	el.mu.Lock()
	el.entries = append(el.entries, eventEntry{semaphore: sem, target: target, callback: cb})
	el.mu.Unlock()
	el.wakeupEventLoop()
}

// wakeupEventLoop advances the wakeup target value and signals the
// wakeup semaphore, aborting any in-flight vkWaitSemaphores call.
func (el *eventLoop) wakeupEventLoop() {
	el.mu.Lock()
	el.wakeupTarget++
	target := el.wakeupTarget
	el.entries[0].target = target
	el.mu.Unlock()

	signalInfo := vk.SemaphoreSignalInfo{
		SType:     vk.StructureTypeSemaphoreSignalInfo,
		Semaphore: el.wakeupSemaphore,
		Value:     target,
	}
	signalInfo.Deref()
	vk.SignalSemaphore(el.device.logicalDevice, &signalInfo)
}

// pollEvents acquires a poll-exclusion lock, waits on every tracked
// semaphore with vkWaitSemaphores(ANY), then collects and fires the
// callbacks whose target value has been reached.
func (el *eventLoop) pollEvents(timeoutNs uint64) error {
	el.pollMu.Lock()
	defer el.pollMu.Unlock()

	el.mu.Lock()
	semaphores := make([]vk.Semaphore, len(el.entries))
	targets := make([]uint64, len(el.entries))
	for i, e := range el.entries {
		semaphores[i] = e.semaphore
		targets[i] = e.target
	}
	el.mu.Unlock()

	waitInfo := vk.SemaphoreWaitInfo{
		SType:          vk.StructureTypeSemaphoreWaitInfo,
		Flags:          vk.SemaphoreWaitFlags(vk.SemaphoreWaitAnyBit),
		SemaphoreCount: uint32(len(semaphores)),
		PSemaphores:    semaphores,
		PValues:        targets,
	}
	waitInfo.Deref()

	res := vk.WaitSemaphores(el.device.logicalDevice, &waitInfo, timeoutNs)
	if res != vk.Success && res != vk.Timeout {
		return fmt.Errorf("vkWaitSemaphores: %d", res)
	}

	var ready []eventCallback
	el.mu.Lock()
	remaining := el.entries[:0:0]
	for i, e := range el.entries {
		if i == 0 {
			remaining = append(remaining, e)
			continue
		}
		var value uint64
		vk.GetSemaphoreCounterValue(el.device.logicalDevice, e.semaphore, &value)
		if value >= e.target {
			ready = append(ready, e.callback)
		} else {
			remaining = append(remaining, e)
		}
	}
	el.entries = remaining
	el.mu.Unlock()

	for _, cb := range ready {
		cb()
	}
	return nil
}

func (el *eventLoop) stop() {
	vk.DestroySemaphore(el.device.logicalDevice, el.wakeupSemaphore, nil)
}
