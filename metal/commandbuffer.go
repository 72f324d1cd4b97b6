package metal

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
)

type commandBufferState int

const (
	commandBufferStateRecording commandBufferState = iota
	commandBufferStateCommitted
	commandBufferStateCompleted
)

// touchedTexture records one texture an encoder referenced during
// recording, and whether that reference could write to it.
type touchedTexture struct {
	texture   Texture
	readWrite bool
}

// encoder is implemented by the render, compute, and blit encoders. Each
// tracks the textures it has referenced so commit-time synchronization can
// be built without re-inspecting every recorded command.
type encoder interface {
	preCommit() []touchedTexture
}

// commandBufferHandler is the callback type of the Metal
// addScheduledHandler / addCompletedHandler slots.
type commandBufferHandler func(*CommandBuffer)

// CommandBuffer batches encoder recordings against one Vulkan command
// buffer and drives its submission and completion tracking, per the
// command-buffer lifecycle.
type CommandBuffer struct {
	device *Device
	queue  *CommandQueue
	handle vk.CommandBuffer

	mu    sync.Mutex
	state commandBufferState

	encoders  []encoder
	drawables []*Drawable

	completionSema  vk.Semaphore
	completionValue uint64

	completed bool
	cond      *sync.Cond

	scheduledHandlers []commandBufferHandler
	completedHandlers []commandBufferHandler
}

func (cb *CommandBuffer) init() {
	cb.cond = sync.NewCond(&cb.mu)
}

// Handle returns the underlying Vulkan command buffer, for encoders
// recording commands into it.
func (cb *CommandBuffer) Handle() vk.CommandBuffer { return cb.handle }

// addEncoder registers an encoder so its preCommit hook runs at Commit
// time. Called by encoder constructors.
func (cb *CommandBuffer) addEncoder(e encoder) {
	cb.mu.Lock()
	cb.encoders = append(cb.encoders, e)
	cb.mu.Unlock()
}

// PresentDrawable queues a drawable for presentation; Commit presents it
// right after submitting this command buffer, per spec.md's commit-time
// present step.
func (cb *CommandBuffer) PresentDrawable(d *Drawable) {
	cb.mu.Lock()
	cb.drawables = append(cb.drawables, d)
	cb.mu.Unlock()
}

// AddScheduledHandler registers a callback fired once the command buffer
// has been submitted to the queue.
func (cb *CommandBuffer) AddScheduledHandler(h commandBufferHandler) {
	cb.mu.Lock()
	cb.scheduledHandlers = append(cb.scheduledHandlers, h)
	cb.mu.Unlock()
}

// AddCompletedHandler registers a callback fired once the GPU has
// finished executing this command buffer.
func (cb *CommandBuffer) AddCompletedHandler(h commandBufferHandler) {
	cb.mu.Lock()
	cb.completedHandlers = append(cb.completedHandlers, h)
	cb.mu.Unlock()
}

// WaitUntilCompleted blocks the calling goroutine until the command
// buffer's completion semaphore has been signaled by the device event
// loop.
func (cb *CommandBuffer) WaitUntilCompleted() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	for !cb.completed {
		cb.cond.Wait()
	}
}

// Commit ends recording, builds the per-texture wait/signal sets, submits
// the command buffer to the graphics queue, and presents any queued
// drawables right after the submission.
//
// Steps mirror the fixed commit sequence: lock to "committed", run every
// encoder's preCommit hook, end the command buffer, obtain and advance the
// completion semaphore, partition touched textures by read-write access,
// begin updating each read-write texture's presentation semaphore,
// acquire wait/signal pairs from every touched texture, submit, run
// scheduled handlers, end updating presentation semaphores and present
// queued drawables (both synchronous, right after submission), and
// finally register the GPU-completion callback on the event loop.
func (cb *CommandBuffer) Commit() error {
	const op = "Commit"

	cb.mu.Lock()
	if cb.state != commandBufferStateRecording {
		cb.mu.Unlock()
		return newError(op, KindInvalidUsage, fmt.Errorf("command buffer not in recording state"))
	}
	cb.state = commandBufferStateCommitted
	encoders := append([]encoder(nil), cb.encoders...)
	drawables := append([]*Drawable(nil), cb.drawables...)
	cb.mu.Unlock()

	touchedByTexture := map[Texture]*touchedTexture{}
	for _, e := range encoders {
		for _, t := range e.preCommit() {
			existing, ok := touchedByTexture[t.texture]
			if !ok {
				tCopy := t
				touchedByTexture[t.texture] = &tCopy
				continue
			}
			if t.readWrite {
				existing.readWrite = true
			}
		}
	}

	if res := vk.EndCommandBuffer(cb.handle); res != vk.Success {
		return newError(op, KindGPU, fmt.Errorf("vkEndCommandBuffer: %d", res))
	}

	completionSema, err := cb.device.semaphorePool.getTimelineSemaphore()
	if err != nil {
		return newError(op, KindAllocationFailed, err)
	}
	cb.completionValue++
	completionValue := cb.completionValue
	cb.completionSema = completionSema.Handle()

	var readWrite []*touchedTexture
	for _, t := range touchedByTexture {
		if t.readWrite {
			readWrite = append(readWrite, t)
		}
	}

	presentSemas := make(map[Texture]*BinarySemaphore, len(readWrite))
	for _, t := range readWrite {
		sema, err := cb.device.semaphorePool.getBinarySemaphore(false)
		if err != nil {
			return newError(op, KindAllocationFailed, err)
		}
		presentSemas[t.texture] = sema
		t.texture.beginUpdatingPresentationSemaphore(sema)
	}

	var waitSemas, signalSemas []vk.Semaphore
	var waitValues, signalValues []uint64
	var waitStages []vk.PipelineStageFlags

	for _, t := range touchedByTexture {
		waitValue, extraWait, signalValue := t.texture.acquire()

		waitSemas = append(waitSemas, t.texture.timelineSemaphore())
		waitValues = append(waitValues, waitValue)
		waitStages = append(waitStages, vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit))

		signalSemas = append(signalSemas, t.texture.timelineSemaphore())
		signalValues = append(signalValues, signalValue)

		if extraWait != nil {
			waitSemas = append(waitSemas, extraWait.Handle())
			waitValues = append(waitValues, 0)
			waitStages = append(waitStages, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit))
			extraWait.Release()
		}

		if sema, ok := presentSemas[t.texture]; ok {
			signalSemas = append(signalSemas, sema.Handle())
			signalValues = append(signalValues, 0)
		}
	}

	signalSemas = append(signalSemas, completionSema.Handle())
	signalValues = append(signalValues, completionValue)

	timelineInfo := vk.TimelineSemaphoreSubmitInfo{
		SType:                     vk.StructureTypeTimelineSemaphoreSubmitInfo,
		WaitSemaphoreValueCount:   uint32(len(waitValues)),
		PWaitSemaphoreValues:      waitValues,
		SignalSemaphoreValueCount: uint32(len(signalValues)),
		PSignalSemaphoreValues:    signalValues,
	}
	timelineInfo.Deref()

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		PNext:                unsafe.Pointer(&timelineInfo),
		WaitSemaphoreCount:   uint32(len(waitSemas)),
		PWaitSemaphores:      waitSemas,
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb.handle},
		SignalSemaphoreCount: uint32(len(signalSemas)),
		PSignalSemaphores:    signalSemas,
	}
	submitInfo.Deref()

	if res := vk.QueueSubmit(cb.device.graphicsQueue, 1, []vk.SubmitInfo{submitInfo}, nil); res != vk.Success {
		return newError(op, KindGPU, fmt.Errorf("vkQueueSubmit: %d", res))
	}

	for _, h := range cb.scheduledHandlers {
		h(cb)
	}

	// Steps 9 and 10 run synchronously right here, not inside the async
	// completion callback below: the binary presentation semaphore lets
	// vkQueuePresentKHR be enqueued immediately with the GPU itself
	// waiting on it, so presentation must not wait on CPU-observed GPU
	// completion (which only happens once the event loop polls).
	for _, t := range readWrite {
		t.texture.endUpdatingPresentationSemaphore()
	}
	for _, d := range drawables {
		if err := d.Present(); err != nil {
			LogError("drawable present failed: %v", err)
		}
	}

	cb.device.eventLoop.waitForSemaphore(completionSema.Handle(), completionValue, func() {
		cb.mu.Lock()
		cb.state = commandBufferStateCompleted
		cb.completed = true
		cb.mu.Unlock()
		cb.cond.Broadcast()

		for _, h := range cb.completedHandlers {
			h(cb)
		}
		completionSema.Release()
	})

	return nil
}
