package metal

import (
	"fmt"
	"unsafe"

	"github.com/google/uuid"

	vk "github.com/goki/vulkan"
)

// requiredAPIVersion is the floor this runtime enforces on every physical
// device it is willing to select.
var requiredAPIVersion = vk.Version(vk.MakeVersion(1, 3, 0))

// QueueFamilyIndices records which queue family was chosen for each
// capability a Device needs. Families are coalesced where the same
// index satisfies more than one capability.
type QueueFamilyIndices struct {
	Graphics uint32
	Compute  uint32
	Transfer uint32
}

// Device is the process-level handle to a physical+logical GPU pair, plus
// the queue-family selections, staging command pool, semaphore pool, and
// event loop this runtime needs to drive it.
type Device struct {
	ID uuid.UUID

	instance       vk.Instance
	physicalDevice vk.PhysicalDevice
	logicalDevice  vk.Device
	allocator      *vk.AllocationCallbacks

	properties vk.PhysicalDeviceProperties
	memory     vk.PhysicalDeviceMemoryProperties

	queues QueueFamilyIndices

	graphicsQueue vk.Queue
	computeQueue  vk.Queue
	transferQueue vk.Queue

	stagingCommandPool vk.CommandPool

	semaphorePool *semaphorePool
	eventLoop     *eventLoop

	config DeviceConfig
}

// requiredDeviceExtensions is the extension set every selected device must
// support, per the floor this runtime enforces.
var requiredDeviceExtensions = []string{
	vk.KhrSwapchainExtensionName,
	"VK_KHR_external_memory_fd",
	"VK_KHR_external_semaphore_fd",
}

// optionalDeviceExtensions are enabled when present but never required.
var optionalDeviceExtensions = []string{
	"VK_EXT_shader_non_semantic_info",
}

// CreateSystemDefaultDevice enumerates Vulkan physical devices meeting the
// feature floor (API >= 1.3, timeline semaphores) and returns the one
// picked by the selection policy in cfg.
func CreateSystemDefaultDevice(cfg DeviceConfig) (*Device, error) {
	const op = "CreateSystemDefaultDevice"

	appInfo := vk.ApplicationInfo{
		SType:            vk.StructureTypeApplicationInfo,
		PApplicationName: safeCString("metalvk"),
		ApiVersion:       uint32(vk.MakeVersion(1, 3, 0)),
	}
	appInfo.Deref()

	instanceInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}
	instanceInfo.Deref()

	var instance vk.Instance
	if res := vk.CreateInstance(&instanceInfo, nil, &instance); res != vk.Success {
		return nil, newError(op, KindInitializationFailed, fmt.Errorf("vkCreateInstance: %d", res))
	}
	if err := vk.InitInstance(instance); err != nil {
		return nil, newError(op, KindInitializationFailed, err)
	}

	physical, queues, properties, memory, err := selectPhysicalDevice(instance, cfg)
	if err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, newError(op, KindInitializationFailed, err)
	}

	logical, err := createLogicalDevice(physical, queues)
	if err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, newError(op, KindInitializationFailed, err)
	}

	d := &Device{
		ID:             uuid.New(),
		instance:       instance,
		physicalDevice: physical,
		logicalDevice:  logical,
		properties:     properties,
		memory:         memory,
		queues:         queues,
		config:         cfg,
	}

	vk.GetDeviceQueue(logical, queues.Graphics, 0, &d.graphicsQueue)
	vk.GetDeviceQueue(logical, queues.Compute, 0, &d.computeQueue)
	vk.GetDeviceQueue(logical, queues.Transfer, 0, &d.transferQueue)

	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: queues.Graphics,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	poolInfo.Deref()
	if res := vk.CreateCommandPool(logical, &poolInfo, nil, &d.stagingCommandPool); res != vk.Success {
		return nil, newError(op, KindInitializationFailed, fmt.Errorf("vkCreateCommandPool: %d", res))
	}

	d.semaphorePool = newSemaphorePool(d)
	d.eventLoop = newEventLoop(d)

	LogInfo("device created: %s (api %d.%d.%d)", vk.ToString(properties.DeviceName[:]),
		vk.Version(properties.ApiVersion).Major(), vk.Version(properties.ApiVersion).Minor(), vk.Version(properties.ApiVersion).Patch())

	return d, nil
}

// Destroy releases the device's pools and logical/instance handles. Child
// resources must already have been released.
func (d *Device) Destroy() {
	d.eventLoop.stop()
	vk.DestroyCommandPool(d.logicalDevice, d.stagingCommandPool, nil)
	vk.DestroyDevice(d.logicalDevice, nil)
	vk.DestroyInstance(d.instance, nil)
}

// PollEvents services the device's event loop once, blocking up to
// timeoutNs nanoseconds for a semaphore to reach its target value.
func (d *Device) PollEvents(timeoutNs uint64) error {
	return d.eventLoop.pollEvents(timeoutNs)
}

// findMemoryType scans the device's memory types for one matching both
// typeFilter (a bitmask of acceptable type indices) and propertyFlags.
func (d *Device) findMemoryType(typeFilter uint32, propertyFlags vk.MemoryPropertyFlagBits) (uint32, error) {
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		d.memory.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) == 0 {
			continue
		}
		if vk.MemoryPropertyFlagBits(d.memory.MemoryTypes[i].PropertyFlags)&propertyFlags == propertyFlags {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no suitable memory type for filter 0x%x flags 0x%x", typeFilter, propertyFlags)
}

func selectPhysicalDevice(instance vk.Instance, cfg DeviceConfig) (vk.PhysicalDevice, QueueFamilyIndices, vk.PhysicalDeviceProperties, vk.PhysicalDeviceMemoryProperties, error) {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(instance, &count, nil); res != vk.Success {
		return nil, QueueFamilyIndices{}, vk.PhysicalDeviceProperties{}, vk.PhysicalDeviceMemoryProperties{}, fmt.Errorf("vkEnumeratePhysicalDevices: %d", res)
	}
	if count == 0 {
		return nil, QueueFamilyIndices{}, vk.PhysicalDeviceProperties{}, vk.PhysicalDeviceMemoryProperties{}, fmt.Errorf("no Vulkan-capable devices found")
	}
	devices := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(instance, &count, devices); res != vk.Success {
		return nil, QueueFamilyIndices{}, vk.PhysicalDeviceProperties{}, vk.PhysicalDeviceMemoryProperties{}, fmt.Errorf("vkEnumeratePhysicalDevices: %d", res)
	}

	var (
		best       vk.PhysicalDevice
		bestQueues QueueFamilyIndices
		bestProps  vk.PhysicalDeviceProperties
		bestMemory vk.PhysicalDeviceMemoryProperties
		bestScore  = -1
	)

	for _, dev := range devices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(dev, &properties)
		properties.Deref()

		if vk.Version(properties.ApiVersion) < requiredAPIVersion {
			continue
		}

		queues, err := scanQueueFamilies(dev)
		if err != nil {
			continue
		}

		if cfg.PreferredDeviceName != "" &&
			!containsSubstring(vk.ToString(properties.DeviceName[:]), cfg.PreferredDeviceName) {
			continue
		}

		score := 0
		if properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu && !cfg.DisableDiscreteGPU {
			score += 1000
		}
		if queues.Graphics == queues.Compute {
			score++
		}
		if queues.Graphics == queues.Transfer {
			score++
		}

		if score > bestScore {
			var memory vk.PhysicalDeviceMemoryProperties
			vk.GetPhysicalDeviceMemoryProperties(dev, &memory)
			memory.Deref()

			best = dev
			bestQueues = queues
			bestProps = properties
			bestMemory = memory
			bestScore = score
		}
	}

	if best == nil {
		return nil, QueueFamilyIndices{}, vk.PhysicalDeviceProperties{}, vk.PhysicalDeviceMemoryProperties{}, fmt.Errorf("no device meets the required API version and queue-family floor")
	}
	return best, bestQueues, bestProps, bestMemory, nil
}

// scanQueueFamilies scans the family list once, preferring the family that
// exposes the most {graphics, compute, transfer} bits simultaneously, then
// duplicates that selection into any capability slot still unfilled.
func scanQueueFamilies(dev vk.PhysicalDevice) (QueueFamilyIndices, error) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(dev, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(dev, &count, families)

	const none = ^uint32(0)
	indices := QueueFamilyIndices{Graphics: none, Compute: none, Transfer: none}
	bestBits := -1

	for i := uint32(0); i < count; i++ {
		families[i].Deref()
		flags := uint32(families[i].QueueFlags)
		bits := 0
		if flags&uint32(vk.QueueGraphicsBit) != 0 {
			bits++
		}
		if flags&uint32(vk.QueueComputeBit) != 0 {
			bits++
		}
		if flags&uint32(vk.QueueTransferBit) != 0 {
			bits++
		}
		if bits > bestBits {
			bestBits = bits
			if flags&uint32(vk.QueueGraphicsBit) != 0 {
				indices.Graphics = i
			}
			if flags&uint32(vk.QueueComputeBit) != 0 {
				indices.Compute = i
			}
			if flags&uint32(vk.QueueTransferBit) != 0 {
				indices.Transfer = i
			}
		}
	}

	if indices.Graphics == none {
		return QueueFamilyIndices{}, fmt.Errorf("no graphics-capable queue family")
	}
	// Coalesce any capability the winning family didn't expose onto graphics.
	if indices.Compute == none {
		indices.Compute = indices.Graphics
	}
	if indices.Transfer == none {
		indices.Transfer = indices.Graphics
	}
	return indices, nil
}

func createLogicalDevice(physical vk.PhysicalDevice, queues QueueFamilyIndices) (vk.Device, error) {
	uniqueFamilies := dedupQueueFamilies(queues)
	queueInfos := make([]vk.DeviceQueueCreateInfo, len(uniqueFamilies))
	priority := float32(1.0)
	for i, family := range uniqueFamilies {
		queueInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{priority},
		}
		queueInfos[i].Deref()
	}

	var availableCount uint32
	vk.EnumerateDeviceExtensionProperties(physical, "", &availableCount, nil)
	available := make([]vk.ExtensionProperties, availableCount)
	vk.EnumerateDeviceExtensionProperties(physical, "", &availableCount, available)
	availableSet := make(map[string]bool, availableCount)
	for i := range available {
		available[i].Deref()
		end := findFirstZero(available[i].ExtensionName[:])
		availableSet[vk.ToString(available[i].ExtensionName[:end+1])] = true
	}

	for _, name := range requiredDeviceExtensions {
		if !availableSet[name] {
			return nil, fmt.Errorf("required device extension not available: %s", name)
		}
	}
	extensionNames := append([]string{}, requiredDeviceExtensions...)
	for _, name := range optionalDeviceExtensions {
		if availableSet[name] {
			extensionNames = append(extensionNames, name)
		}
	}

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(physical, &features)
	features.Deref()

	timelineFeatures := vk.PhysicalDeviceVulkan12Features{
		SType:              vk.StructureTypePhysicalDeviceVulkan12Features,
		TimelineSemaphore: vk.True,
	}
	timelineFeatures.Deref()

	createInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: safeCStrings(extensionNames),
		PNext:                   unsafe.Pointer(&timelineFeatures),
	}
	createInfo.Deref()

	var device vk.Device
	if res := vk.CreateDevice(physical, &createInfo, nil, &device); res != vk.Success {
		return nil, fmt.Errorf("vkCreateDevice: %d", res)
	}
	return device, nil
}

func dedupQueueFamilies(q QueueFamilyIndices) []uint32 {
	seen := map[uint32]bool{}
	var out []uint32
	for _, idx := range []uint32{q.Graphics, q.Compute, q.Transfer} {
		if !seen[idx] {
			seen[idx] = true
			out = append(out, idx)
		}
	}
	return out
}

func findFirstZero(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return len(b)
}

func containsSubstring(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
