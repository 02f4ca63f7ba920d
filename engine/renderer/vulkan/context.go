package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/yumekawa-dev/kanade/engine/core"
)

// context carries the driver objects shared by every part of the backend.
type context struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device *device

	Swapchain *swapchain

	// The framebuffer's current width and height.
	FramebufferWidth  uint32
	FramebufferHeight uint32
}

// FindMemoryIndex locates a memory type matching the filter and property
// flags, or -1 when the device offers none.
func (c *context) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(c.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}
