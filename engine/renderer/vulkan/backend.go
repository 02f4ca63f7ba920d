// Package vulkan implements the gpu.Backend seam on top of the Vulkan API
// via GLFW surfaces. All driver symbols live in this package; the frame and
// resource engine above it never touches the API directly.
package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/yumekawa-dev/kanade/engine/core"
	"github.com/yumekawa-dev/kanade/engine/renderer/gpu"
)

// Backend drives a single GLFW window surface. It implements gpu.Backend.
type Backend struct {
	window *glfw.Window
	ctx    *context

	// Image index from the most recent successful acquire; present returns
	// this image to the swapchain.
	lastImageIndex uint32

	// Framebuffer size reported by the platform layer, consumed by the next
	// swapchain recreation.
	cachedFramebufferWidth  uint32
	cachedFramebufferHeight uint32

	debug bool
}

var _ gpu.Backend = (*Backend)(nil)

func New(window *glfw.Window, debug bool) *Backend {
	return &Backend{
		window: window,
		ctx: &context{
			Allocator: nil,
			Device:    &device{},
		},
		debug: debug,
	}
}

// Initialize brings up the instance, surface, device and swapchain. It must
// run on the thread that owns the GLFW window.
func (b *Backend) Initialize(appName string, appWidth, appHeight uint32) error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return fmt.Errorf("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		return fmt.Errorf("initialize vulkan: %w", err)
	}

	b.ctx.FramebufferWidth = appWidth
	b.ctx.FramebufferHeight = appHeight

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   safeString(appName),
		PEngineName:        safeString("Kanade Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{"VK_KHR_surface"}
	requiredExtensions = append(requiredExtensions, b.window.GetRequiredInstanceExtensions()...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
	}
	if b.debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		core.LogInfo("Required extensions:")
		for i := range requiredExtensions {
			core.LogInfo(requiredExtensions[i])
		}
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = safeStrings(requiredExtensions)

	validationLayers := []string{}
	if b.debug {
		core.LogInfo("Validation layers enabled. Enumerating...")
		validationLayers = []string{"VK_LAYER_KHRONOS_validation"}

		if runtime.GOOS == "darwin" {
			createInfo.Flags |= 1
		}

		var availableLayerCount uint32
		if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, nil); res != vk.Success {
			return fmt.Errorf("enumerate instance layers: %s", resultString(res))
		}
		availableLayers := make([]vk.LayerProperties, availableLayerCount)
		if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, availableLayers); res != vk.Success {
			return fmt.Errorf("enumerate instance layers: %s", resultString(res))
		}

		for i := range validationLayers {
			found := false
			for j := range availableLayers {
				availableLayers[j].Deref()
				nameEnd := findFirstZeroInByteArray(availableLayers[j].LayerName[:])
				if validationLayers[i] == vk.ToString(availableLayers[j].LayerName[:nameEnd+1]) {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("required validation layer is missing: %s", validationLayers[i])
			}
		}
		core.LogInfo("All required validation layers are present.")
	}

	createInfo.EnabledLayerCount = uint32(len(validationLayers))
	createInfo.PpEnabledLayerNames = safeStrings(validationLayers)

	if res := vk.CreateInstance(&createInfo, b.ctx.Allocator, &b.ctx.Instance); res != vk.Success {
		return fmt.Errorf("create vulkan instance: %s", resultString(res))
	}
	if err := vk.InitInstance(b.ctx.Instance); err != nil {
		return fmt.Errorf("init vulkan instance: %w", err)
	}
	core.LogInfo("Vulkan instance created.")

	if b.debug {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(b.ctx.Instance, &debugCreateInfo, nil, &dbg); res != vk.Success {
			return fmt.Errorf("create debug report callback: %s", resultString(res))
		}
		b.ctx.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := b.window.CreateWindowSurface(b.ctx.Instance, nil)
	if err != nil {
		return fmt.Errorf("create window surface: %w", err)
	}
	b.ctx.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	if err := deviceCreate(b.ctx); err != nil {
		return fmt.Errorf("create device: %w", err)
	}

	sc, err := swapchainCreate(b.ctx, b.ctx.FramebufferWidth, b.ctx.FramebufferHeight)
	if err != nil {
		return fmt.Errorf("create swapchain: %w", err)
	}
	b.ctx.Swapchain = sc

	core.LogInfo("Vulkan backend initialized successfully.")
	return nil
}

// Shutdown tears down the surface stack. The frame engine has already
// destroyed every resource it owns through the Backend's destruction entry
// points by the time this runs.
func (b *Backend) Shutdown() {
	vk.DeviceWaitIdle(b.ctx.Device.LogicalDevice)

	if b.ctx.Swapchain != nil {
		b.ctx.Swapchain.destroy(b.ctx)
		b.ctx.Swapchain = nil
	}

	core.LogDebug("Destroying Vulkan device...")
	deviceDestroy(b.ctx)

	core.LogDebug("Destroying Vulkan surface...")
	if b.ctx.Surface != vk.NullSurface {
		vk.DestroySurface(b.ctx.Instance, b.ctx.Surface, b.ctx.Allocator)
		b.ctx.Surface = vk.NullSurface
	}

	if b.debug && b.ctx.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(b.ctx.Instance, b.ctx.debugMessenger, b.ctx.Allocator)
	}

	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(b.ctx.Instance, b.ctx.Allocator)
}

func (b *Backend) CreateSemaphore(kind gpu.SemaphoreKind) (gpu.Handle, error) {
	if kind == gpu.SemaphoreTimeline {
		return newTimelineSemaphore(), nil
	}

	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if res := vk.CreateSemaphore(b.ctx.Device.LogicalDevice, &semaphoreCreateInfo, b.ctx.Allocator, &semaphore); res != vk.Success {
		return nil, fmt.Errorf("create semaphore: %s", resultString(res))
	}
	return semaphore, nil
}

func (b *Backend) DestroySemaphore(semaphore gpu.Handle) {
	switch s := semaphore.(type) {
	case *timelineSemaphore:
		s.destroy(b.ctx)
	case vk.Semaphore:
		if s != vk.NullSemaphore {
			vk.DestroySemaphore(b.ctx.Device.LogicalDevice, s, b.ctx.Allocator)
		}
	}
}

func (b *Backend) WaitTimeline(semaphore gpu.Handle, value uint64) error {
	return semaphore.(*timelineSemaphore).waitValue(b.ctx, value)
}

func (b *Backend) DeviceWaitIdle() error {
	if res := vk.DeviceWaitIdle(b.ctx.Device.LogicalDevice); !resultIsSuccess(res) {
		return fmt.Errorf("device wait idle: %s", resultString(res))
	}
	return nil
}

func (b *Backend) AcquireNextImage(signal gpu.Handle) (uint32, error) {
	imageIndex, err := b.ctx.Swapchain.acquireNextImageIndex(b.ctx, signal.(vk.Semaphore))
	if err != nil {
		return 0, err
	}
	b.lastImageIndex = imageIndex
	return imageIndex, nil
}

func (b *Backend) Present(wait gpu.Handle) error {
	return b.ctx.Swapchain.present(b.ctx, wait.(vk.Semaphore), b.lastImageIndex)
}

func (b *Backend) RecreateSwapchain() error {
	if res := vk.DeviceWaitIdle(b.ctx.Device.LogicalDevice); !resultIsSuccess(res) {
		return fmt.Errorf("device wait idle before swapchain recreation: %s", resultString(res))
	}

	width := b.ctx.FramebufferWidth
	height := b.ctx.FramebufferHeight
	if b.cachedFramebufferWidth != 0 && b.cachedFramebufferHeight != 0 {
		width = b.cachedFramebufferWidth
		height = b.cachedFramebufferHeight
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("window is < 1 in a dimension, cannot recreate swapchain")
	}

	sc, err := b.ctx.Swapchain.recreate(b.ctx, width, height)
	if err != nil {
		return fmt.Errorf("recreate swapchain: %w", err)
	}
	b.ctx.Swapchain = sc
	b.ctx.FramebufferWidth = width
	b.ctx.FramebufferHeight = height
	b.cachedFramebufferWidth = 0
	b.cachedFramebufferHeight = 0

	core.LogInfo("Swapchain recreated: %dx%d.", width, height)
	return nil
}

func (b *Backend) Resized(width, height uint32) {
	b.cachedFramebufferWidth = width
	b.cachedFramebufferHeight = height
	core.LogDebug("Vulkan backend resized: w/h: %d/%d", width, height)
}

func (b *Backend) SwapchainExtent() (uint32, uint32) {
	return b.ctx.Swapchain.Extent.Width, b.ctx.Swapchain.Extent.Height
}

// Submit waits on the acquire semaphore at the color-attachment-output
// stage, signals the per-slot binary semaphore for present, and attaches the
// fence that raises the shared timeline to timelineValue.
func (b *Backend) Submit(commandBuffer, wait, signal, timeline gpu.Handle, timelineValue uint64) error {
	fence, err := timeline.(*timelineSemaphore).fenceFor(b.ctx, timelineValue)
	if err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{commandBuffer.(vk.CommandBuffer)},
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{wait.(vk.Semaphore)},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{signal.(vk.Semaphore)},
	}

	if res := vk.QueueSubmit(b.ctx.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence); res != vk.Success {
		return fmt.Errorf("queue submit: %s", resultString(res))
	}
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
