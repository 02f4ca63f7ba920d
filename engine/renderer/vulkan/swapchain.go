package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/yumekawa-dev/kanade/engine/core"
	kmath "github.com/yumekawa-dev/kanade/engine/math"
	"github.com/yumekawa-dev/kanade/engine/renderer/gpu"
)

type swapchain struct {
	ImageFormat vk.SurfaceFormat
	Handle      vk.Swapchain
	Extent      vk.Extent2D
	ImageCount  uint32
	Images      []vk.Image
	Views       []vk.ImageView

	DepthAttachment *image

	// The main render pass targets one of these, selected by the acquired
	// image index.
	RenderPass   vk.RenderPass
	Framebuffers []vk.Framebuffer
}

type swapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

func swapchainCreate(ctx *context, width, height uint32) (*swapchain, error) {
	return createSwapchain(ctx, width, height)
}

func (sc *swapchain) recreate(ctx *context, width, height uint32) (*swapchain, error) {
	sc.destroy(ctx)
	return createSwapchain(ctx, width, height)
}

// acquireNextImageIndex reports a stale surface with gpu.ErrSurfaceOutOfDate
// so the frame engine can drive recreation.
func (sc *swapchain) acquireNextImageIndex(ctx *context, imageAvailableSemaphore vk.Semaphore) (uint32, error) {
	var imageIndex uint32
	result := vk.AcquireNextImage(ctx.Device.LogicalDevice, sc.Handle, math.MaxUint64, imageAvailableSemaphore, vk.NullFence, &imageIndex)

	if result == vk.ErrorOutOfDate {
		return 0, gpu.ErrSurfaceOutOfDate
	}
	if result != vk.Success && result != vk.Suboptimal {
		return 0, fmt.Errorf("acquire swapchain image: %s", resultString(result))
	}
	return imageIndex, nil
}

func (sc *swapchain) present(ctx *context, renderCompleteSemaphore vk.Semaphore, presentImageIndex uint32) error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderCompleteSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.Handle},
		PImageIndices:      []uint32{presentImageIndex},
	}

	result := vk.QueuePresent(ctx.Device.PresentQueue, &presentInfo)
	if result == vk.ErrorOutOfDate || result == vk.Suboptimal {
		return gpu.ErrSurfaceOutOfDate
	}
	if result != vk.Success {
		return fmt.Errorf("present swapchain image: %s", resultString(result))
	}
	return nil
}

func createSwapchain(ctx *context, width, height uint32) (*swapchain, error) {
	sc := &swapchain{}

	if err := deviceQuerySwapchainSupport(ctx.Device.PhysicalDevice, ctx.Surface, &ctx.Device.SwapchainSupport); err != nil {
		return nil, err
	}

	swapchainExtent := vk.Extent2D{
		Width:  width,
		Height: height,
	}

	// Preferred surface format.
	found := false
	for i := 0; i < int(ctx.Device.SwapchainSupport.FormatCount); i++ {
		format := ctx.Device.SwapchainSupport.Formats[i]
		if format.Format == vk.FormatB8g8r8a8Unorm &&
			format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			sc.ImageFormat = format
			found = true
		}
	}
	if !found {
		sc.ImageFormat = ctx.Device.SwapchainSupport.Formats[0]
	}

	// FIFO is always available; mailbox avoids tearing without blocking the
	// chart clock when present.
	presentMode := vk.PresentModeFifo
	for i := 0; i < int(ctx.Device.SwapchainSupport.PresentModeCount); i++ {
		mode := ctx.Device.SwapchainSupport.PresentModes[i]
		if mode == vk.PresentModeMailbox {
			presentMode = mode
			break
		}
	}

	capabilities := ctx.Device.SwapchainSupport.Capabilities
	if capabilities.CurrentExtent.Width != math.MaxUint32 {
		swapchainExtent = capabilities.CurrentExtent
	}

	// Clamp to the value allowed by the GPU.
	swapchainExtent.Width = kmath.Clamp(swapchainExtent.Width, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width)
	swapchainExtent.Height = kmath.Clamp(swapchainExtent.Height, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height)
	sc.Extent = swapchainExtent

	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          ctx.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      sc.ImageFormat.Format,
		ImageColorSpace:  sc.ImageFormat.ColorSpace,
		ImageExtent:      swapchainExtent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
	}

	if ctx.Device.GraphicsQueueIndex != ctx.Device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(ctx.Device.GraphicsQueueIndex),
			uint32(ctx.Device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	swapchainCreateInfo.PreTransform = capabilities.CurrentTransform
	swapchainCreateInfo.CompositeAlpha = vk.CompositeAlphaOpaqueBit
	swapchainCreateInfo.PresentMode = presentMode
	swapchainCreateInfo.Clipped = vk.True
	swapchainCreateInfo.OldSwapchain = vk.NullSwapchain

	var swapchainHandle vk.Swapchain
	if res := vk.CreateSwapchain(ctx.Device.LogicalDevice, &swapchainCreateInfo, ctx.Allocator, &swapchainHandle); res != vk.Success {
		return nil, fmt.Errorf("create swapchain: %s", resultString(res))
	}
	sc.Handle = swapchainHandle

	// Images
	if res := vk.GetSwapchainImages(ctx.Device.LogicalDevice, sc.Handle, &sc.ImageCount, nil); res != vk.Success {
		return nil, fmt.Errorf("get swapchain images: %s", resultString(res))
	}
	sc.Images = make([]vk.Image, sc.ImageCount)
	sc.Views = make([]vk.ImageView, sc.ImageCount)
	if res := vk.GetSwapchainImages(ctx.Device.LogicalDevice, sc.Handle, &sc.ImageCount, sc.Images); res != vk.Success {
		return nil, fmt.Errorf("get swapchain images: %s", resultString(res))
	}

	for i := 0; i < int(sc.ImageCount); i++ {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    sc.Images[i],
			ViewType: vk.ImageViewType2d,
			Format:   sc.ImageFormat.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}
		if res := vk.CreateImageView(ctx.Device.LogicalDevice, &viewInfo, ctx.Allocator, &sc.Views[i]); res != vk.Success {
			return nil, fmt.Errorf("create swapchain image view: %s", resultString(res))
		}
	}

	// Depth resources
	if !deviceDetectDepthFormat(ctx.Device) {
		ctx.Device.DepthFormat = vk.FormatUndefined
		return nil, fmt.Errorf("failed to find a supported depth format")
	}
	depthAttachment, err := imageCreate(
		ctx,
		swapchainExtent.Width,
		swapchainExtent.Height,
		ctx.Device.DepthFormat,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		return nil, err
	}
	sc.DepthAttachment = depthAttachment

	if err := sc.createRenderPass(ctx); err != nil {
		return nil, err
	}
	if err := sc.createFramebuffers(ctx, swapchainExtent); err != nil {
		return nil, err
	}

	core.LogInfo("Swapchain created: %dx%d, %d images.", swapchainExtent.Width, swapchainExtent.Height, sc.ImageCount)
	return sc, nil
}

// createRenderPass builds the single pass every frame renders through. The
// attachment layouts carry the images from undefined to presentable, so no
// explicit barriers are recorded around it.
func (sc *swapchain) createRenderPass(ctx *context) error {
	colorAttachment := vk.AttachmentDescription{
		Format:         sc.ImageFormat.Format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}
	depthAttachment := vk.AttachmentDescription{
		Format:         ctx.Device.DepthFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpDontCare,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	colorAttachmentReference := vk.AttachmentReference{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}
	depthAttachmentReference := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       []vk.AttachmentReference{colorAttachmentReference},
		PDepthStencilAttachment: &depthAttachmentReference,
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit) | vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}

	renderPassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 2,
		PAttachments:    []vk.AttachmentDescription{colorAttachment, depthAttachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var renderPass vk.RenderPass
	if res := vk.CreateRenderPass(ctx.Device.LogicalDevice, &renderPassCreateInfo, ctx.Allocator, &renderPass); res != vk.Success {
		return fmt.Errorf("create render pass: %s", resultString(res))
	}
	sc.RenderPass = renderPass
	return nil
}

func (sc *swapchain) createFramebuffers(ctx *context, extent vk.Extent2D) error {
	sc.Framebuffers = make([]vk.Framebuffer, sc.ImageCount)
	for i := 0; i < int(sc.ImageCount); i++ {
		attachments := []vk.ImageView{
			sc.Views[i],
			sc.DepthAttachment.View,
		}
		framebufferCreateInfo := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      sc.RenderPass,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           extent.Width,
			Height:          extent.Height,
			Layers:          1,
		}
		if res := vk.CreateFramebuffer(ctx.Device.LogicalDevice, &framebufferCreateInfo, ctx.Allocator, &sc.Framebuffers[i]); res != vk.Success {
			return fmt.Errorf("create framebuffer: %s", resultString(res))
		}
	}
	return nil
}

func (sc *swapchain) destroy(ctx *context) {
	vk.DeviceWaitIdle(ctx.Device.LogicalDevice)

	for i := range sc.Framebuffers {
		if sc.Framebuffers[i] != vk.NullFramebuffer {
			vk.DestroyFramebuffer(ctx.Device.LogicalDevice, sc.Framebuffers[i], ctx.Allocator)
		}
	}
	sc.Framebuffers = nil

	if sc.RenderPass != vk.NullRenderPass {
		vk.DestroyRenderPass(ctx.Device.LogicalDevice, sc.RenderPass, ctx.Allocator)
		sc.RenderPass = vk.NullRenderPass
	}

	if sc.DepthAttachment != nil {
		sc.DepthAttachment.destroy(ctx)
		sc.DepthAttachment = nil
	}

	// Only destroy the views, not the images, since those are owned by the
	// swapchain and destroyed with it.
	for i := 0; i < int(sc.ImageCount); i++ {
		vk.DestroyImageView(ctx.Device.LogicalDevice, sc.Views[i], ctx.Allocator)
	}

	vk.DestroySwapchain(ctx.Device.LogicalDevice, sc.Handle, ctx.Allocator)
}
