package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

type image struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
}

// imageCreate builds a 2D image, its device-local memory and a view. Used
// for the swapchain's depth attachment.
func imageCreate(
	ctx *context,
	width, height uint32,
	format vk.Format,
	tiling vk.ImageTiling,
	usage vk.ImageUsageFlags,
	memoryFlags vk.MemoryPropertyFlags,
	aspectFlags vk.ImageAspectFlags,
) (*image, error) {
	img := &image{
		Width:  width,
		Height: height,
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	var handle vk.Image
	if res := vk.CreateImage(ctx.Device.LogicalDevice, &imageCreateInfo, ctx.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("create image: %s", resultString(res))
	}
	img.Handle = handle

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(ctx.Device.LogicalDevice, img.Handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType := ctx.FindMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(memoryFlags))
	if memoryType == -1 {
		vk.DestroyImage(ctx.Device.LogicalDevice, img.Handle, ctx.Allocator)
		return nil, fmt.Errorf("required memory type not found for image")
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(ctx.Device.LogicalDevice, &allocateInfo, ctx.Allocator, &memory); res != vk.Success {
		vk.DestroyImage(ctx.Device.LogicalDevice, img.Handle, ctx.Allocator)
		return nil, fmt.Errorf("allocate image memory: %s", resultString(res))
	}
	img.Memory = memory

	if res := vk.BindImageMemory(ctx.Device.LogicalDevice, img.Handle, img.Memory, 0); res != vk.Success {
		img.destroy(ctx)
		return nil, fmt.Errorf("bind image memory: %s", resultString(res))
	}

	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspectFlags,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(ctx.Device.LogicalDevice, &viewInfo, ctx.Allocator, &view); res != vk.Success {
		img.destroy(ctx)
		return nil, fmt.Errorf("create image view: %s", resultString(res))
	}
	img.View = view

	return img, nil
}

func (img *image) destroy(ctx *context) {
	if img.View != vk.NullImageView {
		vk.DestroyImageView(ctx.Device.LogicalDevice, img.View, ctx.Allocator)
		img.View = vk.NullImageView
	}
	if img.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(ctx.Device.LogicalDevice, img.Memory, ctx.Allocator)
		img.Memory = vk.NullDeviceMemory
	}
	if img.Handle != vk.NullImage {
		vk.DestroyImage(ctx.Device.LogicalDevice, img.Handle, ctx.Allocator)
		img.Handle = vk.NullImage
	}
}
