package vulkan

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/yumekawa-dev/kanade/engine/renderer/gpu"
)

func (b *Backend) CreateCommandPool() (gpu.Handle, error) {
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(b.ctx.Device.GraphicsQueueIndex),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(b.ctx.Device.LogicalDevice, &poolCreateInfo, b.ctx.Allocator, &pool); res != vk.Success {
		return nil, fmt.Errorf("create command pool: %s", resultString(res))
	}
	return pool, nil
}

func (b *Backend) DestroyCommandPool(pool gpu.Handle) {
	vk.DestroyCommandPool(b.ctx.Device.LogicalDevice, pool.(vk.CommandPool), b.ctx.Allocator)
}

func (b *Backend) ResetCommandPool(pool gpu.Handle) error {
	if res := vk.ResetCommandPool(b.ctx.Device.LogicalDevice, pool.(vk.CommandPool), 0); res != vk.Success {
		return fmt.Errorf("reset command pool: %s", resultString(res))
	}
	return nil
}

func (b *Backend) AllocateCommandBuffers(pool gpu.Handle, count uint32) ([]gpu.Handle, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool.(vk.CommandPool),
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	}
	buffers := make([]vk.CommandBuffer, count)
	if res := vk.AllocateCommandBuffers(b.ctx.Device.LogicalDevice, &allocateInfo, buffers); res != vk.Success {
		return nil, fmt.Errorf("allocate command buffers: %s", resultString(res))
	}

	handles := make([]gpu.Handle, count)
	for i := range buffers {
		handles[i] = buffers[i]
	}
	return handles, nil
}

func bufferUsageFlags(usage gpu.BufferUsage) vk.BufferUsageFlags {
	switch usage {
	case gpu.BufferUsageVertex:
		return vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit | vk.BufferUsageTransferDstBit)
	case gpu.BufferUsageIndex:
		return vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit | vk.BufferUsageTransferDstBit)
	case gpu.BufferUsageUniform:
		return vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	case gpu.BufferUsageStorage:
		return vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit | vk.BufferUsageTransferDstBit)
	case gpu.BufferUsageIndirect:
		return vk.BufferUsageFlags(vk.BufferUsageIndirectBufferBit | vk.BufferUsageStorageBufferBit)
	}
	return 0
}

func (b *Backend) CreateBufferHandle(size uint64, usage gpu.BufferUsage) (gpu.Handle, gpu.MemoryRequirements, error) {
	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       bufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if res := vk.CreateBuffer(b.ctx.Device.LogicalDevice, &bufferCreateInfo, b.ctx.Allocator, &buffer); res != vk.Success {
		return nil, gpu.MemoryRequirements{}, fmt.Errorf("create buffer: %s", resultString(res))
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(b.ctx.Device.LogicalDevice, buffer, &memoryRequirements)
	memoryRequirements.Deref()

	return buffer, gpu.MemoryRequirements{
		Size:           uint64(memoryRequirements.Size),
		Alignment:      uint64(memoryRequirements.Alignment),
		MemoryTypeBits: memoryRequirements.MemoryTypeBits,
	}, nil
}

func (b *Backend) AllocateMemory(requirements gpu.MemoryRequirements, location gpu.MemoryLocation) (*gpu.Allocation, error) {
	propertyFlags := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	if location == gpu.MemoryCPUToGPU {
		propertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}

	memoryType := b.ctx.FindMemoryIndex(requirements.MemoryTypeBits, uint32(propertyFlags))
	if memoryType == -1 {
		return nil, fmt.Errorf("required memory type not found")
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(requirements.Size),
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(b.ctx.Device.LogicalDevice, &allocateInfo, b.ctx.Allocator, &memory); res != vk.Success {
		return nil, fmt.Errorf("allocate device memory: %s", resultString(res))
	}

	allocation := &gpu.Allocation{
		Memory: memory,
		Size:   requirements.Size,
	}

	// Persistently map upload memory for the allocation's lifetime.
	if location == gpu.MemoryCPUToGPU {
		var data unsafe.Pointer
		if res := vk.MapMemory(b.ctx.Device.LogicalDevice, memory, 0, vk.DeviceSize(requirements.Size), 0, &data); res != vk.Success {
			vk.FreeMemory(b.ctx.Device.LogicalDevice, memory, b.ctx.Allocator)
			return nil, fmt.Errorf("map device memory: %s", resultString(res))
		}
		allocation.Mapped = unsafe.Slice((*byte)(data), requirements.Size)
	}

	return allocation, nil
}

func (b *Backend) BindBufferMemory(buffer gpu.Handle, allocation *gpu.Allocation) error {
	if res := vk.BindBufferMemory(
		b.ctx.Device.LogicalDevice,
		buffer.(vk.Buffer),
		allocation.Memory.(vk.DeviceMemory),
		vk.DeviceSize(allocation.Offset)); res != vk.Success {
		return fmt.Errorf("bind buffer memory: %s", resultString(res))
	}
	return nil
}

func (b *Backend) DestroyBufferHandle(buffer gpu.Handle) {
	vk.DestroyBuffer(b.ctx.Device.LogicalDevice, buffer.(vk.Buffer), b.ctx.Allocator)
}

func (b *Backend) FreeMemory(allocation *gpu.Allocation) {
	memory := allocation.Memory.(vk.DeviceMemory)
	if allocation.Mapped != nil {
		vk.UnmapMemory(b.ctx.Device.LogicalDevice, memory)
		allocation.Mapped = nil
	}
	vk.FreeMemory(b.ctx.Device.LogicalDevice, memory, b.ctx.Allocator)
}

func (b *Backend) CreateDescriptorPool(maxSets, uniformBuffers, storageBuffers uint32) (gpu.Handle, error) {
	poolSizes := []vk.DescriptorPoolSize{
		{
			Type:            vk.DescriptorTypeUniformBuffer,
			DescriptorCount: uniformBuffers,
		},
		{
			Type:            vk.DescriptorTypeStorageBuffer,
			DescriptorCount: storageBuffers,
		},
	}
	poolCreateInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(b.ctx.Device.LogicalDevice, &poolCreateInfo, b.ctx.Allocator, &pool); res != vk.Success {
		return nil, fmt.Errorf("create descriptor pool: %s", resultString(res))
	}
	return pool, nil
}

func (b *Backend) DestroyDescriptorPool(pool gpu.Handle) {
	vk.DestroyDescriptorPool(b.ctx.Device.LogicalDevice, pool.(vk.DescriptorPool), b.ctx.Allocator)
}

func descriptorType(t gpu.DescriptorType) vk.DescriptorType {
	switch t {
	case gpu.DescriptorTypeUniformBuffer:
		return vk.DescriptorTypeUniformBuffer
	case gpu.DescriptorTypeStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case gpu.DescriptorTypeCombinedImageSampler:
		return vk.DescriptorTypeCombinedImageSampler
	}
	return vk.DescriptorTypeUniformBuffer
}

func shaderStageFlags(stages gpu.ShaderStageFlags) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlags
	if stages&gpu.ShaderStageVertexBit != 0 {
		flags |= vk.ShaderStageFlags(vk.ShaderStageVertexBit)
	}
	if stages&gpu.ShaderStageFragmentBit != 0 {
		flags |= vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	}
	return flags
}

func (b *Backend) CreateDescriptorSetLayout(bindings []gpu.DescriptorSetLayoutBinding) (gpu.Handle, error) {
	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, binding := range bindings {
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         binding.Binding,
			DescriptorType:  descriptorType(binding.Type),
			DescriptorCount: binding.Count,
			StageFlags:      shaderStageFlags(binding.Stages),
		}
	}
	layoutCreateInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(b.ctx.Device.LogicalDevice, &layoutCreateInfo, b.ctx.Allocator, &layout); res != vk.Success {
		return nil, fmt.Errorf("create descriptor set layout: %s", resultString(res))
	}
	return layout, nil
}

func (b *Backend) DestroyDescriptorSetLayout(layout gpu.Handle) {
	vk.DestroyDescriptorSetLayout(b.ctx.Device.LogicalDevice, layout.(vk.DescriptorSetLayout), b.ctx.Allocator)
}

func (b *Backend) AllocateDescriptorSet(pool, layout gpu.Handle) (gpu.Handle, error) {
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool.(vk.DescriptorPool),
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout.(vk.DescriptorSetLayout)},
	}
	var set vk.DescriptorSet
	res := vk.AllocateDescriptorSets(b.ctx.Device.LogicalDevice, &allocateInfo, &set)
	if res == vk.ErrorOutOfPoolMemory || res == vk.ErrorFragmentedPool {
		return nil, gpu.ErrDescriptorPoolExhausted
	}
	if res != vk.Success {
		return nil, fmt.Errorf("allocate descriptor set: %s", resultString(res))
	}
	return set, nil
}

func (b *Backend) UpdateDescriptorSet(set gpu.Handle, writes []gpu.DescriptorWrite) error {
	descriptorWrites := make([]vk.WriteDescriptorSet, len(writes))
	for i, write := range writes {
		descriptorWrites[i] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set.(vk.DescriptorSet),
			DstBinding:      write.Binding,
			DescriptorCount: 1,
			DescriptorType:  descriptorType(write.Type),
			PBufferInfo: []vk.DescriptorBufferInfo{
				{
					Buffer: write.Buffer.(vk.Buffer),
					Offset: 0,
					Range:  vk.DeviceSize(write.Range),
				},
			},
		}
	}
	vk.UpdateDescriptorSets(b.ctx.Device.LogicalDevice, uint32(len(descriptorWrites)), descriptorWrites, 0, nil)
	return nil
}

func (b *Backend) CreateShaderModule(code []byte, stage gpu.ShaderStage) (gpu.Handle, error) {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}

	moduleCreateInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    words,
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(b.ctx.Device.LogicalDevice, &moduleCreateInfo, b.ctx.Allocator, &module); res != vk.Success {
		return nil, fmt.Errorf("create %s shader module: %s", stage, resultString(res))
	}
	return module, nil
}

func (b *Backend) DestroyShaderModule(module gpu.Handle) {
	vk.DestroyShaderModule(b.ctx.Device.LogicalDevice, module.(vk.ShaderModule), b.ctx.Allocator)
}
