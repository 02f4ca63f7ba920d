package gpu

// Handle is an opaque reference to a driver object. The concrete type is
// owned by the Backend implementation; the engine never inspects it.
type Handle interface{}

// SemaphoreKind selects between the two synchronization primitive flavors
// the frame engine relies on.
type SemaphoreKind uint8

const (
	// SemaphoreBinary is a single-use handshake, reset each cycle.
	SemaphoreBinary SemaphoreKind = iota
	// SemaphoreTimeline carries a monotonically increasing counter shared
	// across all frames in flight.
	SemaphoreTimeline
)

// MemoryRequirements describes what the driver needs for a resource's
// backing memory.
type MemoryRequirements struct {
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
}

// Allocation is a region of device memory granted by the allocator. Mapped
// is non-nil only for host-visible allocations and aliases the mapped range
// for the allocation's lifetime.
type Allocation struct {
	Memory Handle
	Offset uint64
	Size   uint64
	Mapped []byte
}

// HostVisible reports whether the CPU can write this allocation directly.
func (a *Allocation) HostVisible() bool {
	return a.Mapped != nil
}

// DescriptorWrite is a fully validated binding update handed to the backend.
type DescriptorWrite struct {
	Binding uint32
	Type    DescriptorType
	Buffer  Handle
	Range   uint64
}

// Backend is the seam between the frame/resource engine and the raw
// graphics driver. The production implementation wraps Vulkan; tests drive
// the Device with an in-memory fake. All methods are expected to be called
// from the single logical frame loop, except the destruction entry points
// invoked from Device teardown.
type Backend interface {
	// Synchronization primitives.
	CreateSemaphore(kind SemaphoreKind) (Handle, error)
	DestroySemaphore(semaphore Handle)
	// WaitTimeline blocks until the timeline semaphore's signaled value
	// reaches at least the given value.
	WaitTimeline(semaphore Handle, value uint64) error
	DeviceWaitIdle() error

	// Presentation surface. AcquireNextImage and Present report a stale
	// surface with ErrSurfaceOutOfDate.
	AcquireNextImage(signal Handle) (uint32, error)
	Present(wait Handle) error
	RecreateSwapchain() error
	Resized(width, height uint32)
	SwapchainExtent() (width, height uint32)

	// Submit enqueues recorded commands on the graphics/present queue,
	// waiting on the acquire semaphore at the color-attachment-output stage
	// and signaling both the per-slot binary semaphore and the shared
	// timeline raised to timelineValue.
	Submit(commandBuffer, wait, signal, timeline Handle, timelineValue uint64) error

	// Command recording resources.
	CreateCommandPool() (Handle, error)
	DestroyCommandPool(pool Handle)
	ResetCommandPool(pool Handle) error
	AllocateCommandBuffers(pool Handle, count uint32) ([]Handle, error)

	// Buffers and device memory.
	CreateBufferHandle(size uint64, usage BufferUsage) (Handle, MemoryRequirements, error)
	AllocateMemory(requirements MemoryRequirements, location MemoryLocation) (*Allocation, error)
	BindBufferMemory(buffer Handle, allocation *Allocation) error
	DestroyBufferHandle(buffer Handle)
	FreeMemory(allocation *Allocation)

	// Descriptors. AllocateDescriptorSet reports a drained pool with
	// ErrDescriptorPoolExhausted.
	CreateDescriptorPool(maxSets, uniformBuffers, storageBuffers uint32) (Handle, error)
	DestroyDescriptorPool(pool Handle)
	CreateDescriptorSetLayout(bindings []DescriptorSetLayoutBinding) (Handle, error)
	DestroyDescriptorSetLayout(layout Handle)
	AllocateDescriptorSet(pool, layout Handle) (Handle, error)
	UpdateDescriptorSet(set Handle, writes []DescriptorWrite) error

	// Shaders and pipelines.
	CreateShaderModule(code []byte, stage ShaderStage) (Handle, error)
	DestroyShaderModule(module Handle)
	CreatePipeline(desc *PipelineDescriptor, layouts []Handle) (pipeline, pipelineLayout Handle, err error)
	DestroyPipeline(pipeline, pipelineLayout Handle)

	// Command buffer recording.
	BeginCommandBuffer(commandBuffer Handle) error
	EndCommandBuffer(commandBuffer Handle) error
	CmdBeginRenderingSwapchain(commandBuffer Handle, imageIndex uint32, clearColor [4]float32)
	CmdEndRendering(commandBuffer Handle)
	CmdTransitionSwapchainToColorAttachment(commandBuffer Handle, imageIndex uint32)
	CmdTransitionSwapchainToPresent(commandBuffer Handle, imageIndex uint32)
	CmdBindPipeline(commandBuffer, pipeline Handle)
	CmdBindDescriptorSet(commandBuffer, set, pipelineLayout Handle)
	CmdBindVertexBuffers(commandBuffer Handle, firstBinding uint32, buffers []Handle, offsets []uint64)
	CmdBindIndexBuffer(commandBuffer, buffer Handle, offset uint64)
	CmdDraw(commandBuffer Handle, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdDrawIndexed(commandBuffer Handle, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	CmdDrawIndirect(commandBuffer, buffer Handle, offset uint64, drawCount, stride uint32)
	CmdDrawIndirectCount(commandBuffer, buffer Handle, offset uint64, countBuffer Handle, countOffset uint64, maxDrawCount, stride uint32)
	CmdDrawIndexedIndirect(commandBuffer, buffer Handle, offset uint64, drawCount, stride uint32)
	CmdDrawIndexedIndirectCount(commandBuffer, buffer Handle, offset uint64, countBuffer Handle, countOffset uint64, maxDrawCount, stride uint32)
}
