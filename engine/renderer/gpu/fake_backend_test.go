package gpu_test

import (
	"errors"
	"fmt"

	"github.com/yumekawa-dev/kanade/engine/renderer/gpu"
)

// fakeBackend drives the Device without a live driver. Submissions complete
// instantly: Submit signals the timeline immediately, so a WaitTimeline that
// cannot be satisfied is reported as an error instead of blocking forever.
type fakeBackend struct {
	timelineValue uint64
	timelineWaits []uint64

	acquireErrs     []error
	acquireCount    int
	recreateCount   int
	recreateErr     error
	presentErrs     []error
	presentCount    int
	submitCount     int
	waitIdleCount   int
	nextImage       uint32
	width, height   uint32
	descriptorsLeft int

	pools       []*fakePool
	buffers     []*fakeBuffer
	allocations []*gpu.Allocation
	freed       int

	updatesPerSet map[*fakeDescriptorSet]int
	commands      []string
}

type fakeSemaphore struct {
	kind gpu.SemaphoreKind
}

type fakePool struct {
	resets int
}

type fakeBuffer struct {
	size      uint64
	usage     gpu.BufferUsage
	destroyed bool
}

type fakeDescriptorSet struct {
	bindings map[uint32]gpu.DescriptorWrite
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		width:           1920,
		height:          1200,
		descriptorsLeft: 64,
		updatesPerSet:   make(map[*fakeDescriptorSet]int),
	}
}

func (f *fakeBackend) CreateSemaphore(kind gpu.SemaphoreKind) (gpu.Handle, error) {
	return &fakeSemaphore{kind: kind}, nil
}

func (f *fakeBackend) DestroySemaphore(gpu.Handle) {}

func (f *fakeBackend) WaitTimeline(_ gpu.Handle, value uint64) error {
	f.timelineWaits = append(f.timelineWaits, value)
	if value > f.timelineValue {
		return fmt.Errorf("wait for timeline value %d would never complete (signaled %d)", value, f.timelineValue)
	}
	return nil
}

func (f *fakeBackend) DeviceWaitIdle() error {
	f.waitIdleCount++
	return nil
}

func (f *fakeBackend) AcquireNextImage(gpu.Handle) (uint32, error) {
	f.acquireCount++
	if len(f.acquireErrs) > 0 {
		err := f.acquireErrs[0]
		f.acquireErrs = f.acquireErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	image := f.nextImage
	f.nextImage = (f.nextImage + 1) % 2
	return image, nil
}

func (f *fakeBackend) Present(gpu.Handle) error {
	f.presentCount++
	if len(f.presentErrs) > 0 {
		err := f.presentErrs[0]
		f.presentErrs = f.presentErrs[1:]
		return err
	}
	return nil
}

func (f *fakeBackend) RecreateSwapchain() error {
	f.recreateCount++
	return f.recreateErr
}

func (f *fakeBackend) Resized(width, height uint32) {
	f.width, f.height = width, height
}

func (f *fakeBackend) SwapchainExtent() (uint32, uint32) {
	return f.width, f.height
}

func (f *fakeBackend) Submit(_, _, _, _ gpu.Handle, timelineValue uint64) error {
	f.submitCount++
	if timelineValue > f.timelineValue {
		f.timelineValue = timelineValue
	}
	return nil
}

func (f *fakeBackend) CreateCommandPool() (gpu.Handle, error) {
	pool := &fakePool{}
	f.pools = append(f.pools, pool)
	return pool, nil
}

func (f *fakeBackend) DestroyCommandPool(gpu.Handle) {}

func (f *fakeBackend) ResetCommandPool(pool gpu.Handle) error {
	pool.(*fakePool).resets++
	return nil
}

func (f *fakeBackend) AllocateCommandBuffers(_ gpu.Handle, count uint32) ([]gpu.Handle, error) {
	handles := make([]gpu.Handle, count)
	for i := range handles {
		handles[i] = new(int)
	}
	return handles, nil
}

func (f *fakeBackend) CreateBufferHandle(size uint64, usage gpu.BufferUsage) (gpu.Handle, gpu.MemoryRequirements, error) {
	buffer := &fakeBuffer{size: size, usage: usage}
	f.buffers = append(f.buffers, buffer)
	return buffer, gpu.MemoryRequirements{Size: size, Alignment: 256}, nil
}

func (f *fakeBackend) AllocateMemory(requirements gpu.MemoryRequirements, location gpu.MemoryLocation) (*gpu.Allocation, error) {
	allocation := &gpu.Allocation{
		Memory: new(int),
		Size:   requirements.Size,
	}
	if location == gpu.MemoryCPUToGPU {
		allocation.Mapped = make([]byte, requirements.Size)
	}
	f.allocations = append(f.allocations, allocation)
	return allocation, nil
}

func (f *fakeBackend) BindBufferMemory(gpu.Handle, *gpu.Allocation) error {
	return nil
}

func (f *fakeBackend) DestroyBufferHandle(buffer gpu.Handle) {
	buffer.(*fakeBuffer).destroyed = true
}

func (f *fakeBackend) FreeMemory(*gpu.Allocation) {
	f.freed++
}

func (f *fakeBackend) CreateDescriptorPool(maxSets, _, _ uint32) (gpu.Handle, error) {
	f.descriptorsLeft = int(maxSets)
	return new(int), nil
}

func (f *fakeBackend) DestroyDescriptorPool(gpu.Handle) {}

func (f *fakeBackend) CreateDescriptorSetLayout([]gpu.DescriptorSetLayoutBinding) (gpu.Handle, error) {
	return new(int), nil
}

func (f *fakeBackend) DestroyDescriptorSetLayout(gpu.Handle) {}

func (f *fakeBackend) AllocateDescriptorSet(gpu.Handle, gpu.Handle) (gpu.Handle, error) {
	if f.descriptorsLeft == 0 {
		return nil, gpu.ErrDescriptorPoolExhausted
	}
	f.descriptorsLeft--
	return &fakeDescriptorSet{bindings: make(map[uint32]gpu.DescriptorWrite)}, nil
}

func (f *fakeBackend) UpdateDescriptorSet(set gpu.Handle, writes []gpu.DescriptorWrite) error {
	fs := set.(*fakeDescriptorSet)
	for _, write := range writes {
		fs.bindings[write.Binding] = write
	}
	f.updatesPerSet[fs]++
	return nil
}

func (f *fakeBackend) CreateShaderModule([]byte, gpu.ShaderStage) (gpu.Handle, error) {
	return new(int), nil
}

func (f *fakeBackend) DestroyShaderModule(gpu.Handle) {}

func (f *fakeBackend) CreatePipeline(*gpu.PipelineDescriptor, []gpu.Handle) (gpu.Handle, gpu.Handle, error) {
	return new(int), new(int), nil
}

func (f *fakeBackend) DestroyPipeline(gpu.Handle, gpu.Handle) {}

func (f *fakeBackend) BeginCommandBuffer(gpu.Handle) error {
	f.commands = append(f.commands, "begin")
	return nil
}

func (f *fakeBackend) EndCommandBuffer(gpu.Handle) error {
	f.commands = append(f.commands, "end")
	return nil
}

func (f *fakeBackend) CmdBeginRenderingSwapchain(_ gpu.Handle, imageIndex uint32, _ [4]float32) {
	f.commands = append(f.commands, fmt.Sprintf("begin_rendering %d", imageIndex))
}

func (f *fakeBackend) CmdEndRendering(gpu.Handle) {
	f.commands = append(f.commands, "end_rendering")
}

func (f *fakeBackend) CmdTransitionSwapchainToColorAttachment(gpu.Handle, uint32) {
	f.commands = append(f.commands, "transition_color")
}

func (f *fakeBackend) CmdTransitionSwapchainToPresent(gpu.Handle, uint32) {
	f.commands = append(f.commands, "transition_present")
}

func (f *fakeBackend) CmdBindPipeline(gpu.Handle, gpu.Handle) {
	f.commands = append(f.commands, "bind_pipeline")
}

func (f *fakeBackend) CmdBindDescriptorSet(gpu.Handle, gpu.Handle, gpu.Handle) {
	f.commands = append(f.commands, "bind_descriptor_set")
}

func (f *fakeBackend) CmdBindVertexBuffers(_ gpu.Handle, _ uint32, buffers []gpu.Handle, _ []uint64) {
	f.commands = append(f.commands, fmt.Sprintf("bind_vertex_buffers %d", len(buffers)))
}

func (f *fakeBackend) CmdBindIndexBuffer(gpu.Handle, gpu.Handle, uint64) {
	f.commands = append(f.commands, "bind_index_buffer")
}

func (f *fakeBackend) CmdDraw(_ gpu.Handle, vertexCount, _, _, _ uint32) {
	f.commands = append(f.commands, fmt.Sprintf("draw %d", vertexCount))
}

func (f *fakeBackend) CmdDrawIndexed(_ gpu.Handle, indexCount, _, _ uint32, _ int32, _ uint32) {
	f.commands = append(f.commands, fmt.Sprintf("draw_indexed %d", indexCount))
}

func (f *fakeBackend) CmdDrawIndirect(gpu.Handle, gpu.Handle, uint64, uint32, uint32) {
	f.commands = append(f.commands, "draw_indirect")
}

func (f *fakeBackend) CmdDrawIndirectCount(gpu.Handle, gpu.Handle, uint64, gpu.Handle, uint64, uint32, uint32) {
	f.commands = append(f.commands, "draw_indirect_count")
}

func (f *fakeBackend) CmdDrawIndexedIndirect(gpu.Handle, gpu.Handle, uint64, uint32, uint32) {
	f.commands = append(f.commands, "draw_indexed_indirect")
}

func (f *fakeBackend) CmdDrawIndexedIndirectCount(gpu.Handle, gpu.Handle, uint64, gpu.Handle, uint64, uint32, uint32) {
	f.commands = append(f.commands, "draw_indexed_indirect_count")
}

var _ gpu.Backend = (*fakeBackend)(nil)

// destroyedBuffers counts fake buffers whose driver handle was released.
func (f *fakeBackend) destroyedBuffers() int {
	n := 0
	for _, buffer := range f.buffers {
		if buffer.destroyed {
			n++
		}
	}
	return n
}

var errDriverFailure = errors.New("driver failure")
