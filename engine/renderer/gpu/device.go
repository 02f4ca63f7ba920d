package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/yumekawa-dev/kanade/engine/core"
)

// MaxFramesInFlight is the number of logical frame slots the CPU may record
// ahead of GPU completion. Slot reuse is gated by the frame timeline
// semaphore in FrameBegin.
const MaxFramesInFlight = 2

// frameCounters express the producer/consumer relationship between CPU
// submission and GPU completion. Owned exclusively by the Device and
// mutated only at frame-boundary transitions.
type frameCounters struct {
	// current frame slot index, cyclic mod MaxFramesInFlight.
	current uint64
	// previous frame slot index.
	previous uint64
	// absolute is the monotonically increasing count of presented frames.
	absolute uint64
}

// pendingDestruction is a buffer whose driver release has been requested but
// not yet executed. It deliberately does not reference the owning Device to
// avoid re-entering driver calls from resource teardown paths.
type pendingDestruction struct {
	raw        Handle
	allocation *Allocation
	// retiredAt is the absolute frame count at the time of retirement; the
	// entry is only released once MaxFramesInFlight further presents have
	// completed, which proves no in-flight work can still reference it.
	retiredAt uint64
}

// DeviceOptions fixes the engine's provisioning at startup. All limits are
// deliberately static: pools never grow and exhaustion is an error.
type DeviceOptions struct {
	// CommandBuffersPerPool is the per-frame command buffer quota.
	CommandBuffersPerPool uint32
	// DescriptorMaxSets caps the global descriptor pool.
	DescriptorMaxSets uint32
	// DescriptorUniformBuffers / DescriptorStorageBuffers size the pool's
	// per-type capacity.
	DescriptorUniformBuffers uint32
	DescriptorStorageBuffers uint32
	// MemoryBudget is the allocator adapter's byte budget for buffer memory.
	MemoryBudget uint64
}

// DefaultDeviceOptions returns the provisioning used by the game client.
func DefaultDeviceOptions() DeviceOptions {
	return DeviceOptions{
		CommandBuffersPerPool:    8,
		DescriptorMaxSets:        64,
		DescriptorUniformBuffers: 128,
		DescriptorStorageBuffers: 64,
		MemoryBudget:             256 * 1024 * 1024,
	}
}

// Device is the facade every consumer renders through. It owns frame
// synchronization state, the per-slot command pools, the global descriptor
// pool, the memory allocator adapter and the deferred destruction queue.
//
// The Device is intended to be driven by a single logical frame loop; its
// internal locks exist to make the facade safe against resource retirement
// racing the frame boundary, not to allow overlapping frames.
type Device struct {
	backend Backend

	mu       sync.Mutex
	counters frameCounters
	// imageIndex of the swapchain image acquired by the current frame.
	imageIndex uint32

	// Wait on the slot's semaphore when presenting.
	semaphoresRenderComplete [MaxFramesInFlight]Handle
	// Signaled when a swapchain image is acquired, waited on at submit.
	semaphoreImageAcquired Handle
	// Timeline semaphore shared by all frames in flight; one semaphore
	// expresses "frame K's GPU work is done" for every K.
	semaphoreFrameTimeline Handle

	commandBuffers       *CommandBufferManager
	allocator            *Allocator
	globalDescriptorPool Handle

	pendingMu sync.Mutex
	pending   []pendingDestruction
}

// NewDevice composes the frame engine on top of a backend. Setup failures
// are fatal and returned as-is.
func NewDevice(backend Backend, opts DeviceOptions) (*Device, error) {
	d := &Device{
		backend:   backend,
		allocator: NewAllocator(backend, opts.MemoryBudget),
	}

	var err error
	for i := range d.semaphoresRenderComplete {
		if d.semaphoresRenderComplete[i], err = backend.CreateSemaphore(SemaphoreBinary); err != nil {
			return nil, fmt.Errorf("create render-complete semaphore: %w", err)
		}
	}
	if d.semaphoreImageAcquired, err = backend.CreateSemaphore(SemaphoreBinary); err != nil {
		return nil, fmt.Errorf("create image-acquired semaphore: %w", err)
	}
	if d.semaphoreFrameTimeline, err = backend.CreateSemaphore(SemaphoreTimeline); err != nil {
		return nil, fmt.Errorf("create frame timeline semaphore: %w", err)
	}

	d.commandBuffers, err = NewCommandBufferManager(backend, MaxFramesInFlight, opts.CommandBuffersPerPool)
	if err != nil {
		return nil, fmt.Errorf("create command buffer manager: %w", err)
	}

	d.globalDescriptorPool, err = backend.CreateDescriptorPool(
		opts.DescriptorMaxSets, opts.DescriptorUniformBuffers, opts.DescriptorStorageBuffers)
	if err != nil {
		return nil, fmt.Errorf("create global descriptor pool: %w", err)
	}

	core.LogInfo("GPU device ready: %d frames in flight, %d command buffers per pool.",
		MaxFramesInFlight, opts.CommandBuffersPerPool)
	return d, nil
}

// CurrentFrameIndex returns the frame slot being recorded, in
// [0, MaxFramesInFlight).
func (d *Device) CurrentFrameIndex() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counters.current
}

// AbsoluteFrame returns the count of completed presents.
func (d *Device) AbsoluteFrame() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counters.absolute
}

// Resized forwards a framebuffer size change to the backend; the swapchain
// itself is recreated lazily when the next acquire reports it stale.
func (d *Device) Resized(width, height uint32) {
	d.backend.Resized(width, height)
}

// frameTimelineWaitValue is the timeline value FrameBegin must observe
// before the current slot's pool and resources may be reused.
func (d *Device) frameTimelineWaitValue() uint64 {
	return d.counters.absolute - (MaxFramesInFlight - 1)
}

// FrameBegin blocks until the current frame slot is provably free, resets
// the slot's command pool and acquires the next presentable image.
//
// A stale surface on acquire triggers exactly one swapchain recreation and
// retry; failure on the retry propagates.
func (d *Device) FrameBegin() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Backpressure: the slot has a previous occupant once absolute reaches
	// MaxFramesInFlight; wait for its GPU work before touching its pool.
	if d.counters.absolute >= MaxFramesInFlight {
		if err := d.backend.WaitTimeline(d.semaphoreFrameTimeline, d.frameTimelineWaitValue()); err != nil {
			return fmt.Errorf("wait frame timeline: %w", err)
		}
	}

	if err := d.commandBuffers.ResetPools([]int{int(d.counters.current)}); err != nil {
		return fmt.Errorf("reset frame command pool: %w", err)
	}

	imageIndex, err := d.backend.AcquireNextImage(d.semaphoreImageAcquired)
	if err != nil {
		if !errors.Is(err, ErrSurfaceOutOfDate) {
			core.LogWarn("swapchain acquire failed (%v), attempting recreation", err)
		}
		if recreateErr := d.backend.RecreateSwapchain(); recreateErr != nil {
			return fmt.Errorf("recreate swapchain after failed acquire: %w", recreateErr)
		}
		imageIndex, err = d.backend.AcquireNextImage(d.semaphoreImageAcquired)
		if err != nil {
			return fmt.Errorf("acquire swapchain image after recreation: %w", err)
		}
	}
	d.imageIndex = imageIndex

	return nil
}

// GetCurrentCommandBuffer hands out the next provisioned command buffer of
// the current frame slot's pool.
func (d *Device) GetCurrentCommandBuffer() (*CommandBuffer, error) {
	d.mu.Lock()
	current := d.counters.current
	d.mu.Unlock()
	return d.commandBuffers.BufferAt(int(current))
}

// QueueSubmitCommands submits recorded commands to the graphics/present
// queue. The submission waits on the image-acquired semaphore, signals the
// slot's render-complete semaphore for present to consume, and raises the
// shared timeline to absolute+1 for future FrameBegin backpressure.
func (d *Device) QueueSubmitCommands(commandBuffer *CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.backend.Submit(
		commandBuffer.raw,
		d.semaphoreImageAcquired,
		d.semaphoresRenderComplete[d.counters.current],
		d.semaphoreFrameTimeline,
		d.counters.absolute+1,
	); err != nil {
		return fmt.Errorf("queue submit: %w", err)
	}
	return nil
}

// SwapchainPresent presents the acquired image, advances the frame counters
// exactly once and opportunistically drains the pending-destruction queue.
//
// A failed present is treated as a recreation signal: present failure means
// no further use of the current images is valid, so the device is brought
// fully idle and the next FrameBegin's acquire performs the recreation.
func (d *Device) SwapchainPresent() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	presentErr := d.backend.Present(d.semaphoresRenderComplete[d.counters.current])
	if presentErr != nil {
		if !errors.Is(presentErr, ErrSurfaceOutOfDate) {
			return fmt.Errorf("queue present: %w", presentErr)
		}
		core.LogDebug("present reported stale surface, waiting for device idle")
		if err := d.backend.DeviceWaitIdle(); err != nil {
			return fmt.Errorf("device idle wait after failed present: %w", err)
		}
	}

	d.counters.previous = d.counters.current
	d.counters.current = (d.counters.current + 1) % MaxFramesInFlight
	d.counters.absolute++

	d.collectGarbage(false)
	return nil
}

// scheduleBufferDestruction queues a buffer's driver release. Called from
// Buffer.Retire; must not issue driver calls of its own.
func (d *Device) scheduleBufferDestruction(raw Handle, allocation *Allocation) {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	d.pending = append(d.pending, pendingDestruction{
		raw:        raw,
		allocation: allocation,
		retiredAt:  d.counters.absolute,
	})
}

// collectGarbage releases queued buffers whose last possible GPU use is
// provably complete: at least MaxFramesInFlight presents after retirement.
// With force set, every entry is released regardless of age; only valid
// after a full device idle wait.
func (d *Device) collectGarbage(force bool) {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()

	kept := d.pending[:0]
	for _, entry := range d.pending {
		if !force && d.counters.absolute < entry.retiredAt+MaxFramesInFlight {
			kept = append(kept, entry)
			continue
		}
		d.backend.DestroyBufferHandle(entry.raw)
		d.allocator.Free(entry.allocation)
	}
	d.pending = kept
}

// PendingDestructionCount reports the number of queued but unreleased
// buffers. Useful for leak checks at teardown.
func (d *Device) PendingDestructionCount() int {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	return len(d.pending)
}

// Shutdown waits for full device idle and releases every owned resource,
// including all queued destructions. The Device must not be used afterwards.
func (d *Device) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.backend.DeviceWaitIdle(); err != nil {
		return fmt.Errorf("device idle wait at shutdown: %w", err)
	}

	d.collectGarbage(true)

	d.backend.DestroyDescriptorPool(d.globalDescriptorPool)
	d.commandBuffers.Destroy()
	for i := range d.semaphoresRenderComplete {
		d.backend.DestroySemaphore(d.semaphoresRenderComplete[i])
	}
	d.backend.DestroySemaphore(d.semaphoreImageAcquired)
	d.backend.DestroySemaphore(d.semaphoreFrameTimeline)

	core.LogInfo("GPU device shut down.")
	return nil
}

// CommandBeginRenderingSwapchain starts a dynamic rendering pass targeting
// the swapchain image acquired by the current frame. The Device owns all
// surface resources, so this command lives here rather than on the command
// buffer.
func (d *Device) CommandBeginRenderingSwapchain(commandBuffer *CommandBuffer, clearColor [4]float32) {
	d.mu.Lock()
	imageIndex := d.imageIndex
	d.mu.Unlock()
	d.backend.CmdBeginRenderingSwapchain(commandBuffer.raw, imageIndex, clearColor)
}

// CommandTransitionSwapchainToColorAttachment records the image layout
// barrier required before rendering to the acquired swapchain image.
func (d *Device) CommandTransitionSwapchainToColorAttachment(commandBuffer *CommandBuffer) {
	d.mu.Lock()
	imageIndex := d.imageIndex
	d.mu.Unlock()
	d.backend.CmdTransitionSwapchainToColorAttachment(commandBuffer.raw, imageIndex)
}

// CommandTransitionSwapchainToPresent records the layout barrier back to the
// presentable layout.
func (d *Device) CommandTransitionSwapchainToPresent(commandBuffer *CommandBuffer) {
	d.mu.Lock()
	imageIndex := d.imageIndex
	d.mu.Unlock()
	d.backend.CmdTransitionSwapchainToPresent(commandBuffer.raw, imageIndex)
}

// SwapchainExtent exposes the current surface size for viewport setup.
func (d *Device) SwapchainExtent() (uint32, uint32) {
	return d.backend.SwapchainExtent()
}
