package gpu_test

import (
	"errors"
	"testing"

	"github.com/yumekawa-dev/kanade/engine/renderer/gpu"
)

func newTestDevice(t *testing.T, opts gpu.DeviceOptions) (*gpu.Device, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	device, err := gpu.NewDevice(backend, opts)
	if err != nil {
		t.Fatalf("NewDevice failed: %v", err)
	}
	return device, backend
}

// runFrame drives one full frame cycle: begin, record nothing, submit, present.
func runFrame(t *testing.T, device *gpu.Device) {
	t.Helper()
	if err := device.FrameBegin(); err != nil {
		t.Fatalf("FrameBegin failed: %v", err)
	}
	commandBuffer, err := device.GetCurrentCommandBuffer()
	if err != nil {
		t.Fatalf("GetCurrentCommandBuffer failed: %v", err)
	}
	if err := device.QueueSubmitCommands(commandBuffer); err != nil {
		t.Fatalf("QueueSubmitCommands failed: %v", err)
	}
	if err := device.SwapchainPresent(); err != nil {
		t.Fatalf("SwapchainPresent failed: %v", err)
	}
}

func TestFrameCountersAdvanceAndCycle(t *testing.T) {
	device, backend := newTestDevice(t, gpu.DefaultDeviceOptions())

	for i := 0; i < 5; i++ {
		wantSlot := uint64(i) % gpu.MaxFramesInFlight
		if got := device.CurrentFrameIndex(); got != wantSlot {
			t.Fatalf("frame %d: CurrentFrameIndex = %d, want %d", i, got, wantSlot)
		}
		if got := device.AbsoluteFrame(); got != uint64(i) {
			t.Fatalf("frame %d: AbsoluteFrame = %d, want %d", i, got, i)
		}
		runFrame(t, device)
	}

	if backend.presentCount != 5 {
		t.Errorf("presentCount = %d, want 5", backend.presentCount)
	}
	if backend.submitCount != 5 {
		t.Errorf("submitCount = %d, want 5", backend.submitCount)
	}
}

func TestFrameBeginWaitsOnlyOnceSlotsAreOccupied(t *testing.T) {
	device, backend := newTestDevice(t, gpu.DefaultDeviceOptions())

	for i := 0; i < 4; i++ {
		runFrame(t, device)
	}

	// The first MaxFramesInFlight begins find free slots; after that each
	// begin waits for the frame that last used the slot. With two slots and
	// begins at absolute counts 0..3, the waits are for values 1 and 2.
	want := []uint64{1, 2}
	if len(backend.timelineWaits) != len(want) {
		t.Fatalf("timelineWaits = %v, want %v", backend.timelineWaits, want)
	}
	for i, value := range want {
		if backend.timelineWaits[i] != value {
			t.Errorf("timelineWaits[%d] = %d, want %d", i, backend.timelineWaits[i], value)
		}
	}
}

func TestFrameBeginTwiceWithoutPresentDoesNotWait(t *testing.T) {
	device, backend := newTestDevice(t, gpu.DefaultDeviceOptions())

	if err := device.FrameBegin(); err != nil {
		t.Fatalf("first FrameBegin failed: %v", err)
	}
	if err := device.FrameBegin(); err != nil {
		t.Fatalf("second FrameBegin failed: %v", err)
	}
	if len(backend.timelineWaits) != 0 {
		t.Errorf("timelineWaits = %v, want none before any present", backend.timelineWaits)
	}
}

func TestAcquireStaleSurfaceRecreatesOnceAndRetries(t *testing.T) {
	device, backend := newTestDevice(t, gpu.DefaultDeviceOptions())
	backend.acquireErrs = []error{gpu.ErrSurfaceOutOfDate}

	if err := device.FrameBegin(); err != nil {
		t.Fatalf("FrameBegin failed: %v", err)
	}
	if backend.recreateCount != 1 {
		t.Errorf("recreateCount = %d, want 1", backend.recreateCount)
	}
	if backend.acquireCount != 2 {
		t.Errorf("acquireCount = %d, want 2", backend.acquireCount)
	}
}

func TestAcquireRetryFailureIsFatal(t *testing.T) {
	device, backend := newTestDevice(t, gpu.DefaultDeviceOptions())
	backend.acquireErrs = []error{gpu.ErrSurfaceOutOfDate, errDriverFailure}

	err := device.FrameBegin()
	if err == nil {
		t.Fatal("FrameBegin succeeded, want error after failed retry")
	}
	if !errors.Is(err, errDriverFailure) {
		t.Errorf("FrameBegin error = %v, want wrapped driver failure", err)
	}
	if backend.recreateCount != 1 {
		t.Errorf("recreateCount = %d, want exactly 1", backend.recreateCount)
	}
}

func TestRecreateFailureIsFatal(t *testing.T) {
	device, backend := newTestDevice(t, gpu.DefaultDeviceOptions())
	backend.acquireErrs = []error{gpu.ErrSurfaceOutOfDate}
	backend.recreateErr = errDriverFailure

	if err := device.FrameBegin(); err == nil {
		t.Fatal("FrameBegin succeeded, want error from failed recreation")
	}
}

func TestPresentStaleSurfaceWaitsIdleAndAdvances(t *testing.T) {
	device, backend := newTestDevice(t, gpu.DefaultDeviceOptions())
	backend.presentErrs = []error{gpu.ErrSurfaceOutOfDate}

	runFrame(t, device)

	if backend.waitIdleCount != 1 {
		t.Errorf("waitIdleCount = %d, want 1 after stale present", backend.waitIdleCount)
	}
	if got := device.AbsoluteFrame(); got != 1 {
		t.Errorf("AbsoluteFrame = %d, want 1", got)
	}
	if got := device.CurrentFrameIndex(); got != 1 {
		t.Errorf("CurrentFrameIndex = %d, want 1", got)
	}
}

func TestPresentDriverFailurePropagates(t *testing.T) {
	device, backend := newTestDevice(t, gpu.DefaultDeviceOptions())
	backend.presentErrs = []error{errDriverFailure}

	if err := device.FrameBegin(); err != nil {
		t.Fatalf("FrameBegin failed: %v", err)
	}
	commandBuffer, err := device.GetCurrentCommandBuffer()
	if err != nil {
		t.Fatalf("GetCurrentCommandBuffer failed: %v", err)
	}
	if err := device.QueueSubmitCommands(commandBuffer); err != nil {
		t.Fatalf("QueueSubmitCommands failed: %v", err)
	}

	if err := device.SwapchainPresent(); err == nil {
		t.Fatal("SwapchainPresent succeeded, want driver failure")
	}
	if got := device.AbsoluteFrame(); got != 0 {
		t.Errorf("AbsoluteFrame = %d after failed present, want 0", got)
	}
}

func TestSubmitRaisesTimelinePerFrame(t *testing.T) {
	device, backend := newTestDevice(t, gpu.DefaultDeviceOptions())

	for i := 0; i < 3; i++ {
		runFrame(t, device)
	}
	if backend.timelineValue != 3 {
		t.Errorf("timelineValue = %d, want 3", backend.timelineValue)
	}
}

func TestShutdownReleasesEverything(t *testing.T) {
	device, backend := newTestDevice(t, gpu.DefaultDeviceOptions())

	buffer, err := device.CreateBuffer(gpu.BufferDescriptor{
		Size:           128,
		Usage:          gpu.BufferUsageVertex,
		MemoryLocation: gpu.MemoryCPUToGPU,
	})
	if err != nil {
		t.Fatalf("CreateBuffer failed: %v", err)
	}
	buffer.Retire()

	if err := device.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if got := device.PendingDestructionCount(); got != 0 {
		t.Errorf("PendingDestructionCount = %d after shutdown, want 0", got)
	}
	if got := backend.destroyedBuffers(); got != 1 {
		t.Errorf("destroyed buffers = %d after shutdown, want 1", got)
	}
	if backend.freed != 1 {
		t.Errorf("freed allocations = %d after shutdown, want 1", backend.freed)
	}
	if backend.waitIdleCount == 0 {
		t.Error("Shutdown did not wait for device idle")
	}
}
