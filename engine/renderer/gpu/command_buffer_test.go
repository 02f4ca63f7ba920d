package gpu_test

import (
	"errors"
	"testing"

	"github.com/yumekawa-dev/kanade/engine/renderer/gpu"
)

func smallPoolOptions() gpu.DeviceOptions {
	opts := gpu.DefaultDeviceOptions()
	opts.CommandBuffersPerPool = 2
	return opts
}

func TestCommandBufferQuotaIsEnforced(t *testing.T) {
	device, _ := newTestDevice(t, smallPoolOptions())

	if err := device.FrameBegin(); err != nil {
		t.Fatalf("FrameBegin failed: %v", err)
	}

	first, err := device.GetCurrentCommandBuffer()
	if err != nil {
		t.Fatalf("first GetCurrentCommandBuffer failed: %v", err)
	}
	second, err := device.GetCurrentCommandBuffer()
	if err != nil {
		t.Fatalf("second GetCurrentCommandBuffer failed: %v", err)
	}
	if first == second {
		t.Error("two acquisitions returned the same command buffer")
	}

	if _, err := device.GetCurrentCommandBuffer(); !errors.Is(err, gpu.ErrCommandBuffersExhausted) {
		t.Fatalf("third acquisition error = %v, want ErrCommandBuffersExhausted", err)
	}
}

func TestPoolResetRestoresQuota(t *testing.T) {
	device, backend := newTestDevice(t, smallPoolOptions())

	// Exhaust slot 0's quota, then finish the frame.
	if err := device.FrameBegin(); err != nil {
		t.Fatalf("FrameBegin failed: %v", err)
	}
	var last *gpu.CommandBuffer
	for i := 0; i < 2; i++ {
		commandBuffer, err := device.GetCurrentCommandBuffer()
		if err != nil {
			t.Fatalf("acquisition %d failed: %v", i, err)
		}
		last = commandBuffer
	}
	if err := device.QueueSubmitCommands(last); err != nil {
		t.Fatalf("QueueSubmitCommands failed: %v", err)
	}
	if err := device.SwapchainPresent(); err != nil {
		t.Fatalf("SwapchainPresent failed: %v", err)
	}

	// Slot 1 has its own untouched quota.
	runFrame(t, device)

	// Back on slot 0: FrameBegin's reset must have restored the full quota.
	if err := device.FrameBegin(); err != nil {
		t.Fatalf("FrameBegin on reused slot failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := device.GetCurrentCommandBuffer(); err != nil {
			t.Fatalf("acquisition %d on reused slot failed: %v", i, err)
		}
	}

	resets := 0
	for _, pool := range backend.pools {
		resets += pool.resets
	}
	if resets != 3 {
		t.Errorf("total pool resets = %d, want 3 (one per FrameBegin)", resets)
	}
}

func TestCommandRecordingOrder(t *testing.T) {
	device, backend := newTestDevice(t, gpu.DefaultDeviceOptions())

	if err := device.FrameBegin(); err != nil {
		t.Fatalf("FrameBegin failed: %v", err)
	}
	commandBuffer, err := device.GetCurrentCommandBuffer()
	if err != nil {
		t.Fatalf("GetCurrentCommandBuffer failed: %v", err)
	}

	if err := commandBuffer.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	device.CommandTransitionSwapchainToColorAttachment(commandBuffer)
	device.CommandBeginRenderingSwapchain(commandBuffer, [4]float32{0, 0, 0, 1})
	commandBuffer.Draw(3, 1, 0, 0)
	commandBuffer.EndRendering()
	device.CommandTransitionSwapchainToPresent(commandBuffer)
	if err := commandBuffer.End(); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	want := []string{
		"begin",
		"transition_color",
		"begin_rendering 0",
		"draw 3",
		"end_rendering",
		"transition_present",
		"end",
	}
	if len(backend.commands) != len(want) {
		t.Fatalf("recorded commands = %v, want %v", backend.commands, want)
	}
	for i := range want {
		if backend.commands[i] != want[i] {
			t.Errorf("command %d = %q, want %q", i, backend.commands[i], want[i])
		}
	}
}
