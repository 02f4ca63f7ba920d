package gpu_test

import (
	"errors"
	"testing"

	"github.com/yumekawa-dev/kanade/engine/renderer/gpu"
)

func uniformLayout(t *testing.T, device *gpu.Device) *gpu.DescriptorSetLayout {
	t.Helper()
	layout, err := device.CreateDescriptorSetLayout([]gpu.DescriptorSetLayoutBinding{
		{Binding: 0, Type: gpu.DescriptorTypeUniformBuffer, Count: 1, Stages: gpu.ShaderStageVertexBit},
		{Binding: 1, Type: gpu.DescriptorTypeStorageBuffer, Count: 1, Stages: gpu.ShaderStageVertexBit},
		{Binding: 2, Type: gpu.DescriptorTypeCombinedImageSampler, Count: 1, Stages: gpu.ShaderStageFragmentBit},
	})
	if err != nil {
		t.Fatalf("CreateDescriptorSetLayout failed: %v", err)
	}
	return layout
}

func uniformBuffer(t *testing.T, device *gpu.Device) *gpu.Buffer {
	t.Helper()
	buffer, err := device.CreateBuffer(gpu.BufferDescriptor{
		Size:           64,
		Usage:          gpu.BufferUsageUniform,
		MemoryLocation: gpu.MemoryCPUToGPU,
	})
	if err != nil {
		t.Fatalf("CreateBuffer failed: %v", err)
	}
	return buffer
}

func TestUpdateDescriptorSet(t *testing.T) {
	device, backend := newTestDevice(t, gpu.DefaultDeviceOptions())
	layout := uniformLayout(t, device)

	set, err := device.CreateDescriptorSet(layout)
	if err != nil {
		t.Fatalf("CreateDescriptorSet failed: %v", err)
	}

	err = device.UpdateDescriptorSet(set, gpu.DescriptorWrites{
		Buffers: []gpu.BufferBindingWrite{
			{Buffer: uniformBuffer(t, device), Binding: 0},
			{Buffer: uniformBuffer(t, device), Binding: 1},
		},
	})
	if err != nil {
		t.Fatalf("UpdateDescriptorSet failed: %v", err)
	}

	updates := 0
	for _, n := range backend.updatesPerSet {
		updates += n
	}
	if updates != 1 {
		t.Errorf("backend updates = %d, want 1 batched update", updates)
	}
}

func TestUpdateUnknownBindingRejectsWholeBatch(t *testing.T) {
	device, backend := newTestDevice(t, gpu.DefaultDeviceOptions())
	layout := uniformLayout(t, device)

	set, err := device.CreateDescriptorSet(layout)
	if err != nil {
		t.Fatalf("CreateDescriptorSet failed: %v", err)
	}

	err = device.UpdateDescriptorSet(set, gpu.DescriptorWrites{
		Buffers: []gpu.BufferBindingWrite{
			{Buffer: uniformBuffer(t, device), Binding: 0},
			{Buffer: uniformBuffer(t, device), Binding: 7},
		},
	})
	if !errors.Is(err, gpu.ErrUnknownBinding) {
		t.Fatalf("UpdateDescriptorSet error = %v, want ErrUnknownBinding", err)
	}

	// The valid first write must not have reached the backend.
	for _, n := range backend.updatesPerSet {
		if n != 0 {
			t.Errorf("backend received %d updates despite validation failure", n)
		}
	}
}

func TestUpdateNonBufferBindingFails(t *testing.T) {
	device, _ := newTestDevice(t, gpu.DefaultDeviceOptions())
	layout := uniformLayout(t, device)

	set, err := device.CreateDescriptorSet(layout)
	if err != nil {
		t.Fatalf("CreateDescriptorSet failed: %v", err)
	}

	err = device.UpdateDescriptorSet(set, gpu.DescriptorWrites{
		Buffers: []gpu.BufferBindingWrite{
			{Buffer: uniformBuffer(t, device), Binding: 2},
		},
	})
	if !errors.Is(err, gpu.ErrUnsupportedDescriptorType) {
		t.Fatalf("UpdateDescriptorSet error = %v, want ErrUnsupportedDescriptorType", err)
	}
}

func TestDescriptorPoolExhaustion(t *testing.T) {
	opts := gpu.DefaultDeviceOptions()
	opts.DescriptorMaxSets = 1
	device, _ := newTestDevice(t, opts)
	layout := uniformLayout(t, device)

	if _, err := device.CreateDescriptorSet(layout); err != nil {
		t.Fatalf("first CreateDescriptorSet failed: %v", err)
	}
	if _, err := device.CreateDescriptorSet(layout); !errors.Is(err, gpu.ErrDescriptorPoolExhausted) {
		t.Fatalf("second CreateDescriptorSet error = %v, want ErrDescriptorPoolExhausted", err)
	}
}
