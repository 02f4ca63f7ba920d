package gpu

import (
	"fmt"
)

// DescriptorType declares what a binding holds.
type DescriptorType uint8

const (
	DescriptorTypeUniformBuffer DescriptorType = iota
	DescriptorTypeStorageBuffer
	DescriptorTypeCombinedImageSampler
)

func (t DescriptorType) String() string {
	switch t {
	case DescriptorTypeUniformBuffer:
		return "uniform buffer"
	case DescriptorTypeStorageBuffer:
		return "storage buffer"
	case DescriptorTypeCombinedImageSampler:
		return "combined image sampler"
	}
	return "unknown"
}

// ShaderStageFlags select which stages see a binding.
type ShaderStageFlags uint8

const (
	ShaderStageVertexBit ShaderStageFlags = 1 << iota
	ShaderStageFragmentBit
)

// DescriptorSetLayoutBinding describes one slot of a layout.
type DescriptorSetLayoutBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStageFlags
}

// DescriptorSetLayout is immutable after creation; sets allocated from it
// validate their writes against its binding map.
type DescriptorSetLayout struct {
	raw         Handle
	bindings    []DescriptorSetLayoutBinding
	bindingsMap map[uint32]DescriptorSetLayoutBinding
	device      *Device
}

func (d *Device) CreateDescriptorSetLayout(bindings []DescriptorSetLayoutBinding) (*DescriptorSetLayout, error) {
	raw, err := d.backend.CreateDescriptorSetLayout(bindings)
	if err != nil {
		return nil, fmt.Errorf("create descriptor set layout: %w", err)
	}

	bindingsMap := make(map[uint32]DescriptorSetLayoutBinding, len(bindings))
	for _, binding := range bindings {
		bindingsMap[binding.Binding] = binding
	}

	return &DescriptorSetLayout{
		raw:         raw,
		bindings:    append([]DescriptorSetLayoutBinding(nil), bindings...),
		bindingsMap: bindingsMap,
		device:      d,
	}, nil
}

// Destroy releases the layout handle. Only valid once no pipeline or set
// still references the layout and the device is idle.
func (l *DescriptorSetLayout) Destroy() {
	if l.raw != nil {
		l.device.backend.DestroyDescriptorSetLayout(l.raw)
		l.raw = nil
	}
}

// DescriptorSet binds a fixed collection of buffer resources to shader
// stages. Allocated from the Device's global pool, whose capacity is a
// startup budget; exhaustion is a configuration error and is not retried.
//
// The set does not hold the pool: the pool is tied to the Device and once
// the Device is gone the set is unusable anyway.
type DescriptorSet struct {
	raw    Handle
	layout *DescriptorSetLayout
	device *Device
}

func (d *Device) CreateDescriptorSet(layout *DescriptorSetLayout) (*DescriptorSet, error) {
	raw, err := d.backend.AllocateDescriptorSet(d.globalDescriptorPool, layout.raw)
	if err != nil {
		return nil, fmt.Errorf("allocate descriptor set: %w", err)
	}
	return &DescriptorSet{
		raw:    raw,
		layout: layout,
		device: d,
	}, nil
}

// BufferBindingWrite points one binding index of a set at a buffer.
type BufferBindingWrite struct {
	Buffer  *Buffer
	Binding uint32
}

// DescriptorWrites is the batch handed to UpdateDescriptorSet.
type DescriptorWrites struct {
	Buffers []BufferBindingWrite
}

// UpdateDescriptorSet rewrites the set's buffer bindings. Every write is
// validated against the set's layout before any driver update is issued: an
// unknown binding index or a non-buffer binding type fails the whole call
// and leaves the set's previous bindings untouched.
func (d *Device) UpdateDescriptorSet(set *DescriptorSet, writes DescriptorWrites) error {
	backendWrites := make([]DescriptorWrite, 0, len(writes.Buffers))

	for _, write := range writes.Buffers {
		binding, ok := set.layout.bindingsMap[write.Binding]
		if !ok {
			return fmt.Errorf("descriptor write at binding %d: %w", write.Binding, ErrUnknownBinding)
		}
		switch binding.Type {
		case DescriptorTypeUniformBuffer, DescriptorTypeStorageBuffer:
			backendWrites = append(backendWrites, DescriptorWrite{
				Binding: binding.Binding,
				Type:    binding.Type,
				Buffer:  write.Buffer.raw,
				Range:   write.Buffer.size,
			})
		default:
			return fmt.Errorf("descriptor write at binding %d is declared %s: %w",
				write.Binding, binding.Type, ErrUnsupportedDescriptorType)
		}
	}

	if err := d.backend.UpdateDescriptorSet(set.raw, backendWrites); err != nil {
		return fmt.Errorf("update descriptor set: %w", err)
	}
	return nil
}
