package gpu

import (
	"fmt"
	"unsafe"
)

// BufferUsage tags what a buffer is bound as at draw time.
type BufferUsage uint8

const (
	BufferUsageVertex BufferUsage = iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageIndirect
)

func (u BufferUsage) String() string {
	switch u {
	case BufferUsageVertex:
		return "vertex"
	case BufferUsageIndex:
		return "index"
	case BufferUsageUniform:
		return "uniform"
	case BufferUsageStorage:
		return "storage"
	case BufferUsageIndirect:
		return "indirect"
	}
	return "unknown"
}

// BufferDescriptor describes a linear GPU memory resource to create.
type BufferDescriptor struct {
	Size           uint64
	Usage          BufferUsage
	MemoryLocation MemoryLocation
}

// Buffer owns a driver handle plus its memory allocation. Destruction is
// requested with Retire and deferred until the Device proves no in-flight
// GPU work can still reference it.
type Buffer struct {
	raw        Handle
	size       uint64
	usage      BufferUsage
	allocation *Allocation
	device     *Device
	retired    bool
}

// CreateBuffer allocates a driver handle, requests memory sized and aligned
// to the handle's requirements from the allocator adapter, and binds the
// two together.
func (d *Device) CreateBuffer(desc BufferDescriptor) (*Buffer, error) {
	raw, requirements, err := d.backend.CreateBufferHandle(desc.Size, desc.Usage)
	if err != nil {
		return nil, fmt.Errorf("create %s buffer handle of %d bytes: %w", desc.Usage, desc.Size, err)
	}

	allocation, err := d.allocator.Allocate(requirements, desc.MemoryLocation)
	if err != nil {
		d.backend.DestroyBufferHandle(raw)
		return nil, fmt.Errorf("allocate memory for %s buffer: %w", desc.Usage, err)
	}

	if err := d.backend.BindBufferMemory(raw, allocation); err != nil {
		d.backend.DestroyBufferHandle(raw)
		d.allocator.Free(allocation)
		return nil, fmt.Errorf("bind %s buffer memory: %w", desc.Usage, err)
	}

	return &Buffer{
		raw:        raw,
		size:       desc.Size,
		usage:      desc.Usage,
		allocation: allocation,
		device:     d,
	}, nil
}

func (b *Buffer) Size() uint64 {
	return b.size
}

func (b *Buffer) Usage() BufferUsage {
	return b.usage
}

// Write copies data into the buffer's mapped memory at offset zero. Valid
// only for host-visible buffers.
func (b *Buffer) Write(data []byte) error {
	return b.WriteAt(data, 0)
}

// WriteAt copies data into the buffer's mapped memory at the given byte
// offset. Callers must ensure the offset respects the alignment of the
// destination type; the engine only checks bounds.
func (b *Buffer) WriteAt(data []byte, offset uint64) error {
	if b.retired {
		return fmt.Errorf("write to retired %s buffer", b.usage)
	}
	if b.allocation == nil || !b.allocation.HostVisible() {
		return fmt.Errorf("%s buffer: %w", b.usage, ErrNotHostVisible)
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("write of %d bytes at offset %d exceeds buffer size %d", len(data), offset, b.size)
	}
	copy(b.allocation.Mapped[offset:], data)
	return nil
}

// Retire schedules the buffer's driver release on the Device's
// pending-destruction queue. The buffer must not be used afterwards. Safe to
// call more than once; only the first call takes effect.
func (b *Buffer) Retire() {
	if b.retired || b.device == nil {
		return
	}
	b.retired = true
	b.device.scheduleBufferDestruction(b.raw, b.allocation)
	b.allocation = nil
}

// SliceBytes views a slice's backing array as raw bytes for buffer uploads.
// T must not contain pointers.
func SliceBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(s[0])))
}

// ValueBytes views a single value as raw bytes for buffer uploads. T must
// not contain pointers.
func ValueBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(unsafe.Sizeof(*v)))
}
