package gpu

import (
	"fmt"
	"sync"
)

// MemoryLocation declares which side of the bus owns a buffer's memory.
type MemoryLocation uint8

const (
	// MemoryGPUOnly is device-local memory with no CPU mapping.
	MemoryGPUOnly MemoryLocation = iota
	// MemoryCPUToGPU is host-visible, persistently mapped upload memory.
	MemoryCPUToGPU
)

// Allocator adapts the backend's raw memory allocation behind a fixed byte
// budget. The budget is set once at construction; exceeding it is a
// capacity error, not a trigger for growth.
type Allocator struct {
	backend Backend

	mu     sync.Mutex
	budget uint64
	used   uint64
}

func NewAllocator(backend Backend, budget uint64) *Allocator {
	return &Allocator{backend: backend, budget: budget}
}

// Allocate grants a device memory region satisfying the driver's size and
// alignment requirements.
func (a *Allocator) Allocate(requirements MemoryRequirements, location MemoryLocation) (*Allocation, error) {
	a.mu.Lock()
	if a.used+requirements.Size > a.budget {
		remaining := a.budget - a.used
		a.mu.Unlock()
		return nil, fmt.Errorf("allocate %d bytes with %d remaining: %w",
			requirements.Size, remaining, ErrOutOfMemoryBudget)
	}
	a.used += requirements.Size
	a.mu.Unlock()

	allocation, err := a.backend.AllocateMemory(requirements, location)
	if err != nil {
		a.mu.Lock()
		a.used -= requirements.Size
		a.mu.Unlock()
		return nil, err
	}
	return allocation, nil
}

// Free reclaims a region and returns its bytes to the budget.
func (a *Allocator) Free(allocation *Allocation) {
	if allocation == nil {
		return
	}
	a.backend.FreeMemory(allocation)
	a.mu.Lock()
	a.used -= allocation.Size
	a.mu.Unlock()
}

// Used reports currently granted bytes.
func (a *Allocator) Used() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used
}

// Budget reports the fixed byte budget.
func (a *Allocator) Budget() uint64 {
	return a.budget
}
