package gpu

import "errors"

// Error taxonomy. Setup errors are returned as plain wrapped errors from the
// creation entry points and are always fatal to the caller. The sentinels
// below mark the classes that callers are expected to branch on.
var (
	// ErrSurfaceOutOfDate reports a stale presentation surface (resize,
	// minimize, lost exclusive mode). The only recoverable error class:
	// FrameBegin recreates the swapchain and retries the acquire once.
	ErrSurfaceOutOfDate = errors.New("presentation surface out of date")

	// ErrCommandBuffersExhausted signals that more command buffers were
	// requested in one frame cycle than were provisioned per pool. This is a
	// provisioning bug, never retried.
	ErrCommandBuffersExhausted = errors.New("all command buffers for the frame's pool are in use")

	// ErrDescriptorPoolExhausted signals that the global descriptor pool's
	// fixed budget is spent. A configuration error, never retried.
	ErrDescriptorPoolExhausted = errors.New("descriptor pool exhausted")

	// ErrOutOfMemoryBudget signals that the allocator cannot satisfy a
	// request within its byte budget.
	ErrOutOfMemoryBudget = errors.New("device memory budget exceeded")

	// ErrNotHostVisible is returned by Buffer.Write on buffers created
	// without CPU-visible memory.
	ErrNotHostVisible = errors.New("buffer memory is not host visible")

	// ErrUnknownBinding rejects a descriptor write whose binding index does
	// not exist in the set's layout.
	ErrUnknownBinding = errors.New("binding index not present in descriptor set layout")

	// ErrUnsupportedDescriptorType rejects a descriptor write against a
	// binding whose declared type is not a uniform or storage buffer.
	ErrUnsupportedDescriptorType = errors.New("descriptor type not supported for buffer writes")
)
