package vulkan

import (
	"fmt"
	"math"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/yumekawa-dev/kanade/engine/core"
)

// timelineSemaphore realizes a monotonically increasing counter on top of
// per-submission fences. Core Vulkan 1.1 guarantees fences everywhere; each
// submission that raises the counter carries one fence, and waiting for a
// counter value waits for every fence at or below it.
type timelineSemaphore struct {
	mu sync.Mutex
	// Highest value proven complete.
	signaled uint64
	// Fences for submissions that have not been observed complete yet,
	// keyed by the value they raise the counter to.
	pending map[uint64]vk.Fence
	// Reset fences ready for reuse.
	free []vk.Fence
}

func newTimelineSemaphore() *timelineSemaphore {
	return &timelineSemaphore{
		pending: make(map[uint64]vk.Fence),
	}
}

// fenceFor hands out an unsignaled fence to attach to the submission that
// raises the counter to value.
func (ts *timelineSemaphore) fenceFor(ctx *context, value uint64) (vk.Fence, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	var fence vk.Fence
	if n := len(ts.free); n > 0 {
		fence = ts.free[n-1]
		ts.free = ts.free[:n-1]
	} else {
		fenceCreateInfo := vk.FenceCreateInfo{
			SType: vk.StructureTypeFenceCreateInfo,
		}
		if res := vk.CreateFence(ctx.Device.LogicalDevice, &fenceCreateInfo, ctx.Allocator, &fence); res != vk.Success {
			return vk.NullFence, fmt.Errorf("create submission fence: %s", resultString(res))
		}
	}

	ts.pending[value] = fence
	return fence, nil
}

// waitValue blocks until the counter reaches at least value.
func (ts *timelineSemaphore) waitValue(ctx *context, value uint64) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.signaled >= value {
		return nil
	}

	fences := make([]vk.Fence, 0, len(ts.pending))
	var highest uint64
	for v, fence := range ts.pending {
		if v <= value {
			fences = append(fences, fence)
			if v > highest {
				highest = v
			}
		}
	}
	if len(fences) == 0 || highest < value {
		return fmt.Errorf("timeline value %d was never submitted (signaled %d)", value, ts.signaled)
	}

	result := vk.WaitForFences(ctx.Device.LogicalDevice, uint32(len(fences)), fences, vk.True, math.MaxUint64)
	if result != vk.Success {
		return fmt.Errorf("wait submission fences: %s", resultString(result))
	}
	if res := vk.ResetFences(ctx.Device.LogicalDevice, uint32(len(fences)), fences); res != vk.Success {
		return fmt.Errorf("reset submission fences: %s", resultString(res))
	}

	for v := range ts.pending {
		if v <= value {
			ts.free = append(ts.free, ts.pending[v])
			delete(ts.pending, v)
		}
	}
	if highest > ts.signaled {
		ts.signaled = highest
	}
	return nil
}

// settleAll marks every pending submission complete. Only valid after a full
// device idle wait.
func (ts *timelineSemaphore) settleAll(ctx *context) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	for v, fence := range ts.pending {
		if res := vk.ResetFences(ctx.Device.LogicalDevice, 1, []vk.Fence{fence}); res != vk.Success {
			core.LogWarn("reset submission fence failed: %s", resultString(res))
		}
		ts.free = append(ts.free, fence)
		if v > ts.signaled {
			ts.signaled = v
		}
		delete(ts.pending, v)
	}
}

func (ts *timelineSemaphore) destroy(ctx *context) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	for v, fence := range ts.pending {
		vk.DestroyFence(ctx.Device.LogicalDevice, fence, ctx.Allocator)
		delete(ts.pending, v)
	}
	for _, fence := range ts.free {
		vk.DestroyFence(ctx.Device.LogicalDevice, fence, ctx.Allocator)
	}
	ts.free = nil
}
