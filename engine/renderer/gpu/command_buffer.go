package gpu

import (
	"fmt"
	"sync"
)

// CommandBufferManager owns one command pool per frame slot and a fixed
// number of reusable command buffers per pool. Nothing is allocated after
// construction: command buffer churn is a driver performance hazard, so
// allocation is amortized once and recording targets are recycled through
// pool resets.
type CommandBufferManager struct {
	backend Backend

	mu    sync.Mutex
	pools []Handle
	// buffers is pool-major: buffers[pool*buffersPerPool+n].
	buffers        []*CommandBuffer
	buffersPerPool uint32
	usedPerPool    []uint32
}

// NewCommandBufferManager creates poolCount independent recording pools and
// pre-allocates buffersPerPool command buffers in each.
func NewCommandBufferManager(backend Backend, poolCount, buffersPerPool uint32) (*CommandBufferManager, error) {
	m := &CommandBufferManager{
		backend:        backend,
		pools:          make([]Handle, 0, poolCount),
		buffers:        make([]*CommandBuffer, 0, poolCount*buffersPerPool),
		buffersPerPool: buffersPerPool,
		usedPerPool:    make([]uint32, poolCount),
	}

	for i := uint32(0); i < poolCount; i++ {
		pool, err := backend.CreateCommandPool()
		if err != nil {
			return nil, fmt.Errorf("create command pool %d: %w", i, err)
		}
		m.pools = append(m.pools, pool)

		raws, err := backend.AllocateCommandBuffers(pool, buffersPerPool)
		if err != nil {
			return nil, fmt.Errorf("allocate command buffers for pool %d: %w", i, err)
		}
		for _, raw := range raws {
			m.buffers = append(m.buffers, &CommandBuffer{raw: raw, backend: backend})
		}
	}

	return m, nil
}

// ResetPools invalidates all recordings in the named pools and zeroes their
// usage counters. Callers must guarantee no GPU work referencing those pools
// is still outstanding.
func (m *CommandBufferManager) ResetPools(poolIndices []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, poolIndex := range poolIndices {
		if poolIndex < 0 || poolIndex >= len(m.pools) {
			return fmt.Errorf("reset of unknown command pool %d", poolIndex)
		}
		if err := m.backend.ResetCommandPool(m.pools[poolIndex]); err != nil {
			return fmt.Errorf("reset command pool %d: %w", poolIndex, err)
		}
		m.usedPerPool[poolIndex] = 0
	}
	return nil
}

// BufferAt returns the next unused command buffer in the pool for the
// current cycle. Exhausting the per-cycle quota is a provisioning error.
func (m *CommandBufferManager) BufferAt(poolIndex int) (*CommandBuffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if poolIndex < 0 || poolIndex >= len(m.pools) {
		return nil, fmt.Errorf("acquire from unknown command pool %d", poolIndex)
	}
	used := m.usedPerPool[poolIndex]
	if used >= m.buffersPerPool {
		return nil, fmt.Errorf("pool %d: %w", poolIndex, ErrCommandBuffersExhausted)
	}
	m.usedPerPool[poolIndex]++

	return m.buffers[poolIndex*int(m.buffersPerPool)+int(used)], nil
}

// Destroy releases all pools (which frees their buffers with them). Only
// valid once the device is idle.
func (m *CommandBufferManager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pool := range m.pools {
		m.backend.DestroyCommandPool(pool)
	}
	m.pools = nil
	m.buffers = nil
}

// CommandBuffer is a reusable recording target bound to one pool. It does
// not hold the pool itself: pools are owned by the manager, and once the
// manager is destroyed no recorded buffer can be submitted anyway.
type CommandBuffer struct {
	raw     Handle
	backend Backend
}

func (c *CommandBuffer) Begin() error {
	return c.backend.BeginCommandBuffer(c.raw)
}

func (c *CommandBuffer) End() error {
	return c.backend.EndCommandBuffer(c.raw)
}

func (c *CommandBuffer) EndRendering() {
	c.backend.CmdEndRendering(c.raw)
}

func (c *CommandBuffer) BindPipeline(pipeline *Pipeline) {
	c.backend.CmdBindPipeline(c.raw, pipeline.raw)
}

// BindDescriptorSet binds a set against the pipeline's derived layout.
func (c *CommandBuffer) BindDescriptorSet(set *DescriptorSet, pipeline *Pipeline) {
	c.backend.CmdBindDescriptorSet(c.raw, set.raw, pipeline.rawLayout)
}

func (c *CommandBuffer) BindVertexBuffers(firstBinding uint32, buffers []*Buffer, offsets []uint64) {
	raws := make([]Handle, len(buffers))
	for i, b := range buffers {
		raws[i] = b.raw
	}
	c.backend.CmdBindVertexBuffers(c.raw, firstBinding, raws, offsets)
}

func (c *CommandBuffer) BindIndexBuffer(buffer *Buffer, offset uint64) {
	c.backend.CmdBindIndexBuffer(c.raw, buffer.raw, offset)
}

func (c *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	c.backend.CmdDraw(c.raw, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	c.backend.CmdDrawIndexed(c.raw, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (c *CommandBuffer) DrawIndirect(buffer *Buffer, offset uint64, drawCount, stride uint32) {
	c.backend.CmdDrawIndirect(c.raw, buffer.raw, offset, drawCount, stride)
}

func (c *CommandBuffer) DrawIndirectCount(buffer *Buffer, offset uint64, countBuffer *Buffer, countOffset uint64, maxDrawCount, stride uint32) {
	c.backend.CmdDrawIndirectCount(c.raw, buffer.raw, offset, countBuffer.raw, countOffset, maxDrawCount, stride)
}

func (c *CommandBuffer) DrawIndexedIndirect(buffer *Buffer, offset uint64, drawCount, stride uint32) {
	c.backend.CmdDrawIndexedIndirect(c.raw, buffer.raw, offset, drawCount, stride)
}

func (c *CommandBuffer) DrawIndexedIndirectCount(buffer *Buffer, offset uint64, countBuffer *Buffer, countOffset uint64, maxDrawCount, stride uint32) {
	c.backend.CmdDrawIndexedIndirectCount(c.raw, buffer.raw, offset, countBuffer.raw, countOffset, maxDrawCount, stride)
}
