package renderer

import (
	"fmt"

	"github.com/yumekawa-dev/kanade/engine/renderer/gpu"
	"github.com/yumekawa-dev/kanade/engine/renderer/mesh"
)

const (
	laneZNear          = -1.0
	laneZFar           = 60.0
	laneSeparatorWidth = 0.006
)

// laneRenderer draws the static track base and its separators. The
// geometry never changes after construction.
type laneRenderer struct {
	vertexBuffer *gpu.Buffer
	indexBuffer  *gpu.Buffer
	indexCount   uint32
	pipeline     *gpu.Pipeline
}

func newLaneRenderer(r *Renderer) (*laneRenderer, error) {
	geometry := mesh.Lanes(laneZNear, laneZFar, laneSeparatorWidth)

	// Base and separators share one pipeline; merge them into one mesh.
	combined := geometry.Base
	combined.Append(geometry.Separators)

	l := &laneRenderer{indexCount: uint32(combined.IndexCount())}

	var err error
	l.vertexBuffer, l.indexBuffer, err = uploadPlane(r.device, &combined)
	if err != nil {
		return nil, fmt.Errorf("upload lane geometry: %w", err)
	}

	vert, frag, err := r.loadShaderPair("lane")
	if err != nil {
		return nil, fmt.Errorf("load lane shaders: %w", err)
	}
	defer vert.Destroy()
	defer frag.Destroy()

	l.pipeline, err = r.device.CreatePipeline(r.basePipelineDescriptor(vert, frag, false))
	if err != nil {
		return nil, fmt.Errorf("create lane pipeline: %w", err)
	}
	return l, nil
}

func (l *laneRenderer) recordDraws(commandBuffer *gpu.CommandBuffer, set *gpu.DescriptorSet) {
	commandBuffer.BindPipeline(l.pipeline)
	commandBuffer.BindDescriptorSet(set, l.pipeline)
	commandBuffer.BindVertexBuffers(0, []*gpu.Buffer{l.vertexBuffer}, []uint64{0})
	commandBuffer.BindIndexBuffer(l.indexBuffer, 0)
	commandBuffer.DrawIndexed(l.indexCount, 1, 0, 0, 0)
}

func (l *laneRenderer) destroy() {
	if l.pipeline != nil {
		l.pipeline.Destroy()
	}
	if l.vertexBuffer != nil {
		l.vertexBuffer.Retire()
	}
	if l.indexBuffer != nil {
		l.indexBuffer.Retire()
	}
}

// uploadPlane creates host-visible vertex and index buffers holding the
// plane's data.
func uploadPlane(device *gpu.Device, plane *mesh.Plane) (*gpu.Buffer, *gpu.Buffer, error) {
	vertexData := gpu.SliceBytes(plane.Positions)
	vertexBuffer, err := device.CreateBuffer(gpu.BufferDescriptor{
		Size:           uint64(len(vertexData)),
		Usage:          gpu.BufferUsageVertex,
		MemoryLocation: gpu.MemoryCPUToGPU,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := vertexBuffer.Write(vertexData); err != nil {
		vertexBuffer.Retire()
		return nil, nil, err
	}

	indexData := gpu.SliceBytes(plane.Indices)
	indexBuffer, err := device.CreateBuffer(gpu.BufferDescriptor{
		Size:           uint64(len(indexData)),
		Usage:          gpu.BufferUsageIndex,
		MemoryLocation: gpu.MemoryCPUToGPU,
	})
	if err != nil {
		vertexBuffer.Retire()
		return nil, nil, err
	}
	if err := indexBuffer.Write(indexData); err != nil {
		vertexBuffer.Retire()
		indexBuffer.Retire()
		return nil, nil, err
	}
	return vertexBuffer, indexBuffer, nil
}
