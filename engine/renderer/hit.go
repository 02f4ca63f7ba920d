package renderer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/yumekawa-dev/kanade/engine/core"
	"github.com/yumekawa-dev/kanade/engine/renderer/gpu"
	"github.com/yumekawa-dev/kanade/engine/renderer/mesh"
)

const (
	maxHitInstances = 2048
	// tapZRange is the marker's depth along the track.
	tapZRange = 0.14
)

// hitInstanceData is one marker's per-instance record in the storage
// buffer, indexed by gl_InstanceIndex in the vertex shader.
type hitInstanceData struct {
	Model mgl32.Mat4
	Color mgl32.Vec4
}

// hitRenderer draws note markers as instanced quads. The instance storage
// buffer lives for the renderer's lifetime and is rewritten in place when
// the chart changes, so the descriptor sets binding it never go stale.
type hitRenderer struct {
	vertexBuffer   *gpu.Buffer
	indexBuffer    *gpu.Buffer
	instanceBuffer *gpu.Buffer
	instanceCount  uint32

	pipeline *gpu.Pipeline
}

func newHitRenderer(r *Renderer) (*hitRenderer, error) {
	h := &hitRenderer{}

	marker := mesh.HitMarkerMesh(tapZRange)
	var err error
	h.vertexBuffer, h.indexBuffer, err = uploadPlane(r.device, &marker)
	if err != nil {
		return nil, fmt.Errorf("upload hit marker mesh: %w", err)
	}

	h.instanceBuffer, err = r.device.CreateBuffer(gpu.BufferDescriptor{
		Size:           maxHitInstances * uint64(len(gpu.ValueBytes(&hitInstanceData{}))),
		Usage:          gpu.BufferUsageStorage,
		MemoryLocation: gpu.MemoryCPUToGPU,
	})
	if err != nil {
		return nil, fmt.Errorf("create hit instance buffer: %w", err)
	}

	vert, frag, err := r.loadShaderPair("hit")
	if err != nil {
		return nil, fmt.Errorf("load hit shaders: %w", err)
	}
	defer vert.Destroy()
	defer frag.Destroy()

	h.pipeline, err = r.device.CreatePipeline(r.basePipelineDescriptor(vert, frag, true))
	if err != nil {
		return nil, fmt.Errorf("create hit pipeline: %w", err)
	}
	return h, nil
}

// setHitObjects rewrites the instance records for a new chart.
func (h *hitRenderer) setHitObjects(objects []mesh.HitObject) error {
	if len(objects) > maxHitInstances {
		core.LogWarn("chart has %d notes, drawing the first %d", len(objects), maxHitInstances)
		objects = objects[:maxHitInstances]
	}

	instances := make([]hitInstanceData, len(objects))
	for i, object := range objects {
		translate := mgl32.Translate3D(object.XOffset, 0, object.ZOffset)
		scale := mgl32.Scale3D(object.XScale, 1, 1)
		instances[i] = hitInstanceData{
			Model: translate.Mul4(scale),
			Color: mgl32.Vec4{0.95, 0.45, 0.2, 1.0},
		}
	}

	if len(instances) > 0 {
		if err := h.instanceBuffer.Write(gpu.SliceBytes(instances)); err != nil {
			return err
		}
	}
	h.instanceCount = uint32(len(instances))
	return nil
}

func (h *hitRenderer) recordDraws(commandBuffer *gpu.CommandBuffer, set *gpu.DescriptorSet) {
	if h.instanceCount == 0 {
		return
	}
	commandBuffer.BindPipeline(h.pipeline)
	commandBuffer.BindDescriptorSet(set, h.pipeline)
	commandBuffer.BindVertexBuffers(0, []*gpu.Buffer{h.vertexBuffer}, []uint64{0})
	commandBuffer.BindIndexBuffer(h.indexBuffer, 0)
	commandBuffer.DrawIndexed(6, h.instanceCount, 0, 0, 0)
}

func (h *hitRenderer) destroy() {
	if h.pipeline != nil {
		h.pipeline.Destroy()
	}
	for _, buffer := range []*gpu.Buffer{h.vertexBuffer, h.indexBuffer, h.instanceBuffer} {
		if buffer != nil {
			buffer.Retire()
		}
	}
}
