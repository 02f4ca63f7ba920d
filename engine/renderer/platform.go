package renderer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/yumekawa-dev/kanade/engine/core"
	"github.com/yumekawa-dev/kanade/engine/renderer/gpu"
	"github.com/yumekawa-dev/kanade/engine/renderer/mesh"
)

// drawIndexedIndirectCommand mirrors the driver's indexed indirect draw
// record layout.
type drawIndexedIndirectCommand struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32
}

const maxPlatformDraws = 256

// platformRenderer draws chart platforms. All platform meshes are packed
// into one vertex/index buffer pair and issued through an indirect draw
// buffer, one record per platform, with the record count in a separate
// count buffer.
type platformRenderer struct {
	device *gpu.Device

	vertexBuffer   *gpu.Buffer
	indexBuffer    *gpu.Buffer
	indirectBuffer *gpu.Buffer
	countBuffer    *gpu.Buffer
	drawCount      uint32

	pipeline *gpu.Pipeline
}

func newPlatformRenderer(r *Renderer) (*platformRenderer, error) {
	p := &platformRenderer{device: r.device}

	var err error
	p.indirectBuffer, err = r.device.CreateBuffer(gpu.BufferDescriptor{
		Size:           maxPlatformDraws * uint64(len(gpu.ValueBytes(&drawIndexedIndirectCommand{}))),
		Usage:          gpu.BufferUsageIndirect,
		MemoryLocation: gpu.MemoryCPUToGPU,
	})
	if err != nil {
		return nil, fmt.Errorf("create platform indirect buffer: %w", err)
	}
	p.countBuffer, err = r.device.CreateBuffer(gpu.BufferDescriptor{
		Size:           4,
		Usage:          gpu.BufferUsageIndirect,
		MemoryLocation: gpu.MemoryCPUToGPU,
	})
	if err != nil {
		return nil, fmt.Errorf("create platform count buffer: %w", err)
	}

	vert, frag, err := r.loadShaderPair("platform")
	if err != nil {
		return nil, fmt.Errorf("load platform shaders: %w", err)
	}
	defer vert.Destroy()
	defer frag.Destroy()

	p.pipeline, err = r.device.CreatePipeline(r.basePipelineDescriptor(vert, frag, true))
	if err != nil {
		return nil, fmt.Errorf("create platform pipeline: %w", err)
	}
	return p, nil
}

// setPlatforms packs the platform meshes and rewrites the indirect draw
// records. Previous chart buffers retire through the deferred queue.
func (p *platformRenderer) setPlatforms(objects []mesh.PlatformObject) error {
	if len(objects) > maxPlatformDraws {
		core.LogWarn("chart has %d platforms, drawing the first %d", len(objects), maxPlatformDraws)
		objects = objects[:maxPlatformDraws]
	}

	var packed mesh.Plane
	commands := make([]drawIndexedIndirectCommand, 0, len(objects))
	for _, object := range objects {
		objectMesh := object.Mesh()
		startZ, _ := object.ZRange()

		// Rebase the platform onto the track at its start distance.
		positions := make([]mgl32.Vec3, len(objectMesh.Positions))
		for i, position := range objectMesh.Positions {
			positions[i] = mgl32.Vec3{position.X(), position.Y(), position.Z() + startZ}
		}

		commands = append(commands, drawIndexedIndirectCommand{
			IndexCount:    uint32(objectMesh.IndexCount()),
			InstanceCount: 1,
			FirstIndex:    uint32(packed.IndexCount()),
			VertexOffset:  int32(packed.VertexCount()),
			FirstInstance: 0,
		})
		// Indices stay object-relative: the draw record's VertexOffset
		// rebases them on the GPU.
		packed.Indices = append(packed.Indices, objectMesh.Indices...)
		packed.Positions = append(packed.Positions, positions...)
	}

	oldVertex, oldIndex := p.vertexBuffer, p.indexBuffer
	if len(packed.Positions) > 0 {
		vertexBuffer, indexBuffer, err := uploadPlane(p.device, &packed)
		if err != nil {
			return err
		}
		p.vertexBuffer, p.indexBuffer = vertexBuffer, indexBuffer
	} else {
		p.vertexBuffer, p.indexBuffer = nil, nil
	}
	if oldVertex != nil {
		oldVertex.Retire()
	}
	if oldIndex != nil {
		oldIndex.Retire()
	}

	if len(commands) > 0 {
		if err := p.indirectBuffer.Write(gpu.SliceBytes(commands)); err != nil {
			return err
		}
	}
	count := uint32(len(commands))
	if err := p.countBuffer.Write(gpu.ValueBytes(&count)); err != nil {
		return err
	}
	p.drawCount = count
	return nil
}

func (p *platformRenderer) recordDraws(commandBuffer *gpu.CommandBuffer, set *gpu.DescriptorSet) {
	if p.drawCount == 0 || p.vertexBuffer == nil {
		return
	}
	commandBuffer.BindPipeline(p.pipeline)
	commandBuffer.BindDescriptorSet(set, p.pipeline)
	commandBuffer.BindVertexBuffers(0, []*gpu.Buffer{p.vertexBuffer}, []uint64{0})
	commandBuffer.BindIndexBuffer(p.indexBuffer, 0)
	commandBuffer.DrawIndexedIndirectCount(
		p.indirectBuffer, 0,
		p.countBuffer, 0,
		p.drawCount,
		uint32(len(gpu.ValueBytes(&drawIndexedIndirectCommand{}))))
}

func (p *platformRenderer) destroy() {
	if p.pipeline != nil {
		p.pipeline.Destroy()
	}
	for _, buffer := range []*gpu.Buffer{p.vertexBuffer, p.indexBuffer, p.indirectBuffer, p.countBuffer} {
		if buffer != nil {
			buffer.Retire()
		}
	}
}
