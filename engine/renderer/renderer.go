// Package renderer draws the playfield through the gpu device facade: a
// static lane base, chart platforms and instanced hit markers, all sharing
// per-frame scene constants.
package renderer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/yumekawa-dev/kanade/engine/assets"
	"github.com/yumekawa-dev/kanade/engine/chart"
	"github.com/yumekawa-dev/kanade/engine/core"
	"github.com/yumekawa-dev/kanade/engine/renderer/gpu"
	"github.com/yumekawa-dev/kanade/engine/renderer/mesh"
)

// sceneConstants is the per-frame uniform block shared by every pipeline.
// Layout matches the std140 declaration in the shaders.
type sceneConstants struct {
	ViewProjection mgl32.Mat4
	// Runner packs the runner's track position in x and the scroll speed
	// in y; z and w pad the block to a vec4 boundary.
	Runner mgl32.Vec4
}

type Options struct {
	ScrollSpeed float32
	ClearColor  [4]float32
}

// Renderer owns the scene-level GPU state. Chart geometry is swapped at
// runtime through SetChart; the old buffers retire through the device's
// deferred destruction queue while frames referencing them drain.
type Renderer struct {
	device *gpu.Device
	assets *assets.Manager
	opts   Options

	sceneLayout    *gpu.DescriptorSetLayout
	uniformBufs    [gpu.MaxFramesInFlight]*gpu.Buffer
	sceneSets      [gpu.MaxFramesInFlight]*gpu.DescriptorSet
	viewProjection mgl32.Mat4

	lanes     *laneRenderer
	platforms *platformRenderer
	hits      *hitRenderer
}

func New(device *gpu.Device, assetManager *assets.Manager, opts Options) (*Renderer, error) {
	r := &Renderer{
		device: device,
		assets: assetManager,
		opts:   opts,
	}

	width, height := device.SwapchainExtent()
	r.viewProjection = buildViewProjection(width, height)

	var err error
	r.sceneLayout, err = device.CreateDescriptorSetLayout([]gpu.DescriptorSetLayoutBinding{
		{
			Binding: 0,
			Type:    gpu.DescriptorTypeUniformBuffer,
			Count:   1,
			Stages:  gpu.ShaderStageVertexBit | gpu.ShaderStageFragmentBit,
		},
		{
			Binding: 1,
			Type:    gpu.DescriptorTypeStorageBuffer,
			Count:   1,
			Stages:  gpu.ShaderStageVertexBit,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create scene descriptor layout: %w", err)
	}

	for i := range r.uniformBufs {
		r.uniformBufs[i], err = device.CreateBuffer(gpu.BufferDescriptor{
			Size:           uint64(len(gpu.ValueBytes(&sceneConstants{}))),
			Usage:          gpu.BufferUsageUniform,
			MemoryLocation: gpu.MemoryCPUToGPU,
		})
		if err != nil {
			return nil, fmt.Errorf("create scene uniform buffer %d: %w", i, err)
		}
	}

	if r.lanes, err = newLaneRenderer(r); err != nil {
		return nil, err
	}
	if r.platforms, err = newPlatformRenderer(r); err != nil {
		return nil, err
	}
	if r.hits, err = newHitRenderer(r); err != nil {
		return nil, err
	}

	for i := range r.sceneSets {
		r.sceneSets[i], err = device.CreateDescriptorSet(r.sceneLayout)
		if err != nil {
			return nil, fmt.Errorf("allocate scene descriptor set %d: %w", i, err)
		}
		if err = device.UpdateDescriptorSet(r.sceneSets[i], gpu.DescriptorWrites{
			Buffers: []gpu.BufferBindingWrite{
				{Binding: 0, Buffer: r.uniformBufs[i]},
				{Binding: 1, Buffer: r.hits.instanceBuffer},
			},
		}); err != nil {
			return nil, fmt.Errorf("write scene descriptor set %d: %w", i, err)
		}
	}

	core.LogInfo("scene renderer ready")
	return r, nil
}

// loadShaderPair creates the vertex and fragment modules for a named
// shader. The caller owns destruction.
func (r *Renderer) loadShaderPair(name string) (*gpu.ShaderModule, *gpu.ShaderModule, error) {
	vertCode, err := r.assets.LoadShaderBytecode(name, gpu.ShaderStageVertex)
	if err != nil {
		return nil, nil, err
	}
	fragCode, err := r.assets.LoadShaderBytecode(name, gpu.ShaderStageFragment)
	if err != nil {
		return nil, nil, err
	}
	vert, err := r.device.CreateShaderModule(vertCode, gpu.ShaderStageVertex)
	if err != nil {
		return nil, nil, err
	}
	frag, err := r.device.CreateShaderModule(fragCode, gpu.ShaderStageFragment)
	if err != nil {
		vert.Destroy()
		return nil, nil, err
	}
	return vert, frag, nil
}

// basePipelineDescriptor is the fixed state shared by all playfield
// pipelines: position-only vertices, back-face culling off (platforms are
// seen from above and below during camera sway), depth tested writes.
func (r *Renderer) basePipelineDescriptor(vert, frag *gpu.ShaderModule, blend bool) *gpu.PipelineDescriptor {
	width, height := r.device.SwapchainExtent()
	return &gpu.PipelineDescriptor{
		ShaderModules: []*gpu.ShaderModule{vert, frag},
		VertexInputBindings: []gpu.VertexInputBinding{
			{Binding: 0, Stride: 3 * 4},
		},
		VertexInputAttributes: []gpu.VertexInputAttribute{
			{Location: 0, Binding: 0, Format: gpu.FormatR32G32B32Sfloat, Offset: 0},
		},
		PrimitiveTopology:     gpu.TopologyTriangleList,
		ViewportScissorExtent: gpu.Extent2D{Width: width, Height: height},
		ColorBlendAttachments: []gpu.ColorBlendAttachment{
			{BlendEnable: blend},
		},
		DepthStencilState: gpu.DepthStencilState{
			DepthTestEnable:  true,
			DepthWriteEnable: true,
		},
		RasterizationState: gpu.RasterState{
			CullMode:     gpu.CullModeNone,
			FrontFaceCCW: true,
		},
		ColorAttachmentFormats: []gpu.Format{gpu.FormatB8G8R8A8Unorm},
		DepthAttachmentFormat:  gpu.FormatD32Sfloat,
		DescriptorSetLayouts:   []*gpu.DescriptorSetLayout{r.sceneLayout},
	}
}

// SetChart replaces the drawable chart content. Buffers still referenced
// by in-flight frames are retired, not destroyed.
func (r *Renderer) SetChart(compiled *chart.RuntimeChart) error {
	platformObjects := mesh.PlatformObjects(compiled, r.opts.ScrollSpeed)
	if err := r.platforms.setPlatforms(platformObjects); err != nil {
		return fmt.Errorf("upload platforms: %w", err)
	}

	hitObjects := mesh.HitObjects(compiled, r.opts.ScrollSpeed)
	if err := r.hits.setHitObjects(hitObjects); err != nil {
		return fmt.Errorf("upload hit objects: %w", err)
	}

	core.LogInfo("chart geometry uploaded: %d platforms, %d notes",
		len(platformObjects), len(hitObjects))
	return nil
}

// RenderFrame records and submits one frame. runnerPosition is the
// runner's distance along the track in world units.
func (r *Renderer) RenderFrame(runnerPosition float32) error {
	if err := r.device.FrameBegin(); err != nil {
		return err
	}

	slot := int(r.device.CurrentFrameIndex())
	constants := sceneConstants{
		ViewProjection: r.viewProjection.Mul4(mgl32.Translate3D(0, 0, -runnerPosition)),
		Runner:         mgl32.Vec4{runnerPosition, r.opts.ScrollSpeed, 0, 0},
	}
	if err := r.uniformBufs[slot].Write(gpu.ValueBytes(&constants)); err != nil {
		return fmt.Errorf("write scene constants: %w", err)
	}

	commandBuffer, err := r.device.GetCurrentCommandBuffer()
	if err != nil {
		return err
	}
	if err := commandBuffer.Begin(); err != nil {
		return err
	}

	r.device.CommandTransitionSwapchainToColorAttachment(commandBuffer)
	r.device.CommandBeginRenderingSwapchain(commandBuffer, r.opts.ClearColor)

	set := r.sceneSets[slot]
	r.lanes.recordDraws(commandBuffer, set)
	r.platforms.recordDraws(commandBuffer, set)
	r.hits.recordDraws(commandBuffer, set)

	commandBuffer.EndRendering()
	r.device.CommandTransitionSwapchainToPresent(commandBuffer)

	if err := commandBuffer.End(); err != nil {
		return err
	}
	if err := r.device.QueueSubmitCommands(commandBuffer); err != nil {
		return err
	}
	return r.device.SwapchainPresent()
}

// Resize recomputes the projection; the device recreates the swapchain on
// the next acquire.
func (r *Renderer) Resize(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	r.device.Resized(width, height)
	r.viewProjection = buildViewProjection(width, height)
}

// Shutdown releases scene resources. The device must be idle; the engine
// calls this before Device.Shutdown.
func (r *Renderer) Shutdown() {
	r.hits.destroy()
	r.platforms.destroy()
	r.lanes.destroy()
	for _, buffer := range r.uniformBufs {
		if buffer != nil {
			buffer.Retire()
		}
	}
	if r.sceneLayout != nil {
		r.sceneLayout.Destroy()
	}
}

func buildViewProjection(width, height uint32) mgl32.Mat4 {
	aspect := float32(width) / float32(height)
	projection := mgl32.Perspective(mgl32.DegToRad(60), aspect, 0.1, 100.0)
	view := mgl32.LookAtV(
		mgl32.Vec3{0, 2.2, -1.6},
		mgl32.Vec3{0, 0, 4.0},
		mgl32.Vec3{0, 1, 0},
	)
	return projection.Mul4(view)
}
