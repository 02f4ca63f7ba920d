package gpu

import (
	"fmt"
)

// Format names the handful of data formats the engine traffics in, for
// vertex attributes and render target attachments.
type Format uint8

const (
	FormatUndefined Format = iota
	FormatR32Sfloat
	FormatR32G32Sfloat
	FormatR32G32B32Sfloat
	FormatR32G32B32A32Sfloat
	FormatB8G8R8A8Unorm
	FormatB8G8R8A8Srgb
	FormatD32Sfloat
)

// PrimitiveTopology of a draw configuration.
type PrimitiveTopology uint8

const (
	TopologyTriangleList PrimitiveTopology = iota
	TopologyTriangleStrip
	TopologyLineList
)

// CullMode for rasterization.
type CullMode uint8

const (
	CullModeNone CullMode = iota
	CullModeBack
	CullModeFront
)

// VertexInputAttribute describes one shader input location.
type VertexInputAttribute struct {
	Location uint32
	Binding  uint32
	Format   Format
	Offset   uint32
}

// VertexInputBinding describes one vertex buffer slot.
type VertexInputBinding struct {
	Binding uint32
	Stride  uint32
}

// ColorBlendAttachment configures blending for one color attachment. One
// entry is required per color attachment format.
type ColorBlendAttachment struct {
	BlendEnable bool
}

// RasterState is the fixed-function rasterization configuration.
type RasterState struct {
	CullMode         CullMode
	FrontFaceCCW     bool
	PolygonModeLines bool
}

// DepthStencilState configures the depth test. Stencil is unused by this
// engine.
type DepthStencilState struct {
	DepthTestEnable  bool
	DepthWriteEnable bool
}

// Extent2D is a surface-aligned size in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// PipelineDescriptor fully describes an immutable draw configuration. The
// attachment formats are required for dynamic rendering: the pipeline must
// know at creation time what it will render into.
type PipelineDescriptor struct {
	ShaderModules []*ShaderModule

	VertexInputAttributes []VertexInputAttribute
	VertexInputBindings   []VertexInputBinding
	PrimitiveTopology     PrimitiveTopology
	ViewportScissorExtent Extent2D

	ColorBlendAttachments []ColorBlendAttachment
	DepthStencilState     DepthStencilState
	RasterizationState    RasterState

	ColorAttachmentFormats []Format
	DepthAttachmentFormat  Format

	DescriptorSetLayouts []*DescriptorSetLayout
}

// Pipeline is an immutable compiled draw configuration plus its derived
// layout. It holds strong references to the descriptor set layouts it was
// built with, keeping them alive for the pipeline's lifetime.
type Pipeline struct {
	raw       Handle
	rawLayout Handle

	descriptorSetLayouts []*DescriptorSetLayout
	device               *Device
}

// CreatePipeline builds an immutable draw configuration. Invalid
// combinations surface as creation failures, never deferred.
func (d *Device) CreatePipeline(desc *PipelineDescriptor) (*Pipeline, error) {
	if len(desc.ShaderModules) == 0 {
		return nil, fmt.Errorf("create pipeline: no shader modules supplied")
	}
	if len(desc.ColorBlendAttachments) != len(desc.ColorAttachmentFormats) {
		return nil, fmt.Errorf("create pipeline: %d blend attachments for %d color attachment formats",
			len(desc.ColorBlendAttachments), len(desc.ColorAttachmentFormats))
	}
	for _, format := range desc.ColorAttachmentFormats {
		if format == FormatUndefined {
			return nil, fmt.Errorf("create pipeline: undefined color attachment format")
		}
	}

	layouts := make([]Handle, len(desc.DescriptorSetLayouts))
	for i, layout := range desc.DescriptorSetLayouts {
		layouts[i] = layout.raw
	}

	raw, rawLayout, err := d.backend.CreatePipeline(desc, layouts)
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	return &Pipeline{
		raw:                  raw,
		rawLayout:            rawLayout,
		descriptorSetLayouts: desc.DescriptorSetLayouts,
		device:               d,
	}, nil
}

// Destroy releases the pipeline and its derived layout. Only valid once the
// device is idle; pipelines are created once and live for the scene's
// lifetime, so this runs at teardown.
func (p *Pipeline) Destroy() {
	if p.raw != nil {
		p.device.backend.DestroyPipeline(p.raw, p.rawLayout)
		p.raw = nil
		p.rawLayout = nil
	}
}
