package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/yumekawa-dev/kanade/engine/renderer/gpu"
)

func vulkanFormat(format gpu.Format) vk.Format {
	switch format {
	case gpu.FormatR32Sfloat:
		return vk.FormatR32Sfloat
	case gpu.FormatR32G32Sfloat:
		return vk.FormatR32g32Sfloat
	case gpu.FormatR32G32B32Sfloat:
		return vk.FormatR32g32b32Sfloat
	case gpu.FormatR32G32B32A32Sfloat:
		return vk.FormatR32g32b32a32Sfloat
	case gpu.FormatB8G8R8A8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case gpu.FormatB8G8R8A8Srgb:
		return vk.FormatB8g8r8a8Srgb
	case gpu.FormatD32Sfloat:
		return vk.FormatD32Sfloat
	}
	return vk.FormatUndefined
}

func vulkanTopology(topology gpu.PrimitiveTopology) vk.PrimitiveTopology {
	switch topology {
	case gpu.TopologyTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case gpu.TopologyLineList:
		return vk.PrimitiveTopologyLineList
	}
	return vk.PrimitiveTopologyTriangleList
}

func vulkanCullMode(mode gpu.CullMode) vk.CullModeFlags {
	switch mode {
	case gpu.CullModeBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	case gpu.CullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	}
	return vk.CullModeFlags(vk.CullModeNone)
}

func (b *Backend) CreatePipeline(desc *gpu.PipelineDescriptor, layouts []gpu.Handle) (gpu.Handle, gpu.Handle, error) {
	viewport := vk.Viewport{
		X:        0.0,
		Y:        float32(desc.ViewportScissorExtent.Height),
		Width:    float32(desc.ViewportScissorExtent.Width),
		Height:   -float32(desc.ViewportScissorExtent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{
			Width:  desc.ViewportScissorExtent.Width,
			Height: desc.ViewportScissorExtent.Height,
		},
	}
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports:    []vk.Viewport{viewport},
		ScissorCount:  1,
		PScissors:     []vk.Rect2D{scissor},
	}

	polygonMode := vk.PolygonModeFill
	if desc.RasterizationState.PolygonModeLines {
		polygonMode = vk.PolygonModeLine
	}
	frontFace := vk.FrontFaceClockwise
	if desc.RasterizationState.FrontFaceCCW {
		frontFace = vk.FrontFaceCounterClockwise
	}
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             polygonMode,
		LineWidth:               1.0,
		CullMode:                vulkanCullMode(desc.RasterizationState.CullMode),
		FrontFace:               frontFace,
		DepthBiasEnable:         vk.False,
	}

	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	depthTest := vk.False
	if desc.DepthStencilState.DepthTestEnable {
		depthTest = vk.True
	}
	depthWrite := vk.False
	if desc.DepthStencilState.DepthWriteEnable {
		depthWrite = vk.True
	}
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       depthTest,
		DepthWriteEnable:      depthWrite,
		DepthCompareOp:        vk.CompareOpLess,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
	}

	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, len(desc.ColorBlendAttachments))
	for i, attachment := range desc.ColorBlendAttachments {
		state := vk.PipelineColorBlendAttachmentState{
			BlendEnable: vk.False,
			ColorWriteMask: vk.ColorComponentFlags(
				vk.ColorComponentRBit | vk.ColorComponentGBit |
					vk.ColorComponentBBit | vk.ColorComponentABit),
		}
		if attachment.BlendEnable {
			state.BlendEnable = vk.True
			state.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
			state.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
			state.ColorBlendOp = vk.BlendOpAdd
			state.SrcAlphaBlendFactor = vk.BlendFactorSrcAlpha
			state.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
			state.AlphaBlendOp = vk.BlendOpAdd
		}
		blendAttachments[i] = state
	}
	colorBlendState := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	// Viewport and scissor stay dynamic so pipelines survive swapchain
	// recreation without a rebuild.
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	bindingDescriptions := make([]vk.VertexInputBindingDescription, len(desc.VertexInputBindings))
	for i, binding := range desc.VertexInputBindings {
		bindingDescriptions[i] = vk.VertexInputBindingDescription{
			Binding:   binding.Binding,
			Stride:    binding.Stride,
			InputRate: vk.VertexInputRateVertex,
		}
	}
	attributeDescriptions := make([]vk.VertexInputAttributeDescription, len(desc.VertexInputAttributes))
	for i, attribute := range desc.VertexInputAttributes {
		attributeDescriptions[i] = vk.VertexInputAttributeDescription{
			Location: attribute.Location,
			Binding:  attribute.Binding,
			Format:   vulkanFormat(attribute.Format),
			Offset:   attribute.Offset,
		}
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindingDescriptions)),
		PVertexBindingDescriptions:      bindingDescriptions,
		VertexAttributeDescriptionCount: uint32(len(attributeDescriptions)),
		PVertexAttributeDescriptions:    attributeDescriptions,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vulkanTopology(desc.PrimitiveTopology),
		PrimitiveRestartEnable: vk.False,
	}

	setLayouts := make([]vk.DescriptorSetLayout, len(layouts))
	for i, layout := range layouts {
		setLayouts[i] = layout.(vk.DescriptorSetLayout)
	}
	layoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}
	var pipelineLayout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(b.ctx.Device.LogicalDevice, &layoutCreateInfo, b.ctx.Allocator, &pipelineLayout); res != vk.Success {
		return nil, nil, fmt.Errorf("create pipeline layout: %s", resultString(res))
	}

	stages := make([]vk.PipelineShaderStageCreateInfo, len(desc.ShaderModules))
	for i, module := range desc.ShaderModules {
		stage := vk.ShaderStageVertexBit
		if module.Stage() == gpu.ShaderStageFragment {
			stage = vk.ShaderStageFragmentBit
		}
		stages[i] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  stage,
			Module: module.Handle().(vk.ShaderModule),
			PName:  "main\x00",
		}
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendState,
		PDynamicState:       &dynamicState,
		Layout:              pipelineLayout,
		RenderPass:          b.ctx.Swapchain.RenderPass,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	res := vk.CreateGraphicsPipelines(
		b.ctx.Device.LogicalDevice,
		vk.NullPipelineCache,
		1,
		[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
		b.ctx.Allocator,
		pipelines)
	if res != vk.Success {
		vk.DestroyPipelineLayout(b.ctx.Device.LogicalDevice, pipelineLayout, b.ctx.Allocator)
		return nil, nil, fmt.Errorf("create graphics pipeline: %s", resultString(res))
	}

	return pipelines[0], pipelineLayout, nil
}

func (b *Backend) DestroyPipeline(pipeline, pipelineLayout gpu.Handle) {
	if pipeline != nil {
		vk.DestroyPipeline(b.ctx.Device.LogicalDevice, pipeline.(vk.Pipeline), b.ctx.Allocator)
	}
	if pipelineLayout != nil {
		vk.DestroyPipelineLayout(b.ctx.Device.LogicalDevice, pipelineLayout.(vk.PipelineLayout), b.ctx.Allocator)
	}
}
