package vulkan

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/yumekawa-dev/kanade/engine/core"
	"github.com/yumekawa-dev/kanade/engine/renderer/gpu"
)

func (b *Backend) BeginCommandBuffer(commandBuffer gpu.Handle) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(commandBuffer.(vk.CommandBuffer), &beginInfo); res != vk.Success {
		return fmt.Errorf("begin command buffer: %s", resultString(res))
	}
	return nil
}

func (b *Backend) EndCommandBuffer(commandBuffer gpu.Handle) error {
	if res := vk.EndCommandBuffer(commandBuffer.(vk.CommandBuffer)); res != vk.Success {
		return fmt.Errorf("end command buffer: %s", resultString(res))
	}
	return nil
}

func (b *Backend) CmdBeginRenderingSwapchain(commandBuffer gpu.Handle, imageIndex uint32, clearColor [4]float32) {
	buffer := commandBuffer.(vk.CommandBuffer)
	sc := b.ctx.Swapchain

	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor(clearColor[:])
	clearValues[1].SetDepthStencil(1.0, 0)

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  sc.RenderPass,
		Framebuffer: sc.Framebuffers[imageIndex],
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: sc.Extent,
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(buffer, &beginInfo, vk.SubpassContentsInline)

	viewport := vk.Viewport{
		X:        0.0,
		Y:        float32(sc.Extent.Height),
		Width:    float32(sc.Extent.Width),
		Height:   -float32(sc.Extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	vk.CmdSetViewport(buffer, 0, 1, []vk.Viewport{viewport})

	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: sc.Extent,
	}
	vk.CmdSetScissor(buffer, 0, 1, []vk.Rect2D{scissor})
}

func (b *Backend) CmdEndRendering(commandBuffer gpu.Handle) {
	vk.CmdEndRenderPass(commandBuffer.(vk.CommandBuffer))
}

// The render pass declares the attachment as Undefined on load and
// PresentSrc on store, so the driver performs both layout moves.
func (b *Backend) CmdTransitionSwapchainToColorAttachment(commandBuffer gpu.Handle, imageIndex uint32) {
}

func (b *Backend) CmdTransitionSwapchainToPresent(commandBuffer gpu.Handle, imageIndex uint32) {
}

func (b *Backend) CmdBindPipeline(commandBuffer, pipeline gpu.Handle) {
	vk.CmdBindPipeline(commandBuffer.(vk.CommandBuffer), vk.PipelineBindPointGraphics, pipeline.(vk.Pipeline))
}

func (b *Backend) CmdBindDescriptorSet(commandBuffer, set, pipelineLayout gpu.Handle) {
	vk.CmdBindDescriptorSets(
		commandBuffer.(vk.CommandBuffer),
		vk.PipelineBindPointGraphics,
		pipelineLayout.(vk.PipelineLayout),
		0, 1,
		[]vk.DescriptorSet{set.(vk.DescriptorSet)},
		0, nil)
}

func (b *Backend) CmdBindVertexBuffers(commandBuffer gpu.Handle, firstBinding uint32, buffers []gpu.Handle, offsets []uint64) {
	vulkanBuffers := make([]vk.Buffer, len(buffers))
	for i, buffer := range buffers {
		vulkanBuffers[i] = buffer.(vk.Buffer)
	}
	vulkanOffsets := make([]vk.DeviceSize, len(offsets))
	for i, offset := range offsets {
		vulkanOffsets[i] = vk.DeviceSize(offset)
	}
	vk.CmdBindVertexBuffers(commandBuffer.(vk.CommandBuffer), firstBinding, uint32(len(vulkanBuffers)), vulkanBuffers, vulkanOffsets)
}

func (b *Backend) CmdBindIndexBuffer(commandBuffer, buffer gpu.Handle, offset uint64) {
	vk.CmdBindIndexBuffer(commandBuffer.(vk.CommandBuffer), buffer.(vk.Buffer), vk.DeviceSize(offset), vk.IndexTypeUint32)
}

func (b *Backend) CmdDraw(commandBuffer gpu.Handle, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(commandBuffer.(vk.CommandBuffer), vertexCount, instanceCount, firstVertex, firstInstance)
}

func (b *Backend) CmdDrawIndexed(commandBuffer gpu.Handle, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(commandBuffer.(vk.CommandBuffer), indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (b *Backend) CmdDrawIndirect(commandBuffer, buffer gpu.Handle, offset uint64, drawCount, stride uint32) {
	vk.CmdDrawIndirect(commandBuffer.(vk.CommandBuffer), buffer.(vk.Buffer), vk.DeviceSize(offset), drawCount, stride)
}

var indirectCountFallback sync.Once

func warnIndirectCountFallback() {
	indirectCountFallback.Do(func() {
		core.LogWarn("draw-indirect-count is unavailable on this driver path, falling back to maxDrawCount")
	})
}

// The count-buffer variants need VK_KHR_draw_indirect_count, which the
// core 1.1 dispatch here does not expose. Recording maxDrawCount draws is
// correct as long as the producer zero-fills unused slots.
func (b *Backend) CmdDrawIndirectCount(commandBuffer, buffer gpu.Handle, offset uint64, countBuffer gpu.Handle, countOffset uint64, maxDrawCount, stride uint32) {
	warnIndirectCountFallback()
	vk.CmdDrawIndirect(commandBuffer.(vk.CommandBuffer), buffer.(vk.Buffer), vk.DeviceSize(offset), maxDrawCount, stride)
}

func (b *Backend) CmdDrawIndexedIndirect(commandBuffer, buffer gpu.Handle, offset uint64, drawCount, stride uint32) {
	vk.CmdDrawIndexedIndirect(commandBuffer.(vk.CommandBuffer), buffer.(vk.Buffer), vk.DeviceSize(offset), drawCount, stride)
}

func (b *Backend) CmdDrawIndexedIndirectCount(commandBuffer, buffer gpu.Handle, offset uint64, countBuffer gpu.Handle, countOffset uint64, maxDrawCount, stride uint32) {
	warnIndirectCountFallback()
	vk.CmdDrawIndexedIndirect(commandBuffer.(vk.CommandBuffer), buffer.(vk.Buffer), vk.DeviceSize(offset), maxDrawCount, stride)
}
