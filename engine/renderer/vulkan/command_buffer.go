package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-blit/engine/core"
)

// CommandRecorder is the subset of vkCmd* entry points the blitter records.
// *VulkanCommandBuffer forwards them to Vulkan; tests record them instead.
type CommandRecorder interface {
	PipelineBarrier(srcStage, dstStage vk.PipelineStageFlags, barriers []vk.ImageMemoryBarrier)
	BlitImage(src vk.Image, srcLayout vk.ImageLayout, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.ImageBlit, filter vk.Filter)
	ResolveImage(src vk.Image, srcLayout vk.ImageLayout, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.ImageResolve)
	BeginRenderPass(renderPass vk.RenderPass, framebuffer vk.Framebuffer, area vk.Rect2D, clearValues []vk.ClearValue)
	EndRenderPass()
	SetViewport(viewport vk.Viewport)
	SetScissor(scissor vk.Rect2D)
	BindPipeline(pipeline vk.Pipeline)
	BindDescriptorSets(layout vk.PipelineLayout, sets []vk.DescriptorSet)
	BindVertexBuffers(buffers []vk.Buffer, offsets []vk.DeviceSize)
	BindIndexBuffer(buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
}

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
}

var _ CommandRecorder = (*VulkanCommandBuffer)(nil)

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool, isPrimary bool) (*VulkanCommandBuffer, error) {
	vCommandBuffer := &VulkanCommandBuffer{
		State: COMMAND_BUFFER_STATE_NOT_ALLOCATED,
	}

	level := vk.CommandBufferLevelSecondary
	if isPrimary {
		level = vk.CommandBufferLevelPrimary
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, 1)
	if err := vk.Error(vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles)); err != nil {
		core.LogError("failed to allocate command buffer: %s", err)
		return nil, errors.Wrap(err, "vkAllocateCommandBuffers")
	}
	vCommandBuffer.Handle = handles[0]
	vCommandBuffer.State = COMMAND_BUFFER_STATE_READY

	return vCommandBuffer, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: 0,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if err := vk.Error(vk.BeginCommandBuffer(v.Handle, beginInfo)); err != nil {
		core.LogError("failed to begin command buffer: %s", err)
		return errors.Wrap(err, "vkBeginCommandBuffer")
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if err := vk.Error(vk.EndCommandBuffer(v.Handle)); err != nil {
		core.LogError("failed to end command buffer: %s", err)
		return errors.Wrap(err, "vkEndCommandBuffer")
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) Reset() {
	v.State = COMMAND_BUFFER_STATE_READY
}

/**
 * Allocates and begins recording to a primary single-use command buffer.
 */
func AllocateAndBeginSingleUse(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(context, pool, true)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true, false, false); err != nil {
		cb.Free(context, pool)
		return nil, err
	}
	return cb, nil
}

/**
 * Ends recording, submits to and waits on the given fence, then frees the command buffer.
 */
func (v *VulkanCommandBuffer) EndSingleUse(context *VulkanContext, pool vk.CommandPool, queue vk.Queue, fence *VulkanFence) error {
	defer v.Free(context, pool)

	if err := v.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}

	var handle vk.Fence
	if fence != nil {
		if err := fence.FenceReset(context); err != nil {
			return err
		}
		handle = fence.Handle
	}
	if err := vk.Error(vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, handle)); err != nil {
		core.LogError("failed to submit command buffer: %s", err)
		return errors.Wrap(err, "vkQueueSubmit")
	}
	v.UpdateSubmitted()

	if fence != nil {
		if !fence.FenceWait(context, fenceTimeoutNs) {
			return errors.Newf("fence wait failed after %dns", fenceTimeoutNs)
		}
		return nil
	}
	if err := vk.Error(vk.QueueWaitIdle(queue)); err != nil {
		core.LogError("queue failed to wait in idle mode: %s", err)
		return errors.Wrap(err, "vkQueueWaitIdle")
	}
	return nil
}

func (v *VulkanCommandBuffer) PipelineBarrier(srcStage, dstStage vk.PipelineStageFlags, barriers []vk.ImageMemoryBarrier) {
	vk.CmdPipelineBarrier(v.Handle, srcStage, dstStage, 0, 0, nil, 0, nil, uint32(len(barriers)), barriers)
}

func (v *VulkanCommandBuffer) BlitImage(src vk.Image, srcLayout vk.ImageLayout, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.ImageBlit, filter vk.Filter) {
	vk.CmdBlitImage(v.Handle, src, srcLayout, dst, dstLayout, uint32(len(regions)), regions, filter)
}

func (v *VulkanCommandBuffer) ResolveImage(src vk.Image, srcLayout vk.ImageLayout, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.ImageResolve) {
	vk.CmdResolveImage(v.Handle, src, srcLayout, dst, dstLayout, uint32(len(regions)), regions)
}

func (v *VulkanCommandBuffer) BeginRenderPass(renderPass vk.RenderPass, framebuffer vk.Framebuffer, area vk.Rect2D, clearValues []vk.ClearValue) {
	beginInfo := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      renderPass,
		Framebuffer:     framebuffer,
		RenderArea:      area,
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(v.Handle, &beginInfo, vk.SubpassContentsInline)
	v.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (v *VulkanCommandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(v.Handle)
	v.State = COMMAND_BUFFER_STATE_RECORDING
}

func (v *VulkanCommandBuffer) SetViewport(viewport vk.Viewport) {
	vk.CmdSetViewport(v.Handle, 0, 1, []vk.Viewport{viewport})
}

func (v *VulkanCommandBuffer) SetScissor(scissor vk.Rect2D) {
	vk.CmdSetScissor(v.Handle, 0, 1, []vk.Rect2D{scissor})
}

func (v *VulkanCommandBuffer) BindPipeline(pipeline vk.Pipeline) {
	vk.CmdBindPipeline(v.Handle, vk.PipelineBindPointGraphics, pipeline)
}

func (v *VulkanCommandBuffer) BindDescriptorSets(layout vk.PipelineLayout, sets []vk.DescriptorSet) {
	vk.CmdBindDescriptorSets(v.Handle, vk.PipelineBindPointGraphics, layout, 0, uint32(len(sets)), sets, 0, nil)
}

func (v *VulkanCommandBuffer) BindVertexBuffers(buffers []vk.Buffer, offsets []vk.DeviceSize) {
	vk.CmdBindVertexBuffers(v.Handle, 0, uint32(len(buffers)), buffers, offsets)
}

func (v *VulkanCommandBuffer) BindIndexBuffer(buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType) {
	vk.CmdBindIndexBuffer(v.Handle, buffer, offset, indexType)
}

func (v *VulkanCommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(v.Handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

// CopyBufferToImage and CopyImageToBuffer are used by the self-check to
// seed and read back images; the blitter never calls them.
func (v *VulkanCommandBuffer) CopyBufferToImage(buffer vk.Buffer, image vk.Image, layout vk.ImageLayout, regions []vk.BufferImageCopy) {
	vk.CmdCopyBufferToImage(v.Handle, buffer, image, layout, uint32(len(regions)), regions)
}

func (v *VulkanCommandBuffer) CopyImageToBuffer(image vk.Image, layout vk.ImageLayout, buffer vk.Buffer, regions []vk.BufferImageCopy) {
	vk.CmdCopyImageToBuffer(v.Handle, image, layout, buffer, uint32(len(regions)), regions)
}
