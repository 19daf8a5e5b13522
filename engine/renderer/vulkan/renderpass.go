package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-blit/engine/core"
)

/**
 * @brief Describes a single-subpass render pass with at most one color and
 * one depth attachment. Attachments enter and leave the pass in the given
 * layouts; a FormatUndefined format omits the attachment.
 */
type VulkanRenderpassConfig struct {
	ColorFormat vk.Format
	ColorLayout vk.ImageLayout
	DepthFormat vk.Format
	DepthLayout vk.ImageLayout
	Samples     uint32
	LoadOp      vk.AttachmentLoadOp
}

type VulkanRenderpass struct {
	Handle vk.RenderPass
	Config VulkanRenderpassConfig
	// Clear values, used when LoadOp is CLEAR.
	R, G, B, A float32
	Depth      float32
	Stencil    uint32
}

func RenderpassCreate(context *VulkanContext, config VulkanRenderpassConfig) (*VulkanRenderpass, error) {
	outRenderpass := &VulkanRenderpass{
		Config: config,
		A:      1.0,
		Depth:  1.0,
	}
	samples := config.Samples
	if samples == 0 {
		samples = 1
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint: vk.PipelineBindPointGraphics,
	}
	attachmentDescriptions := []vk.AttachmentDescription{}
	var stageMask vk.PipelineStageFlags
	var accessMask vk.AccessFlags

	if config.ColorFormat != vk.FormatUndefined {
		attachmentDescriptions = append(attachmentDescriptions, vk.AttachmentDescription{
			Format:         config.ColorFormat,
			Samples:        vk.SampleCountFlagBits(samples),
			LoadOp:         config.LoadOp,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  config.ColorLayout,
			FinalLayout:    config.ColorLayout,
		})
		subpass.ColorAttachmentCount = 1
		subpass.PColorAttachments = []vk.AttachmentReference{{
			Attachment: uint32(len(attachmentDescriptions) - 1),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}}
		stageMask |= vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
		accessMask |= vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit)
	}

	if config.DepthFormat != vk.FormatUndefined {
		attachmentDescriptions = append(attachmentDescriptions, vk.AttachmentDescription{
			Format:         config.DepthFormat,
			Samples:        vk.SampleCountFlagBits(samples),
			LoadOp:         config.LoadOp,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  config.DepthLayout,
			FinalLayout:    config.DepthLayout,
		})
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: uint32(len(attachmentDescriptions) - 1),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		stageMask |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)
		accessMask |= vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit)
	}

	if len(attachmentDescriptions) == 0 {
		return nil, errors.New("render pass needs a color or a depth attachment")
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  stageMask,
		SrcAccessMask: 0,
		DstStageMask:  stageMask,
		DstAccessMask: accessMask,
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var pRenderPass vk.RenderPass
	if err := vk.Error(vk.CreateRenderPass(context.Device.LogicalDevice, &renderpassCreateInfo, context.Allocator, &pRenderPass)); err != nil {
		core.LogError("failed to create render pass: %s", err)
		return nil, errors.Wrap(err, "vkCreateRenderPass")
	}
	outRenderpass.Handle = pRenderPass
	return outRenderpass, nil
}

func (vr *VulkanRenderpass) RenderpassDestroy(context *VulkanContext) {
	if vr.Handle != nil {
		vk.DestroyRenderPass(context.Device.LogicalDevice, vr.Handle, context.Allocator)
		vr.Handle = nil
	}
}

func (vr *VulkanRenderpass) ClearValues() []vk.ClearValue {
	clearValues := []vk.ClearValue{}
	if vr.Config.ColorFormat != vk.FormatUndefined {
		var color vk.ClearValue
		color.SetColor([]float32{vr.R, vr.G, vr.B, vr.A})
		clearValues = append(clearValues, color)
	}
	if vr.Config.DepthFormat != vk.FormatUndefined {
		var depth vk.ClearValue
		depth.SetDepthStencil(vr.Depth, vr.Stencil)
		clearValues = append(clearValues, depth)
	}
	return clearValues
}

func (vr *VulkanRenderpass) RenderpassBegin(cmd CommandRecorder, framebuffer vk.Framebuffer, area vk.Rect2D) {
	cmd.BeginRenderPass(vr.Handle, framebuffer, area, vr.ClearValues())
}

func (vr *VulkanRenderpass) RenderpassEnd(cmd CommandRecorder) {
	cmd.EndRenderPass()
}
