package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-blit/engine/core"
	"github.com/spaghettifunk/anima-blit/engine/renderer/metadata"
)

/**
 * @brief Returns the layout a texture rests in between passes, derived from
 * its declared usage. Attachments stay in GENERAL so they can be rendered to
 * and sampled without further transitions; everything else is shader-read.
 * @param usage The texture usage flags.
 */
func GetTextureLayout(usage metadata.TextureUsage) vk.ImageLayout {
	if usage.Has(metadata.TextureUsageDepthAttachment) {
		return vk.ImageLayoutGeneral
	}
	if usage.Has(metadata.TextureUsageColorAttachment) {
		return vk.ImageLayoutGeneral
	}
	return vk.ImageLayoutShaderReadOnlyOptimal
}

/**
 * @brief Records a single image memory barrier moving a subresource range of
 * image from oldLayout to newLayout. Access masks and pipeline stages are
 * derived from the two layouts.
 * @param cmd The command recorder to append the barrier to.
 * @param image The image to transition.
 * @param oldLayout The layout the image is currently in. UNDEFINED discards contents.
 * @param newLayout The layout to transition to. Must not be UNDEFINED.
 * @param level The base mip level.
 * @param layer The base array layer.
 * @param levelCount The number of mip levels.
 * @param layerCount The number of array layers.
 * @param aspect The aspect mask of the subresource range.
 */
func TransitionImageLayout(cmd CommandRecorder, image vk.Image, oldLayout, newLayout vk.ImageLayout, level, layer, levelCount, layerCount uint32, aspect vk.ImageAspectFlags) {
	srcAccess, srcStage := sourceAccess(oldLayout)
	dstAccess, dstStage, ok := destinationAccess(newLayout)
	core.Assertf(ok, "%s: %s -> %s", core.ErrUnsupportedTransition, LayoutName(oldLayout), LayoutName(newLayout))

	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   level,
			LevelCount:     levelCount,
			BaseArrayLayer: layer,
			LayerCount:     layerCount,
		},
	}
	cmd.PipelineBarrier(srcStage, dstStage, []vk.ImageMemoryBarrier{barrier})
}

// sourceAccess returns the writes that must be made available before an
// image leaves layout, and the stage that performed them.
func sourceAccess(layout vk.ImageLayout) (vk.AccessFlags, vk.PipelineStageFlags) {
	switch layout {
	case vk.ImageLayoutUndefined, vk.ImageLayoutPresentSrc:
		return 0, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	case vk.ImageLayoutTransferSrcOptimal:
		return vk.AccessFlags(vk.AccessTransferReadBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case vk.ImageLayoutTransferDstOptimal:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case vk.ImageLayoutColorAttachmentOptimal:
		return vk.AccessFlags(vk.AccessColorAttachmentWriteBit), vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	case vk.ImageLayoutDepthStencilAttachmentOptimal:
		return vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit), vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit)
	case vk.ImageLayoutShaderReadOnlyOptimal, vk.ImageLayoutDepthStencilReadOnlyOptimal:
		return vk.AccessFlags(vk.AccessShaderReadBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	default:
		// GENERAL and anything exotic: wait for everything.
		return vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit), vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	}
}

// destinationAccess returns the accesses that must wait for the transition
// into layout, and the first stage performing them.
func destinationAccess(layout vk.ImageLayout) (vk.AccessFlags, vk.PipelineStageFlags, bool) {
	switch layout {
	case vk.ImageLayoutTransferSrcOptimal:
		return vk.AccessFlags(vk.AccessTransferReadBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit), true
	case vk.ImageLayoutTransferDstOptimal:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit), true
	case vk.ImageLayoutShaderReadOnlyOptimal, vk.ImageLayoutDepthStencilReadOnlyOptimal:
		return vk.AccessFlags(vk.AccessShaderReadBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit), true
	case vk.ImageLayoutColorAttachmentOptimal:
		return vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit), true
	case vk.ImageLayoutDepthStencilAttachmentOptimal:
		return vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit), true
	case vk.ImageLayoutGeneral:
		return vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit), vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit), true
	case vk.ImageLayoutPresentSrc:
		return 0, vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit), true
	default:
		return 0, 0, false
	}
}

var layoutNames = map[vk.ImageLayout]string{
	vk.ImageLayoutUndefined:                     "UNDEFINED",
	vk.ImageLayoutGeneral:                       "GENERAL",
	vk.ImageLayoutColorAttachmentOptimal:        "COLOR_ATTACHMENT_OPTIMAL",
	vk.ImageLayoutDepthStencilAttachmentOptimal: "DEPTH_STENCIL_ATTACHMENT_OPTIMAL",
	vk.ImageLayoutDepthStencilReadOnlyOptimal:   "DEPTH_STENCIL_READ_ONLY_OPTIMAL",
	vk.ImageLayoutShaderReadOnlyOptimal:         "SHADER_READ_ONLY_OPTIMAL",
	vk.ImageLayoutTransferSrcOptimal:            "TRANSFER_SRC_OPTIMAL",
	vk.ImageLayoutTransferDstOptimal:            "TRANSFER_DST_OPTIMAL",
	vk.ImageLayoutPreinitialized:                "PREINITIALIZED",
	vk.ImageLayoutPresentSrc:                    "PRESENT_SRC",
}

// LayoutName is used in log and assertion messages.
func LayoutName(layout vk.ImageLayout) string {
	if name, ok := layoutNames[layout]; ok {
		return name
	}
	return "UNKNOWN"
}
