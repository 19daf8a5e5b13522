package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-blit/engine/core"
)

/**
 * @brief The default render target. With a window it would wrap the
 * swapchain images; headless it owns one offscreen color image and one
 * depth image. Attachments handed out by it carry no texture.
 */
type VulkanSwapContext struct {
	/** @brief True when rendering without a presentation queue. */
	Headless bool
	/** @brief The layout the color attachment rests in between passes. */
	AttachmentLayout vk.ImageLayout
	/** @brief The layout the color image is in right now. Kept up to date by the blitter. */
	ColorLayout vk.ImageLayout
	Extent      vk.Extent2D

	Color *VulkanImage
	Depth *VulkanImage
}

var _ RenderTarget = (*VulkanSwapContext)(nil)

func SwapContextCreate(context *VulkanContext, width, height uint32, colorFormat vk.Format) (*VulkanSwapContext, error) {
	return createSwapContext(context, width, height, colorFormat)
}

func (sc *VulkanSwapContext) SwapContextDestroy(context *VulkanContext) {
	if sc.Depth != nil {
		sc.Depth.ImageDestroy(context)
		sc.Depth = nil
	}
	if sc.Color != nil {
		sc.Color.ImageDestroy(context)
		sc.Color = nil
	}
}

func createSwapContext(context *VulkanContext, width, height uint32, colorFormat vk.Format) (*VulkanSwapContext, error) {
	sc := &VulkanSwapContext{
		Headless:         true,
		AttachmentLayout: vk.ImageLayoutColorAttachmentOptimal,
		Extent:           vk.Extent2D{Width: width, Height: height},
	}

	color, err := ImageCreate(context, VulkanImageConfig{
		Width:  width,
		Height: height,
		Format: colorFormat,
		Usage: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferSrcBit |
			vk.ImageUsageTransferDstBit),
		MemoryFlags: vk.MemoryPropertyDeviceLocalBit,
		CreateView:  true,
		Aspect:      vk.ImageAspectFlags(vk.ImageAspectColorBit),
	})
	if err != nil {
		core.LogError("failed to create the surface color image: %s", err)
		return nil, err
	}
	sc.Color = color

	depth, err := ImageCreate(context, VulkanImageConfig{
		Width:  width,
		Height: height,
		Format: context.Device.DepthFormat,
		Usage: vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit | vk.ImageUsageTransferSrcBit |
			vk.ImageUsageTransferDstBit),
		MemoryFlags: vk.MemoryPropertyDeviceLocalBit,
		CreateView:  true,
		Aspect:      vk.ImageAspectFlags(vk.ImageAspectDepthBit),
	})
	if err != nil {
		core.LogError("failed to create the surface depth image: %s", err)
		sc.SwapContextDestroy(context)
		return nil, err
	}
	sc.Depth = depth

	core.LogDebug("Headless surface created: %dx%d.", width, height)
	return sc, nil
}

/**
 * @brief Moves freshly created surface images out of UNDEFINED into the
 * layouts they rest in between blits.
 */
func (sc *VulkanSwapContext) Prime(cmd CommandRecorder) {
	if sc.Color != nil {
		TransitionImageLayout(cmd, sc.Color.Handle, vk.ImageLayoutUndefined, sc.AttachmentLayout,
			0, 0, 1, 1, sc.Color.Aspect)
		sc.ColorLayout = sc.AttachmentLayout
	}
	if sc.Depth != nil {
		TransitionImageLayout(cmd, sc.Depth.Handle, vk.ImageLayoutUndefined, vk.ImageLayoutDepthStencilAttachmentOptimal,
			0, 0, 1, 1, BarrierAspect(sc.Depth.Aspect, sc.Depth.Format))
	}
}

func (sc *VulkanSwapContext) GetColor(index int) VulkanAttachment {
	if index != 0 || sc.Color == nil {
		return VulkanAttachment{}
	}
	return sc.Color.Attachment(nil)
}

func (sc *VulkanSwapContext) GetDepth() VulkanAttachment {
	if sc.Depth == nil {
		return VulkanAttachment{}
	}
	return sc.Depth.Attachment(nil)
}

func (sc *VulkanSwapContext) GetExtent() vk.Extent2D {
	return sc.Extent
}
