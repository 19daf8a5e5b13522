package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-blit/engine/renderer/metadata"
)

/**
 * @brief A snapshot of one subresource of a render target: the image, its
 * view and format, the mip level and array layer addressed, and the sample
 * count. Texture is nil for the default (surface) render target.
 */
type VulkanAttachment struct {
	Image   vk.Image
	View    vk.ImageView
	Format  vk.Format
	Level   uint32
	Layer   uint32
	Samples uint32
	Texture *metadata.Texture
}

// IsDefault reports whether the attachment belongs to the default render
// target, which has no texture and therefore no declared usage.
func (a VulkanAttachment) IsDefault() bool {
	return a.Texture == nil
}

// IsMultisampled is true for attachments with more than one sample per texel.
func (a VulkanAttachment) IsMultisampled() bool {
	return a.Samples > 1
}

/** @brief The source or destination of a blit. */
type RenderTarget interface {
	/** @brief Returns the color attachment at index. */
	GetColor(index int) VulkanAttachment
	/** @brief Returns the depth attachment. */
	GetDepth() VulkanAttachment
	/** @brief Returns the size of the target. */
	GetExtent() vk.Extent2D
}

/**
 * @brief A render target assembled from offscreen images. The caller keeps
 * ownership of the images; the target only hands out snapshots.
 */
type VulkanRenderTarget struct {
	Color  []VulkanAttachment
	Depth  VulkanAttachment
	Extent vk.Extent2D
}

var _ RenderTarget = (*VulkanRenderTarget)(nil)

func NewVulkanRenderTarget(width, height uint32, depth VulkanAttachment, color ...VulkanAttachment) *VulkanRenderTarget {
	return &VulkanRenderTarget{
		Color:  color,
		Depth:  depth,
		Extent: vk.Extent2D{Width: width, Height: height},
	}
}

// GetColor returns the zero attachment when index is out of range.
func (rt *VulkanRenderTarget) GetColor(index int) VulkanAttachment {
	if index < 0 || index >= len(rt.Color) {
		return VulkanAttachment{}
	}
	return rt.Color[index]
}

func (rt *VulkanRenderTarget) GetDepth() VulkanAttachment {
	return rt.Depth
}

func (rt *VulkanRenderTarget) GetExtent() vk.Extent2D {
	return rt.Extent
}
