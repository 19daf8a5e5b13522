package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-blit/engine/core"
	"github.com/spaghettifunk/anima-blit/engine/renderer/metadata"
)

type VulkanImage struct {
	Handle  vk.Image
	Memory  vk.DeviceMemory
	View    vk.ImageView
	Format  vk.Format
	Width   uint32
	Height  uint32
	Samples uint32
	Aspect  vk.ImageAspectFlags
}

/** @brief Describes an image to be created by ImageCreate. */
type VulkanImageConfig struct {
	Width  uint32
	Height uint32
	Format vk.Format
	/** @brief Samples per texel. 0 is treated as 1. */
	Samples     uint32
	Usage       vk.ImageUsageFlags
	MemoryFlags vk.MemoryPropertyFlagBits
	/** @brief Creates a 2D view covering the single level and layer when true. */
	CreateView bool
	Aspect     vk.ImageAspectFlags
}

func ImageCreate(context *VulkanContext, config VulkanImageConfig) (*VulkanImage, error) {
	samples := config.Samples
	if samples == 0 {
		samples = 1
	}
	outImage := &VulkanImage{
		Format:  config.Format,
		Width:   config.Width,
		Height:  config.Height,
		Samples: samples,
		Aspect:  config.Aspect,
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  config.Width,
			Height: config.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        config.Format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         config.Usage,
		Samples:       vk.SampleCountFlagBits(samples),
		SharingMode:   vk.SharingModeExclusive,
	}

	var handle vk.Image
	if err := vk.Error(vk.CreateImage(context.Device.LogicalDevice, &imageCreateInfo, context.Allocator, &handle)); err != nil {
		core.LogError("failed to create image: %s", err)
		return nil, errors.Wrap(err, "vkCreateImage")
	}
	outImage.Handle = handle

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(config.MemoryFlags))
	if memoryType == -1 {
		outImage.ImageDestroy(context)
		return nil, errors.Newf("required memory type not found for image (flags 0x%x)", config.MemoryFlags)
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory)); err != nil {
		outImage.ImageDestroy(context)
		return nil, errors.Wrap(err, "vkAllocateMemory")
	}
	outImage.Memory = memory

	// TODO: configurable memory offset.
	if err := vk.Error(vk.BindImageMemory(context.Device.LogicalDevice, handle, memory, 0)); err != nil {
		outImage.ImageDestroy(context)
		return nil, errors.Wrap(err, "vkBindImageMemory")
	}

	if config.CreateView {
		if err := outImage.ImageViewCreate(context); err != nil {
			outImage.ImageDestroy(context)
			return nil, err
		}
	}
	return outImage, nil
}

func (image *VulkanImage) ImageViewCreate(context *VulkanContext) error {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   image.Format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     image.Aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(context.Device.LogicalDevice, &viewCreateInfo, context.Allocator, &view)); err != nil {
		core.LogError("failed to create image view: %s", err)
		return errors.Wrap(err, "vkCreateImageView")
	}
	image.View = view
	return nil
}

func (image *VulkanImage) ImageDestroy(context *VulkanContext) {
	if image.View != nil {
		vk.DestroyImageView(context.Device.LogicalDevice, image.View, context.Allocator)
		image.View = nil
	}
	if image.Memory != nil {
		vk.FreeMemory(context.Device.LogicalDevice, image.Memory, context.Allocator)
		image.Memory = nil
	}
	if image.Handle != nil {
		vk.DestroyImage(context.Device.LogicalDevice, image.Handle, context.Allocator)
		image.Handle = nil
	}
}

// Attachment snapshots the image as level 0, layer 0 of a render target.
func (image *VulkanImage) Attachment(texture *metadata.Texture) VulkanAttachment {
	return VulkanAttachment{
		Image:   image.Handle,
		View:    image.View,
		Format:  image.Format,
		Samples: image.Samples,
		Texture: texture,
	}
}
