package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-blit/engine/core"
)

/**
 * @brief Device-side object creation used by the blitter's lazy cache and
 * format check. Implemented by *VulkanContext.
 */
type Device interface {
	/** @brief Reports whether a logical device exists. */
	IsValid() bool
	FormatProperties(format vk.Format) vk.FormatProperties
	CreateShaderModule(code []byte) (vk.ShaderModule, error)
	DestroyShaderModule(module vk.ShaderModule)
	/** @brief Creates a host visible buffer holding data. */
	CreateBuffer(usage vk.BufferUsageFlags, data []byte) (*VulkanBuffer, error)
	DestroyBuffer(buffer *VulkanBuffer)
	CreateSampler(filter vk.Filter) (vk.Sampler, error)
	DestroySampler(sampler vk.Sampler)
	CreateRenderPass(config VulkanRenderpassConfig) (*VulkanRenderpass, error)
	DestroyRenderPass(renderpass *VulkanRenderpass)
	CreateFramebuffer(renderpass *VulkanRenderpass, width, height uint32, views []vk.ImageView) (*VulkanFramebuffer, error)
	DestroyFramebuffer(framebuffer *VulkanFramebuffer)
}

type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice
}

var (
	_ Device          = (*VulkanContext)(nil)
	_ PipelineFactory = (*VulkanContext)(nil)
)

func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

func (vc *VulkanContext) IsValid() bool {
	return vc != nil && vc.Device != nil && vc.Device.LogicalDevice != nil
}

func (vc *VulkanContext) FormatProperties(format vk.Format) vk.FormatProperties {
	var properties vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(vc.Device.PhysicalDevice, format, &properties)
	properties.Deref()
	return properties
}

func (vc *VulkanContext) CreateShaderModule(code []byte) (vk.ShaderModule, error) {
	return ShaderModuleCreate(vc, code)
}

func (vc *VulkanContext) DestroyShaderModule(module vk.ShaderModule) {
	if module != nil {
		vk.DestroyShaderModule(vc.Device.LogicalDevice, module, vc.Allocator)
	}
}

func (vc *VulkanContext) CreateBuffer(usage vk.BufferUsageFlags, data []byte) (*VulkanBuffer, error) {
	buffer, err := BufferCreate(vc, vk.DeviceSize(len(data)), usage,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		return nil, err
	}
	if err := buffer.LoadData(vc, 0, data); err != nil {
		buffer.Destroy(vc)
		return nil, err
	}
	return buffer, nil
}

func (vc *VulkanContext) DestroyBuffer(buffer *VulkanBuffer) {
	if buffer != nil {
		buffer.Destroy(vc)
	}
}

func (vc *VulkanContext) CreateSampler(filter vk.Filter) (vk.Sampler, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               filter,
		MinFilter:               filter,
		AddressModeU:            vk.SamplerAddressModeClampToEdge,
		AddressModeV:            vk.SamplerAddressModeClampToEdge,
		AddressModeW:            vk.SamplerAddressModeClampToEdge,
		AnisotropyEnable:        vk.False,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeNearest,
	}
	var sampler vk.Sampler
	if err := vk.Error(vk.CreateSampler(vc.Device.LogicalDevice, &samplerInfo, vc.Allocator, &sampler)); err != nil {
		core.LogError("vkCreateSampler failed with %s", err)
		return nil, errors.Wrap(err, "vkCreateSampler")
	}
	return sampler, nil
}

func (vc *VulkanContext) DestroySampler(sampler vk.Sampler) {
	if sampler != nil {
		vk.DestroySampler(vc.Device.LogicalDevice, sampler, vc.Allocator)
	}
}

func (vc *VulkanContext) CreateRenderPass(config VulkanRenderpassConfig) (*VulkanRenderpass, error) {
	return RenderpassCreate(vc, config)
}

func (vc *VulkanContext) DestroyRenderPass(renderpass *VulkanRenderpass) {
	if renderpass != nil {
		renderpass.RenderpassDestroy(vc)
	}
}

func (vc *VulkanContext) CreateFramebuffer(renderpass *VulkanRenderpass, width, height uint32, views []vk.ImageView) (*VulkanFramebuffer, error) {
	return FramebufferCreate(vc, renderpass, width, height, views)
}

func (vc *VulkanContext) DestroyFramebuffer(framebuffer *VulkanFramebuffer) {
	if framebuffer != nil {
		framebuffer.Destroy(vc)
	}
}

func (vc *VulkanContext) CreateDescriptorLayouts() (*VulkanDescriptorLayouts, error) {
	return DescriptorLayoutsCreate(vc)
}

func (vc *VulkanContext) DestroyDescriptorLayouts(layouts *VulkanDescriptorLayouts) {
	if layouts != nil {
		layouts.Destroy(vc)
	}
}

func (vc *VulkanContext) CreateDescriptorPool(maxBundles uint32) (vk.DescriptorPool, error) {
	return DescriptorPoolCreate(vc, maxBundles)
}

func (vc *VulkanContext) DestroyDescriptorPool(pool vk.DescriptorPool) {
	if pool != nil {
		vk.DestroyDescriptorPool(vc.Device.LogicalDevice, pool, vc.Allocator)
	}
}

func (vc *VulkanContext) AllocateDescriptorSets(pool vk.DescriptorPool, layouts *VulkanDescriptorLayouts) ([DescriptorSetCount]vk.DescriptorSet, error) {
	return DescriptorSetsAllocate(vc, pool, layouts)
}

func (vc *VulkanContext) WriteDescriptorSets(sets [DescriptorSetCount]vk.DescriptorSet, bindings DescriptorBindings) {
	DescriptorSetsWrite(vc, sets, bindings)
}

func (vc *VulkanContext) CreateGraphicsPipeline(desc PipelineDescription) (vk.Pipeline, error) {
	return NewGraphicsPipeline(vc, desc)
}

func (vc *VulkanContext) DestroyPipeline(pipeline vk.Pipeline) {
	PipelineDestroy(vc, pipeline)
}
