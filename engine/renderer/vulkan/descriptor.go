package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-blit/engine/core"
)

/** @brief A uniform buffer range bound to one binding of set 0. */
type UniformBinding struct {
	Buffer vk.Buffer
	Offset vk.DeviceSize
	Range  vk.DeviceSize
}

/**
 * @brief An image view, sampler and layout bound to one combined image
 * sampler binding of set 1, or to the input attachment of set 2.
 */
type SamplerBinding struct {
	Sampler vk.Sampler
	View    vk.ImageView
	Layout  vk.ImageLayout
}

/**
 * @brief The full contents of the three descriptor sets used by a draw.
 * Zero entries are left unwritten. Comparable, so it doubles as the key of
 * the binder's descriptor cache.
 */
type DescriptorBindings struct {
	Uniforms         [UniformBindingCount]UniformBinding
	Samplers         [SamplerBindingCount]SamplerBinding
	InputAttachments [TargetBindingCount]SamplerBinding
}

func (d DescriptorBindings) references(view vk.ImageView) bool {
	for _, s := range d.Samplers {
		if s.View == view {
			return true
		}
	}
	for _, a := range d.InputAttachments {
		if a.View == view {
			return true
		}
	}
	return false
}

/**
 * @brief The descriptor set layouts (uniforms, samplers, input attachments)
 * and the pipeline layout built from them. Shared by every pipeline.
 */
type VulkanDescriptorLayouts struct {
	SetLayouts     [DescriptorSetCount]vk.DescriptorSetLayout
	PipelineLayout vk.PipelineLayout
}

func DescriptorLayoutsCreate(context *VulkanContext) (*VulkanDescriptorLayouts, error) {
	out := &VulkanDescriptorLayouts{}

	sets := []struct {
		count          uint32
		descriptorType vk.DescriptorType
		stages         vk.ShaderStageFlags
	}{
		{UniformBindingCount, vk.DescriptorTypeUniformBuffer, vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)},
		{SamplerBindingCount, vk.DescriptorTypeCombinedImageSampler, vk.ShaderStageFlags(vk.ShaderStageFragmentBit)},
		{TargetBindingCount, vk.DescriptorTypeInputAttachment, vk.ShaderStageFlags(vk.ShaderStageFragmentBit)},
	}

	for i, set := range sets {
		bindings := make([]vk.DescriptorSetLayoutBinding, set.count)
		for b := range bindings {
			bindings[b] = vk.DescriptorSetLayoutBinding{
				Binding:         uint32(b),
				DescriptorType:  set.descriptorType,
				DescriptorCount: 1,
				StageFlags:      set.stages,
			}
		}
		layoutInfo := vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: uint32(len(bindings)),
			PBindings:    bindings,
		}
		var layout vk.DescriptorSetLayout
		if err := vk.Error(vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &layoutInfo, context.Allocator, &layout)); err != nil {
			out.Destroy(context)
			core.LogError("vkCreateDescriptorSetLayout failed with %s", err)
			return nil, errors.Wrapf(err, "descriptor set layout %d", i)
		}
		out.SetLayouts[i] = layout
	}

	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: DescriptorSetCount,
		PSetLayouts:    out.SetLayouts[:],
	}
	var pipelineLayout vk.PipelineLayout
	if err := vk.Error(vk.CreatePipelineLayout(context.Device.LogicalDevice, &pipelineLayoutCreateInfo, context.Allocator, &pipelineLayout)); err != nil {
		out.Destroy(context)
		core.LogError("vkCreatePipelineLayout failed with %s", err)
		return nil, errors.Wrap(err, "vkCreatePipelineLayout")
	}
	out.PipelineLayout = pipelineLayout
	return out, nil
}

func (l *VulkanDescriptorLayouts) Destroy(context *VulkanContext) {
	if l.PipelineLayout != nil {
		vk.DestroyPipelineLayout(context.Device.LogicalDevice, l.PipelineLayout, context.Allocator)
		l.PipelineLayout = nil
	}
	for i := range l.SetLayouts {
		if l.SetLayouts[i] != nil {
			vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, l.SetLayouts[i], context.Allocator)
			l.SetLayouts[i] = nil
		}
	}
}

/**
 * @brief Creates a pool large enough for maxBundles bundles of one set of
 * each layout.
 */
func DescriptorPoolCreate(context *VulkanContext, maxBundles uint32) (vk.DescriptorPool, error) {
	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: UniformBindingCount * maxBundles},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: SamplerBindingCount * maxBundles},
		{Type: vk.DescriptorTypeInputAttachment, DescriptorCount: TargetBindingCount * maxBundles},
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
		MaxSets:       DescriptorSetCount * maxBundles,
	}
	var pool vk.DescriptorPool
	if err := vk.Error(vk.CreateDescriptorPool(context.Device.LogicalDevice, &poolInfo, context.Allocator, &pool)); err != nil {
		core.LogError("vkCreateDescriptorPool failed with %s", err)
		return nil, errors.Wrap(err, "vkCreateDescriptorPool")
	}
	return pool, nil
}

func DescriptorSetsAllocate(context *VulkanContext, pool vk.DescriptorPool, layouts *VulkanDescriptorLayouts) ([DescriptorSetCount]vk.DescriptorSet, error) {
	var sets [DescriptorSetCount]vk.DescriptorSet
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: DescriptorSetCount,
		PSetLayouts:        layouts.SetLayouts[:],
	}
	if err := vk.Error(vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocInfo, &sets[0])); err != nil {
		core.LogError("vkAllocateDescriptorSets failed with %s", err)
		return sets, errors.Wrap(err, "vkAllocateDescriptorSets")
	}
	return sets, nil
}

/** @brief Writes every non-zero entry of bindings into sets. */
func DescriptorSetsWrite(context *VulkanContext, sets [DescriptorSetCount]vk.DescriptorSet, bindings DescriptorBindings) {
	writes := make([]vk.WriteDescriptorSet, 0, UniformBindingCount+SamplerBindingCount+TargetBindingCount)

	for i, u := range bindings.Uniforms {
		if u.Buffer == nil {
			continue
		}
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          sets[0],
			DstBinding:      uint32(i),
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo:     []vk.DescriptorBufferInfo{{Buffer: u.Buffer, Offset: u.Offset, Range: u.Range}},
		})
	}
	for i, s := range bindings.Samplers {
		if s.View == nil {
			continue
		}
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          sets[1],
			DstBinding:      uint32(i),
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			PImageInfo:      []vk.DescriptorImageInfo{{Sampler: s.Sampler, ImageView: s.View, ImageLayout: s.Layout}},
		})
	}
	for i, s := range bindings.InputAttachments {
		if s.View == nil {
			continue
		}
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          sets[2],
			DstBinding:      uint32(i),
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeInputAttachment,
			PImageInfo:      []vk.DescriptorImageInfo{{ImageView: s.View, ImageLayout: s.Layout}},
		})
	}
	if len(writes) == 0 {
		return
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
}
