package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-blit/engine/core"
)

/** @brief The vertex and fragment shader modules of a program. */
type ProgramBundle struct {
	Vertex   vk.ShaderModule
	Fragment vk.ShaderModule
}

/** @brief One vertex attribute, mirrors VkVertexInputAttributeDescription. */
type VertexAttribute struct {
	/** @brief Matches the layout(location) of the vertex shader input. */
	Location uint32
	/** @brief Index of the vertex buffer binding the attribute is read from. */
	Binding uint32
	Format  vk.Format
	Offset  uint32
}

/** @brief One vertex buffer binding, mirrors VkVertexInputBindingDescription. */
type VertexBufferBinding struct {
	Binding   uint32
	Stride    uint32
	InputRate vk.VertexInputRate
}

/**
 * @brief Fixed-size description of the vertex input of a pipeline. Only the
 * first AttributeCount attributes and BufferCount bindings are used.
 */
type VertexArray struct {
	Attributes     [MaxVertexAttributeCount]VertexAttribute
	Buffers        [MaxVertexAttributeCount]VertexBufferBinding
	AttributeCount uint32
	BufferCount    uint32
}

/**
 * @brief Everything a graphics pipeline is created from. Comparable, so it
 * doubles as the key of the binder's pipeline cache.
 */
type PipelineDescription struct {
	Program     ProgramBundle
	Raster      RasterStateConfig
	Topology    vk.PrimitiveTopology
	VertexArray VertexArray
	RenderPass  vk.RenderPass
	Layout      vk.PipelineLayout
}

/**
 * @brief Creates a graphics pipeline with dynamic viewport and scissor.
 * @param context The Vulkan context.
 * @param desc The pipeline description.
 */
func NewGraphicsPipeline(context *VulkanContext, desc PipelineDescription) (vk.Pipeline, error) {
	raster := desc.Raster

	// Viewport and scissor are set per draw.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                raster.CullMode,
		FrontFace:               raster.FrontFace,
		DepthBiasEnable:         vkBool(raster.DepthBiasEnable),
		DepthBiasConstantFactor: raster.DepthBiasConstantFactor,
		DepthBiasClamp:          0.0,
		DepthBiasSlopeFactor:    raster.DepthBiasSlopeFactor,
	}

	samples := raster.RasterizationSamples
	if samples == 0 {
		samples = 1
	}
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCountFlagBits(samples),
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vkBool(raster.AlphaToCoverage),
		AlphaToOneEnable:      vk.False,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vkBool(raster.DepthTestEnable),
		DepthWriteEnable:      vkBool(raster.DepthWriteEnable),
		DepthCompareOp:        raster.DepthCompareOp,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vkBool(raster.StencilTestEnable),
		MaxDepthBounds:        1.0,
	}

	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, raster.ColorTargetCount)
	for i := range blendAttachments {
		blendAttachments[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:         vkBool(raster.BlendEnable),
			SrcColorBlendFactor: raster.SrcColorBlendFactor,
			DstColorBlendFactor: raster.DstColorBlendFactor,
			ColorBlendOp:        raster.ColorBlendOp,
			SrcAlphaBlendFactor: raster.SrcAlphaBlendFactor,
			DstAlphaBlendFactor: raster.DstAlphaBlendFactor,
			AlphaBlendOp:        raster.AlphaBlendOp,
			ColorWriteMask:      raster.ColorWriteMask,
		}
	}
	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Vertex input
	varray := desc.VertexArray
	bindings := make([]vk.VertexInputBindingDescription, varray.BufferCount)
	for i := range bindings {
		bindings[i] = vk.VertexInputBindingDescription{
			Binding:   varray.Buffers[i].Binding,
			Stride:    varray.Buffers[i].Stride,
			InputRate: varray.Buffers[i].InputRate,
		}
	}
	attributes := make([]vk.VertexInputAttributeDescription, varray.AttributeCount)
	for i := range attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: varray.Attributes[i].Location,
			Binding:  varray.Attributes[i].Binding,
			Format:   varray.Attributes[i].Format,
			Offset:   varray.Attributes[i].Offset,
		}
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               desc.Topology,
		PrimitiveRestartEnable: vk.False,
	}

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: desc.Program.Vertex,
			PName:  VulkanSafeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: desc.Program.Fragment,
			PName:  VulkanSafeString("main"),
		},
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
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              desc.Layout,
		RenderPass:          desc.RenderPass,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if err := vk.Error(vk.CreateGraphicsPipelines(
		context.Device.LogicalDevice,
		vk.NullPipelineCache,
		1,
		[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
		context.Allocator,
		pipelines)); err != nil {
		core.LogError("vkCreateGraphicsPipelines failed with %s", err)
		return nil, errors.Wrap(err, "vkCreateGraphicsPipelines")
	}
	if pipelines[0] == nil {
		return nil, errors.New("vulkan pipeline handle is nil")
	}

	core.LogDebug("Graphics pipeline created!")
	return pipelines[0], nil
}

func PipelineDestroy(context *VulkanContext, pipeline vk.Pipeline) {
	if pipeline != nil {
		vk.DestroyPipeline(context.Device.LogicalDevice, pipeline, context.Allocator)
	}
}
