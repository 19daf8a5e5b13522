package vulkan

import vk "github.com/goki/vulkan"

/**
 * @brief The subset of fixed-function state that selects a graphics
 * pipeline. It is a plain comparable value: callers build one per draw and
 * hand it to VulkanBinder.BindRasterState, which compares it against the
 * value used by the currently bound pipeline.
 */
type RasterStateConfig struct {
	DepthTestEnable  bool
	DepthWriteEnable bool
	DepthCompareOp   vk.CompareOp

	StencilTestEnable bool

	/** @brief Samples per pixel of the render pass the pipeline draws into. */
	RasterizationSamples uint32
	AlphaToCoverage      bool

	BlendEnable         bool
	SrcColorBlendFactor vk.BlendFactor
	DstColorBlendFactor vk.BlendFactor
	ColorBlendOp        vk.BlendOp
	SrcAlphaBlendFactor vk.BlendFactor
	DstAlphaBlendFactor vk.BlendFactor
	AlphaBlendOp        vk.BlendOp
	ColorWriteMask      vk.ColorComponentFlags

	CullMode  vk.CullModeFlags
	FrontFace vk.FrontFace

	DepthBiasEnable         bool
	DepthBiasConstantFactor float32
	DepthBiasSlopeFactor    float32

	/** @brief Number of color attachments written by the pipeline. */
	ColorTargetCount uint32
}

/**
 * @brief Returns the state used by most draws: depth test and write with
 * LESS, opaque single-sampled output to one color target, back face culling.
 */
func DefaultRasterState() RasterStateConfig {
	return RasterStateConfig{
		DepthTestEnable:      true,
		DepthWriteEnable:     true,
		DepthCompareOp:       vk.CompareOpLess,
		RasterizationSamples: 1,
		SrcColorBlendFactor:  vk.BlendFactorOne,
		DstColorBlendFactor:  vk.BlendFactorZero,
		ColorBlendOp:         vk.BlendOpAdd,
		SrcAlphaBlendFactor:  vk.BlendFactorOne,
		DstAlphaBlendFactor:  vk.BlendFactorZero,
		AlphaBlendOp:         vk.BlendOpAdd,
		ColorWriteMask:       colorWriteAll,
		CullMode:             vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:            vk.FrontFaceCounterClockwise,
		ColorTargetCount:     1,
	}
}

/**
 * @brief Returns the state of the depth resolve draw: every fragment writes
 * its depth (compare ALWAYS, no test), no color output, no culling.
 */
func DepthResolveRasterState() RasterStateConfig {
	return RasterStateConfig{
		DepthTestEnable:      false,
		DepthWriteEnable:     true,
		DepthCompareOp:       vk.CompareOpAlways,
		StencilTestEnable:    false,
		RasterizationSamples: 1,
		AlphaToCoverage:      false,
		BlendEnable:          false,
		SrcColorBlendFactor:  vk.BlendFactorOne,
		DstColorBlendFactor:  vk.BlendFactorOne,
		ColorBlendOp:         vk.BlendOpAdd,
		SrcAlphaBlendFactor:  vk.BlendFactorOne,
		DstAlphaBlendFactor:  vk.BlendFactorOne,
		AlphaBlendOp:         vk.BlendOpAdd,
		ColorWriteMask:       colorWriteAll,
		CullMode:             vk.CullModeFlags(vk.CullModeNone),
		FrontFace:            vk.FrontFaceCounterClockwise,
		DepthBiasEnable:      false,
		ColorTargetCount:     0,
	}
}

const colorWriteAll = vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
	vk.ColorComponentBBit | vk.ColorComponentABit)

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}
