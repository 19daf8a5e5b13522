package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-blit/engine/containers"
	"github.com/spaghettifunk/anima-blit/engine/core"
	amath "github.com/spaghettifunk/anima-blit/engine/math"
)

/** @brief How a blit is carried out. */
type BlitKind int

const (
	/** @brief vkCmdBlitImage between rectangles. */
	BlitKindFastBlit BlitKind = iota
	/** @brief vkCmdResolveImage of a multisampled color attachment. */
	BlitKindFastResolve
	/** @brief Full screen draw resolving a multisampled depth attachment. */
	BlitKindSlowResolve
)

func (k BlitKind) String() string {
	switch k {
	case BlitKindFastBlit:
		return "blit"
	case BlitKindFastResolve:
		return "resolve"
	case BlitKindSlowResolve:
		return "slow-resolve"
	}
	return "unknown"
}

/**
 * @brief Arguments of a single blit. SrcRectPair and DstRectPair hold the
 * two corners of the source and destination rectangles.
 */
type BlitArgs struct {
	SrcTarget   RenderTarget
	DstTarget   RenderTarget
	TargetIndex int
	SrcRectPair [2]vk.Offset3D
	DstRectPair [2]vk.Offset3D
	Filter      vk.Filter
}

type BlitterOptions struct {
	/** @brief Query format features before every blit and refuse unsupported formats. */
	CheckBlitFormat bool
}

var (
	colorAspect = vk.ImageAspectFlags(vk.ImageAspectColorBit)
	depthAspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
)

/**
 * @brief Picks the path for copying src into dst. Only a multisampled
 * source into a single sample destination is a resolve; depth resolves
 * need a draw since vkCmdResolveImage only handles color.
 * @param aspect The aspect being copied.
 * @param src The source attachment.
 * @param dst The destination attachment.
 */
func ClassifyBlit(aspect vk.ImageAspectFlags, src, dst VulkanAttachment) BlitKind {
	if src.IsMultisampled() && !dst.IsMultisampled() {
		if aspect&depthAspect != 0 {
			return BlitKindSlowResolve
		}
		return BlitKindFastResolve
	}
	return BlitKindFastBlit
}

/**
 * @brief Records blits and resolves between render targets into a command
 * buffer supplied by the caller. Every image is moved back to the layout it
 * rests in once the copy is recorded.
 *
 * Not safe for concurrent use.
 */
type VulkanBlitter struct {
	device  Device
	binder  *VulkanBinder
	surface *VulkanSwapContext
	options BlitterOptions
	cache   *blitterCache
}

/**
 * @brief Creates a blitter. surface is the default render target and may be
 * nil when attachments without a texture are never blitted.
 */
func NewVulkanBlitter(device Device, binder *VulkanBinder, surface *VulkanSwapContext, options BlitterOptions) *VulkanBlitter {
	return &VulkanBlitter{
		device:  device,
		binder:  binder,
		surface: surface,
		options: options,
		cache:   newBlitterCache(device),
	}
}

func (b *VulkanBlitter) SetCheckBlitFormat(enabled bool) {
	b.options.CheckBlitFormat = enabled
}

func (b *VulkanBlitter) Options() BlitterOptions {
	return b.options
}

/**
 * @brief Copies color attachment args.TargetIndex of the source target into
 * color attachment 0 of the destination target.
 * @returns ErrFormatNotBlittable when the format check is on and fails. Nothing is recorded then.
 */
func (b *VulkanBlitter) BlitColor(cmd CommandRecorder, args BlitArgs) error {
	src := args.SrcTarget.GetColor(args.TargetIndex)
	dst := args.DstTarget.GetColor(0)
	return b.blit(cmd, colorAspect, src, dst, args)
}

/**
 * @brief Copies the depth attachment of the source target into the depth
 * attachment of the destination target. args.TargetIndex is ignored.
 * @returns ErrFormatNotBlittable when the format check is on and fails. Nothing is recorded then.
 */
func (b *VulkanBlitter) BlitDepth(cmd CommandRecorder, args BlitArgs) error {
	src := args.SrcTarget.GetDepth()
	dst := args.DstTarget.GetDepth()
	return b.blit(cmd, depthAspect, src, dst, args)
}

/**
 * @brief Destroys the framebuffers wrapping destination views. Call before
 * destroying images that were the destination of a depth resolve.
 */
func (b *VulkanBlitter) ReleaseFramebuffers() {
	if b.cache.state == blitterCacheReady {
		b.cache.releaseFramebuffers()
	}
}

/** @brief Destroys the objects created for the shader resolve. */
func (b *VulkanBlitter) Shutdown() {
	b.cache.shutdown()
}

func (b *VulkanBlitter) blit(cmd CommandRecorder, aspect vk.ImageAspectFlags, src, dst VulkanAttachment, args BlitArgs) error {
	core.Assertf(src.Image != nil, "blit source has no image (target index %d)", args.TargetIndex)
	core.Assertf(dst.Image != nil, "blit destination attachment has no image")

	if b.options.CheckBlitFormat {
		if err := b.checkFormats(src.Format, dst.Format); err != nil {
			return err
		}
	}

	kind := ClassifyBlit(aspect, src, dst)
	if kind == BlitKindSlowResolve {
		b.blitSlowDepth(cmd, aspect, src, dst, args)
	} else {
		b.blitFast(cmd, kind, aspect, src, dst, args)
	}
	return nil
}

func (b *VulkanBlitter) checkFormats(srcFormat, dstFormat vk.Format) error {
	core.Assertf(b.device != nil && b.device.IsValid(), "blit format check: %s", core.ErrDeviceMissing)

	srcProperties := b.device.FormatProperties(srcFormat)
	dstProperties := b.device.FormatProperties(dstFormat)
	srcOk := srcProperties.OptimalTilingFeatures&vk.FormatFeatureFlags(vk.FormatFeatureBlitSrcBit) != 0
	dstOk := dstProperties.OptimalTilingFeatures&vk.FormatFeatureFlags(vk.FormatFeatureBlitDstBit) != 0
	if !core.AssertNonFatalf(srcOk && dstOk, "format cannot be blitted: src %d (blit src %t), dst %d (blit dst %t)",
		srcFormat, srcOk, dstFormat, dstOk) {
		return errors.Wrapf(core.ErrFormatNotBlittable, "src format %d, dst format %d", srcFormat, dstFormat)
	}
	return nil
}

func (b *VulkanBlitter) blitFast(cmd CommandRecorder, kind BlitKind, aspect vk.ImageAspectFlags, src, dst VulkanAttachment, args BlitArgs) {
	TransitionImageLayout(cmd, src.Image, b.restingLayout(aspect, src), vk.ImageLayoutTransferSrcOptimal,
		src.Level, src.Layer, 1, 1, BarrierAspect(aspect, src.Format))
	TransitionImageLayout(cmd, dst.Image, b.restingLayout(aspect, dst), vk.ImageLayoutTransferDstOptimal,
		dst.Level, dst.Layer, 1, 1, BarrierAspect(aspect, dst.Format))

	srcSubresource := vk.ImageSubresourceLayers{
		AspectMask:     aspect,
		MipLevel:       src.Level,
		BaseArrayLayer: src.Layer,
		LayerCount:     1,
	}
	dstSubresource := vk.ImageSubresourceLayers{
		AspectMask:     aspect,
		MipLevel:       dst.Level,
		BaseArrayLayer: dst.Layer,
		LayerCount:     1,
	}

	if kind == BlitKindFastResolve {
		core.Assertf(aspect&depthAspect == 0, "vkCmdResolveImage cannot resolve depth attachments")
		extent := args.SrcTarget.GetExtent()
		region := vk.ImageResolve{
			SrcSubresource: srcSubresource,
			SrcOffset:      vk.Offset3D{},
			DstSubresource: dstSubresource,
			DstOffset:      vk.Offset3D{},
			Extent:         vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		}
		cmd.ResolveImage(src.Image, vk.ImageLayoutTransferSrcOptimal, dst.Image, vk.ImageLayoutTransferDstOptimal,
			[]vk.ImageResolve{region})
	} else {
		region := vk.ImageBlit{
			SrcSubresource: srcSubresource,
			SrcOffsets:     args.SrcRectPair,
			DstSubresource: dstSubresource,
			DstOffsets:     args.DstRectPair,
		}
		cmd.BlitImage(src.Image, vk.ImageLayoutTransferSrcOptimal, dst.Image, vk.ImageLayoutTransferDstOptimal,
			[]vk.ImageBlit{region}, args.Filter)
	}

	b.restoreSource(cmd, aspect, src, vk.ImageLayoutTransferSrcOptimal)
	b.restoreDestination(cmd, aspect, dst, vk.ImageLayoutTransferDstOptimal)
}

func (b *VulkanBlitter) blitSlowDepth(cmd CommandRecorder, aspect vk.ImageAspectFlags, src, dst VulkanAttachment, args BlitArgs) {
	core.Assertf(aspect&depthAspect != 0, "the shader resolve only handles depth attachments")

	b.cache.lazyInit()

	b.binder.BindProgramBundle(b.cache.program())
	b.binder.BindRasterState(DepthResolveRasterState())
	b.binder.BindPrimitiveTopology(b.cache.quad.Topology)
	b.binder.BindVertexArray(b.cache.quad.VertexArray)
	renderpass := b.cache.depthRenderPass(dst.Format)
	b.binder.BindRenderPass(renderpass.Handle)

	samplers := containers.MustBounded[SamplerBinding](SamplerBindingCount)
	err := samplers.Push(SamplerBinding{
		Sampler: b.cache.depthSampler,
		View:    src.View,
		Layout:  vk.ImageLayoutDepthStencilReadOnlyOptimal,
	})
	core.Assertf(err == nil, "unable to bind the depth source: %v", err)
	b.binder.BindSamplers(samplers)

	TransitionImageLayout(cmd, src.Image, b.restingLayout(aspect, src), vk.ImageLayoutDepthStencilReadOnlyOptimal,
		src.Level, src.Layer, 1, 1, BarrierAspect(aspect, src.Format))
	TransitionImageLayout(cmd, dst.Image, b.restingLayout(aspect, dst), vk.ImageLayoutDepthStencilAttachmentOptimal,
		dst.Level, dst.Layer, 1, 1, BarrierAspect(aspect, dst.Format))

	extent := args.DstTarget.GetExtent()
	framebuffer := b.cache.framebuffer(renderpass, dst.View, extent)
	area := regionRect(args.DstRectPair, extent)

	renderpass.RenderpassBegin(cmd, framebuffer.Handle, area)
	cmd.SetViewport(vk.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	})
	cmd.SetScissor(area)

	sets := containers.MustBounded[vk.DescriptorSet](DescriptorSetCount)
	layout, changed, err := b.binder.GetOrCreateDescriptors(sets)
	core.Assertf(err == nil, "unable to get descriptor sets for the depth resolve: %v", err)
	if changed {
		cmd.BindDescriptorSets(layout, sets.Items())
	}
	pipeline, changed, err := b.binder.GetOrCreatePipeline()
	core.Assertf(err == nil, "unable to get a pipeline for the depth resolve: %v", err)
	if changed {
		cmd.BindPipeline(pipeline)
	}

	b.cache.quad.Draw(cmd)
	renderpass.RenderpassEnd(cmd)

	b.restoreSource(cmd, aspect, src, vk.ImageLayoutDepthStencilReadOnlyOptimal)
	b.restoreDestination(cmd, aspect, dst, vk.ImageLayoutDepthStencilAttachmentOptimal)
}

// restingLayout is the layout an attachment holds between blits.
func (b *VulkanBlitter) restingLayout(aspect vk.ImageAspectFlags, attachment VulkanAttachment) vk.ImageLayout {
	switch {
	case !attachment.IsDefault():
		return GetTextureLayout(attachment.Texture.Usage)
	case aspect&depthAspect != 0:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case b.surface != nil:
		return b.surface.ColorLayout
	}
	return vk.ImageLayoutUndefined
}

func (b *VulkanBlitter) restoreSource(cmd CommandRecorder, aspect vk.ImageAspectFlags, src VulkanAttachment, from vk.ImageLayout) {
	var to vk.ImageLayout
	switch {
	case !src.IsDefault():
		to = GetTextureLayout(src.Texture.Usage)
	case aspect&depthAspect != 0:
		to = vk.ImageLayoutDepthStencilAttachmentOptimal
	case b.surface == nil || b.surface.Headless:
		// Nothing reads the headless surface until the next blit.
		b.trackSurface(from)
		return
	default:
		to = vk.ImageLayoutColorAttachmentOptimal
	}
	TransitionImageLayout(cmd, src.Image, from, to, src.Level, src.Layer, 1, 1, BarrierAspect(aspect, src.Format))
	if src.IsDefault() && aspect&depthAspect == 0 {
		b.trackSurface(to)
	}
}

func (b *VulkanBlitter) restoreDestination(cmd CommandRecorder, aspect vk.ImageAspectFlags, dst VulkanAttachment, from vk.ImageLayout) {
	var to vk.ImageLayout
	switch {
	case !dst.IsDefault():
		to = GetTextureLayout(dst.Texture.Usage)
	case aspect&depthAspect != 0:
		to = vk.ImageLayoutDepthStencilAttachmentOptimal
	default:
		core.Assertf(b.surface != nil, "blit into the default render target without a swap context")
		to = b.surface.AttachmentLayout
	}
	TransitionImageLayout(cmd, dst.Image, from, to, dst.Level, dst.Layer, 1, 1, BarrierAspect(aspect, dst.Format))
	if dst.IsDefault() && aspect&depthAspect == 0 {
		b.trackSurface(to)
	}
}

func (b *VulkanBlitter) trackSurface(layout vk.ImageLayout) {
	if b.surface != nil {
		b.surface.ColorLayout = layout
	}
}

// BarrierAspect widens a depth aspect to depth and stencil for combined
// formats, whose layouts can only change together.
func BarrierAspect(aspect vk.ImageAspectFlags, format vk.Format) vk.ImageAspectFlags {
	if aspect&depthAspect == 0 {
		return aspect
	}
	switch format {
	case vk.FormatD16UnormS8Uint, vk.FormatD24UnormS8Uint, vk.FormatD32SfloatS8Uint:
		return aspect | vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	return aspect
}

// regionRect converts a corner pair into a rectangle clamped to extent.
func regionRect(corners [2]vk.Offset3D, extent vk.Extent2D) vk.Rect2D {
	maxX := int32(extent.Width)
	maxY := int32(extent.Height)
	x0 := amath.Clamp(min(corners[0].X, corners[1].X), 0, maxX)
	y0 := amath.Clamp(min(corners[0].Y, corners[1].Y), 0, maxY)
	x1 := amath.Clamp(max(corners[0].X, corners[1].X), 0, maxX)
	y1 := amath.Clamp(max(corners[0].Y, corners[1].Y), 0, maxY)
	return vk.Rect2D{
		Offset: vk.Offset2D{X: x0, Y: y0},
		Extent: vk.Extent2D{Width: uint32(x1 - x0), Height: uint32(y1 - y0)},
	}
}
