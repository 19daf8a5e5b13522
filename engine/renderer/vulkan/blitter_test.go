package vulkan

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-blit/engine/core"
	"github.com/spaghettifunk/anima-blit/engine/renderer/metadata"
)

const (
	testColorFormat = vk.FormatR8g8b8a8Unorm
	testDepthFormat = vk.FormatD32Sfloat
)

func newTestBlitter(t *testing.T, surface *VulkanSwapContext) (*VulkanBlitter, *fakeDevice, *fakeFactory) {
	t.Helper()
	device := newFakeDevice()
	factory := newFakeFactory()
	binder, err := NewVulkanBinder(factory, 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	return NewVulkanBlitter(device, binder, surface, BlitterOptions{}), device, factory
}

func testSurface(headless bool, width, height uint32) *VulkanSwapContext {
	image := func(format vk.Format, aspect vk.ImageAspectFlagBits) *VulkanImage {
		return &VulkanImage{
			Handle:  newHandle[vk.Image](),
			View:    newHandle[vk.ImageView](),
			Format:  format,
			Width:   width,
			Height:  height,
			Samples: 1,
			Aspect:  vk.ImageAspectFlags(aspect),
		}
	}
	return &VulkanSwapContext{
		Headless:         headless,
		AttachmentLayout: vk.ImageLayoutColorAttachmentOptimal,
		ColorLayout:      vk.ImageLayoutColorAttachmentOptimal,
		Extent:           vk.Extent2D{Width: width, Height: height},
		Color:            image(testColorFormat, vk.ImageAspectColorBit),
		Depth:            image(testDepthFormat, vk.ImageAspectDepthBit),
	}
}

func colorTarget(width, height, samples uint32, usage metadata.TextureUsage) *VulkanRenderTarget {
	texture := metadata.NewTexture("color", width, height, samples, usage)
	return NewVulkanRenderTarget(width, height, VulkanAttachment{}, fakeAttachment(testColorFormat, samples, texture))
}

func depthTarget(width, height, samples uint32, usage metadata.TextureUsage) *VulkanRenderTarget {
	texture := metadata.NewTexture("depth", width, height, samples, usage)
	return NewVulkanRenderTarget(width, height, fakeAttachment(testDepthFormat, samples, texture))
}

func fullRect(width, height uint32) [2]vk.Offset3D {
	return [2]vk.Offset3D{{X: 0, Y: 0, Z: 0}, {X: int32(width), Y: int32(height), Z: 1}}
}

// transitionsOf lists the barriers recorded for image as old->new pairs.
func transitionsOf(rec *fakeRecorder, image vk.Image) [][2]vk.ImageLayout {
	var out [][2]vk.ImageLayout
	for _, b := range rec.barriers {
		if b.Image == image {
			out = append(out, [2]vk.ImageLayout{b.OldLayout, b.NewLayout})
		}
	}
	return out
}

func TestClassifyBlit(t *testing.T) {
	tests := []struct {
		name       string
		aspect     vk.ImageAspectFlags
		srcSamples uint32
		dstSamples uint32
		want       BlitKind
	}{
		{"color same samples", colorAspect, 1, 1, BlitKindFastBlit},
		{"color multisampled both", colorAspect, 4, 4, BlitKindFastBlit},
		{"color resolve", colorAspect, 4, 1, BlitKindFastResolve},
		{"color upsample", colorAspect, 1, 4, BlitKindFastBlit},
		{"depth same samples", depthAspect, 1, 1, BlitKindFastBlit},
		{"depth multisampled both", depthAspect, 8, 8, BlitKindFastBlit},
		{"depth resolve", depthAspect, 4, 1, BlitKindSlowResolve},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := VulkanAttachment{Samples: tt.srcSamples}
			dst := VulkanAttachment{Samples: tt.dstSamples}
			if got := ClassifyBlit(tt.aspect, src, dst); got != tt.want {
				t.Errorf("ClassifyBlit = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBlitColorDownscale(t *testing.T) {
	blitter, _, _ := newTestBlitter(t, nil)
	usage := metadata.TextureUsageColorAttachment | metadata.TextureUsageSampleable
	src := colorTarget(64, 64, 1, usage)
	dst := colorTarget(32, 32, 1, usage)
	args := BlitArgs{
		SrcTarget:   src,
		DstTarget:   dst,
		SrcRectPair: fullRect(64, 64),
		DstRectPair: fullRect(32, 32),
		Filter:      vk.FilterLinear,
	}

	rec := &fakeRecorder{}
	if err := blitter.BlitColor(rec, args); err != nil {
		t.Fatal(err)
	}

	if rec.count("blit") != 1 || rec.count("resolve") != 0 {
		t.Fatalf("ops = %v, want a single blit", rec.ops)
	}
	region := rec.blits[0]
	if region.SrcOffsets != args.SrcRectPair || region.DstOffsets != args.DstRectPair {
		t.Errorf("blit offsets = %v -> %v", region.SrcOffsets, region.DstOffsets)
	}
	if region.SrcSubresource.AspectMask != colorAspect {
		t.Errorf("blit aspect = %d, want color", region.SrcSubresource.AspectMask)
	}
	if rec.filters[0] != vk.FilterLinear {
		t.Errorf("filter = %d, want linear", rec.filters[0])
	}

	wantSrc := [][2]vk.ImageLayout{
		{vk.ImageLayoutGeneral, vk.ImageLayoutTransferSrcOptimal},
		{vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutGeneral},
	}
	if got := transitionsOf(rec, src.Color[0].Image); !equalTransitions(got, wantSrc) {
		t.Errorf("source transitions = %v, want %v", got, wantSrc)
	}
	wantDst := [][2]vk.ImageLayout{
		{vk.ImageLayoutGeneral, vk.ImageLayoutTransferDstOptimal},
		{vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutGeneral},
	}
	if got := transitionsOf(rec, dst.Color[0].Image); !equalTransitions(got, wantDst) {
		t.Errorf("destination transitions = %v, want %v", got, wantDst)
	}
}

func TestBlitColorUsesTargetIndex(t *testing.T) {
	blitter, _, _ := newTestBlitter(t, nil)
	usage := metadata.TextureUsageColorAttachment
	texture := metadata.NewTexture("mrt", 16, 16, 1, usage)
	src := NewVulkanRenderTarget(16, 16, VulkanAttachment{},
		fakeAttachment(testColorFormat, 1, texture),
		fakeAttachment(testColorFormat, 1, texture))
	dst := colorTarget(16, 16, 1, usage)

	rec := &fakeRecorder{}
	err := blitter.BlitColor(rec, BlitArgs{
		SrcTarget:   src,
		DstTarget:   dst,
		TargetIndex: 1,
		SrcRectPair: fullRect(16, 16),
		DstRectPair: fullRect(16, 16),
		Filter:      vk.FilterNearest,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(transitionsOf(rec, src.Color[0].Image)) != 0 {
		t.Errorf("attachment 0 was transitioned")
	}
	if len(transitionsOf(rec, src.Color[1].Image)) != 2 {
		t.Errorf("attachment 1 transitions = %v", transitionsOf(rec, src.Color[1].Image))
	}
}

func TestBlitColorResolve(t *testing.T) {
	blitter, _, _ := newTestBlitter(t, nil)
	src := colorTarget(64, 64, 4, metadata.TextureUsageColorAttachment)
	dst := colorTarget(64, 64, 1, metadata.TextureUsageSampleable)

	rec := &fakeRecorder{}
	err := blitter.BlitColor(rec, BlitArgs{
		SrcTarget:   src,
		DstTarget:   dst,
		SrcRectPair: fullRect(64, 64),
		DstRectPair: fullRect(64, 64),
	})
	if err != nil {
		t.Fatal(err)
	}

	if rec.count("resolve") != 1 || rec.count("blit") != 0 || rec.count("draw-indexed") != 0 {
		t.Fatalf("ops = %v, want a single resolve", rec.ops)
	}
	region := rec.resolves[0]
	if region.Extent != (vk.Extent3D{Width: 64, Height: 64, Depth: 1}) {
		t.Errorf("resolve extent = %v", region.Extent)
	}
	if region.SrcOffset != (vk.Offset3D{}) || region.DstOffset != (vk.Offset3D{}) {
		t.Errorf("resolve offsets = %v, %v", region.SrcOffset, region.DstOffset)
	}
	got := transitionsOf(rec, dst.Color[0].Image)
	if last := got[len(got)-1][1]; last != vk.ImageLayoutShaderReadOnlyOptimal {
		t.Errorf("destination restored to %s", LayoutName(last))
	}
}

func TestBlitDepthSameSamplesIsFast(t *testing.T) {
	blitter, _, factory := newTestBlitter(t, nil)
	src := depthTarget(32, 32, 1, metadata.TextureUsageDepthAttachment)
	dst := depthTarget(32, 32, 1, metadata.TextureUsageDepthAttachment)

	rec := &fakeRecorder{}
	err := blitter.BlitDepth(rec, BlitArgs{
		SrcTarget:   src,
		DstTarget:   dst,
		TargetIndex: 3,
		SrcRectPair: fullRect(32, 32),
		DstRectPair: fullRect(32, 32),
		Filter:      vk.FilterNearest,
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec.count("blit") != 1 || rec.count("draw-indexed") != 0 {
		t.Fatalf("ops = %v, want a single blit", rec.ops)
	}
	if rec.blits[0].SrcSubresource.AspectMask != depthAspect {
		t.Errorf("blit aspect = %d, want depth", rec.blits[0].SrcSubresource.AspectMask)
	}
	if len(factory.descriptions) != 0 {
		t.Errorf("fast depth blit created %d pipelines", len(factory.descriptions))
	}
}

func TestBlitDepthResolveDraws(t *testing.T) {
	blitter, device, factory := newTestBlitter(t, nil)
	usage := metadata.TextureUsageDepthAttachment | metadata.TextureUsageSampleable
	src := depthTarget(64, 64, 4, usage)
	dst := depthTarget(64, 64, 1, metadata.TextureUsageDepthAttachment)
	args := BlitArgs{
		SrcTarget:   src,
		DstTarget:   dst,
		SrcRectPair: fullRect(64, 64),
		DstRectPair: fullRect(64, 64),
		Filter:      vk.FilterNearest,
	}

	rec := &fakeRecorder{}
	if err := blitter.BlitDepth(rec, args); err != nil {
		t.Fatal(err)
	}

	wantOps := []string{
		"barrier", "barrier",
		"begin-render-pass", "viewport", "scissor",
		"bind-descriptor-sets", "bind-pipeline",
		"bind-vertex-buffers", "bind-index-buffer", "draw-indexed",
		"end-render-pass",
		"barrier", "barrier",
	}
	if !equalStrings(rec.ops, wantOps) {
		t.Fatalf("ops = %v, want %v", rec.ops, wantOps)
	}
	if rec.draws[0] != quadVertexCount {
		t.Errorf("draw index count = %d", rec.draws[0])
	}

	if len(factory.descriptions) != 1 {
		t.Fatalf("pipelines created = %d, want 1", len(factory.descriptions))
	}
	desc := factory.descriptions[0]
	if desc.Raster.DepthCompareOp != vk.CompareOpAlways || desc.Raster.DepthTestEnable || !desc.Raster.DepthWriteEnable {
		t.Errorf("raster state = %+v", desc.Raster)
	}
	if desc.Topology != vk.PrimitiveTopologyTriangleStrip {
		t.Errorf("topology = %d", desc.Topology)
	}
	if desc.VertexArray.AttributeCount != 1 || desc.VertexArray.Attributes[0].Format != vk.FormatR32g32Sfloat {
		t.Errorf("vertex array = %+v", desc.VertexArray)
	}
	if device.created["renderpass"] != 1 || device.created["framebuffer"] != 1 {
		t.Errorf("render passes %d, framebuffers %d", device.created["renderpass"], device.created["framebuffer"])
	}

	sampler := factory.written[0].Samplers[0]
	if sampler.View != src.Depth.View || sampler.Layout != vk.ImageLayoutDepthStencilReadOnlyOptimal {
		t.Errorf("sampler binding = %+v", sampler)
	}

	wantSrc := [][2]vk.ImageLayout{
		{vk.ImageLayoutGeneral, vk.ImageLayoutDepthStencilReadOnlyOptimal},
		{vk.ImageLayoutDepthStencilReadOnlyOptimal, vk.ImageLayoutGeneral},
	}
	if got := transitionsOf(rec, src.Depth.Image); !equalTransitions(got, wantSrc) {
		t.Errorf("source transitions = %v, want %v", got, wantSrc)
	}
	wantDst := [][2]vk.ImageLayout{
		{vk.ImageLayoutGeneral, vk.ImageLayoutDepthStencilAttachmentOptimal},
		{vk.ImageLayoutDepthStencilAttachmentOptimal, vk.ImageLayoutGeneral},
	}
	if got := transitionsOf(rec, dst.Depth.Image); !equalTransitions(got, wantDst) {
		t.Errorf("destination transitions = %v, want %v", got, wantDst)
	}

	// Same state again in the same command buffer: nothing is re-bound.
	if err := blitter.BlitDepth(rec, args); err != nil {
		t.Fatal(err)
	}
	if rec.count("bind-pipeline") != 1 || rec.count("bind-descriptor-sets") != 1 {
		t.Errorf("second resolve re-bound state: %v", rec.ops)
	}
	if rec.count("draw-indexed") != 2 || len(factory.descriptions) != 1 {
		t.Errorf("draws %d, pipelines %d", rec.count("draw-indexed"), len(factory.descriptions))
	}
}

func TestBlitDepthResolveScissorsDestinationRegion(t *testing.T) {
	blitter, _, _ := newTestBlitter(t, nil)
	src := depthTarget(64, 64, 4, metadata.TextureUsageDepthAttachment)
	dst := depthTarget(64, 64, 1, metadata.TextureUsageDepthAttachment)

	rec := &fakeRecorder{}
	err := blitter.BlitDepth(rec, BlitArgs{
		SrcTarget:   src,
		DstTarget:   dst,
		SrcRectPair: fullRect(64, 64),
		DstRectPair: [2]vk.Offset3D{{X: 48, Y: 80, Z: 1}, {X: 16, Y: 8, Z: 0}},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := vk.Rect2D{Offset: vk.Offset2D{X: 16, Y: 8}, Extent: vk.Extent2D{Width: 32, Height: 56}}
	if rec.scissors[0] != want || rec.areas[0] != want {
		t.Errorf("scissor %v, render area %v, want %v", rec.scissors[0], rec.areas[0], want)
	}
	if rec.viewports[0].Width != 64 || rec.viewports[0].Height != 64 {
		t.Errorf("viewport = %+v", rec.viewports[0])
	}
}

func TestBlitRestoreLayouts(t *testing.T) {
	tests := []struct {
		name     string
		depth    bool
		headless bool
		// Source and destination; nil means the default render target.
		src, dst       func() *VulkanRenderTarget
		wantSrcRestore vk.ImageLayout
		wantDstRestore vk.ImageLayout
		// The source stays in its transfer layout.
		srcNotRestored bool
	}{
		{
			name:           "color attachment textures",
			src:            func() *VulkanRenderTarget { return colorTarget(8, 8, 1, metadata.TextureUsageColorAttachment) },
			dst:            func() *VulkanRenderTarget { return colorTarget(8, 8, 1, metadata.TextureUsageColorAttachment) },
			wantSrcRestore: vk.ImageLayoutGeneral,
			wantDstRestore: vk.ImageLayoutGeneral,
		},
		{
			name:           "sampled destination texture",
			src:            func() *VulkanRenderTarget { return colorTarget(8, 8, 1, metadata.TextureUsageColorAttachment) },
			dst:            func() *VulkanRenderTarget { return colorTarget(8, 8, 1, metadata.TextureUsageDefault) },
			wantSrcRestore: vk.ImageLayoutGeneral,
			wantDstRestore: vk.ImageLayoutShaderReadOnlyOptimal,
		},
		{
			name:           "default color destination",
			headless:       true,
			src:            func() *VulkanRenderTarget { return colorTarget(8, 8, 1, metadata.TextureUsageColorAttachment) },
			wantSrcRestore: vk.ImageLayoutGeneral,
			wantDstRestore: vk.ImageLayoutColorAttachmentOptimal,
		},
		{
			name:           "default color source with presentation",
			headless:       false,
			dst:            func() *VulkanRenderTarget { return colorTarget(8, 8, 1, metadata.TextureUsageColorAttachment) },
			wantSrcRestore: vk.ImageLayoutColorAttachmentOptimal,
			wantDstRestore: vk.ImageLayoutGeneral,
		},
		{
			name:           "default color source headless",
			headless:       true,
			dst:            func() *VulkanRenderTarget { return colorTarget(8, 8, 1, metadata.TextureUsageColorAttachment) },
			srcNotRestored: true,
			wantDstRestore: vk.ImageLayoutGeneral,
		},
		{
			name:           "default depth destination",
			depth:          true,
			headless:       true,
			src:            func() *VulkanRenderTarget { return depthTarget(8, 8, 1, metadata.TextureUsageDepthAttachment) },
			wantSrcRestore: vk.ImageLayoutGeneral,
			wantDstRestore: vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
		{
			name:           "default depth source headless",
			depth:          true,
			headless:       true,
			dst:            func() *VulkanRenderTarget { return depthTarget(8, 8, 1, metadata.TextureUsageDepthAttachment) },
			wantSrcRestore: vk.ImageLayoutDepthStencilAttachmentOptimal,
			wantDstRestore: vk.ImageLayoutGeneral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			surface := testSurface(tt.headless, 8, 8)
			blitter, _, _ := newTestBlitter(t, surface)

			var src, dst RenderTarget = surface, surface
			if tt.src != nil {
				src = tt.src()
			}
			if tt.dst != nil {
				dst = tt.dst()
			}
			args := BlitArgs{
				SrcTarget:   src,
				DstTarget:   dst,
				SrcRectPair: fullRect(8, 8),
				DstRectPair: fullRect(8, 8),
			}

			rec := &fakeRecorder{}
			var err error
			var srcImage, dstImage vk.Image
			if tt.depth {
				err = blitter.BlitDepth(rec, args)
				srcImage, dstImage = src.GetDepth().Image, dst.GetDepth().Image
			} else {
				err = blitter.BlitColor(rec, args)
				srcImage, dstImage = src.GetColor(0).Image, dst.GetColor(0).Image
			}
			if err != nil {
				t.Fatal(err)
			}

			srcTransitions := transitionsOf(rec, srcImage)
			if tt.srcNotRestored {
				if len(srcTransitions) != 1 {
					t.Errorf("source transitions = %v, want only the transfer one", srcTransitions)
				}
				if surface.ColorLayout != vk.ImageLayoutTransferSrcOptimal {
					t.Errorf("surface layout = %s", LayoutName(surface.ColorLayout))
				}
			} else if last := srcTransitions[len(srcTransitions)-1][1]; last != tt.wantSrcRestore {
				t.Errorf("source restored to %s, want %s", LayoutName(last), LayoutName(tt.wantSrcRestore))
			}

			dstTransitions := transitionsOf(rec, dstImage)
			if last := dstTransitions[len(dstTransitions)-1][1]; last != tt.wantDstRestore {
				t.Errorf("destination restored to %s, want %s", LayoutName(last), LayoutName(tt.wantDstRestore))
			}
		})
	}
}

func TestBlitHeadlessSurfaceTwiceKeepsLayoutsConsistent(t *testing.T) {
	surface := testSurface(true, 8, 8)
	blitter, _, _ := newTestBlitter(t, surface)
	dst := colorTarget(8, 8, 1, metadata.TextureUsageColorAttachment)
	args := BlitArgs{SrcTarget: surface, DstTarget: dst, SrcRectPair: fullRect(8, 8), DstRectPair: fullRect(8, 8)}

	rec := &fakeRecorder{}
	for i := 0; i < 2; i++ {
		if err := blitter.BlitColor(rec, args); err != nil {
			t.Fatal(err)
		}
	}
	got := transitionsOf(rec, surface.Color.Handle)
	want := [][2]vk.ImageLayout{
		{vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutTransferSrcOptimal},
		{vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutTransferSrcOptimal},
	}
	if !equalTransitions(got, want) {
		t.Errorf("surface transitions = %v, want %v", got, want)
	}
}

func TestBlitFormatCheck(t *testing.T) {
	blittable := vk.FormatProperties{
		OptimalTilingFeatures: vk.FormatFeatureFlags(vk.FormatFeatureBlitSrcBit | vk.FormatFeatureBlitDstBit),
	}
	tests := []struct {
		name        string
		enabled     bool
		srcFeatures vk.FormatProperties
		wantErr     bool
		wantQueries int
	}{
		{"disabled", false, vk.FormatProperties{}, false, 0},
		{"supported", true, blittable, false, 2},
		{"unsupported", true, vk.FormatProperties{}, true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blitter, device, _ := newTestBlitter(t, nil)
			blitter.SetCheckBlitFormat(tt.enabled)
			device.formats[testColorFormat] = tt.srcFeatures

			src := colorTarget(8, 8, 1, metadata.TextureUsageColorAttachment)
			dst := colorTarget(8, 8, 1, metadata.TextureUsageColorAttachment)
			rec := &fakeRecorder{}
			err := blitter.BlitColor(rec, BlitArgs{SrcTarget: src, DstTarget: dst, SrcRectPair: fullRect(8, 8), DstRectPair: fullRect(8, 8)})

			if tt.wantErr {
				if !errors.Is(err, core.ErrFormatNotBlittable) {
					t.Errorf("error = %v, want ErrFormatNotBlittable", err)
				}
				if len(rec.ops) != 0 {
					t.Errorf("recorded %v after a failed format check", rec.ops)
				}
			} else if err != nil {
				t.Errorf("unexpected error %v", err)
			}
			if device.formatQueries != tt.wantQueries {
				t.Errorf("format queries = %d, want %d", device.formatQueries, tt.wantQueries)
			}
		})
	}
}

func TestBlitFatalMisuse(t *testing.T) {
	src := depthTarget(8, 8, 4, metadata.TextureUsageDepthAttachment)
	dst := depthTarget(8, 8, 1, metadata.TextureUsageDepthAttachment)
	args := BlitArgs{SrcTarget: src, DstTarget: dst, SrcRectPair: fullRect(8, 8), DstRectPair: fullRect(8, 8)}

	t.Run("depth on the resolve command", func(t *testing.T) {
		blitter, _, _ := newTestBlitter(t, nil)
		expectAssertion(t, func() {
			blitter.blitFast(&fakeRecorder{}, BlitKindFastResolve, depthAspect, src.Depth, dst.Depth, args)
		})
	})
	t.Run("color on the shader resolve", func(t *testing.T) {
		blitter, _, _ := newTestBlitter(t, nil)
		expectAssertion(t, func() {
			blitter.blitSlowDepth(&fakeRecorder{}, colorAspect, src.Depth, dst.Depth, args)
		})
	})
	t.Run("color index past the source target", func(t *testing.T) {
		surface := testSurface(false, 8, 8)
		surface.ColorLayout = vk.ImageLayoutTransferSrcOptimal
		blitter, _, _ := newTestBlitter(t, surface)
		rec := &fakeRecorder{}
		usage := metadata.TextureUsageColorAttachment
		expectAssertion(t, func() {
			blitter.BlitColor(rec, BlitArgs{
				SrcTarget:   colorTarget(8, 8, 1, usage),
				DstTarget:   colorTarget(8, 8, 1, usage),
				TargetIndex: 5,
				SrcRectPair: fullRect(8, 8),
				DstRectPair: fullRect(8, 8),
			})
		})
		if len(rec.ops) != 0 {
			t.Errorf("recorded %v for a missing attachment", rec.ops)
		}
		if surface.ColorLayout != vk.ImageLayoutTransferSrcOptimal {
			t.Errorf("surface layout changed to %s", LayoutName(surface.ColorLayout))
		}
	})
	t.Run("destination without color attachments", func(t *testing.T) {
		blitter, _, _ := newTestBlitter(t, nil)
		rec := &fakeRecorder{}
		expectAssertion(t, func() {
			blitter.BlitColor(rec, BlitArgs{
				SrcTarget:   colorTarget(8, 8, 1, metadata.TextureUsageColorAttachment),
				DstTarget:   NewVulkanRenderTarget(8, 8, VulkanAttachment{}),
				SrcRectPair: fullRect(8, 8),
				DstRectPair: fullRect(8, 8),
			})
		})
		if len(rec.ops) != 0 {
			t.Errorf("recorded %v for a missing attachment", rec.ops)
		}
	})
	t.Run("missing device", func(t *testing.T) {
		blitter, device, _ := newTestBlitter(t, nil)
		device.valid = false
		expectAssertion(t, func() {
			blitter.BlitDepth(&fakeRecorder{}, args)
		})
	})
}

func TestRegionRect(t *testing.T) {
	extent := vk.Extent2D{Width: 32, Height: 16}
	tests := []struct {
		name    string
		corners [2]vk.Offset3D
		want    vk.Rect2D
	}{
		{"full", fullRect(32, 16), vk.Rect2D{Extent: extent}},
		{"swapped", [2]vk.Offset3D{{X: 20, Y: 10}, {X: 4, Y: 2}}, vk.Rect2D{Offset: vk.Offset2D{X: 4, Y: 2}, Extent: vk.Extent2D{Width: 16, Height: 8}}},
		{"clamped", [2]vk.Offset3D{{X: -8, Y: -8}, {X: 64, Y: 64}}, vk.Rect2D{Extent: extent}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := regionRect(tt.corners, extent); got != tt.want {
				t.Errorf("regionRect = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBarrierAspect(t *testing.T) {
	stencil := vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	if got := BarrierAspect(depthAspect, vk.FormatD24UnormS8Uint); got != depthAspect|stencil {
		t.Errorf("D24S8 aspect = %d", got)
	}
	if got := BarrierAspect(depthAspect, vk.FormatD32Sfloat); got != depthAspect {
		t.Errorf("D32 aspect = %d", got)
	}
	if got := BarrierAspect(colorAspect, vk.FormatD24UnormS8Uint); got != colorAspect {
		t.Errorf("color aspect = %d", got)
	}
}

func TestBlitFormatCheckLogsPostcondition(t *testing.T) {
	var buf bytes.Buffer
	core.SetLogOutput(&buf)
	defer core.SetLogOutput(os.Stderr)

	blitter, _, _ := newTestBlitter(t, nil)
	blitter.SetCheckBlitFormat(true)
	src := colorTarget(8, 8, 1, metadata.TextureUsageColorAttachment)
	dst := colorTarget(8, 8, 1, metadata.TextureUsageColorAttachment)
	err := blitter.BlitColor(&fakeRecorder{}, BlitArgs{SrcTarget: src, DstTarget: dst, SrcRectPair: fullRect(8, 8), DstRectPair: fullRect(8, 8)})
	if !errors.Is(err, core.ErrFormatNotBlittable) {
		t.Fatalf("error = %v, want ErrFormatNotBlittable", err)
	}
	if !strings.Contains(buf.String(), "postcondition failed: format cannot be blitted") {
		t.Errorf("log output = %q", buf.String())
	}
}

func TestSurfacePrimeCombinedDepthStencil(t *testing.T) {
	stencil := vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	tests := []struct {
		name   string
		format vk.Format
		want   vk.ImageAspectFlags
	}{
		{"depth only", vk.FormatD32Sfloat, depthAspect},
		{"D24S8", vk.FormatD24UnormS8Uint, depthAspect | stencil},
		{"D32S8", vk.FormatD32SfloatS8Uint, depthAspect | stencil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			surface := testSurface(true, 8, 8)
			surface.Depth.Format = tt.format
			rec := &fakeRecorder{}
			surface.Prime(rec)

			found := false
			for _, b := range rec.barriers {
				if b.Image != surface.Depth.Handle {
					continue
				}
				found = true
				if b.SubresourceRange.AspectMask != tt.want {
					t.Errorf("depth barrier aspect = %d, want %d", b.SubresourceRange.AspectMask, tt.want)
				}
			}
			if !found {
				t.Fatalf("no barrier recorded for the depth image")
			}
		})
	}
}

func equalTransitions(a, b [][2]vk.ImageLayout) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
