package engine

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-blit/engine/core"
	amath "github.com/spaghettifunk/anima-blit/engine/math"
	"github.com/spaghettifunk/anima-blit/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-blit/engine/renderer/vulkan"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

const (
	selfCheckColorFormat = vk.FormatR8g8b8a8Unorm
	// Channels are compared after 8 bit quantization.
	colorTolerance = 2
	depthTolerance = 1e-4
)

var (
	seedColor = [4]float32{1.0, 0.5, 0.25, 1.0}
	seedDepth = float32(0.25)
)

// selfCheckImage is an offscreen image together with the texture describing
// it. The image rests in the layout its usage implies.
type selfCheckImage struct {
	texture *metadata.Texture
	image   *vulkan.VulkanImage
	aspect  vk.ImageAspectFlags
}

func (i *selfCheckImage) target() *vulkan.VulkanRenderTarget {
	attachment := i.image.Attachment(i.texture)
	extent := vk.Extent2D{Width: i.texture.Width, Height: i.texture.Height}
	if i.aspect&vk.ImageAspectFlags(vk.ImageAspectDepthBit) != 0 {
		return vulkan.NewVulkanRenderTarget(extent.Width, extent.Height, attachment)
	}
	return vulkan.NewVulkanRenderTarget(extent.Width, extent.Height, vulkan.VulkanAttachment{}, attachment)
}

func (i *selfCheckImage) layout() vk.ImageLayout {
	return vulkan.GetTextureLayout(i.texture.Usage)
}

type scenario struct {
	name   string
	aspect vk.ImageAspectFlags
	args   vulkan.BlitArgs
	verify func() error
}

// SelfCheck seeds a set of offscreen images, blits between them through the
// VulkanBlitter and reads the results back.
type SelfCheck struct {
	renderer *vulkan.VulkanRenderer
	config   SelfCheckConfig
	samples  uint32

	colorMS    *selfCheckImage
	color      *selfCheckImage
	colorSmall *selfCheckImage
	depthMS    *selfCheckImage
	depth      *selfCheckImage

	renderpasses []*vulkan.VulkanRenderpass
	framebuffers []*vulkan.VulkanFramebuffer
	scenarios    []scenario
}

func NewSelfCheck(renderer *vulkan.VulkanRenderer, config SelfCheckConfig) (*SelfCheck, error) {
	sc := &SelfCheck{
		renderer: renderer,
		config:   config,
		samples:  renderer.SupportedSamples(config.Samples),
	}
	if sc.samples != config.Samples {
		core.LogWarn("%d samples requested, the device supports %d", config.Samples, sc.samples)
	}
	if err := sc.createImages(); err != nil {
		sc.Destroy()
		return nil, err
	}
	if err := sc.seed(); err != nil {
		sc.Destroy()
		return nil, err
	}
	sc.scenarios = sc.buildScenarios()
	return sc, nil
}

func (sc *SelfCheck) createImages() error {
	ctx := sc.renderer.Context()
	w, h := sc.config.Width, sc.config.Height
	colorAspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	depthAspect := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	transfer := vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit)

	var err error
	newImage := func(name string, width, height, samples uint32, format vk.Format, aspect vk.ImageAspectFlags, usage metadata.TextureUsage, vkUsage vk.ImageUsageFlags) *selfCheckImage {
		if err != nil {
			return nil
		}
		texture := metadata.NewTexture(name, width, height, samples, usage)
		var img *vulkan.VulkanImage
		img, err = vulkan.ImageCreate(ctx, vulkan.VulkanImageConfig{
			Width:       width,
			Height:      height,
			Format:      format,
			Samples:     samples,
			Usage:       vkUsage | transfer,
			MemoryFlags: vk.MemoryPropertyDeviceLocalBit,
			CreateView:  true,
			Aspect:      aspect,
		})
		if err != nil {
			err = errors.Wrapf(err, "creating %s", name)
			return nil
		}
		core.LogDebug("created %s", texture)
		return &selfCheckImage{texture: texture, image: img, aspect: aspect}
	}

	colorUsage := vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	depthUsage := vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)
	depthFormat := ctx.Device.DepthFormat

	if sc.samples > 1 {
		sc.colorMS = newImage("color-ms", w, h, sc.samples, selfCheckColorFormat, colorAspect,
			metadata.TextureUsageColorAttachment, colorUsage)
		sc.depthMS = newImage("depth-ms", w, h, sc.samples, depthFormat, depthAspect,
			metadata.TextureUsageDepthAttachment|metadata.TextureUsageSampleable,
			depthUsage|vk.ImageUsageFlags(vk.ImageUsageSampledBit))
	}
	sc.color = newImage("color", w, h, 1, selfCheckColorFormat, colorAspect,
		metadata.TextureUsageColorAttachment, colorUsage)
	sc.colorSmall = newImage("color-small", amath.Clamp(w/2, 1, w), amath.Clamp(h/2, 1, h), 1, selfCheckColorFormat, colorAspect,
		metadata.TextureUsageColorAttachment, colorUsage)
	sc.depth = newImage("depth", w, h, 1, depthFormat, depthAspect,
		metadata.TextureUsageDepthAttachment, depthUsage)
	return err
}

func (sc *SelfCheck) images() []*selfCheckImage {
	out := []*selfCheckImage{}
	for _, i := range []*selfCheckImage{sc.colorMS, sc.color, sc.colorSmall, sc.depthMS, sc.depth} {
		if i != nil {
			out = append(out, i)
		}
	}
	return out
}

// seed moves every image into its resting layout and clears it. The
// multisampled sources get the seed values, destinations are cleared to
// values the scenarios must overwrite.
func (sc *SelfCheck) seed() error {
	ctx := sc.renderer.Context()
	type clearPass struct {
		img   *selfCheckImage
		rp    *vulkan.VulkanRenderpass
		fb    *vulkan.VulkanFramebuffer
		color [4]float32
		depth float32
	}
	clears := []*clearPass{}
	single := [4]float32{0, 0, 0, 1}
	if sc.samples > 1 {
		clears = append(clears, &clearPass{img: sc.colorMS, color: seedColor}, &clearPass{img: sc.depthMS, depth: seedDepth})
		clears = append(clears, &clearPass{img: sc.color, color: single})
	} else {
		clears = append(clears, &clearPass{img: sc.color, color: seedColor})
	}
	clears = append(clears, &clearPass{img: sc.colorSmall, color: single}, &clearPass{img: sc.depth, depth: 1.0})

	for _, c := range clears {
		config := vulkan.VulkanRenderpassConfig{
			Samples: c.img.texture.Samples,
			LoadOp:  vk.AttachmentLoadOpClear,
		}
		if c.img.aspect&vk.ImageAspectFlags(vk.ImageAspectDepthBit) != 0 {
			config.DepthFormat = c.img.image.Format
			config.DepthLayout = c.img.layout()
		} else {
			config.ColorFormat = c.img.image.Format
			config.ColorLayout = c.img.layout()
		}
		rp, err := ctx.CreateRenderPass(config)
		if err != nil {
			return err
		}
		sc.renderpasses = append(sc.renderpasses, rp)
		rp.R, rp.G, rp.B, rp.A = c.color[0], c.color[1], c.color[2], c.color[3]
		rp.Depth = c.depth
		c.rp = rp

		fb, err := ctx.CreateFramebuffer(rp, c.img.texture.Width, c.img.texture.Height, []vk.ImageView{c.img.image.View})
		if err != nil {
			return err
		}
		sc.framebuffers = append(sc.framebuffers, fb)
		c.fb = fb
	}

	return sc.renderer.Submit(func(cmd *vulkan.VulkanCommandBuffer) error {
		for _, img := range sc.images() {
			vulkan.TransitionImageLayout(cmd, img.image.Handle, vk.ImageLayoutUndefined, img.layout(), 0, 0, 1, 1,
				vulkan.BarrierAspect(img.aspect, img.image.Format))
		}
		for _, c := range clears {
			area := vk.Rect2D{Extent: vk.Extent2D{Width: c.img.texture.Width, Height: c.img.texture.Height}}
			c.rp.RenderpassBegin(cmd, c.fb.Handle, area)
			c.rp.RenderpassEnd(cmd)
		}
		return nil
	})
}

func fullRect(width, height uint32) [2]vk.Offset3D {
	return [2]vk.Offset3D{{}, {X: int32(width), Y: int32(height), Z: 1}}
}

func (sc *SelfCheck) buildScenarios() []scenario {
	colorAspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	depthAspect := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	w, h := sc.config.Width, sc.config.Height
	small := sc.colorSmall.texture

	out := []scenario{}
	if sc.samples > 1 {
		out = append(out, scenario{
			name:   "color-resolve",
			aspect: colorAspect,
			args: vulkan.BlitArgs{
				SrcTarget:   sc.colorMS.target(),
				DstTarget:   sc.color.target(),
				SrcRectPair: fullRect(w, h),
				DstRectPair: fullRect(w, h),
				Filter:      vk.FilterNearest,
			},
			verify: func() error { return sc.verifyColor(sc.color) },
		})
	} else {
		core.LogWarn("multisampling unavailable, skipping the resolve scenarios")
	}
	out = append(out, scenario{
		name:   "color-blit",
		aspect: colorAspect,
		args: vulkan.BlitArgs{
			SrcTarget:   sc.color.target(),
			DstTarget:   sc.colorSmall.target(),
			SrcRectPair: fullRect(w, h),
			DstRectPair: fullRect(small.Width, small.Height),
			Filter:      vk.FilterLinear,
		},
		verify: func() error { return sc.verifyColor(sc.colorSmall) },
	})
	if sc.samples > 1 {
		out = append(out, scenario{
			name:   "depth-resolve",
			aspect: depthAspect,
			args: vulkan.BlitArgs{
				SrcTarget:   sc.depthMS.target(),
				DstTarget:   sc.depth.target(),
				SrcRectPair: fullRect(w, h),
				DstRectPair: fullRect(w, h),
				Filter:      vk.FilterNearest,
			},
			verify: sc.verifyDepth,
		})
	}

	surface := sc.renderer.Surface()
	if surface != nil {
		extent := surface.GetExtent()
		out = append(out, scenario{
			name:   "surface-blit",
			aspect: colorAspect,
			args: vulkan.BlitArgs{
				SrcTarget:   sc.color.target(),
				DstTarget:   surface,
				SrcRectPair: fullRect(w, h),
				DstRectPair: fullRect(extent.Width, extent.Height),
				Filter:      vk.FilterLinear,
			},
			verify: sc.verifySurface,
		})
	}
	return out
}

// Run records every scenario in its own single use command buffer, then
// verifies the destination contents.
func (sc *SelfCheck) Run() error {
	blitter := sc.renderer.Blitter()
	for _, s := range sc.scenarios {
		var src, dst vulkan.VulkanAttachment
		if s.aspect&vk.ImageAspectFlags(vk.ImageAspectDepthBit) != 0 {
			src, dst = s.args.SrcTarget.GetDepth(), s.args.DstTarget.GetDepth()
		} else {
			src, dst = s.args.SrcTarget.GetColor(s.args.TargetIndex), s.args.DstTarget.GetColor(0)
		}
		kind := vulkan.ClassifyBlit(s.aspect, src, dst)

		var err error
		elapsed := core.MetricsTime(kind.String(), func() {
			err = sc.renderer.Submit(func(cmd *vulkan.VulkanCommandBuffer) error {
				if s.aspect&vk.ImageAspectFlags(vk.ImageAspectDepthBit) != 0 {
					return blitter.BlitDepth(cmd, s.args)
				}
				return blitter.BlitColor(cmd, s.args)
			})
		})
		if err != nil {
			return errors.Wrapf(err, "scenario %s", s.name)
		}
		core.EventFire(core.EVENT_CODE_BLIT_SUBMITTED, sc, core.EventContext{
			Data: core.BlitReport{Scenario: s.name, Kind: kind.String(), Elapsed: elapsed},
		})

		if err := s.verify(); err != nil {
			return errors.Wrapf(err, "scenario %s", s.name)
		}
	}
	return nil
}

// readback copies aspect of the first level and layer of img into host
// memory. The image is returned to from once the copy is done.
func (sc *SelfCheck) readback(img *vulkan.VulkanImage, from vk.ImageLayout, aspect vk.ImageAspectFlags, width, height, texelSize uint32) ([]byte, error) {
	ctx := sc.renderer.Context()
	barrier := vulkan.BarrierAspect(aspect, img.Format)
	size := int(width * height * texelSize)
	buffer, err := ctx.CreateBuffer(vk.BufferUsageFlags(vk.BufferUsageTransferDstBit), make([]byte, size))
	if err != nil {
		return nil, err
	}
	defer ctx.DestroyBuffer(buffer)

	err = sc.renderer.Submit(func(cmd *vulkan.VulkanCommandBuffer) error {
		vulkan.TransitionImageLayout(cmd, img.Handle, from, vk.ImageLayoutTransferSrcOptimal, 0, 0, 1, 1, barrier)
		cmd.CopyImageToBuffer(img.Handle, vk.ImageLayoutTransferSrcOptimal, buffer.Handle, []vk.BufferImageCopy{{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: aspect,
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
		}})
		vulkan.TransitionImageLayout(cmd, img.Handle, vk.ImageLayoutTransferSrcOptimal, from, 0, 0, 1, 1, barrier)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buffer.ReadData(ctx, 0, vk.DeviceSize(size))
}

func (sc *SelfCheck) readColor(img *selfCheckImage) ([]byte, error) {
	return sc.readback(img.image, img.layout(), img.aspect, img.texture.Width, img.texture.Height, 4)
}

func (sc *SelfCheck) verifyColor(img *selfCheckImage) error {
	pixels, err := sc.readColor(img)
	if err != nil {
		return err
	}
	return checkPixels(pixels, seedColor)
}

func (sc *SelfCheck) verifySurface() error {
	surface := sc.renderer.Surface()
	extent := surface.GetExtent()
	pixels, err := sc.readback(surface.Color, surface.ColorLayout, surface.Color.Aspect, extent.Width, extent.Height, 4)
	if err != nil {
		return err
	}
	return checkPixels(pixels, seedColor)
}

func (sc *SelfCheck) verifyDepth() error {
	format := sc.depth.image.Format
	if format != vk.FormatD32Sfloat && format != vk.FormatD32SfloatS8Uint {
		core.LogWarn("depth readback of format %d is not verified", format)
		return nil
	}
	texels, err := sc.readback(sc.depth.image, sc.depth.layout(), sc.depth.aspect,
		sc.depth.texture.Width, sc.depth.texture.Height, 4)
	if err != nil {
		return err
	}
	return checkDepth(texels, seedDepth)
}

func checkPixels(pixels []byte, want [4]float32) error {
	expected := [4]uint8{}
	for i, c := range want {
		expected[i] = uint8(math.Round(float64(c) * 255))
	}
	for i := 0; i+4 <= len(pixels); i += 4 {
		for c := 0; c < 4; c++ {
			if amath.AbsDiff(pixels[i+c], expected[c]) > colorTolerance {
				return errors.Newf("texel %d: got %v, want %v", i/4, pixels[i:i+4], expected)
			}
		}
	}
	return nil
}

func checkDepth(texels []byte, want float32) error {
	for i := 0; i+4 <= len(texels); i += 4 {
		got := math.Float32frombits(binary.LittleEndian.Uint32(texels[i:]))
		if amath.AbsDiff(got, want) > depthTolerance {
			return errors.Newf("depth texel %d: got %f, want %f", i/4, got, want)
		}
	}
	return nil
}

// Dump writes the resolved color image to path, encoded after its extension.
func (sc *SelfCheck) Dump(path string) error {
	pixels, err := sc.readColor(sc.color)
	if err != nil {
		return err
	}
	img := pixelsToImage(pixels, int(sc.color.texture.Width), int(sc.color.texture.Height))

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()

	start := time.Now()
	switch dumpFormat(path) {
	case "png":
		err = png.Encode(f, img)
	case "bmp":
		err = bmp.Encode(f, img)
	case "tiff":
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = errors.Wrapf(core.ErrInvalidConfig, "unsupported dump format %q", path)
	}
	if err != nil {
		return errors.Wrapf(err, "encoding %s", path)
	}
	core.LogInfo("dumped %s to %s in %s", sc.color.texture, path, time.Since(start))
	return nil
}

func pixelsToImage(pixels []byte, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			o := (y*width + x) * 4
			img.SetNRGBA(x, y, color.NRGBA{R: pixels[o], G: pixels[o+1], B: pixels[o+2], A: pixels[o+3]})
		}
	}
	return img
}

// Destroy releases every object created by the self check. The device must
// be idle.
func (sc *SelfCheck) Destroy() {
	ctx := sc.renderer.Context()
	if b := sc.renderer.Blitter(); b != nil {
		b.ReleaseFramebuffers()
	}
	if binder := sc.renderer.Binder(); binder != nil {
		for _, img := range sc.images() {
			binder.EvictView(img.image.View)
		}
		binder.CollectGarbage()
	}
	for _, fb := range sc.framebuffers {
		ctx.DestroyFramebuffer(fb)
	}
	sc.framebuffers = nil
	for _, rp := range sc.renderpasses {
		ctx.DestroyRenderPass(rp)
	}
	sc.renderpasses = nil
	for _, img := range sc.images() {
		img.image.ImageDestroy(ctx)
	}
	sc.colorMS, sc.color, sc.colorSmall, sc.depthMS, sc.depth = nil, nil, nil, nil, nil
	sc.scenarios = nil
}
