package vulkan

import (
	"testing"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-blit/engine/core"
	"github.com/spaghettifunk/anima-blit/engine/renderer/metadata"
)

// newHandle returns a distinct non-nil Vulkan handle that is never passed
// to the driver.
func newHandle[T any]() T {
	p := unsafe.Pointer(new(uint64))
	return *(*T)(unsafe.Pointer(&p))
}

// expectAssertion runs fn and fails the test unless it panics through
// core.Assertf.
func expectAssertion(t *testing.T, fn func()) (message string) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected an assertion failure")
		}
		if !core.IsAssertionFailure(r) {
			t.Fatalf("panic %v is not an assertion failure", r)
		}
		message = r.(error).Error()
	}()
	fn()
	return ""
}

type fakeRecorder struct {
	ops       []string
	barriers  []vk.ImageMemoryBarrier
	blits     []vk.ImageBlit
	filters   []vk.Filter
	resolves  []vk.ImageResolve
	areas     []vk.Rect2D
	viewports []vk.Viewport
	scissors  []vk.Rect2D
	pipelines []vk.Pipeline
	sets      [][]vk.DescriptorSet
	draws     []uint32
}

var _ CommandRecorder = (*fakeRecorder)(nil)

func (r *fakeRecorder) PipelineBarrier(srcStage, dstStage vk.PipelineStageFlags, barriers []vk.ImageMemoryBarrier) {
	r.ops = append(r.ops, "barrier")
	r.barriers = append(r.barriers, barriers...)
}

func (r *fakeRecorder) BlitImage(src vk.Image, srcLayout vk.ImageLayout, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.ImageBlit, filter vk.Filter) {
	r.ops = append(r.ops, "blit")
	r.blits = append(r.blits, regions...)
	r.filters = append(r.filters, filter)
}

func (r *fakeRecorder) ResolveImage(src vk.Image, srcLayout vk.ImageLayout, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.ImageResolve) {
	r.ops = append(r.ops, "resolve")
	r.resolves = append(r.resolves, regions...)
}

func (r *fakeRecorder) BeginRenderPass(renderPass vk.RenderPass, framebuffer vk.Framebuffer, area vk.Rect2D, clearValues []vk.ClearValue) {
	r.ops = append(r.ops, "begin-render-pass")
	r.areas = append(r.areas, area)
}

func (r *fakeRecorder) EndRenderPass() {
	r.ops = append(r.ops, "end-render-pass")
}

func (r *fakeRecorder) SetViewport(viewport vk.Viewport) {
	r.ops = append(r.ops, "viewport")
	r.viewports = append(r.viewports, viewport)
}

func (r *fakeRecorder) SetScissor(scissor vk.Rect2D) {
	r.ops = append(r.ops, "scissor")
	r.scissors = append(r.scissors, scissor)
}

func (r *fakeRecorder) BindPipeline(pipeline vk.Pipeline) {
	r.ops = append(r.ops, "bind-pipeline")
	r.pipelines = append(r.pipelines, pipeline)
}

func (r *fakeRecorder) BindDescriptorSets(layout vk.PipelineLayout, sets []vk.DescriptorSet) {
	r.ops = append(r.ops, "bind-descriptor-sets")
	r.sets = append(r.sets, append([]vk.DescriptorSet(nil), sets...))
}

func (r *fakeRecorder) BindVertexBuffers(buffers []vk.Buffer, offsets []vk.DeviceSize) {
	r.ops = append(r.ops, "bind-vertex-buffers")
}

func (r *fakeRecorder) BindIndexBuffer(buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType) {
	r.ops = append(r.ops, "bind-index-buffer")
}

func (r *fakeRecorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	r.ops = append(r.ops, "draw-indexed")
	r.draws = append(r.draws, indexCount)
}

func (r *fakeRecorder) count(op string) int {
	n := 0
	for _, o := range r.ops {
		if o == op {
			n++
		}
	}
	return n
}

type fakeDevice struct {
	valid         bool
	formats       map[vk.Format]vk.FormatProperties
	formatQueries int
	// 1-based index of the CreateShaderModule call that fails, 0 for none.
	failStage int

	created   map[string]int
	destroyed map[string]int
}

var _ Device = (*fakeDevice)(nil)

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		valid:     true,
		formats:   map[vk.Format]vk.FormatProperties{},
		created:   map[string]int{},
		destroyed: map[string]int{},
	}
}

func (d *fakeDevice) IsValid() bool {
	return d.valid
}

func (d *fakeDevice) FormatProperties(format vk.Format) vk.FormatProperties {
	d.formatQueries++
	return d.formats[format]
}

func (d *fakeDevice) CreateShaderModule(code []byte) (vk.ShaderModule, error) {
	if _, err := SpirvWords(code); err != nil {
		return nil, err
	}
	d.created["shader"]++
	if d.failStage != 0 && d.created["shader"] == d.failStage {
		return nil, errors.New("driver refused the module")
	}
	return newHandle[vk.ShaderModule](), nil
}

func (d *fakeDevice) DestroyShaderModule(module vk.ShaderModule) {
	d.destroyed["shader"]++
}

func (d *fakeDevice) CreateBuffer(usage vk.BufferUsageFlags, data []byte) (*VulkanBuffer, error) {
	d.created["buffer"]++
	return &VulkanBuffer{
		Handle:    newHandle[vk.Buffer](),
		TotalSize: vk.DeviceSize(len(data)),
		Usage:     usage,
	}, nil
}

func (d *fakeDevice) DestroyBuffer(buffer *VulkanBuffer) {
	d.destroyed["buffer"]++
}

func (d *fakeDevice) CreateSampler(filter vk.Filter) (vk.Sampler, error) {
	d.created["sampler"]++
	return newHandle[vk.Sampler](), nil
}

func (d *fakeDevice) DestroySampler(sampler vk.Sampler) {
	d.destroyed["sampler"]++
}

func (d *fakeDevice) CreateRenderPass(config VulkanRenderpassConfig) (*VulkanRenderpass, error) {
	d.created["renderpass"]++
	return &VulkanRenderpass{Handle: newHandle[vk.RenderPass](), Config: config, A: 1, Depth: 1}, nil
}

func (d *fakeDevice) DestroyRenderPass(renderpass *VulkanRenderpass) {
	d.destroyed["renderpass"]++
}

func (d *fakeDevice) CreateFramebuffer(renderpass *VulkanRenderpass, width, height uint32, views []vk.ImageView) (*VulkanFramebuffer, error) {
	d.created["framebuffer"]++
	return &VulkanFramebuffer{
		Handle:      newHandle[vk.Framebuffer](),
		Attachments: views,
		Renderpass:  renderpass,
		Width:       width,
		Height:      height,
	}, nil
}

func (d *fakeDevice) DestroyFramebuffer(framebuffer *VulkanFramebuffer) {
	d.destroyed["framebuffer"]++
}

type fakeFactory struct {
	layouts      *VulkanDescriptorLayouts
	descriptions []PipelineDescription
	written      []DescriptorBindings
	allocations  int
	failAlloc    bool

	created   map[string]int
	destroyed map[string]int
}

var _ PipelineFactory = (*fakeFactory)(nil)

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		created:   map[string]int{},
		destroyed: map[string]int{},
	}
}

func (f *fakeFactory) CreateDescriptorLayouts() (*VulkanDescriptorLayouts, error) {
	f.created["layouts"]++
	f.layouts = &VulkanDescriptorLayouts{PipelineLayout: newHandle[vk.PipelineLayout]()}
	for i := range f.layouts.SetLayouts {
		f.layouts.SetLayouts[i] = newHandle[vk.DescriptorSetLayout]()
	}
	return f.layouts, nil
}

func (f *fakeFactory) DestroyDescriptorLayouts(layouts *VulkanDescriptorLayouts) {
	f.destroyed["layouts"]++
}

func (f *fakeFactory) CreateDescriptorPool(maxBundles uint32) (vk.DescriptorPool, error) {
	f.created["pool"]++
	return newHandle[vk.DescriptorPool](), nil
}

func (f *fakeFactory) DestroyDescriptorPool(pool vk.DescriptorPool) {
	f.destroyed["pool"]++
}

func (f *fakeFactory) AllocateDescriptorSets(pool vk.DescriptorPool, layouts *VulkanDescriptorLayouts) ([DescriptorSetCount]vk.DescriptorSet, error) {
	var sets [DescriptorSetCount]vk.DescriptorSet
	if f.failAlloc {
		return sets, errors.New("out of pool memory")
	}
	f.allocations++
	for i := range sets {
		sets[i] = newHandle[vk.DescriptorSet]()
	}
	return sets, nil
}

func (f *fakeFactory) WriteDescriptorSets(sets [DescriptorSetCount]vk.DescriptorSet, bindings DescriptorBindings) {
	f.written = append(f.written, bindings)
}

func (f *fakeFactory) CreateGraphicsPipeline(desc PipelineDescription) (vk.Pipeline, error) {
	f.created["pipeline"]++
	f.descriptions = append(f.descriptions, desc)
	return newHandle[vk.Pipeline](), nil
}

func (f *fakeFactory) DestroyPipeline(pipeline vk.Pipeline) {
	f.destroyed["pipeline"]++
}

// fakeAttachment describes level 0, layer 0 of a fresh image.
func fakeAttachment(format vk.Format, samples uint32, texture *metadata.Texture) VulkanAttachment {
	return VulkanAttachment{
		Image:   newHandle[vk.Image](),
		View:    newHandle[vk.ImageView](),
		Format:  format,
		Samples: samples,
		Texture: texture,
	}
}
