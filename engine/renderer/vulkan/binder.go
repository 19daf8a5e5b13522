package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-blit/engine/containers"
	"github.com/spaghettifunk/anima-blit/engine/core"
	"golang.org/x/exp/maps"
)

/**
 * @brief Creates and destroys the device objects the binder caches.
 * Implemented by *VulkanContext.
 */
type PipelineFactory interface {
	CreateDescriptorLayouts() (*VulkanDescriptorLayouts, error)
	DestroyDescriptorLayouts(layouts *VulkanDescriptorLayouts)
	CreateDescriptorPool(maxBundles uint32) (vk.DescriptorPool, error)
	DestroyDescriptorPool(pool vk.DescriptorPool)
	AllocateDescriptorSets(pool vk.DescriptorPool, layouts *VulkanDescriptorLayouts) ([DescriptorSetCount]vk.DescriptorSet, error)
	WriteDescriptorSets(sets [DescriptorSetCount]vk.DescriptorSet, bindings DescriptorBindings)
	CreateGraphicsPipeline(desc PipelineDescription) (vk.Pipeline, error)
	DestroyPipeline(pipeline vk.Pipeline)
}

type descriptorBundle [DescriptorSetCount]vk.DescriptorSet

/**
 * @brief Tracks the pipeline and descriptor state requested for the next
 * draw and hands out matching Vulkan objects, creating them on first use.
 * Both caches are bounded; when full, the oldest entry that is not currently
 * bound is evicted. Evicted objects may still be referenced by a recorded
 * command buffer, so they are only destroyed (pipelines) or recycled
 * (descriptor sets) by CollectGarbage.
 *
 * Not safe for concurrent use.
 */
type VulkanBinder struct {
	factory PipelineFactory
	layouts *VulkanDescriptorLayouts
	pool    vk.DescriptorPool

	// Requested state.
	pipelineKey   PipelineDescription
	descriptorKey DescriptorBindings

	// State bound to the current command buffer.
	pipelineBound      bool
	boundPipelineKey   PipelineDescription
	descriptorsBound   bool
	boundDescriptorKey DescriptorBindings

	pipelines     map[PipelineDescription]vk.Pipeline
	pipelineOrder *containers.RingQueue[PipelineDescription]

	descriptors     map[DescriptorBindings]descriptorBundle
	descriptorOrder *containers.RingQueue[DescriptorBindings]

	retiredPipelines []vk.Pipeline
	retiredBundles   []descriptorBundle
	freeBundles      []descriptorBundle
	allocatedBundles uint32
	maxBundles       uint32
}

/**
 * @brief Creates a binder with room for pipelineCapacity pipelines and
 * descriptorCapacity descriptor bundles. The descriptor pool is sized for
 * twice the bundle capacity so evicted bundles can wait for garbage
 * collection while new ones are allocated.
 */
func NewVulkanBinder(factory PipelineFactory, pipelineCapacity, descriptorCapacity int) (*VulkanBinder, error) {
	if pipelineCapacity <= 0 || descriptorCapacity <= 0 {
		return nil, errors.Wrapf(core.ErrInvalidCapacity, "binder capacities %d/%d", pipelineCapacity, descriptorCapacity)
	}
	pipelineOrder, err := containers.NewRingQueue[PipelineDescription](pipelineCapacity)
	if err != nil {
		return nil, err
	}
	descriptorOrder, err := containers.NewRingQueue[DescriptorBindings](descriptorCapacity)
	if err != nil {
		return nil, err
	}

	layouts, err := factory.CreateDescriptorLayouts()
	if err != nil {
		return nil, errors.Wrap(err, "binder descriptor layouts")
	}
	maxBundles := uint32(2 * descriptorCapacity)
	pool, err := factory.CreateDescriptorPool(maxBundles)
	if err != nil {
		factory.DestroyDescriptorLayouts(layouts)
		return nil, errors.Wrap(err, "binder descriptor pool")
	}

	return &VulkanBinder{
		factory:         factory,
		layouts:         layouts,
		pool:            pool,
		pipelines:       make(map[PipelineDescription]vk.Pipeline, pipelineCapacity),
		pipelineOrder:   pipelineOrder,
		descriptors:     make(map[DescriptorBindings]descriptorBundle, descriptorCapacity),
		descriptorOrder: descriptorOrder,
		maxBundles:      maxBundles,
	}, nil
}

func (b *VulkanBinder) BindProgramBundle(bundle ProgramBundle) {
	b.pipelineKey.Program = bundle
}

func (b *VulkanBinder) BindRasterState(state RasterStateConfig) {
	b.pipelineKey.Raster = state
}

func (b *VulkanBinder) BindPrimitiveTopology(topology vk.PrimitiveTopology) {
	b.pipelineKey.Topology = topology
}

func (b *VulkanBinder) BindVertexArray(varray VertexArray) {
	b.pipelineKey.VertexArray = varray
}

func (b *VulkanBinder) BindRenderPass(renderPass vk.RenderPass) {
	b.pipelineKey.RenderPass = renderPass
}

/**
 * @brief Replaces the combined image samplers of set 1. Slots past
 * samplers.Len() are cleared.
 */
func (b *VulkanBinder) BindSamplers(samplers *containers.Bounded[SamplerBinding]) {
	b.descriptorKey.Samplers = [SamplerBindingCount]SamplerBinding{}
	for i, s := range samplers.Items() {
		if i >= SamplerBindingCount {
			break
		}
		b.descriptorKey.Samplers[i] = s
	}
}

/**
 * @brief Replaces the uniform buffers of set 0. Slots past uniforms.Len()
 * are cleared.
 */
func (b *VulkanBinder) BindUniformBuffers(uniforms *containers.Bounded[UniformBinding]) {
	b.descriptorKey.Uniforms = [UniformBindingCount]UniformBinding{}
	for i, u := range uniforms.Items() {
		if i >= UniformBindingCount {
			break
		}
		b.descriptorKey.Uniforms[i] = u
	}
}

func (b *VulkanBinder) BindInputAttachment(attachment SamplerBinding) {
	b.descriptorKey.InputAttachments[0] = attachment
}

/**
 * @brief Returns descriptor sets matching the bound uniforms, samplers and
 * input attachment in out, plus the pipeline layout they are compatible
 * with. The returned flag is true when the sets differ from the ones last
 * returned for this command buffer and must be bound again.
 */
func (b *VulkanBinder) GetOrCreateDescriptors(out *containers.Bounded[vk.DescriptorSet]) (vk.PipelineLayout, bool, error) {
	key := b.descriptorKey
	bundle, ok := b.descriptors[key]
	if !ok {
		var err error
		if bundle, err = b.newBundle(); err != nil {
			return nil, false, err
		}
		b.factory.WriteDescriptorSets(bundle, key)
		if b.descriptorOrder.IsFull() {
			b.evictDescriptors()
		}
		if err := b.descriptorOrder.Enqueue(key); err != nil {
			return nil, false, err
		}
		b.descriptors[key] = bundle
	}

	out.Reset()
	for _, set := range bundle {
		if err := out.Push(set); err != nil {
			return nil, false, err
		}
	}

	changed := !b.descriptorsBound || b.boundDescriptorKey != key
	b.descriptorsBound = true
	b.boundDescriptorKey = key
	return b.layouts.PipelineLayout, changed, nil
}

/**
 * @brief Returns a pipeline matching the bound program, raster state,
 * topology, vertex array and render pass. The flag is true when the
 * pipeline differs from the one last returned for this command buffer.
 */
func (b *VulkanBinder) GetOrCreatePipeline() (vk.Pipeline, bool, error) {
	key := b.pipelineKey
	key.Layout = b.layouts.PipelineLayout
	if key.RenderPass == nil {
		return nil, false, errors.New("no render pass bound")
	}
	if key.Program.Vertex == nil || key.Program.Fragment == nil {
		return nil, false, errors.New("no program bound")
	}

	pipeline, ok := b.pipelines[key]
	if !ok {
		var err error
		if pipeline, err = b.factory.CreateGraphicsPipeline(key); err != nil {
			return nil, false, err
		}
		if b.pipelineOrder.IsFull() {
			b.evictPipeline()
		}
		if err := b.pipelineOrder.Enqueue(key); err != nil {
			return nil, false, err
		}
		b.pipelines[key] = pipeline
	}

	changed := !b.pipelineBound || b.boundPipelineKey != key
	b.pipelineBound = true
	b.boundPipelineKey = key
	return pipeline, changed, nil
}

/** @brief The pipeline layout shared by every pipeline of this binder. */
func (b *VulkanBinder) PipelineLayout() vk.PipelineLayout {
	return b.layouts.PipelineLayout
}

/**
 * @brief Forgets what is bound. Called when recording starts on a new
 * command buffer, so the next GetOrCreate* calls report a change.
 */
func (b *VulkanBinder) Reset() {
	b.pipelineBound = false
	b.boundPipelineKey = PipelineDescription{}
	b.descriptorsBound = false
	b.boundDescriptorKey = DescriptorBindings{}
}

/**
 * @brief Destroys evicted pipelines and recycles evicted descriptor sets.
 * Only call once every command buffer recorded before the evictions has
 * finished executing.
 */
func (b *VulkanBinder) CollectGarbage() {
	for _, pipeline := range b.retiredPipelines {
		b.factory.DestroyPipeline(pipeline)
	}
	b.retiredPipelines = b.retiredPipelines[:0]
	b.freeBundles = append(b.freeBundles, b.retiredBundles...)
	b.retiredBundles = b.retiredBundles[:0]
}

/** @brief Destroys every object owned by the binder. */
func (b *VulkanBinder) Shutdown() {
	b.CollectGarbage()
	for _, pipeline := range b.pipelines {
		b.factory.DestroyPipeline(pipeline)
	}
	maps.Clear(b.pipelines)
	maps.Clear(b.descriptors)
	for !b.pipelineOrder.IsEmpty() {
		b.pipelineOrder.Dequeue()
	}
	for !b.descriptorOrder.IsEmpty() {
		b.descriptorOrder.Dequeue()
	}
	b.freeBundles = nil
	b.allocatedBundles = 0
	if b.pool != nil {
		// Destroying the pool frees every set allocated from it.
		b.factory.DestroyDescriptorPool(b.pool)
		b.pool = nil
	}
	if b.layouts != nil {
		b.factory.DestroyDescriptorLayouts(b.layouts)
		b.layouts = &VulkanDescriptorLayouts{}
	}
	b.Reset()
}

/**
 * @brief Retires every cached descriptor bundle that samples or reads view.
 * Call before destroying an image view that was bound through
 * BindSamplers or BindInputAttachment. The bundles are recycled by the next
 * CollectGarbage.
 * @returns The number of bundles retired.
 */
func (b *VulkanBinder) EvictView(view vk.ImageView) int {
	if view == nil {
		return 0
	}
	retired := 0
	for n := b.descriptorOrder.Len(); n > 0; n-- {
		key, err := b.descriptorOrder.Dequeue()
		if err != nil {
			break
		}
		if !key.references(view) {
			b.descriptorOrder.Enqueue(key)
			continue
		}
		b.retiredBundles = append(b.retiredBundles, b.descriptors[key])
		delete(b.descriptors, key)
		if b.descriptorsBound && key == b.boundDescriptorKey {
			b.descriptorsBound = false
			b.boundDescriptorKey = DescriptorBindings{}
		}
		retired++
	}
	for i := range b.descriptorKey.Samplers {
		if b.descriptorKey.Samplers[i].View == view {
			b.descriptorKey.Samplers[i] = SamplerBinding{}
		}
	}
	for i := range b.descriptorKey.InputAttachments {
		if b.descriptorKey.InputAttachments[i].View == view {
			b.descriptorKey.InputAttachments[i] = SamplerBinding{}
		}
	}
	if retired > 0 {
		core.LogDebug("binder retired %d descriptor bundles reading a released view", retired)
	}
	return retired
}

/** @brief Number of cached pipelines. */
func (b *VulkanBinder) PipelineCount() int {
	return len(b.pipelines)
}

/** @brief Number of cached descriptor bundles. */
func (b *VulkanBinder) DescriptorBundleCount() int {
	return len(b.descriptors)
}

func (b *VulkanBinder) newBundle() (descriptorBundle, error) {
	if n := len(b.freeBundles); n > 0 {
		bundle := b.freeBundles[n-1]
		b.freeBundles = b.freeBundles[:n-1]
		return bundle, nil
	}
	if b.allocatedBundles >= b.maxBundles {
		return descriptorBundle{}, errors.Wrapf(core.ErrContainerFull, "descriptor pool exhausted (%d bundles)", b.maxBundles)
	}
	sets, err := b.factory.AllocateDescriptorSets(b.pool, b.layouts)
	if err != nil {
		return descriptorBundle{}, err
	}
	b.allocatedBundles++
	return sets, nil
}

// evictPipeline retires the oldest cached pipeline, skipping the bound one
// unless it is the only entry.
func (b *VulkanBinder) evictPipeline() {
	key, _ := b.pipelineOrder.Dequeue()
	if b.pipelineBound && key == b.boundPipelineKey && !b.pipelineOrder.IsEmpty() {
		next, _ := b.pipelineOrder.Dequeue()
		b.pipelineOrder.Enqueue(key)
		key = next
	}
	b.retiredPipelines = append(b.retiredPipelines, b.pipelines[key])
	delete(b.pipelines, key)
	core.LogDebug("binder evicted a pipeline, %d retired", len(b.retiredPipelines))
}

// evictDescriptors retires the oldest cached bundle, skipping the bound one
// unless it is the only entry.
func (b *VulkanBinder) evictDescriptors() {
	key, _ := b.descriptorOrder.Dequeue()
	if b.descriptorsBound && key == b.boundDescriptorKey && !b.descriptorOrder.IsEmpty() {
		next, _ := b.descriptorOrder.Dequeue()
		b.descriptorOrder.Enqueue(key)
		key = next
	}
	b.retiredBundles = append(b.retiredBundles, b.descriptors[key])
	delete(b.descriptors, key)
	core.LogDebug("binder evicted a descriptor bundle, %d retired", len(b.retiredBundles))
}
