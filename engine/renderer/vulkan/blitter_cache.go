package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-blit/engine/core"
)

type blitterCacheState int

const (
	blitterCacheUninitialized blitterCacheState = iota
	blitterCacheReady
	blitterCacheShutDown
)

func (s blitterCacheState) String() string {
	switch s {
	case blitterCacheUninitialized:
		return "uninitialized"
	case blitterCacheReady:
		return "ready"
	case blitterCacheShutDown:
		return "shut down"
	}
	return "unknown"
}

type framebufferKey struct {
	renderPass vk.RenderPass
	view       vk.ImageView
	width      uint32
	height     uint32
}

/**
 * @brief Device objects used by the shader based depth resolve. Created on
 * first use and kept until shutdown. Not safe for concurrent use.
 */
type blitterCache struct {
	device Device
	state  blitterCacheState

	vertexShader   vk.ShaderModule
	fragmentShader vk.ShaderModule
	quad           *VulkanRenderPrimitive
	depthSampler   vk.Sampler

	renderPasses map[vk.Format]*VulkanRenderpass
	framebuffers map[framebufferKey]*VulkanFramebuffer
}

func newBlitterCache(device Device) *blitterCache {
	return &blitterCache{device: device}
}

/**
 * @brief Creates the shader modules, the quad buffers and the depth sampler.
 * Does nothing once the cache is ready. Panics when the device is missing or
 * any object cannot be created.
 */
func (c *blitterCache) lazyInit() {
	if c.state == blitterCacheReady {
		return
	}
	core.Assertf(c.device != nil && c.device.IsValid(), "depth blit cache: %s", core.ErrDeviceMissing)

	var err error
	c.vertexShader, err = c.device.CreateShaderModule(blitDepthVertexShader)
	core.Assertf(err == nil, "unable to create the depth blit vertex shader: %v", err)
	c.fragmentShader, err = c.device.CreateShaderModule(blitDepthFragmentShader)
	core.Assertf(err == nil, "unable to create the depth blit fragment shader: %v", err)

	vertices, err := c.device.CreateBuffer(vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit), quadVertexBytes())
	core.Assertf(err == nil, "unable to upload the quad vertices: %v", err)
	indices, err := c.device.CreateBuffer(vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit), quadIndexBytes())
	core.Assertf(err == nil, "unable to upload the quad indices: %v", err)
	c.quad = &VulkanRenderPrimitive{
		Topology:    vk.PrimitiveTopologyTriangleStrip,
		VertexArray: quadVertexArray(),
		Vertices:    vertices,
		Indices:     indices,
		IndexType:   vk.IndexTypeUint16,
		IndexCount:  quadVertexCount,
	}

	c.depthSampler, err = c.device.CreateSampler(vk.FilterNearest)
	core.Assertf(err == nil, "unable to create the depth sampler: %v", err)

	c.renderPasses = make(map[vk.Format]*VulkanRenderpass)
	c.framebuffers = make(map[framebufferKey]*VulkanFramebuffer)
	c.state = blitterCacheReady
	core.LogDebug("depth blit cache ready")
}

/**
 * @brief Destroys everything the cache created. Does nothing when the
 * device is gone. A later lazyInit starts over.
 */
func (c *blitterCache) shutdown() {
	if c.device == nil || !c.device.IsValid() {
		return
	}
	c.releaseFramebuffers()
	for format, renderpass := range c.renderPasses {
		c.device.DestroyRenderPass(renderpass)
		delete(c.renderPasses, format)
	}
	if c.quad != nil {
		c.device.DestroyBuffer(c.quad.Vertices)
		c.device.DestroyBuffer(c.quad.Indices)
		c.quad = nil
	}
	if c.depthSampler != nil {
		c.device.DestroySampler(c.depthSampler)
		c.depthSampler = nil
	}
	if c.fragmentShader != nil {
		c.device.DestroyShaderModule(c.fragmentShader)
		c.fragmentShader = nil
	}
	if c.vertexShader != nil {
		c.device.DestroyShaderModule(c.vertexShader)
		c.vertexShader = nil
	}
	if c.state != blitterCacheUninitialized {
		core.LogDebug("depth blit cache shut down")
	}
	c.state = blitterCacheShutDown
}

func (c *blitterCache) program() ProgramBundle {
	return ProgramBundle{Vertex: c.vertexShader, Fragment: c.fragmentShader}
}

// depthRenderPass returns the single sample, depth only render pass for
// format. The attachment is loaded and stored so pixels outside the draw
// keep their content.
func (c *blitterCache) depthRenderPass(format vk.Format) *VulkanRenderpass {
	if renderpass, ok := c.renderPasses[format]; ok {
		return renderpass
	}
	renderpass, err := c.device.CreateRenderPass(VulkanRenderpassConfig{
		ColorFormat: vk.FormatUndefined,
		DepthFormat: format,
		DepthLayout: vk.ImageLayoutDepthStencilAttachmentOptimal,
		Samples:     1,
		LoadOp:      vk.AttachmentLoadOpLoad,
	})
	core.Assertf(err == nil, "unable to create the depth blit render pass: %v", err)
	c.renderPasses[format] = renderpass
	return renderpass
}

func (c *blitterCache) framebuffer(renderpass *VulkanRenderpass, view vk.ImageView, extent vk.Extent2D) *VulkanFramebuffer {
	key := framebufferKey{renderPass: renderpass.Handle, view: view, width: extent.Width, height: extent.Height}
	if framebuffer, ok := c.framebuffers[key]; ok {
		return framebuffer
	}
	framebuffer, err := c.device.CreateFramebuffer(renderpass, extent.Width, extent.Height, []vk.ImageView{view})
	core.Assertf(err == nil, "unable to create the depth blit framebuffer: %v", err)
	c.framebuffers[key] = framebuffer
	return framebuffer
}

func (c *blitterCache) releaseFramebuffers() {
	for key, framebuffer := range c.framebuffers {
		c.device.DestroyFramebuffer(framebuffer)
		delete(c.framebuffers, key)
	}
}
