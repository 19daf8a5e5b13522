package vulkan

import _ "embed"

// Built from shaders/blitdepth.{vert,frag} with `mage build:shaders`.
var (
	//go:embed shaders/blitdepth.vert.spv
	blitDepthVertexShader []byte
	//go:embed shaders/blitdepth.frag.spv
	blitDepthFragmentShader []byte
)
