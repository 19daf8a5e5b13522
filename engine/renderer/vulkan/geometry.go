package vulkan

import (
	"encoding/binary"
	"math"

	vk "github.com/goki/vulkan"
)

// Full screen quad drawn as a triangle strip.
var (
	quadVertices = [quadVertexCount * 2]float32{
		-1.0, -1.0,
		1.0, -1.0,
		-1.0, 1.0,
		1.0, 1.0,
	}
	quadIndices = [quadVertexCount]uint16{0, 1, 2, 3}
)

/**
 * @brief Vertex input description and buffers of a drawable mesh.
 */
type VulkanRenderPrimitive struct {
	Topology    vk.PrimitiveTopology
	VertexArray VertexArray
	Vertices    *VulkanBuffer
	Indices     *VulkanBuffer
	IndexType   vk.IndexType
	IndexCount  uint32
}

/**
 * @brief Binds the vertex and index buffers of the primitive and draws it
 * once.
 */
func (p *VulkanRenderPrimitive) Draw(cmd CommandRecorder) {
	cmd.BindVertexBuffers([]vk.Buffer{p.Vertices.Handle}, []vk.DeviceSize{0})
	cmd.BindIndexBuffer(p.Indices.Handle, 0, p.IndexType)
	cmd.DrawIndexed(p.IndexCount, 1, 0, 0, 0)
}

// quadVertexArray describes one R32G32_SFLOAT position at location 0 read
// from binding 0.
func quadVertexArray() VertexArray {
	var varray VertexArray
	varray.Attributes[0] = VertexAttribute{
		Location: 0,
		Binding:  0,
		Format:   vk.FormatR32g32Sfloat,
		Offset:   0,
	}
	varray.Buffers[0] = VertexBufferBinding{
		Binding:   0,
		Stride:    2 * 4,
		InputRate: vk.VertexInputRateVertex,
	}
	varray.AttributeCount = 1
	varray.BufferCount = 1
	return varray
}

func quadVertexBytes() []byte {
	out := make([]byte, 0, len(quadVertices)*4)
	for _, v := range quadVertices {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

func quadIndexBytes() []byte {
	out := make([]byte, 0, len(quadIndices)*2)
	for _, i := range quadIndices {
		out = binary.LittleEndian.AppendUint16(out, i)
	}
	return out
}
