package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-blit/engine/core"
)

type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	/** @brief The total size of the buffer in bytes. */
	TotalSize vk.DeviceSize
	Usage     vk.BufferUsageFlags
	/** @brief The memory property flags the backing memory was allocated with. */
	MemoryPropertyFlags vk.MemoryPropertyFlagBits
}

/**
 * @brief Creates a buffer of size bytes backed by memory with the given
 * properties.
 */
func BufferCreate(context *VulkanContext, size vk.DeviceSize, usage vk.BufferUsageFlags, memoryPropertyFlags vk.MemoryPropertyFlagBits) (*VulkanBuffer, error) {
	outBuffer := &VulkanBuffer{
		TotalSize:           size,
		Usage:               usage,
		MemoryPropertyFlags: memoryPropertyFlags,
	}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive, // NOTE: Only used in one queue.
	}

	var handle vk.Buffer
	if err := vk.Error(vk.CreateBuffer(context.Device.LogicalDevice, &bufferInfo, context.Allocator, &handle)); err != nil {
		core.LogError("failed to create buffer: %s", err)
		return nil, errors.Wrap(err, "vkCreateBuffer")
	}
	outBuffer.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, handle, &requirements)
	requirements.Deref()

	memoryIndex := context.FindMemoryIndex(requirements.MemoryTypeBits, uint32(memoryPropertyFlags))
	if memoryIndex == -1 {
		outBuffer.Destroy(context)
		return nil, errors.Newf("unable to create vulkan buffer because the required memory type index was not found (flags 0x%x)", memoryPropertyFlags)
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	var memory vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory)); err != nil {
		outBuffer.Destroy(context)
		core.LogError("unable to allocate memory for buffer: %s", err)
		return nil, errors.Wrap(err, "vkAllocateMemory")
	}
	outBuffer.Memory = memory

	if err := vk.Error(vk.BindBufferMemory(context.Device.LogicalDevice, handle, memory, 0)); err != nil {
		outBuffer.Destroy(context)
		return nil, errors.Wrap(err, "vkBindBufferMemory")
	}
	return outBuffer, nil
}

func (b *VulkanBuffer) Destroy(context *VulkanContext) {
	if b.Memory != nil {
		vk.FreeMemory(context.Device.LogicalDevice, b.Memory, context.Allocator)
		b.Memory = nil
	}
	if b.Handle != nil {
		vk.DestroyBuffer(context.Device.LogicalDevice, b.Handle, context.Allocator)
		b.Handle = nil
	}
	b.TotalSize = 0
}

/**
 * @brief Copies data into host visible buffer memory at offset.
 */
func (b *VulkanBuffer) LoadData(context *VulkanContext, offset vk.DeviceSize, data []byte) error {
	if vk.DeviceSize(len(data))+offset > b.TotalSize {
		return errors.Wrapf(core.ErrOutOfRange, "load of %d bytes at %d into a %d byte buffer", len(data), offset, b.TotalSize)
	}
	var ptr unsafe.Pointer
	if err := vk.Error(vk.MapMemory(context.Device.LogicalDevice, b.Memory, offset, vk.DeviceSize(len(data)), 0, &ptr)); err != nil {
		return errors.Wrap(err, "vkMapMemory")
	}
	vk.Memcopy(ptr, data)
	vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
	return nil
}

/**
 * @brief Reads size bytes of host visible buffer memory starting at offset.
 */
func (b *VulkanBuffer) ReadData(context *VulkanContext, offset, size vk.DeviceSize) ([]byte, error) {
	if offset+size > b.TotalSize {
		return nil, errors.Wrapf(core.ErrOutOfRange, "read of %d bytes at %d from a %d byte buffer", size, offset, b.TotalSize)
	}
	var ptr unsafe.Pointer
	if err := vk.Error(vk.MapMemory(context.Device.LogicalDevice, b.Memory, offset, size, 0, &ptr)); err != nil {
		return nil, errors.Wrap(err, "vkMapMemory")
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(ptr), int(size)))
	vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
	return out, nil
}
