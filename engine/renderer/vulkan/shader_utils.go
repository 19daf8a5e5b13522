package vulkan

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-blit/engine/core"
)

const spirvMagic uint32 = 0x07230203

/**
 * @brief Converts a SPIR-V binary into the words vkCreateShaderModule
 * expects. SPIR-V files are little endian.
 */
func SpirvWords(code []byte) ([]uint32, error) {
	if len(code) < 20 || len(code)%4 != 0 {
		return nil, errors.Newf("invalid SPIR-V size %d", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, errors.Newf("invalid SPIR-V magic 0x%08x", words[0])
	}
	return words, nil
}

func ShaderModuleCreate(context *VulkanContext, code []byte) (vk.ShaderModule, error) {
	words, err := SpirvWords(code)
	if err != nil {
		return nil, err
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    words,
	}
	var module vk.ShaderModule
	if err := vk.Error(vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &module)); err != nil {
		core.LogError("vkCreateShaderModule failed with %s", err)
		return nil, errors.Wrap(err, "vkCreateShaderModule")
	}
	return module, nil
}
