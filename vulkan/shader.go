package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// LoadShaderModule creates a shader module from SPIR-V bytecode.
func LoadShaderModule(device vk.Device, data []byte) (vk.ShaderModule, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return vk.NullShaderModule, fmt.Errorf("vulkan: shader bytecode of %d bytes is not whole words", len(data))
	}
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(data)),
		PCode:    sliceUint32(data),
	}, nil, &module)
	if isError(ret) {
		return vk.NullShaderModule, NewError(ret)
	}
	return module, nil
}

func sliceUint32(data []byte) []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}
