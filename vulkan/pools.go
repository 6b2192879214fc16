package vulkan

import (
	vk "github.com/vulkan-go/vulkan"
)

// commandPool allocates primary command buffers for one queue family.
// Buffers can be reset individually.
type commandPool struct {
	device vk.Device
	pool   vk.CommandPool
}

func newCommandPool(device vk.Device, family uint32) (*commandPool, error) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &pool)
	if isError(ret) {
		return nil, NewError(ret)
	}
	return &commandPool{device: device, pool: pool}, nil
}

func (p *commandPool) allocate() (vk.CommandBuffer, error) {
	cmds := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(p.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, cmds)
	if isError(ret) {
		return nil, NewError(ret)
	}
	return cmds[0], nil
}

func (p *commandPool) free(cmd vk.CommandBuffer) {
	vk.FreeCommandBuffers(p.device, p.pool, 1, []vk.CommandBuffer{cmd})
}

func (p *commandPool) destroy() {
	vk.DestroyCommandPool(p.device, p.pool, nil)
}
