package vulkan

import vk "github.com/vulkan-go/vulkan"

// fencePool recycles the fences that back queue counters.
// It is not safe for concurrent use.
type fencePool struct {
	device vk.Device
	free   []vk.Fence
	all    []vk.Fence
}

func newFencePool(device vk.Device) *fencePool {
	return &fencePool{device: device}
}

// get returns an unsignaled fence.
func (p *fencePool) get() (vk.Fence, error) {
	if n := len(p.free); n > 0 {
		f := p.free[n-1]
		p.free = p.free[:n-1]
		return f, nil
	}
	var fence vk.Fence
	ret := vk.CreateFence(p.device, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}, nil, &fence)
	if isError(ret) {
		return vk.NullFence, NewError(ret)
	}
	p.all = append(p.all, fence)
	return fence, nil
}

// put resets a signaled fence and makes it available again.
func (p *fencePool) put(f vk.Fence) {
	vk.ResetFences(p.device, 1, []vk.Fence{f})
	p.free = append(p.free, f)
}

// destroy destroys every fence. The device must be idle.
func (p *fencePool) destroy() {
	for _, f := range p.all {
		vk.DestroyFence(p.device, f, nil)
	}
	p.all, p.free = nil, nil
}
