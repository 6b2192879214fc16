package vulkan

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/andewx/diesel/gpu"
	vk "github.com/vulkan-go/vulkan"
)

// FindRequiredMemoryType returns the first memory type allowed by
// typeBits that has all of the required property flags.
func FindRequiredMemoryType(props vk.PhysicalDeviceMemoryProperties,
	typeBits uint32, required vk.MemoryPropertyFlagBits) (uint32, bool) {

	for i := uint32(0); i < props.MemoryTypeCount && i < uint32(len(props.MemoryTypes)); i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		props.MemoryTypes[i].Deref()
		flags := props.MemoryTypes[i].PropertyFlags
		if flags&vk.MemoryPropertyFlags(required) == vk.MemoryPropertyFlags(required) {
			return i, true
		}
	}
	return 0, false
}

// findMemoryTypeFallback tries the required flags, then any memory
// type allowed by typeBits.
func findMemoryTypeFallback(props vk.PhysicalDeviceMemoryProperties,
	typeBits uint32, required vk.MemoryPropertyFlagBits) (uint32, bool) {

	if i, ok := FindRequiredMemoryType(props, typeBits, required); ok {
		return i, true
	}
	return FindRequiredMemoryType(props, typeBits, 0)
}

// Allocator gives every buffer and image its own device memory
// allocation.
type Allocator struct {
	d *Device
}

func (a *Allocator) allocate(reqs vk.MemoryRequirements, hostVisible bool) (vk.DeviceMemory, error) {
	var (
		index uint32
		ok    bool
	)
	if hostVisible {
		index, ok = FindRequiredMemoryType(a.d.memProps, reqs.MemoryTypeBits,
			vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	} else {
		index, ok = findMemoryTypeFallback(a.d.memProps, reqs.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit)
	}
	if !ok {
		return vk.DeviceMemory(vk.NullHandle), fmt.Errorf("vulkan: no memory type for bits %#x: %w", reqs.MemoryTypeBits, gpu.ErrNoDeviceMemory)
	}
	var mem vk.DeviceMemory
	ret := vk.AllocateMemory(a.d.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: index,
	}, nil, &mem)
	if isError(ret) {
		return vk.DeviceMemory(vk.NullHandle), NewError(ret)
	}
	return mem, nil
}

// NewBuffer implements gpu.Allocator.
func (a *Allocator) NewBuffer(desc *gpu.BufferDesc) (gpu.Handle, gpu.Allocation, error) {
	if desc.Size == 0 {
		return gpu.NullHandle, gpu.Allocation{}, errors.New("vulkan: zero-sized buffer")
	}
	var buf vk.Buffer
	ret := vk.CreateBuffer(a.d.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       vkBufferUsage(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buf)
	if isError(ret) {
		return gpu.NullHandle, gpu.Allocation{}, NewError(ret)
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(a.d.device, buf, &reqs)
	reqs.Deref()
	mem, err := a.allocate(reqs, desc.HostVisible)
	if err != nil {
		vk.DestroyBuffer(a.d.device, buf, nil)
		return gpu.NullHandle, gpu.Allocation{}, err
	}
	if ret := vk.BindBufferMemory(a.d.device, buf, mem, 0); isError(ret) {
		vk.FreeMemory(a.d.device, mem, nil)
		vk.DestroyBuffer(a.d.device, buf, nil)
		return gpu.NullHandle, gpu.Allocation{}, NewError(ret)
	}
	h := a.d.reg.add(&buffer{buf: buf, size: desc.Size})
	alloc := gpu.Allocation{
		Memory:      a.d.reg.add(&memory{mem: mem}),
		Size:        uint64(reqs.Size),
		HostVisible: desc.HostVisible,
	}
	return h, alloc, nil
}

// NewImage implements gpu.Allocator. Images are 2D, single-layer and
// optimally tiled.
func (a *Allocator) NewImage(desc *gpu.ImageDesc) (gpu.Handle, gpu.Allocation, error) {
	if desc.Extent.IsZero() {
		return gpu.NullHandle, gpu.Allocation{}, errors.New("vulkan: zero-sized image")
	}
	levels := desc.Levels
	if levels == 0 {
		levels = 1
	}
	var img vk.Image
	ret := vk.CreateImage(a.d.device, &vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        vkFormat(desc.Format),
		Extent:        vk.Extent3D{Width: desc.Extent.Width, Height: desc.Extent.Height, Depth: 1},
		MipLevels:     levels,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vkImageUsage(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &img)
	if isError(ret) {
		return gpu.NullHandle, gpu.Allocation{}, NewError(ret)
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(a.d.device, img, &reqs)
	reqs.Deref()
	mem, err := a.allocate(reqs, false)
	if err != nil {
		vk.DestroyImage(a.d.device, img, nil)
		return gpu.NullHandle, gpu.Allocation{}, err
	}
	if ret := vk.BindImageMemory(a.d.device, img, mem, 0); isError(ret) {
		vk.FreeMemory(a.d.device, mem, nil)
		vk.DestroyImage(a.d.device, img, nil)
		return gpu.NullHandle, gpu.Allocation{}, NewError(ret)
	}
	h := a.d.reg.add(&image{
		img:    img,
		format: desc.Format,
		extent: desc.Extent,
		levels: levels,
		owned:  true,
	})
	return h, gpu.Allocation{Memory: a.d.reg.add(&memory{mem: mem}), Size: uint64(reqs.Size)}, nil
}

// Map implements gpu.Allocator.
func (a *Allocator) Map(alloc gpu.Allocation) ([]byte, error) {
	if !alloc.HostVisible {
		return nil, errors.New("vulkan: mapping memory that is not host visible")
	}
	mem := lookup[*memory](&a.d.reg, alloc.Memory)
	var p unsafe.Pointer
	ret := vk.MapMemory(a.d.device, mem.mem, vk.DeviceSize(alloc.Offset), vk.DeviceSize(alloc.Size), 0, &p)
	if isError(ret) {
		return nil, NewError(ret)
	}
	return unsafe.Slice((*byte)(p), alloc.Size), nil
}

// Unmap implements gpu.Allocator.
func (a *Allocator) Unmap(alloc gpu.Allocation) {
	vk.UnmapMemory(a.d.device, lookup[*memory](&a.d.reg, alloc.Memory).mem)
}

// DestroyBuffer implements gpu.Allocator.
func (a *Allocator) DestroyBuffer(h gpu.Handle, alloc gpu.Allocation) {
	b := lookup[*buffer](&a.d.reg, h)
	a.d.reg.remove(h)
	vk.DestroyBuffer(a.d.device, b.buf, nil)
	a.free(alloc)
}

// DestroyImage implements gpu.Allocator.
func (a *Allocator) DestroyImage(h gpu.Handle, alloc gpu.Allocation) {
	img := lookup[*image](&a.d.reg, h)
	a.d.reg.remove(h)
	if img.owned {
		vk.DestroyImage(a.d.device, img.img, nil)
	}
	a.free(alloc)
}

func (a *Allocator) free(alloc gpu.Allocation) {
	if alloc.Memory == gpu.NullHandle {
		return
	}
	mem := lookup[*memory](&a.d.reg, alloc.Memory)
	a.d.reg.remove(alloc.Memory)
	vk.FreeMemory(a.d.device, mem.mem, nil)
}
