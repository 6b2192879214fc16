package gputest

import (
	"fmt"

	"github.com/andewx/diesel/gpu"
)

// Allocator is an in-memory gpu.Allocator.
// Host-visible allocations are backed by byte slices.
type Allocator struct {
	d      *Device
	last   gpu.Handle
	mem    map[gpu.Handle][]byte
	images map[gpu.Handle]gpu.ImageDesc

	// Unmaps counts calls to Unmap.
	Unmaps int
}

func (a *Allocator) memory(size uint64, host bool) gpu.Allocation {
	a.last++
	m := gpu.Handle(1<<32) + a.last
	if host {
		a.mem[m] = make([]byte, size)
	}
	return gpu.Allocation{Memory: m, Size: size, HostVisible: host}
}

// Bytes returns the contents of a host-visible allocation.
func (a *Allocator) Bytes(m gpu.Allocation) []byte { return a.mem[m.Memory] }

// Image returns the description an image was created with.
func (a *Allocator) Image(h gpu.Handle) (gpu.ImageDesc, bool) {
	desc, ok := a.images[h]
	return desc, ok
}

// NewBuffer implements gpu.Allocator.
func (a *Allocator) NewBuffer(desc *gpu.BufferDesc) (gpu.Handle, gpu.Allocation, error) {
	if desc.Size == 0 {
		return gpu.NullHandle, gpu.Allocation{}, fmt.Errorf("gputest: zero-sized buffer %q", desc.Label)
	}
	h, err := a.d.create(gpu.KindBuffer)
	if err != nil {
		return h, gpu.Allocation{}, err
	}
	return h, a.memory(desc.Size, desc.HostVisible), nil
}

// NewImage implements gpu.Allocator.
func (a *Allocator) NewImage(desc *gpu.ImageDesc) (gpu.Handle, gpu.Allocation, error) {
	if desc.Extent.IsZero() || desc.Levels == 0 {
		return gpu.NullHandle, gpu.Allocation{}, fmt.Errorf("gputest: invalid image %q", desc.Label)
	}
	h, err := a.d.create(gpu.KindImage)
	if err != nil {
		return h, gpu.Allocation{}, err
	}
	a.images[h] = *desc
	size := uint64(desc.Extent.Width) * uint64(desc.Extent.Height) * uint64(desc.Format.Size())
	return h, a.memory(size, false), nil
}

// Map implements gpu.Allocator.
func (a *Allocator) Map(m gpu.Allocation) ([]byte, error) {
	b, ok := a.mem[m.Memory]
	if !ok {
		return nil, fmt.Errorf("gputest: memory %d is not host visible", m.Memory)
	}
	return b, nil
}

// Unmap implements gpu.Allocator.
func (a *Allocator) Unmap(gpu.Allocation) { a.Unmaps++ }

// DestroyBuffer implements gpu.Allocator.
func (a *Allocator) DestroyBuffer(h gpu.Handle, m gpu.Allocation) {
	a.d.destroy(gpu.KindBuffer, h)
	delete(a.mem, m.Memory)
}

// DestroyImage implements gpu.Allocator.
func (a *Allocator) DestroyImage(h gpu.Handle, m gpu.Allocation) {
	a.d.destroy(gpu.KindImage, h)
	delete(a.images, h)
	delete(a.mem, m.Memory)
}
