package resource

import (
	"fmt"

	"github.com/andewx/diesel/gpu"
)

// Buffer is an exclusively owned buffer and its memory.
type Buffer struct {
	Resource
	mem   gpu.Allocation
	size  uint64
	usage gpu.Usage
}

// NewBuffer allocates a buffer.
func NewBuffer(env *Env, desc *gpu.BufferDesc) (*Buffer, error) {
	h, mem, err := env.Device.Allocator().NewBuffer(desc)
	if err != nil {
		return nil, fmt.Errorf("buffer %q: %w", desc.Label, err)
	}
	b := &Buffer{mem: mem, size: desc.Size, usage: desc.Usage}
	b.init(env, gpu.KindBuffer, h, desc.Label)
	return b, nil
}

// Size returns the size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Usage returns the usage the buffer was created with.
func (b *Buffer) Usage() gpu.Usage { return b.usage }

// Memory returns the buffer's allocation.
func (b *Buffer) Memory() gpu.Allocation { return b.mem }

// Write copies data into a host-visible buffer at offset.
func (b *Buffer) Write(offset uint64, data []byte) error {
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("buffer %q: write of %d bytes at %d overflows %d", b.label, len(data), offset, b.size)
	}
	alloc := b.env.Device.Allocator()
	p, err := alloc.Map(b.mem)
	if err != nil {
		return fmt.Errorf("buffer %q: %w", b.label, err)
	}
	copy(p[offset:], data)
	alloc.Unmap(b.mem)
	return nil
}

// Release queues the buffer for deletion.
func (b *Buffer) Release() { b.retire(b.mem) }
