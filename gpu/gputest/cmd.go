package gputest

import (
	"fmt"

	"github.com/andewx/diesel/gpu"
)

const (
	stateInitial = iota
	stateRecording
	stateExecutable
)

// Op is a recorded command.
type Op struct {
	Name    string
	Barrier gpu.Barrier
	Blit    gpu.Blit
	Target  gpu.RenderTarget
	Handles []gpu.Handle
	Size    uint64
	Extent  gpu.Extent
	Data    []byte
}

// CmdBuffer is an in-memory gpu.CmdBuffer that journals commands.
type CmdBuffer struct {
	d     *Device
	h     gpu.Handle
	q     gpu.QueueID
	state int

	// Ops holds the commands recorded since the last Begin.
	Ops []Op
}

// Handle implements gpu.CmdBuffer.
func (c *CmdBuffer) Handle() gpu.Handle { return c.h }

// Queue implements gpu.CmdBuffer.
func (c *CmdBuffer) Queue() gpu.QueueID { return c.q }

// Begin implements gpu.CmdBuffer.
func (c *CmdBuffer) Begin() error {
	if c.state == stateRecording {
		return fmt.Errorf("gputest: command buffer %d already recording", c.h)
	}
	c.state = stateRecording
	c.Ops = c.Ops[:0]
	return nil
}

// End implements gpu.CmdBuffer.
func (c *CmdBuffer) End() error {
	if c.state != stateRecording {
		return fmt.Errorf("gputest: command buffer %d not recording", c.h)
	}
	c.state = stateExecutable
	return nil
}

// Reset implements gpu.CmdBuffer.
func (c *CmdBuffer) Reset() error {
	c.state = stateInitial
	c.Ops = c.Ops[:0]
	return nil
}

func (c *CmdBuffer) record(op Op) {
	if c.state != stateRecording {
		panic(fmt.Sprintf("gputest: %s on command buffer %d that is not recording", op.Name, c.h))
	}
	c.Ops = append(c.Ops, op)
}

// Find returns the recorded commands with the given name.
func (c *CmdBuffer) Find(name string) []Op {
	var ops []Op
	for _, op := range c.Ops {
		if op.Name == name {
			ops = append(ops, op)
		}
	}
	return ops
}

// Barrier implements gpu.CmdBuffer.
func (c *CmdBuffer) Barrier(b *gpu.Barrier) {
	bb := *b
	bb.Images = append([]gpu.ImageBarrier(nil), b.Images...)
	bb.Buffers = append([]gpu.BufferBarrier(nil), b.Buffers...)
	c.record(Op{Name: "Barrier", Barrier: bb})
}

// CopyBuffer implements gpu.CmdBuffer.
func (c *CmdBuffer) CopyBuffer(src, dst gpu.Handle, size uint64) {
	c.record(Op{Name: "CopyBuffer", Handles: []gpu.Handle{src, dst}, Size: size})
}

// CopyBufferToImage implements gpu.CmdBuffer.
func (c *CmdBuffer) CopyBufferToImage(src, dst gpu.Handle, extent gpu.Extent) {
	c.record(Op{Name: "CopyBufferToImage", Handles: []gpu.Handle{src, dst}, Extent: extent})
}

// Blit implements gpu.CmdBuffer.
func (c *CmdBuffer) Blit(b *gpu.Blit) { c.record(Op{Name: "Blit", Blit: *b}) }

// BeginPass implements gpu.CmdBuffer.
func (c *CmdBuffer) BeginPass(t *gpu.RenderTarget) { c.record(Op{Name: "BeginPass", Target: *t}) }

// EndPass implements gpu.CmdBuffer.
func (c *CmdBuffer) EndPass() { c.record(Op{Name: "EndPass"}) }

// BindPipeline implements gpu.CmdBuffer.
func (c *CmdBuffer) BindPipeline(p gpu.Handle) {
	c.record(Op{Name: "BindPipeline", Handles: []gpu.Handle{p}})
}

// BindBinding implements gpu.CmdBuffer.
func (c *CmdBuffer) BindBinding(p, b gpu.Handle) {
	c.record(Op{Name: "BindBinding", Handles: []gpu.Handle{p, b}})
}

// BindVertexBuffer implements gpu.CmdBuffer.
func (c *CmdBuffer) BindVertexBuffer(b gpu.Handle) {
	c.record(Op{Name: "BindVertexBuffer", Handles: []gpu.Handle{b}})
}

// BindIndexBuffer implements gpu.CmdBuffer.
func (c *CmdBuffer) BindIndexBuffer(b gpu.Handle) {
	c.record(Op{Name: "BindIndexBuffer", Handles: []gpu.Handle{b}})
}

// PushConstants implements gpu.CmdBuffer.
func (c *CmdBuffer) PushConstants(p gpu.Handle, data []byte) {
	c.record(Op{Name: "PushConstants", Handles: []gpu.Handle{p}, Data: append([]byte(nil), data...)})
}

// DrawIndexed implements gpu.CmdBuffer.
func (c *CmdBuffer) DrawIndexed(count uint32) {
	c.record(Op{Name: "DrawIndexed", Size: uint64(count)})
}
