// Package gputest provides an in-memory gpu.Device for tests.
//
// Nothing happens on its own: queue counters only advance through
// Complete, CompleteAll, or a blocking wait (WaitUntil, WaitFence,
// WaitIdle), which behaves as if the device finished the work being
// waited on. Every destroyed object is journaled.
package gputest

import (
	"errors"
	"fmt"
	"time"

	"github.com/andewx/diesel/gpu"
)

// Object is a journaled device object.
type Object struct {
	Kind   gpu.ObjectKind
	Handle gpu.Handle
}

type fence struct {
	signaled bool
	q        *Queue
	value    uint64
}

// Device is an in-memory gpu.Device.
type Device struct {
	queues [gpu.QueueCount]*Queue
	alloc  *Allocator
	surf   *Surface

	last gpu.Handle
	live map[gpu.Handle]gpu.ObjectKind

	fences    map[gpu.Handle]*fence
	views     map[gpu.Handle]gpu.Handle
	pipelines map[gpu.Handle]gpu.PipelineDesc
	bindings  map[gpu.Handle][]gpu.Handle
	cmds      map[gpu.Handle]*CmdBuffer

	// Destroyed journals every destroyed object in order.
	Destroyed []Object
	// IdleWaits counts calls to WaitIdle.
	IdleWaits int
	// FailNext, if set, is returned by the next creation call.
	FailNext error
}

// New returns a headless device.
func New() *Device {
	d := &Device{
		live:      make(map[gpu.Handle]gpu.ObjectKind),
		fences:    make(map[gpu.Handle]*fence),
		views:     make(map[gpu.Handle]gpu.Handle),
		pipelines: make(map[gpu.Handle]gpu.PipelineDesc),
		bindings:  make(map[gpu.Handle][]gpu.Handle),
		cmds:      make(map[gpu.Handle]*CmdBuffer),
	}
	for i := range d.queues {
		d.queues[i] = &Queue{d: d, id: gpu.QueueID(i)}
	}
	d.alloc = &Allocator{d: d, mem: make(map[gpu.Handle][]byte), images: make(map[gpu.Handle]gpu.ImageDesc)}
	return d
}

// NewWithSurface returns a device with a presentation surface of the
// given extent.
func NewWithSurface(extent gpu.Extent) *Device {
	d := New()
	d.surf = newSurface(d, extent)
	return d
}

// SetFamilies assigns queue family indices.
func (d *Device) SetFamilies(main, transfer uint32) {
	d.queues[gpu.QueueMain].family = main
	d.queues[gpu.QueueTransfer].family = transfer
}

// Q returns the concrete queue identified by id.
func (d *Device) Q(id gpu.QueueID) *Queue { return d.queues[id] }

// Alloc returns the concrete allocator.
func (d *Device) Alloc() *Allocator { return d.alloc }

// Surf returns the concrete surface, or nil when headless.
func (d *Device) Surf() *Surface { return d.surf }

// Complete advances the counter of q to value.
// It panics if value is below the current value or above the last
// submitted one.
func (d *Device) Complete(q gpu.QueueID, value uint64) { d.queues[q].complete(value) }

// CompleteAll completes all submitted work.
func (d *Device) CompleteAll() {
	for _, q := range d.queues {
		q.complete(q.signaled)
	}
}

// IsLive reports whether h refers to an object not yet destroyed.
func (d *Device) IsLive(h gpu.Handle) bool {
	_, ok := d.live[h]
	return ok
}

// Live returns the number of live objects of the given kind.
func (d *Device) Live(kind gpu.ObjectKind) int {
	n := 0
	for _, k := range d.live {
		if k == kind {
			n++
		}
	}
	return n
}

// IsDestroyed reports whether h was destroyed.
func (d *Device) IsDestroyed(h gpu.Handle) bool {
	for _, o := range d.Destroyed {
		if o.Handle == h {
			return true
		}
	}
	return false
}

// ViewImage returns the image a view was created from.
func (d *Device) ViewImage(view gpu.Handle) gpu.Handle { return d.views[view] }

// BindingViews returns the views a binding refers to.
func (d *Device) BindingViews(b gpu.Handle) []gpu.Handle { return d.bindings[b] }

// Cmd returns the command buffer identified by h.
func (d *Device) Cmd(h gpu.Handle) *CmdBuffer { return d.cmds[h] }

func (d *Device) create(kind gpu.ObjectKind) (gpu.Handle, error) {
	if err := d.FailNext; err != nil {
		d.FailNext = nil
		return gpu.NullHandle, err
	}
	d.last++
	d.live[d.last] = kind
	return d.last, nil
}

func (d *Device) destroy(kind gpu.ObjectKind, h gpu.Handle) {
	k, ok := d.live[h]
	if !ok {
		panic(fmt.Sprintf("gputest: destroy of unknown or destroyed %s %d", kind, h))
	}
	if k != kind {
		panic(fmt.Sprintf("gputest: destroy of %s %d as %s", k, h, kind))
	}
	delete(d.live, h)
	d.Destroyed = append(d.Destroyed, Object{kind, h})
}

// Queue implements gpu.Device.
func (d *Device) Queue(id gpu.QueueID) gpu.Queue { return d.queues[id] }

// Allocator implements gpu.Device.
func (d *Device) Allocator() gpu.Allocator { return d.alloc }

// Surface implements gpu.Device.
func (d *Device) Surface() (gpu.Surface, error) {
	if d.surf == nil {
		return nil, gpu.ErrCannotPresent
	}
	return d.surf, nil
}

// NewCmdBuffer implements gpu.Device.
func (d *Device) NewCmdBuffer(q gpu.QueueID) (gpu.CmdBuffer, error) {
	h, err := d.create(gpu.KindCmdBuffer)
	if err != nil {
		return nil, err
	}
	cb := &CmdBuffer{d: d, h: h, q: q}
	d.cmds[h] = cb
	return cb, nil
}

// NewImageView implements gpu.Device.
func (d *Device) NewImageView(image gpu.Handle, desc *gpu.ViewDesc) (gpu.Handle, error) {
	if d.live[image] != gpu.KindImage {
		return gpu.NullHandle, fmt.Errorf("gputest: view of non-image %d", image)
	}
	h, err := d.create(gpu.KindImageView)
	if err != nil {
		return h, err
	}
	d.views[h] = image
	return h, nil
}

// NewPipeline implements gpu.Device.
func (d *Device) NewPipeline(desc *gpu.PipelineDesc) (gpu.Handle, error) {
	if len(desc.Vertex) == 0 || len(desc.Fragment) == 0 {
		return gpu.NullHandle, errors.New("gputest: pipeline without shader code")
	}
	h, err := d.create(gpu.KindPipeline)
	if err != nil {
		return h, err
	}
	d.pipelines[h] = *desc
	return h, nil
}

// NewBinding implements gpu.Device.
func (d *Device) NewBinding(pipeline gpu.Handle, views []gpu.Handle) (gpu.Handle, error) {
	desc, ok := d.pipelines[pipeline]
	if !ok || d.live[pipeline] != gpu.KindPipeline {
		return gpu.NullHandle, fmt.Errorf("gputest: binding for unknown pipeline %d", pipeline)
	}
	if len(views) != desc.Textures {
		return gpu.NullHandle, fmt.Errorf("gputest: pipeline takes %d textures, got %d", desc.Textures, len(views))
	}
	for _, v := range views {
		if d.live[v] != gpu.KindImageView {
			return gpu.NullHandle, fmt.Errorf("gputest: binding of non-view %d", v)
		}
	}
	h, err := d.create(gpu.KindBinding)
	if err != nil {
		return h, err
	}
	d.bindings[h] = append([]gpu.Handle(nil), views...)
	return h, nil
}

// NewSemaphore implements gpu.Device.
func (d *Device) NewSemaphore() (gpu.Handle, error) { return d.create(gpu.KindSemaphore) }

// NewFence implements gpu.Device.
func (d *Device) NewFence(signaled bool) (gpu.Handle, error) {
	h, err := d.create(gpu.KindFence)
	if err != nil {
		return h, err
	}
	d.fences[h] = &fence{signaled: signaled}
	return h, nil
}

// WaitFence implements gpu.Device.
func (d *Device) WaitFence(h gpu.Handle, timeout time.Duration) error {
	f, ok := d.fences[h]
	if !ok {
		return fmt.Errorf("gputest: wait on unknown fence %d", h)
	}
	if f.signaled {
		return nil
	}
	if f.q == nil {
		return gpu.ErrTimeout
	}
	if err := f.q.WaitUntil(f.value, timeout); err != nil {
		return err
	}
	f.signaled = true
	return nil
}

// ResetFence implements gpu.Device.
func (d *Device) ResetFence(h gpu.Handle) error {
	f, ok := d.fences[h]
	if !ok {
		return fmt.Errorf("gputest: reset of unknown fence %d", h)
	}
	*f = fence{}
	return nil
}

// Destroy implements gpu.Device.
func (d *Device) Destroy(kind gpu.ObjectKind, h gpu.Handle) {
	switch kind {
	case gpu.KindBuffer, gpu.KindImage:
		panic("gputest: buffers and images are destroyed through the allocator")
	case gpu.KindFence:
		delete(d.fences, h)
	case gpu.KindImageView:
		delete(d.views, h)
	case gpu.KindBinding:
		delete(d.bindings, h)
	case gpu.KindCmdBuffer:
		delete(d.cmds, h)
	case gpu.KindSwapchain:
		if d.surf != nil {
			d.surf.drop(h)
		}
	}
	d.destroy(kind, h)
}

// WaitIdle implements gpu.Device.
func (d *Device) WaitIdle() error {
	d.IdleWaits++
	for _, q := range d.queues {
		if q.Hang && q.completed < q.signaled {
			return gpu.ErrTimeout
		}
	}
	d.CompleteAll()
	return nil
}
