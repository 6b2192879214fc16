// Package resource implements the device objects whose lifetime is
// tracked against queue completion: pipelines, images, image views,
// buffers and bindings.
//
// Releasing a resource never destroys it synchronously. Instead a
// deletion entry carrying the resource's use record is queued, and the
// object is destroyed by a later sweep once every submission that
// referenced it has completed.
package resource

import (
	"github.com/andewx/diesel/deletion"
	"github.com/andewx/diesel/gpu"
	"github.com/andewx/diesel/internal/assert"
	"github.com/andewx/diesel/timeline"
)

// Env is the context resources are created in.
type Env struct {
	Device     gpu.Device
	Deletions  *deletion.Queue
	Completion timeline.Completion
}

// Handoff is a pending queue family ownership acquire.
type Handoff struct {
	Src, Dst uint32
}

// Resource is the state shared by every resource kind.
type Resource struct {
	env      *Env
	kind     gpu.ObjectKind
	handle   gpu.Handle
	label    string
	use      timeline.Use
	uploaded bool
	free     bool
	released bool
	handoff  *Handoff
}

func (r *Resource) init(env *Env, kind gpu.ObjectKind, h gpu.Handle, label string) {
	r.env, r.kind, r.handle, r.label = env, kind, h, label
}

// Kind returns the resource's object kind.
func (r *Resource) Kind() gpu.ObjectKind { return r.kind }

// Handle returns the device handle.
func (r *Resource) Handle() gpu.Handle { return r.handle }

// Label returns the debug label.
func (r *Resource) Label() string { return r.label }

// Use returns the resource's use record.
func (r *Resource) Use() timeline.Use { return r.use }

// UseResource records that work signaling value on queue q references
// the resource. Thresholds only ever rise.
func (r *Resource) UseResource(q gpu.QueueID, value uint64) {
	assert.That(!r.released, "use of released %s %q", r.kind, r.label)
	assert.That(value >= r.use.Value(q), "%s %q: %s use %d below %d", r.kind, r.label, q, value, r.use.Value(q))
	if value > r.use.Value(q) {
		r.use.Raise(q, value)
		r.free = false
	}
}

// IsUploaded reports whether every submission that referenced the
// resource so far has completed. Once true it stays true.
func (r *Resource) IsUploaded() bool {
	if !r.uploaded && r.use.Satisfied(r.env.Completion) {
		r.uploaded = true
	}
	return r.uploaded
}

// IsFree reports whether no submitted work references the resource.
// The answer is cached until the next UseResource.
func (r *Resource) IsFree() bool {
	if !r.free && r.use.Satisfied(r.env.Completion) {
		r.free = true
	}
	return r.free
}

// SetPendingAcquire records that the next user on queue family dst must
// acquire ownership released by family src.
func (r *Resource) SetPendingAcquire(src, dst uint32) {
	r.handoff = &Handoff{src, dst}
}

// PendingAcquire returns the pending ownership acquire, if any.
func (r *Resource) PendingAcquire() (Handoff, bool) {
	if r.handoff == nil {
		return Handoff{}, false
	}
	return *r.handoff, true
}

// ClearPendingAcquire marks the ownership acquire as recorded.
func (r *Resource) ClearPendingAcquire() { r.handoff = nil }

// retire queues the resource for deletion.
func (r *Resource) retire(mem gpu.Allocation) {
	assert.That(!r.released, "double release of %s %q", r.kind, r.label)
	if r.released {
		return
	}
	r.released = true
	r.env.Deletions.Mark(deletion.Entry{
		Kind:   r.kind,
		Handle: r.handle,
		Memory: mem,
		Use:    r.use,
		Label:  r.label,
	})
}

// Released reports whether the resource was released.
func (r *Resource) Released() bool { return r.released }
