// Package deletion defers the destruction of device objects until
// the device has finished every submission that referenced them.
package deletion

import (
	"github.com/andewx/diesel/gpu"
	"github.com/andewx/diesel/timeline"
)

// Entry describes an object awaiting destruction.
// It holds only plain values so it can outlive the resource it came from.
type Entry struct {
	Kind   gpu.ObjectKind
	Handle gpu.Handle
	Memory gpu.Allocation
	Use    timeline.Use
	Label  string
}

// Reclaimer destroys the object an entry describes.
type Reclaimer interface {
	Reclaim(e *Entry)
}

// Queue holds entries until their use records are satisfied.
// It must only be used from the frame thread.
type Queue struct {
	entries []Entry
}

// Mark appends e to the queue.
func (q *Queue) Mark(e Entry) { q.entries = append(q.entries, e) }

// Len returns the number of pending entries.
func (q *Queue) Len() int { return len(q.entries) }

// Pending returns a copy of the pending entries.
func (q *Queue) Pending() []Entry { return append([]Entry(nil), q.entries...) }

// Sweep reclaims every entry whose use record is satisfied or empty and
// returns how many were reclaimed. Each queue's counter is queried at
// most once, and not at all when no entry needs it.
func (q *Queue) Sweep(c timeline.Completion, r Reclaimer) int {
	if len(q.entries) == 0 {
		return 0
	}
	lc := lazyCompletion{c: c}
	n := 0
	for i := 0; i < len(q.entries); {
		e := &q.entries[i]
		if !e.Use.Satisfied(&lc) {
			i++
			continue
		}
		r.Reclaim(e)
		n++
		last := len(q.entries) - 1
		q.entries[i] = q.entries[last]
		q.entries[last] = Entry{}
		q.entries = q.entries[:last]
	}
	return n
}

// Drain reclaims every entry regardless of its use record and returns
// the entries that were still pending. Only call it once the device is idle.
func (q *Queue) Drain(r Reclaimer) []Entry {
	left := q.entries
	q.entries = nil
	for i := range left {
		r.Reclaim(&left[i])
	}
	return left
}

type lazyCompletion struct {
	c     timeline.Completion
	v     timeline.Values
	known [gpu.QueueCount]bool
}

func (l *lazyCompletion) Completed(q gpu.QueueID) uint64 {
	if !l.known[q] {
		l.v[q] = l.c.Completed(q)
		l.known[q] = true
	}
	return l.v[q]
}

// DeviceReclaimer destroys objects through a gpu.Device.
type DeviceReclaimer struct {
	Device gpu.Device
}

// Reclaim implements Reclaimer.
func (d DeviceReclaimer) Reclaim(e *Entry) {
	switch e.Kind {
	case gpu.KindBuffer:
		d.Device.Allocator().DestroyBuffer(e.Handle, e.Memory)
	case gpu.KindImage:
		d.Device.Allocator().DestroyImage(e.Handle, e.Memory)
	default:
		d.Device.Destroy(e.Kind, e.Handle)
	}
}
