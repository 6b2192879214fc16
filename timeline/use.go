package timeline

import "github.com/andewx/diesel/gpu"

// Use records, for every queue, the counter value that must be reached
// before an object is no longer referenced by submitted work.
// A zero entry means that the object was never used on that queue.
type Use struct {
	v Values
}

// Raise raises the threshold for q to value. Lower values are ignored.
func (u *Use) Raise(q gpu.QueueID, value uint64) {
	if value > u.v[q] {
		u.v[q] = value
	}
}

// Merge raises every threshold of u to at least those of o.
func (u *Use) Merge(o Use) {
	for i, v := range o.v {
		u.Raise(gpu.QueueID(i), v)
	}
}

// Value returns the threshold for q.
func (u Use) Value(q gpu.QueueID) uint64 { return u.v[q] }

// IsZero reports whether the object was never submitted.
func (u Use) IsZero() bool { return u.v == Values{} }

// Satisfied reports whether every threshold has been reached.
// Queues the object was never used on are not queried.
func (u Use) Satisfied(c Completion) bool {
	for i, v := range u.v {
		if v != 0 && c.Completed(gpu.QueueID(i)) < v {
			return false
		}
	}
	return true
}
