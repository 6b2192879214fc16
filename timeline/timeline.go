// Package timeline tracks per-queue completion counters and the use
// records that gate the reuse and destruction of device objects.
package timeline

import (
	"fmt"
	"time"

	"github.com/andewx/diesel/gpu"
	"github.com/andewx/diesel/internal/assert"
)

// Completion reports the completed value of each queue's counter.
type Completion interface {
	Completed(q gpu.QueueID) uint64
}

// Values holds one counter value per queue.
type Values [gpu.QueueCount]uint64

// Completed implements Completion.
func (v *Values) Completed(q gpu.QueueID) uint64 { return v[q] }

// Counter wraps a device queue and hands out its signal values.
// Values handed out strictly increase, and the completed value it
// reports never decreases.
type Counter struct {
	q         gpu.Queue
	signaled  uint64
	completed uint64
}

// NewCounter returns a counter for q.
func NewCounter(q gpu.Queue) *Counter {
	return &Counter{q: q, completed: q.Completed()}
}

// Queue returns the underlying queue.
func (c *Counter) Queue() gpu.Queue { return c.q }

// Next returns the value the next submission will signal.
func (c *Counter) Next() uint64 { return c.signaled + 1 }

// Signaled returns the last value submitted for signaling.
func (c *Counter) Signaled() uint64 { return c.signaled }

// Submit submits s, assigning it the next signal value when s.Signal
// is zero. It returns the value the queue will reach once s completes.
func (c *Counter) Submit(s *gpu.Submit) (uint64, error) {
	if s.Signal == 0 {
		s.Signal = c.Next()
	}
	assert.That(s.Signal > c.signaled, "%s queue: signal %d not above %d", c.q.ID(), s.Signal, c.signaled)
	if err := c.q.Submit(s); err != nil {
		return 0, fmt.Errorf("%s queue submit: %w", c.q.ID(), err)
	}
	c.signaled = s.Signal
	return s.Signal, nil
}

// Completed returns the counter's completed value.
func (c *Counter) Completed() uint64 {
	v := c.q.Completed()
	assert.That(v >= c.completed, "%s queue: completed value went from %d to %d", c.q.ID(), c.completed, v)
	if v > c.completed {
		c.completed = v
	}
	return c.completed
}

// WaitUntil blocks until the counter reaches value.
func (c *Counter) WaitUntil(value uint64, timeout time.Duration) error {
	if value <= c.completed {
		return nil
	}
	if err := c.q.WaitUntil(value, timeout); err != nil {
		return fmt.Errorf("%s queue wait for %d: %w", c.q.ID(), value, err)
	}
	c.Completed()
	return nil
}

// Set holds the counters of every queue of a device.
type Set [gpu.QueueCount]*Counter

// NewSet creates counters for every queue of dev.
func NewSet(dev gpu.Device) Set {
	var s Set
	for i := range s {
		s[i] = NewCounter(dev.Queue(gpu.QueueID(i)))
	}
	return s
}

// Completed implements Completion.
func (s *Set) Completed(q gpu.QueueID) uint64 { return s[q].Completed() }

// Snapshot returns the completed value of every queue.
func (s *Set) Snapshot() Values {
	var v Values
	for i, c := range s {
		v[i] = c.Completed()
	}
	return v
}
