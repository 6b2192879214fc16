package gputest

import (
	"errors"
	"fmt"
	"time"

	"github.com/andewx/diesel/gpu"
)

// Queue is an in-memory gpu.Queue.
type Queue struct {
	d         *Device
	id        gpu.QueueID
	family    uint32
	signaled  uint64
	completed uint64

	// Submits journals every accepted submission.
	Submits []gpu.Submit
	// Queries counts calls to Completed.
	Queries int
	// Hang makes blocking waits time out instead of completing.
	Hang bool
}

func (q *Queue) complete(value uint64) {
	if value < q.completed {
		panic(fmt.Sprintf("gputest: %s queue moved back from %d to %d", q.id, q.completed, value))
	}
	if value > q.signaled {
		panic(fmt.Sprintf("gputest: %s queue completed to %d, only %d submitted", q.id, value, q.signaled))
	}
	q.completed = value
	for _, f := range q.d.fences {
		if f.q == q && f.value <= value {
			f.signaled = true
		}
	}
}

// Signaled returns the highest signal value submitted.
func (q *Queue) Signaled() uint64 { return q.signaled }

// ID implements gpu.Queue.
func (q *Queue) ID() gpu.QueueID { return q.id }

// Family implements gpu.Queue.
func (q *Queue) Family() uint32 { return q.family }

// Submit implements gpu.Queue.
func (q *Queue) Submit(s *gpu.Submit) error {
	if s.Signal != 0 && s.Signal <= q.signaled {
		return fmt.Errorf("gputest: %s queue signal %d not above %d", q.id, s.Signal, q.signaled)
	}
	for _, c := range s.Cmds {
		cb, ok := c.(*CmdBuffer)
		if !ok || q.d.cmds[cb.h] != cb {
			return errors.New("gputest: submit of foreign command buffer")
		}
		if cb.state != stateExecutable {
			return fmt.Errorf("gputest: submit of command buffer %d that is not ended", cb.h)
		}
		if cb.q != q.id {
			return fmt.Errorf("gputest: command buffer for %s queue submitted to %s queue", cb.q, q.id)
		}
	}
	for _, w := range s.Waits {
		if w.Value > q.d.queues[w.Queue].signaled {
			return fmt.Errorf("gputest: wait for %s queue value %d that was never submitted", w.Queue, w.Value)
		}
	}
	if s.Signal != 0 {
		q.signaled = s.Signal
	}
	if s.Fence != gpu.NullHandle {
		f, ok := q.d.fences[s.Fence]
		if !ok {
			return fmt.Errorf("gputest: submit with unknown fence %d", s.Fence)
		}
		*f = fence{q: q, value: q.signaled, signaled: q.signaled <= q.completed}
	}
	q.Submits = append(q.Submits, *s)
	return nil
}

// Completed implements gpu.Queue.
func (q *Queue) Completed() uint64 {
	q.Queries++
	return q.completed
}

// WaitUntil implements gpu.Queue.
func (q *Queue) WaitUntil(value uint64, timeout time.Duration) error {
	if value <= q.completed {
		return nil
	}
	if q.Hang || value > q.signaled {
		return gpu.ErrTimeout
	}
	q.complete(value)
	return nil
}
