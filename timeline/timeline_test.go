package timeline

import (
	"errors"
	"testing"
	"time"

	"github.com/andewx/diesel/gpu"
	"github.com/andewx/diesel/gpu/gputest"
)

func TestCounterSubmit(t *testing.T) {
	dev := gputest.New()
	c := NewCounter(dev.Queue(gpu.QueueMain))

	for want := uint64(1); want <= 3; want++ {
		if n := c.Next(); n != want {
			t.Fatalf("Counter.Next: got %d, want %d", n, want)
		}
		v, err := c.Submit(&gpu.Submit{})
		if err != nil {
			t.Fatalf("Counter.Submit: unexpected error: %v", err)
		}
		if v != want {
			t.Fatalf("Counter.Submit: signal value got %d, want %d", v, want)
		}
	}
	if v, err := c.Submit(&gpu.Submit{Signal: 10}); err != nil || v != 10 {
		t.Fatalf("Counter.Submit(Signal: 10): got %d, %v", v, err)
	}
	if c.Next() != 11 {
		t.Fatalf("Counter.Next after explicit signal: got %d, want 11", c.Next())
	}
	if s := dev.Q(gpu.QueueMain).Signaled(); s != 10 {
		t.Fatalf("queue signaled value: got %d, want 10", s)
	}
}

func TestCounterCompleted(t *testing.T) {
	dev := gputest.New()
	c := NewCounter(dev.Queue(gpu.QueueTransfer))
	for i := 0; i < 4; i++ {
		if _, err := c.Submit(&gpu.Submit{}); err != nil {
			t.Fatal(err)
		}
	}
	if v := c.Completed(); v != 0 {
		t.Fatalf("Counter.Completed: got %d, want 0", v)
	}
	dev.Complete(gpu.QueueTransfer, 2)
	if v := c.Completed(); v != 2 {
		t.Fatalf("Counter.Completed: got %d, want 2", v)
	}
	if err := c.WaitUntil(4, time.Second); err != nil {
		t.Fatalf("Counter.WaitUntil: unexpected error: %v", err)
	}
	if v := c.Completed(); v != 4 {
		t.Fatalf("Counter.Completed after wait: got %d, want 4", v)
	}
}

func TestCounterWaitTimeout(t *testing.T) {
	dev := gputest.New()
	c := NewCounter(dev.Queue(gpu.QueueMain))
	if _, err := c.Submit(&gpu.Submit{}); err != nil {
		t.Fatal(err)
	}
	dev.Q(gpu.QueueMain).Hang = true
	err := c.WaitUntil(1, time.Millisecond)
	if !errors.Is(err, gpu.ErrTimeout) {
		t.Fatalf("Counter.WaitUntil on hung queue: got %v, want ErrTimeout", err)
	}
	// Values already reached never block.
	if err := c.WaitUntil(0, 0); err != nil {
		t.Fatalf("Counter.WaitUntil(0): unexpected error: %v", err)
	}
}

func TestSetSnapshot(t *testing.T) {
	dev := gputest.New()
	s := NewSet(dev)
	for i := 0; i < 3; i++ {
		s[gpu.QueueMain].Submit(&gpu.Submit{})
	}
	s[gpu.QueueTransfer].Submit(&gpu.Submit{})
	dev.Complete(gpu.QueueMain, 3)
	v := s.Snapshot()
	if v[gpu.QueueMain] != 3 || v[gpu.QueueTransfer] != 0 {
		t.Fatalf("Set.Snapshot: got %v, want [3 0]", v)
	}
	if s.Completed(gpu.QueueMain) != 3 {
		t.Fatalf("Set.Completed(main): got %d, want 3", s.Completed(gpu.QueueMain))
	}
}

func TestUse(t *testing.T) {
	var u Use
	if !u.IsZero() {
		t.Fatal("Use: zero value is not IsZero")
	}
	u.Raise(gpu.QueueMain, 5)
	u.Raise(gpu.QueueMain, 3)
	if v := u.Value(gpu.QueueMain); v != 5 {
		t.Fatalf("Use.Raise: lower value changed threshold to %d", v)
	}
	u.Raise(gpu.QueueTransfer, 2)

	cases := []struct {
		done Values
		want bool
	}{
		{Values{0, 0}, false},
		{Values{5, 1}, false},
		{Values{4, 2}, false},
		{Values{5, 2}, true},
		{Values{9, 9}, true},
	}
	for _, c := range cases {
		if got := u.Satisfied(&c.done); got != c.want {
			t.Errorf("Use.Satisfied(%v): got %t, want %t", c.done, got, c.want)
		}
	}

	var o Use
	o.Raise(gpu.QueueMain, 7)
	u.Merge(o)
	if u.Value(gpu.QueueMain) != 7 || u.Value(gpu.QueueTransfer) != 2 {
		t.Fatalf("Use.Merge: got %v", u)
	}
}
