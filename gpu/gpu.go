// Package gpu defines the device abstraction the engine is written against.
// It mirrors the shape of explicit graphics APIs: a device with a main and a
// transfer queue, each carrying a monotonically increasing completion counter,
// a memory allocator, command recording, and an optional presentation surface.
//
// Objects are referred to by opaque Handle values so that records describing
// them can be stored and copied by value.
package gpu

import (
	"errors"
	"time"
)

// Handle identifies a device object. The zero Handle is never a valid object.
type Handle uint64

// NullHandle is the invalid handle.
const NullHandle Handle = 0

// ObjectKind tags the type of object a Handle refers to.
type ObjectKind uint8

const (
	KindNone ObjectKind = iota
	KindBuffer
	KindImage
	KindImageView
	KindPipeline
	KindBinding
	KindCmdBuffer
	KindSemaphore
	KindFence
	KindSwapchain
)

func (k ObjectKind) String() string {
	switch k {
	case KindBuffer:
		return "buffer"
	case KindImage:
		return "image"
	case KindImageView:
		return "image view"
	case KindPipeline:
		return "pipeline"
	case KindBinding:
		return "binding"
	case KindCmdBuffer:
		return "command buffer"
	case KindSemaphore:
		return "semaphore"
	case KindFence:
		return "fence"
	case KindSwapchain:
		return "swapchain"
	}
	return "none"
}

// QueueID selects one of the device queues.
type QueueID int

const (
	// QueueMain accepts rendering and presentation work.
	QueueMain QueueID = iota
	// QueueTransfer accepts upload work.
	QueueTransfer
	// QueueCount is the number of queues a Device exposes.
	QueueCount
)

func (q QueueID) String() string {
	switch q {
	case QueueMain:
		return "main"
	case QueueTransfer:
		return "transfer"
	}
	return "invalid"
}

// FamilyIgnored is used in barriers that do not transfer queue ownership.
const FamilyIgnored = ^uint32(0)

// Device is the logical connection to the graphics hardware.
// Callers should assume that no method is safe for concurrent use.
type Device interface {
	// Queue returns the queue identified by id.
	Queue(id QueueID) Queue

	// Allocator returns the device memory allocator.
	Allocator() Allocator

	// Surface returns the presentation surface.
	// It fails with ErrCannotPresent on headless devices.
	Surface() (Surface, error)

	// NewCmdBuffer creates a command buffer whose commands
	// will be submitted to the given queue.
	NewCmdBuffer(q QueueID) (CmdBuffer, error)

	// NewImageView creates a view of an image created by
	// the Allocator.
	NewImageView(image Handle, desc *ViewDesc) (Handle, error)

	// NewPipeline compiles a graphics pipeline.
	NewPipeline(desc *PipelineDesc) (Handle, error)

	// NewBinding creates a set of shader bindings for the given
	// pipeline, referring to the given image views in order.
	NewBinding(pipeline Handle, views []Handle) (Handle, error)

	// NewSemaphore creates a binary semaphore for
	// device-side signaling between submissions and
	// presentation.
	NewSemaphore() (Handle, error)

	// NewFence creates a fence that the host can wait on.
	NewFence(signaled bool) (Handle, error)

	// WaitFence blocks until the fence is signaled or
	// the timeout elapses (ErrTimeout).
	WaitFence(fence Handle, timeout time.Duration) error

	// ResetFence unsignals a fence.
	ResetFence(fence Handle) error

	// Destroy destroys an object that does not own device
	// memory. Buffers and images are destroyed through the
	// Allocator instead.
	Destroy(kind ObjectKind, h Handle)

	// WaitIdle blocks until every queue has no outstanding work.
	WaitIdle() error
}

// Queue is a device queue with an attached completion counter.
// The counter starts at zero and is raised by the device as submitted
// work completes.
type Queue interface {
	// ID returns the queue's identifier.
	ID() QueueID

	// Family returns the queue family index, used in ownership
	// transfer barriers.
	Family() uint32

	// Submit enqueues work. If s.Signal is non-zero, the counter
	// will reach s.Signal only once the work and everything it
	// waits on completes. Signal values must strictly increase.
	Submit(s *Submit) error

	// Completed returns the counter's current value.
	Completed() uint64

	// WaitUntil blocks until the counter reaches value or the
	// timeout elapses (ErrTimeout).
	WaitUntil(value uint64, timeout time.Duration) error
}

// Wait is a dependency on a queue's counter reaching a value.
type Wait struct {
	Queue QueueID
	Value uint64
	Stage Stage
}

// SemaphoreWait is a dependency on a binary semaphore.
type SemaphoreWait struct {
	Semaphore Handle
	Stage     Stage
}

// Submit describes one queue submission.
type Submit struct {
	Cmds             []CmdBuffer
	Waits            []Wait
	WaitSemaphores   []SemaphoreWait
	SignalSemaphores []Handle
	Signal           uint64
	Fence            Handle
}

// Errors reported by Device implementations.
var (
	// ErrNoDevice means that no suitable device could be found.
	ErrNoDevice = errors.New("gpu: no suitable device found")

	// ErrNoHostMemory means that host memory could not be allocated.
	ErrNoHostMemory = errors.New("gpu: out of host memory")

	// ErrNoDeviceMemory means that device memory could not be allocated.
	ErrNoDeviceMemory = errors.New("gpu: out of device memory")

	// ErrDeviceLost means that the device is in an unrecoverable state.
	ErrDeviceLost = errors.New("gpu: device lost")

	// ErrTimeout means that a wait did not finish in time.
	ErrTimeout = errors.New("gpu: wait timed out")

	// ErrCannotPresent means that the device has no presentation surface.
	ErrCannotPresent = errors.New("gpu: presentation not supported")

	// ErrOutOfDate means that the swapchain no longer matches the
	// surface and must be recreated before further use.
	ErrOutOfDate = errors.New("gpu: swapchain out of date")

	// ErrSuboptimal means that the operation succeeded but the
	// swapchain should be recreated.
	ErrSuboptimal = errors.New("gpu: swapchain suboptimal")
)

// IsStale reports whether err means that the swapchain must be recreated.
func IsStale(err error) bool {
	return errors.Is(err, ErrOutOfDate) || errors.Is(err, ErrSuboptimal)
}
