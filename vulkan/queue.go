package vulkan

import (
	"errors"
	"fmt"
	"time"

	"github.com/andewx/diesel/gpu"
	vk "github.com/vulkan-go/vulkan"
)

// families is the queue family layout of a physical device.
type families struct {
	properties []vk.QueueFamilyProperties
	present    []bool
}

func queryFamilies(dev vk.PhysicalDevice, surface vk.Surface) families {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(dev, &count, nil)
	f := families{
		properties: make([]vk.QueueFamilyProperties, count),
		present:    make([]bool, count),
	}
	vk.GetPhysicalDeviceQueueFamilyProperties(dev, &count, f.properties)
	for i := range f.properties {
		f.properties[i].Deref()
		if surface != vk.NullSurface {
			var supported vk.Bool32
			vk.GetPhysicalDeviceSurfaceSupport(dev, uint32(i), surface, &supported)
			f.present[i] = supported.B()
		}
	}
	return f
}

func (f families) has(i int, bits vk.QueueFlagBits) bool {
	return f.properties[i].QueueFlags&vk.QueueFlags(bits) == vk.QueueFlags(bits)
}

// main returns the first graphics family, one that can also present
// when needPresent is set.
func (f families) main(needPresent bool) (uint32, bool) {
	for i := range f.properties {
		if f.has(i, vk.QueueGraphicsBit) && (!needPresent || f.present[i]) {
			return uint32(i), true
		}
	}
	return 0, false
}

// transfer prefers a family dedicated to transfers, then any family
// without graphics, then the main family.
func (f families) transfer(main uint32) uint32 {
	for i := range f.properties {
		if f.has(i, vk.QueueTransferBit) && !f.has(i, vk.QueueGraphicsBit) && !f.has(i, vk.QueueComputeBit) {
			return uint32(i)
		}
	}
	for i := range f.properties {
		if f.has(i, vk.QueueTransferBit) && !f.has(i, vk.QueueGraphicsBit) {
			return uint32(i)
		}
	}
	return main
}

func (f families) count(i uint32) uint32 {
	return f.properties[i].QueueCount
}

type pending struct {
	value uint64
	fence vk.Fence
}

// Queue is a device queue. Its completion counter is kept with fences:
// every submission that signals a value carries a fence, and because
// fence signals cover all earlier work on the queue, the counter is the
// value of the last fence in the signaled prefix.
type Queue struct {
	d      *Device
	id     gpu.QueueID
	family uint32
	queue  vk.Queue
	pool   *commandPool

	// order holds a full memory barrier, submitted ahead of work that
	// waits on an earlier value of the same queue.
	order vk.CommandBuffer

	signaled  uint64
	completed uint64
	pending   []pending
}

func newQueue(d *Device, id gpu.QueueID, family, index uint32) (*Queue, error) {
	q := &Queue{d: d, id: id, family: family}
	vk.GetDeviceQueue(d.device, family, index, &q.queue)
	pool, err := newCommandPool(d.device, family)
	if err != nil {
		return nil, fmt.Errorf("vulkan: %s command pool: %w", id, err)
	}
	q.pool = pool
	if q.order, err = q.recordOrder(); err != nil {
		pool.destroy()
		return nil, fmt.Errorf("vulkan: %s ordering commands: %w", id, err)
	}
	return q, nil
}

func (q *Queue) recordOrder() (vk.CommandBuffer, error) {
	cmd, err := q.pool.allocate()
	if err != nil {
		return nil, err
	}
	ret := vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit),
	})
	if isError(ret) {
		return nil, NewError(ret)
	}
	all := vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	vk.CmdPipelineBarrier(cmd, all, all, 0, 1, []vk.MemoryBarrier{{
		SType:         vk.StructureTypeMemoryBarrier,
		SrcAccessMask: vk.AccessFlags(vk.AccessMemoryWriteBit),
		DstAccessMask: vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit),
	}}, 0, nil, 0, nil)
	if ret := vk.EndCommandBuffer(cmd); isError(ret) {
		return nil, NewError(ret)
	}
	return cmd, nil
}

// ID implements gpu.Queue.
func (q *Queue) ID() gpu.QueueID { return q.id }

// Family implements gpu.Queue.
func (q *Queue) Family() uint32 { return q.family }

// Submit implements gpu.Queue. Waits on another queue's counter that
// has not completed yet block the caller until it does.
func (q *Queue) Submit(s *gpu.Submit) error {
	if s.Signal != 0 && s.Signal <= q.signaled {
		return fmt.Errorf("vulkan: %s queue signal %d does not exceed %d", q.id, s.Signal, q.signaled)
	}
	var ordered bool
	for _, w := range s.Waits {
		src := q.d.queues[w.Queue]
		if w.Value > src.signaled {
			return fmt.Errorf("vulkan: wait on %s queue value %d that was never submitted", w.Queue, w.Value)
		}
		if src.Completed() >= w.Value {
			continue
		}
		if src == q {
			ordered = true
			continue
		}
		if err := src.WaitUntil(w.Value, q.d.opts.Timeout); err != nil {
			return err
		}
	}

	var cmds []vk.CommandBuffer
	if ordered {
		cmds = append(cmds, q.order)
	}
	for _, c := range s.Cmds {
		cmds = append(cmds, lookup[*CmdBuffer](&q.d.reg, c.Handle()).cmd)
	}
	var waits []vk.Semaphore
	var stages []vk.PipelineStageFlags
	for _, w := range s.WaitSemaphores {
		waits = append(waits, lookup[*semaphore](&q.d.reg, w.Semaphore).sem)
		stages = append(stages, vkStages(w.Stage, vk.PipelineStageTopOfPipeBit))
	}
	var signals []vk.Semaphore
	for _, h := range s.SignalSemaphores {
		signals = append(signals, lookup[*semaphore](&q.d.reg, h).sem)
	}

	userFence := vk.NullFence
	if s.Fence != gpu.NullHandle {
		userFence = lookup[*fence](&q.d.reg, s.Fence).fence
	}
	counterFence := vk.NullFence
	if s.Signal != 0 {
		f, err := q.d.fences.get()
		if err != nil {
			return err
		}
		counterFence = f
	}
	submitFence := userFence
	if submitFence == vk.NullFence {
		submitFence = counterFence
	}

	info := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(waits)),
		PWaitSemaphores:      waits,
		PWaitDstStageMask:    stages,
		CommandBufferCount:   uint32(len(cmds)),
		PCommandBuffers:      cmds,
		SignalSemaphoreCount: uint32(len(signals)),
		PSignalSemaphores:    signals,
	}
	if ret := vk.QueueSubmit(q.queue, 1, []vk.SubmitInfo{info}, submitFence); isError(ret) {
		if counterFence != vk.NullFence {
			q.d.fences.put(counterFence)
		}
		return NewError(ret)
	}
	if counterFence == vk.NullFence {
		return nil
	}
	if counterFence != submitFence {
		// An empty submission signals its fence once all earlier
		// work on the queue is done.
		if ret := vk.QueueSubmit(q.queue, 0, nil, counterFence); isError(ret) {
			q.d.fences.put(counterFence)
			return NewError(ret)
		}
	}
	q.signaled = s.Signal
	q.pending = append(q.pending, pending{value: s.Signal, fence: counterFence})
	return nil
}

// Completed implements gpu.Queue.
func (q *Queue) Completed() uint64 {
	n := 0
	for _, p := range q.pending {
		if vk.GetFenceStatus(q.d.device, p.fence) != vk.Success {
			break
		}
		q.completed = p.value
		q.d.fences.put(p.fence)
		n++
	}
	if n > 0 {
		q.pending = append(q.pending[:0], q.pending[n:]...)
	}
	return q.completed
}

// WaitUntil implements gpu.Queue.
func (q *Queue) WaitUntil(value uint64, timeout time.Duration) error {
	if q.Completed() >= value {
		return nil
	}
	if value > q.signaled {
		return fmt.Errorf("vulkan: %s queue value %d was never submitted", q.id, value)
	}
	for _, p := range q.pending {
		if p.value < value {
			continue
		}
		ret := vk.WaitForFences(q.d.device, 1, []vk.Fence{p.fence}, vk.True, uint64(timeout.Nanoseconds()))
		if err := NewError(ret); err != nil {
			return fmt.Errorf("vulkan: %s queue waiting for %d: %w", q.id, value, err)
		}
		break
	}
	q.Completed()
	return nil
}

// idle waits for the queue to drain and retires every pending value.
func (q *Queue) idle() error {
	err := NewError(vk.QueueWaitIdle(q.queue))
	q.Completed()
	if err == nil && len(q.pending) > 0 {
		err = errors.New("vulkan: fences still pending after queue idle")
	}
	return err
}

func (q *Queue) destroy() {
	if q.order != nil {
		q.pool.free(q.order)
	}
	q.pool.destroy()
}
