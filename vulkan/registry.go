package vulkan

import (
	"fmt"

	"github.com/andewx/diesel/gpu"
	vk "github.com/vulkan-go/vulkan"
)

type buffer struct {
	buf  vk.Buffer
	size uint64
}

type image struct {
	img    vk.Image
	format gpu.Format
	extent gpu.Extent
	levels uint32
	// owned is false for swapchain images.
	owned bool
}

type imageView struct {
	view  vk.ImageView
	image gpu.Handle
}

type memory struct {
	mem vk.DeviceMemory
}

type semaphore struct {
	sem vk.Semaphore
}

type fence struct {
	fence vk.Fence
}

type swapchain struct {
	sc     vk.Swapchain
	images []gpu.Handle
}

// registry maps handles onto backend objects.
type registry struct {
	last    gpu.Handle
	objects map[gpu.Handle]any
}

func (r *registry) add(v any) gpu.Handle {
	if r.objects == nil {
		r.objects = make(map[gpu.Handle]any)
	}
	r.last++
	r.objects[r.last] = v
	return r.last
}

func (r *registry) remove(h gpu.Handle) any {
	v := r.objects[h]
	delete(r.objects, h)
	return v
}

func (r *registry) len() int { return len(r.objects) }

// lookup returns the object behind h. Using a handle of the wrong kind
// or one that was destroyed is a programming error.
func lookup[T any](r *registry, h gpu.Handle) T {
	v, ok := r.objects[h].(T)
	if !ok {
		var zero T
		panic(fmt.Sprintf("vulkan: handle %d is not a live %T", h, zero))
	}
	return v
}
