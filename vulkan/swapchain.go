package vulkan

import (
	"fmt"
	"math"
	"time"

	"github.com/andewx/diesel/gpu"
	vk "github.com/vulkan-go/vulkan"
)

// Surface is the window surface of a device.
type Surface struct {
	d       *Device
	surface vk.Surface
}

// Caps implements gpu.Surface.
func (s *Surface) Caps() (gpu.SurfaceCaps, error) {
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(s.d.gpu, s.surface, &caps)
	if isError(ret) {
		return gpu.SurfaceCaps{}, NewError(ret)
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	out := gpu.SurfaceCaps{
		MinImages: caps.MinImageCount,
		MaxImages: caps.MaxImageCount,
		Current:   gpu.Extent{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
		MinExtent: gpu.Extent{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
		MaxExtent: gpu.Extent{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height},
	}
	if caps.CurrentExtent.Width == math.MaxUint32 {
		out.Current = gpu.Extent{Width: gpu.ExtentFollowsWindow, Height: gpu.ExtentFollowsWindow}
	}
	return out, nil
}

// Formats implements gpu.Surface. Formats the engine cannot render into
// are left out.
func (s *Surface) Formats() ([]gpu.SurfaceFormat, error) {
	var count uint32
	if ret := vk.GetPhysicalDeviceSurfaceFormats(s.d.gpu, s.surface, &count, nil); isError(ret) {
		return nil, NewError(ret)
	}
	formats := make([]vk.SurfaceFormat, count)
	if ret := vk.GetPhysicalDeviceSurfaceFormats(s.d.gpu, s.surface, &count, formats); isError(ret) {
		return nil, NewError(ret)
	}
	var out []gpu.SurfaceFormat
	for _, f := range formats {
		f.Deref()
		// A single undefined entry means any format may be used.
		if f.Format == vk.FormatUndefined && count == 1 {
			return []gpu.SurfaceFormat{{Format: gpu.FormatBGRA8SRGB}}, nil
		}
		format := gpuFormat(f.Format)
		if format == gpu.FormatUndefined || format.IsDepth() {
			continue
		}
		space := gpu.ColorSpaceOther
		if f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			space = gpu.ColorSpaceSRGBNonlinear
		}
		out = append(out, gpu.SurfaceFormat{Format: format, ColorSpace: space})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("vulkan: none of %d surface formats is usable: %w", count, gpu.ErrCannotPresent)
	}
	return out, nil
}

// PresentModes implements gpu.Surface.
func (s *Surface) PresentModes() ([]gpu.PresentMode, error) {
	var count uint32
	if ret := vk.GetPhysicalDeviceSurfacePresentModes(s.d.gpu, s.surface, &count, nil); isError(ret) {
		return nil, NewError(ret)
	}
	modes := make([]vk.PresentMode, count)
	if ret := vk.GetPhysicalDeviceSurfacePresentModes(s.d.gpu, s.surface, &count, modes); isError(ret) {
		return nil, NewError(ret)
	}
	var out []gpu.PresentMode
	for _, m := range modes {
		if mode, ok := gpuPresentMode(m); ok {
			out = append(out, mode)
		}
	}
	return out, nil
}

// NewSwapchain implements gpu.Surface. The old swapchain is retired but
// not destroyed.
func (s *Surface) NewSwapchain(desc *gpu.SwapchainDesc) (gpu.Handle, []gpu.Handle, error) {
	var caps vk.SurfaceCapabilities
	if ret := vk.GetPhysicalDeviceSurfaceCapabilities(s.d.gpu, s.surface, &caps); isError(ret) {
		return gpu.NullHandle, nil, NewError(ret)
	}
	caps.Deref()

	// Figure out a suitable surface transform.
	preTransform := vk.SurfaceTransformIdentityBit
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&preTransform == 0 {
		preTransform = caps.CurrentTransform
	}
	// Find a supported composite alpha mode; one of these is guaranteed to be set.
	compositeAlpha := vk.CompositeAlphaOpaqueBit
	for _, flag := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(flag) != 0 {
			compositeAlpha = flag
			break
		}
	}
	space := vk.ColorSpaceSrgbNonlinear

	old := vk.NullSwapchain
	if desc.Old != gpu.NullHandle {
		old = lookup[*swapchain](&s.d.reg, desc.Old).sc
	}
	var sc vk.Swapchain
	ret := vk.CreateSwapchain(s.d.device, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.surface,
		MinImageCount:    desc.Images,
		ImageFormat:      vkFormat(desc.Format.Format),
		ImageColorSpace:  space,
		ImageExtent:      vkExtent(desc.Extent),
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     preTransform,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      vkPresentMode(desc.PresentMode),
		Clipped:          vk.True,
		OldSwapchain:     old,
	}, nil, &sc)
	if isError(ret) {
		return gpu.NullHandle, nil, NewError(ret)
	}

	var count uint32
	if ret := vk.GetSwapchainImages(s.d.device, sc, &count, nil); isError(ret) {
		vk.DestroySwapchain(s.d.device, sc, nil)
		return gpu.NullHandle, nil, NewError(ret)
	}
	images := make([]vk.Image, count)
	if ret := vk.GetSwapchainImages(s.d.device, sc, &count, images); isError(ret) {
		vk.DestroySwapchain(s.d.device, sc, nil)
		return gpu.NullHandle, nil, NewError(ret)
	}
	chain := &swapchain{sc: sc}
	for _, img := range images {
		chain.images = append(chain.images, s.d.reg.add(&image{
			img:    img,
			format: desc.Format.Format,
			extent: desc.Extent,
			levels: 1,
		}))
	}
	return s.d.reg.add(chain), chain.images, nil
}

// Acquire implements gpu.Surface.
func (s *Surface) Acquire(h, sem gpu.Handle, timeout time.Duration) (uint32, error) {
	sc := lookup[*swapchain](&s.d.reg, h)
	var idx uint32
	ret := vk.AcquireNextImage(s.d.device, sc.sc, uint64(timeout.Nanoseconds()),
		lookup[*semaphore](&s.d.reg, sem).sem, vk.NullFence, &idx)
	switch ret {
	case vk.Success:
		return idx, nil
	case vk.Suboptimal:
		return idx, gpu.ErrSuboptimal
	}
	return 0, NewError(ret)
}

// Present implements gpu.Surface.
func (s *Surface) Present(q gpu.QueueID, h gpu.Handle, index uint32, wait gpu.Handle) error {
	sc := lookup[*swapchain](&s.d.reg, h)
	info := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{sc.sc},
		PImageIndices:  []uint32{index},
	}
	if wait != gpu.NullHandle {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{lookup[*semaphore](&s.d.reg, wait).sem}
	}
	switch ret := vk.QueuePresent(s.d.queues[q].queue, &info); ret {
	case vk.Success:
		return nil
	case vk.Suboptimal:
		return gpu.ErrSuboptimal
	default:
		return NewError(ret)
	}
}

func (d *Device) destroySwapchain(h gpu.Handle) {
	sc := lookup[*swapchain](&d.reg, h)
	d.reg.remove(h)
	for _, img := range sc.images {
		d.reg.remove(img)
	}
	vk.DestroySwapchain(d.device, sc.sc, nil)
}
