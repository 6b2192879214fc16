package gputest

import (
	"time"

	"github.com/andewx/diesel/gpu"
)

// Presentation is a journaled present call.
type Presentation struct {
	Swapchain gpu.Handle
	Index     uint32
	Wait      gpu.Handle
}

type swapchain struct {
	images []gpu.Handle
	next   uint32
}

// Surface is a scriptable in-memory gpu.Surface.
type Surface struct {
	d          *Device
	caps       gpu.SurfaceCaps
	formats    []gpu.SurfaceFormat
	modes      []gpu.PresentMode
	swapchains map[gpu.Handle]*swapchain

	// StaleAcquires makes that many next acquires fail with ErrOutOfDate.
	StaleAcquires int
	// StalePresents makes that many next presents fail with ErrOutOfDate.
	StalePresents int
	// SuboptimalPresents makes that many next presents report ErrSuboptimal.
	SuboptimalPresents int

	// Created journals every swapchain creation.
	Created []gpu.SwapchainDesc
	// Presented journals every present call.
	Presented []Presentation
}

func newSurface(d *Device, extent gpu.Extent) *Surface {
	return &Surface{
		d: d,
		caps: gpu.SurfaceCaps{
			MinImages: 2,
			MaxImages: 8,
			Current:   extent,
			MinExtent: gpu.Extent{Width: 1, Height: 1},
			MaxExtent: gpu.Extent{Width: 16384, Height: 16384},
		},
		formats: []gpu.SurfaceFormat{
			{Format: gpu.FormatBGRA8Unorm, ColorSpace: gpu.ColorSpaceSRGBNonlinear},
			{Format: gpu.FormatBGRA8SRGB, ColorSpace: gpu.ColorSpaceSRGBNonlinear},
		},
		modes:      []gpu.PresentMode{gpu.PresentFIFO, gpu.PresentMailbox},
		swapchains: make(map[gpu.Handle]*swapchain),
	}
}

// SetExtent changes the current extent of the surface.
func (s *Surface) SetExtent(e gpu.Extent) { s.caps.Current = e }

// SetCaps replaces the surface capabilities.
func (s *Surface) SetCaps(c gpu.SurfaceCaps) { s.caps = c }

// SetFormats replaces the supported formats.
func (s *Surface) SetFormats(f ...gpu.SurfaceFormat) { s.formats = f }

// SetPresentModes replaces the supported present modes.
func (s *Surface) SetPresentModes(m ...gpu.PresentMode) { s.modes = m }

// Swapchains returns the number of live swapchains.
func (s *Surface) Swapchains() int { return len(s.swapchains) }

func (s *Surface) drop(h gpu.Handle) {
	if sc, ok := s.swapchains[h]; ok {
		for _, img := range sc.images {
			delete(s.d.live, img)
		}
		delete(s.swapchains, h)
	}
}

// Caps implements gpu.Surface.
func (s *Surface) Caps() (gpu.SurfaceCaps, error) { return s.caps, nil }

// Formats implements gpu.Surface.
func (s *Surface) Formats() ([]gpu.SurfaceFormat, error) { return s.formats, nil }

// PresentModes implements gpu.Surface.
func (s *Surface) PresentModes() ([]gpu.PresentMode, error) { return s.modes, nil }

// NewSwapchain implements gpu.Surface.
func (s *Surface) NewSwapchain(desc *gpu.SwapchainDesc) (gpu.Handle, []gpu.Handle, error) {
	h, err := s.d.create(gpu.KindSwapchain)
	if err != nil {
		return h, nil, err
	}
	sc := &swapchain{}
	for i := uint32(0); i < desc.Images; i++ {
		img, err := s.d.create(gpu.KindImage)
		if err != nil {
			return gpu.NullHandle, nil, err
		}
		sc.images = append(sc.images, img)
	}
	s.swapchains[h] = sc
	s.Created = append(s.Created, *desc)
	return h, append([]gpu.Handle(nil), sc.images...), nil
}

// Acquire implements gpu.Surface.
func (s *Surface) Acquire(h, semaphore gpu.Handle, timeout time.Duration) (uint32, error) {
	if s.StaleAcquires > 0 {
		s.StaleAcquires--
		return 0, gpu.ErrOutOfDate
	}
	sc, ok := s.swapchains[h]
	if !ok {
		return 0, gpu.ErrOutOfDate
	}
	i := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	return i, nil
}

// Present implements gpu.Surface.
func (s *Surface) Present(q gpu.QueueID, h gpu.Handle, index uint32, wait gpu.Handle) error {
	s.Presented = append(s.Presented, Presentation{h, index, wait})
	switch {
	case s.StalePresents > 0:
		s.StalePresents--
		return gpu.ErrOutOfDate
	case s.SuboptimalPresents > 0:
		s.SuboptimalPresents--
		return gpu.ErrSuboptimal
	}
	return nil
}
