// Package present manages the swapchain images an application renders
// into and hands them to the presentation engine.
package present

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/andewx/diesel/gpu"
	"github.com/andewx/diesel/timeline"
)

// Window is the window a surface presents to.
type Window interface {
	// FramebufferSize returns the size in pixels; zero while minimized.
	FramebufferSize() (width, height int)
}

// Config selects swapchain parameters.
type Config struct {
	PresentMode gpu.PresentMode
	ImageCount  uint32
	Timeout     time.Duration
}

// syncSet holds the per-swapchain objects. acquired, fences and cmds are
// indexed by a ring position advanced every present, ready by image.
type syncSet struct {
	acquired []gpu.Handle
	ready    []gpu.Handle
	fences   []gpu.Handle
	cmds     []gpu.CmdBuffer
}

// Surface owns a swapchain and the objects synchronizing it.
type Surface struct {
	dev  gpu.Device
	surf gpu.Surface
	win  Window
	main *timeline.Counter
	cfg  Config
	log  *log.Logger

	swapchain gpu.Handle
	images    []gpu.Handle
	format    gpu.SurfaceFormat
	mode      gpu.PresentMode
	extent    gpu.Extent
	syncSet
	ring int

	stale     bool
	minimized bool
	rebuilds  int
}

// New creates a surface presenting to win and builds its first swapchain.
// Work is submitted through main, which must be the main queue's counter.
func New(dev gpu.Device, win Window, main *timeline.Counter, cfg Config, logger *log.Logger) (*Surface, error) {
	surf, err := dev.Surface()
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	s := &Surface{dev: dev, surf: surf, win: win, main: main, cfg: cfg, log: logger, stale: true}
	if _, err := s.Rebuild(); err != nil {
		return nil, err
	}
	return s, nil
}

// Extent returns the swapchain extent.
func (s *Surface) Extent() gpu.Extent { return s.extent }

// Format returns the swapchain format.
func (s *Surface) Format() gpu.SurfaceFormat { return s.format }

// PresentMode returns the present mode in use.
func (s *Surface) PresentMode() gpu.PresentMode { return s.mode }

// ImageCount returns the number of swapchain images.
func (s *Surface) ImageCount() int { return len(s.images) }

// Stale reports whether the swapchain must be rebuilt.
func (s *Surface) Stale() bool { return s.stale }

// Minimized reports whether the last rebuild found a zero extent.
func (s *Surface) Minimized() bool { return s.minimized }

// Rebuilds returns the number of swapchains created.
func (s *Surface) Rebuilds() int { return s.rebuilds }

// Rebuild replaces the swapchain and its synchronization objects if the
// surface has a non-zero extent, and reports whether it did. The device
// is idled before the old objects are destroyed.
func (s *Surface) Rebuild() (bool, error) {
	caps, err := s.surf.Caps()
	if err != nil {
		return false, fmt.Errorf("surface capabilities: %w", err)
	}
	w, h := s.win.FramebufferSize()
	extent := ChooseExtent(caps, w, h)
	if extent.IsZero() {
		s.minimized = true
		return false, nil
	}
	formats, err := s.surf.Formats()
	if err != nil {
		return false, fmt.Errorf("surface formats: %w", err)
	}
	modes, err := s.surf.PresentModes()
	if err != nil {
		return false, fmt.Errorf("surface present modes: %w", err)
	}
	desc := gpu.SwapchainDesc{
		Format:      ChooseFormat(formats),
		Extent:      extent,
		Images:      ChooseImageCount(caps, s.cfg.ImageCount),
		PresentMode: ChoosePresentMode(modes, s.cfg.PresentMode),
		Old:         s.swapchain,
	}
	if err := s.dev.WaitIdle(); err != nil {
		return false, err
	}
	sc, images, err := s.surf.NewSwapchain(&desc)
	if err != nil {
		return false, fmt.Errorf("swapchain: %w", err)
	}
	sy, err := s.newSync(len(images))
	if err != nil {
		s.destroySync(sy)
		s.dev.Destroy(gpu.KindSwapchain, sc)
		return false, err
	}
	s.destroy()
	s.swapchain, s.images, s.syncSet = sc, images, sy
	s.format, s.mode, s.extent = desc.Format, desc.PresentMode, extent
	s.ring = 0
	s.stale, s.minimized = false, false
	s.rebuilds++
	if s.log != nil {
		s.log.Printf("swapchain %dx%d, %d images, %s", extent.Width, extent.Height, len(images), desc.PresentMode)
	}
	return true, nil
}

func (s *Surface) newSync(n int) (sy syncSet, err error) {
	for i := 0; i < n; i++ {
		var h gpu.Handle
		if h, err = s.dev.NewSemaphore(); err != nil {
			return
		}
		sy.acquired = append(sy.acquired, h)
		if h, err = s.dev.NewSemaphore(); err != nil {
			return
		}
		sy.ready = append(sy.ready, h)
		if h, err = s.dev.NewFence(true); err != nil {
			return
		}
		sy.fences = append(sy.fences, h)
		var cmd gpu.CmdBuffer
		if cmd, err = s.dev.NewCmdBuffer(gpu.QueueMain); err != nil {
			return
		}
		sy.cmds = append(sy.cmds, cmd)
	}
	return
}

func (s *Surface) destroySync(sy syncSet) {
	for _, h := range sy.acquired {
		s.dev.Destroy(gpu.KindSemaphore, h)
	}
	for _, h := range sy.ready {
		s.dev.Destroy(gpu.KindSemaphore, h)
	}
	for _, h := range sy.fences {
		s.dev.Destroy(gpu.KindFence, h)
	}
	for _, c := range sy.cmds {
		s.dev.Destroy(gpu.KindCmdBuffer, c.Handle())
	}
}

func (s *Surface) destroy() {
	s.destroySync(s.syncSet)
	s.syncSet = syncSet{}
	if s.swapchain != gpu.NullHandle {
		s.dev.Destroy(gpu.KindSwapchain, s.swapchain)
		s.swapchain = gpu.NullHandle
		s.images = nil
	}
}

// Destroy destroys the swapchain and its objects.
// The device must be idle.
func (s *Surface) Destroy() { s.destroy() }

// Present copies level 0 of src, which must be in the transfer-src
// layout, into the next swapchain image and presents it. The copy waits
// for the main queue to reach wait. It returns the main queue value
// signaled by the copy, or zero if nothing was presented because the
// surface is minimized or stale.
func (s *Surface) Present(src gpu.Handle, extent gpu.Extent, wait uint64) (uint64, error) {
	if s.swapchain == gpu.NullHandle || s.stale {
		return 0, nil
	}
	if w, h := s.win.FramebufferSize(); w == 0 || h == 0 {
		s.minimized = true
		return 0, nil
	}
	r := s.ring
	if err := s.dev.WaitFence(s.fences[r], s.cfg.Timeout); err != nil {
		return 0, fmt.Errorf("present fence: %w", err)
	}
	idx, err := s.surf.Acquire(s.swapchain, s.acquired[r], s.cfg.Timeout)
	switch {
	case errors.Is(err, gpu.ErrOutOfDate):
		s.stale = true
		return 0, nil
	case errors.Is(err, gpu.ErrSuboptimal):
		s.stale = true
	case err != nil:
		return 0, fmt.Errorf("acquire: %w", err)
	}
	if err := s.dev.ResetFence(s.fences[r]); err != nil {
		return 0, err
	}

	cmd := s.cmds[r]
	if err := cmd.Reset(); err != nil {
		return 0, err
	}
	if err := cmd.Begin(); err != nil {
		return 0, err
	}
	dst := s.images[idx]
	cmd.Barrier(&gpu.Barrier{
		SrcStage: gpu.StageTransfer,
		DstStage: gpu.StageTransfer,
		Images: []gpu.ImageBarrier{{
			Image:     dst,
			Levels:    1,
			OldLayout: gpu.LayoutUndefined,
			NewLayout: gpu.LayoutTransferDst,
			DstAccess: gpu.AccessTransferWrite,
			SrcFamily: gpu.FamilyIgnored,
			DstFamily: gpu.FamilyIgnored,
		}},
	})
	cmd.Blit(&gpu.Blit{
		Src:       src,
		SrcLayout: gpu.LayoutTransferSrc,
		SrcExtent: extent,
		Dst:       dst,
		DstLayout: gpu.LayoutTransferDst,
		DstExtent: s.extent,
	})
	cmd.Barrier(&gpu.Barrier{
		SrcStage: gpu.StageTransfer,
		DstStage: gpu.StageBottom,
		Images: []gpu.ImageBarrier{{
			Image:     dst,
			Levels:    1,
			OldLayout: gpu.LayoutTransferDst,
			NewLayout: gpu.LayoutPresent,
			SrcAccess: gpu.AccessTransferWrite,
			DstAccess: gpu.AccessMemoryRead,
			SrcFamily: gpu.FamilyIgnored,
			DstFamily: gpu.FamilyIgnored,
		}},
	})
	if err := cmd.End(); err != nil {
		return 0, err
	}

	sub := &gpu.Submit{
		Cmds:             []gpu.CmdBuffer{cmd},
		WaitSemaphores:   []gpu.SemaphoreWait{{Semaphore: s.acquired[r], Stage: gpu.StageTransfer}},
		SignalSemaphores: []gpu.Handle{s.ready[idx]},
		Fence:            s.fences[r],
	}
	if wait > 0 {
		sub.Waits = []gpu.Wait{{Queue: gpu.QueueMain, Value: wait, Stage: gpu.StageTransfer}}
	}
	v, err := s.main.Submit(sub)
	if err != nil {
		return 0, err
	}
	s.ring = (r + 1) % len(s.images)

	err = s.surf.Present(gpu.QueueMain, s.swapchain, idx, s.ready[idx])
	if gpu.IsStale(err) {
		s.stale = true
		err = nil
	}
	return v, err
}
