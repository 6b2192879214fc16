package present

import (
	"testing"

	"github.com/andewx/diesel/gpu"
	"github.com/andewx/diesel/gpu/gputest"
	"github.com/andewx/diesel/timeline"
)

type window struct{ w, h int }

func (w *window) FramebufferSize() (int, int) { return w.w, w.h }

func TestChoosePresentMode(t *testing.T) {
	avail := []gpu.PresentMode{gpu.PresentFIFO, gpu.PresentImmediate}
	if m := ChoosePresentMode(avail, gpu.PresentImmediate); m != gpu.PresentImmediate {
		t.Errorf("supported mode: got %s", m)
	}
	if m := ChoosePresentMode(avail, gpu.PresentMailbox); m != gpu.PresentFIFO {
		t.Errorf("unsupported mode: got %s, want fifo", m)
	}
}

func TestChooseFormat(t *testing.T) {
	cases := []struct {
		avail []gpu.SurfaceFormat
		want  gpu.Format
	}{
		{nil, gpu.FormatBGRA8SRGB},
		{[]gpu.SurfaceFormat{{Format: gpu.FormatUndefined}}, gpu.FormatBGRA8SRGB},
		{[]gpu.SurfaceFormat{{Format: gpu.FormatBGRA8Unorm}, {Format: gpu.FormatRGBA8SRGB}}, gpu.FormatRGBA8SRGB},
		{[]gpu.SurfaceFormat{{Format: gpu.FormatRGBA8Unorm}, {Format: gpu.FormatBGRA8Unorm}}, gpu.FormatRGBA8Unorm},
		{[]gpu.SurfaceFormat{{Format: gpu.FormatBGRA8SRGB, ColorSpace: gpu.ColorSpaceOther}, {Format: gpu.FormatBGRA8Unorm}}, gpu.FormatBGRA8SRGB},
	}
	for i, c := range cases {
		if got := ChooseFormat(c.avail).Format; got != c.want {
			t.Errorf("case %d: got format %d, want %d", i, got, c.want)
		}
	}
}

func TestChooseExtent(t *testing.T) {
	caps := gpu.SurfaceCaps{
		Current:   gpu.Extent{Width: gpu.ExtentFollowsWindow, Height: gpu.ExtentFollowsWindow},
		MinExtent: gpu.Extent{Width: 16, Height: 16},
		MaxExtent: gpu.Extent{Width: 1024, Height: 768},
	}
	cases := []struct {
		w, h int
		want gpu.Extent
	}{
		{800, 600, gpu.Extent{Width: 800, Height: 600}},
		{4000, 10, gpu.Extent{Width: 1024, Height: 16}},
		{0, 600, gpu.Extent{}},
	}
	for _, c := range cases {
		if got := ChooseExtent(caps, c.w, c.h); got != c.want {
			t.Errorf("ChooseExtent(%d, %d): got %v, want %v", c.w, c.h, got, c.want)
		}
	}
	caps.Current = gpu.Extent{Width: 640, Height: 480}
	if got := ChooseExtent(caps, 800, 600); got != caps.Current {
		t.Errorf("fixed extent: got %v, want %v", got, caps.Current)
	}
}

func TestChooseImageCount(t *testing.T) {
	caps := gpu.SurfaceCaps{MinImages: 2, MaxImages: 3}
	for _, c := range []struct{ want, got uint32 }{{0, 3}, {1, 2}, {3, 3}, {8, 3}} {
		if n := ChooseImageCount(caps, c.want); n != c.got {
			t.Errorf("ChooseImageCount(%d): got %d, want %d", c.want, n, c.got)
		}
	}
	caps.MaxImages = 0
	if n := ChooseImageCount(caps, 8); n != 8 {
		t.Errorf("unbounded ChooseImageCount(8): got %d", n)
	}
}

func newSurface(t *testing.T) (*gputest.Device, *window, *Surface) {
	t.Helper()
	dev := gputest.NewWithSurface(gpu.Extent{Width: 320, Height: 240})
	win := &window{320, 240}
	main := timeline.NewCounter(dev.Queue(gpu.QueueMain))
	s, err := New(dev, win, main, Config{PresentMode: gpu.PresentMailbox, ImageCount: 3}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return dev, win, s
}

func TestNew(t *testing.T) {
	dev, _, s := newSurface(t)
	if s.ImageCount() != 3 || s.PresentMode() != gpu.PresentMailbox {
		t.Fatalf("surface: %d images, mode %s", s.ImageCount(), s.PresentMode())
	}
	if !s.Format().Format.IsSRGB() {
		t.Fatalf("surface format %d is not sRGB", s.Format().Format)
	}
	if s.Extent() != (gpu.Extent{Width: 320, Height: 240}) {
		t.Fatalf("surface extent %v", s.Extent())
	}
	if dev.Live(gpu.KindFence) != 3 || dev.Live(gpu.KindSemaphore) != 6 {
		t.Fatalf("sync objects: %d fences, %d semaphores", dev.Live(gpu.KindFence), dev.Live(gpu.KindSemaphore))
	}
}

func TestPresent(t *testing.T) {
	dev, _, s := newSurface(t)
	src := gpu.Handle(999)
	for i := 0; i < 5; i++ {
		v, err := s.Present(src, s.Extent(), 0)
		if err != nil {
			t.Fatal(err)
		}
		if v != uint64(i+1) {
			t.Fatalf("present %d: signaled %d, want %d", i, v, i+1)
		}
	}
	if n := len(dev.Surf().Presented); n != 5 {
		t.Fatalf("presented %d images, want 5", n)
	}
	sub := dev.Q(gpu.QueueMain).Submits[0]
	if len(sub.WaitSemaphores) != 1 || len(sub.SignalSemaphores) != 1 || sub.Fence == gpu.NullHandle {
		t.Fatalf("present copy submission: %+v", sub)
	}
	if dev.Surf().Presented[0].Wait != sub.SignalSemaphores[0] {
		t.Fatal("present does not wait on the copy's ready semaphore")
	}
	cmd := dev.Cmd(sub.Cmds[0].Handle())
	blits := cmd.Find("Blit")
	if len(blits) != 1 || blits[0].Blit.Src != src {
		t.Fatalf("present copy blits: %+v", blits)
	}
}

func TestPresentWaitsOnValue(t *testing.T) {
	dev, _, s := newSurface(t)
	frame, err := s.main.Submit(&gpu.Submit{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Present(1, s.Extent(), frame); err != nil {
		t.Fatal(err)
	}
	subs := dev.Q(gpu.QueueMain).Submits
	last := subs[len(subs)-1]
	if len(last.Waits) != 1 || last.Waits[0].Value != frame || last.Waits[0].Queue != gpu.QueueMain {
		t.Fatalf("present copy waits: %+v", last.Waits)
	}
}

func TestPresentStale(t *testing.T) {
	dev, _, s := newSurface(t)
	dev.Surf().StaleAcquires = 1
	v, err := s.Present(1, s.Extent(), 0)
	if err != nil || v != 0 {
		t.Fatalf("stale acquire: got %d, %v", v, err)
	}
	if !s.Stale() {
		t.Fatal("stale acquire did not mark the surface stale")
	}
	if v, _ := s.Present(1, s.Extent(), 0); v != 0 {
		t.Fatal("stale surface presented")
	}

	rebuilt, err := s.Rebuild()
	if err != nil || !rebuilt {
		t.Fatalf("Rebuild: %t, %v", rebuilt, err)
	}
	if s.Stale() || s.Rebuilds() != 2 {
		t.Fatalf("after rebuild: stale %t, rebuilds %d", s.Stale(), s.Rebuilds())
	}
	if v, err := s.Present(1, s.Extent(), 0); err != nil || v == 0 {
		t.Fatalf("present after rebuild: %d, %v", v, err)
	}
}

func TestPresentSuboptimal(t *testing.T) {
	dev, _, s := newSurface(t)
	dev.Surf().SuboptimalPresents = 1
	v, err := s.Present(1, s.Extent(), 0)
	if err != nil || v == 0 {
		t.Fatalf("suboptimal present: %d, %v", v, err)
	}
	if !s.Stale() {
		t.Fatal("suboptimal present did not mark the surface stale")
	}
}

func TestRebuildReplacesEverything(t *testing.T) {
	dev, win, s := newSurface(t)
	old := s.swapchain
	oldFences := append([]gpu.Handle(nil), s.fences...)
	dev.Surf().SetExtent(gpu.Extent{Width: 640, Height: 480})
	win.w, win.h = 640, 480
	idle := dev.IdleWaits
	if ok, err := s.Rebuild(); err != nil || !ok {
		t.Fatalf("Rebuild: %t, %v", ok, err)
	}
	if dev.IdleWaits != idle+1 {
		t.Fatal("Rebuild did not idle the device")
	}
	if !dev.IsDestroyed(old) {
		t.Fatal("old swapchain not destroyed")
	}
	for _, f := range oldFences {
		if !dev.IsDestroyed(f) {
			t.Fatalf("old fence %d not destroyed", f)
		}
	}
	if s.Extent() != (gpu.Extent{Width: 640, Height: 480}) {
		t.Fatalf("extent after rebuild: %v", s.Extent())
	}
	created := dev.Surf().Created
	if created[len(created)-1].Old != old {
		t.Fatal("new swapchain not created from the old one")
	}
	if dev.Surf().Swapchains() != 1 {
		t.Fatalf("%d live swapchains", dev.Surf().Swapchains())
	}
}

func TestMinimized(t *testing.T) {
	dev, win, s := newSurface(t)
	win.w, win.h = 0, 0
	if v, err := s.Present(1, s.Extent(), 0); err != nil || v != 0 {
		t.Fatalf("minimized present: %d, %v", v, err)
	}
	if !s.Minimized() || len(dev.Surf().Presented) != 0 {
		t.Fatal("minimized surface presented")
	}
	dev.Surf().SetExtent(gpu.Extent{})
	if ok, err := s.Rebuild(); ok || err != nil {
		t.Fatalf("Rebuild at zero extent: %t, %v", ok, err)
	}
	if s.Rebuilds() != 1 {
		t.Fatal("zero extent rebuilt the swapchain")
	}
}

func TestHeadless(t *testing.T) {
	dev := gputest.New()
	_, err := New(dev, &window{1, 1}, timeline.NewCounter(dev.Queue(gpu.QueueMain)), Config{}, nil)
	if err != gpu.ErrCannotPresent {
		t.Fatalf("New on headless device: got %v, want ErrCannotPresent", err)
	}
}
