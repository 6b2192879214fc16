package resource

import (
	"testing"

	"github.com/andewx/diesel/deletion"
	"github.com/andewx/diesel/gpu"
	"github.com/andewx/diesel/gpu/gputest"
	"github.com/andewx/diesel/timeline"
)

type fixture struct {
	dev     *gputest.Device
	env     *Env
	set     timeline.Set
	reclaim deletion.DeviceReclaimer
}

func newFixture() *fixture {
	f := &fixture{dev: gputest.New()}
	f.set = timeline.NewSet(f.dev)
	f.env = &Env{Device: f.dev, Deletions: new(deletion.Queue), Completion: &f.set}
	f.reclaim = deletion.DeviceReclaimer{Device: f.dev}
	return f
}

// submit signals the next value on q and returns it.
func (f *fixture) submit(t *testing.T, q gpu.QueueID) uint64 {
	t.Helper()
	v, err := f.set[q].Submit(&gpu.Submit{})
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func (f *fixture) sweep() int { return f.env.Deletions.Sweep(&f.set, f.reclaim) }

func (f *fixture) image(t *testing.T) *Image {
	t.Helper()
	img, err := NewImage(f.env, &gpu.ImageDesc{
		Format: gpu.FormatRGBA8Unorm,
		Extent: gpu.Extent{Width: 4, Height: 4},
		Levels: 3,
		Usage:  gpu.UsageSampled,
		Label:  "test",
	})
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func TestReleaseNeverSubmitted(t *testing.T) {
	f := newFixture()
	b, err := NewBuffer(f.env, &gpu.BufferDesc{Size: 16, Usage: gpu.UsageVertex})
	if err != nil {
		t.Fatal(err)
	}
	b.Release()
	if f.dev.IsDestroyed(b.Handle()) {
		t.Fatal("Buffer.Release: destroyed synchronously")
	}
	if n := f.sweep(); n != 1 || !f.dev.IsDestroyed(b.Handle()) {
		t.Fatalf("sweep: never-submitted buffer not destroyed (reclaimed %d)", n)
	}
}

func TestReleaseWaitsForUse(t *testing.T) {
	f := newFixture()
	var bufs []*Buffer
	for i := 0; i < 3; i++ {
		b, err := NewBuffer(f.env, &gpu.BufferDesc{Size: 16})
		if err != nil {
			t.Fatal(err)
		}
		bufs = append(bufs, b)
	}
	for i := 0; i < 9; i++ {
		f.submit(t, gpu.QueueMain)
	}
	for i, v := range []uint64{5, 7, 9} {
		bufs[i].UseResource(gpu.QueueMain, v)
		bufs[i].Release()
	}

	steps := []struct {
		completed uint64
		destroyed []bool
	}{
		{4, []bool{false, false, false}},
		{6, []bool{true, false, false}},
		{8, []bool{true, true, false}},
		{9, []bool{true, true, true}},
	}
	for _, s := range steps {
		f.dev.Complete(gpu.QueueMain, s.completed)
		f.sweep()
		for i, want := range s.destroyed {
			if got := f.dev.IsDestroyed(bufs[i].Handle()); got != want {
				t.Errorf("completed %d: buffer %d destroyed %t, want %t", s.completed, i, got, want)
			}
		}
	}
	if n := f.env.Deletions.Len(); n != 0 {
		t.Fatalf("deletion queue: %d entries left", n)
	}
}

func TestUseResourceRaisesOnly(t *testing.T) {
	f := newFixture()
	p, err := NewPipeline(f.env, &gpu.PipelineDesc{Vertex: []byte{1}, Fragment: []byte{1}})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		f.submit(t, gpu.QueueMain)
	}
	p.UseResource(gpu.QueueMain, 3)
	p.UseResource(gpu.QueueMain, 3)
	if v := p.Use().Value(gpu.QueueMain); v != 3 {
		t.Fatalf("Pipeline.Use: got %d, want 3", v)
	}
}

func TestImageSharedByViews(t *testing.T) {
	f := newFixture()
	img := f.image(t)
	v1, err := NewImageView(img, &gpu.ViewDesc{})
	if err != nil {
		t.Fatal(err)
	}
	v2, err := NewImageView(img, &gpu.ViewDesc{})
	if err != nil {
		t.Fatal(err)
	}
	img.Release()
	if img.Refs() != 2 {
		t.Fatalf("Image.Refs: got %d, want 2", img.Refs())
	}
	if v1.Desc().Levels != 3 {
		t.Fatalf("ImageView.Desc: zero levels not expanded, got %d", v1.Desc().Levels)
	}

	for i := 0; i < 10; i++ {
		f.submit(t, gpu.QueueMain)
	}
	v1.UseResource(gpu.QueueMain, 10)
	if v := img.Use().Value(gpu.QueueMain); v != 10 {
		t.Fatalf("ImageView.UseResource: image use %d, want 10", v)
	}

	v1.Release()
	f.dev.CompleteAll()
	f.sweep()
	if !f.dev.IsDestroyed(v1.Handle()) {
		t.Fatal("released view not destroyed")
	}
	if f.dev.IsDestroyed(img.Handle()) {
		t.Fatal("image destroyed while a view still holds it")
	}

	v2.Release()
	f.sweep()
	if !f.dev.IsDestroyed(img.Handle()) || !f.dev.IsDestroyed(v2.Handle()) {
		t.Fatal("image not destroyed after last view released")
	}
}

func TestImageWaitsForForwardedUse(t *testing.T) {
	f := newFixture()
	img := f.image(t)
	v, err := NewImageView(img, &gpu.ViewDesc{})
	if err != nil {
		t.Fatal(err)
	}
	img.Release()
	val := f.submit(t, gpu.QueueMain)
	v.UseResource(gpu.QueueMain, val)
	v.Release()
	f.sweep()
	if f.dev.IsDestroyed(img.Handle()) || f.dev.IsDestroyed(v.Handle()) {
		t.Fatal("image destroyed before its use completed")
	}
	f.dev.Complete(gpu.QueueMain, val)
	f.sweep()
	if !f.dev.IsDestroyed(img.Handle()) {
		t.Fatal("image not destroyed after its use completed")
	}
}

func TestIsUploadedSticky(t *testing.T) {
	f := newFixture()
	b, err := NewBuffer(f.env, &gpu.BufferDesc{Size: 4})
	if err != nil {
		t.Fatal(err)
	}
	val := f.submit(t, gpu.QueueTransfer)
	b.UseResource(gpu.QueueTransfer, val)
	if b.IsUploaded() {
		t.Fatal("IsUploaded: true before the transfer completed")
	}
	f.dev.Complete(gpu.QueueTransfer, val)
	if !b.IsUploaded() {
		t.Fatal("IsUploaded: false after the transfer completed")
	}
	next := f.submit(t, gpu.QueueMain)
	b.UseResource(gpu.QueueMain, next)
	if !b.IsUploaded() {
		t.Fatal("IsUploaded: not sticky")
	}
	if b.IsFree() {
		t.Fatal("IsFree: true with pending main queue use")
	}
	f.dev.Complete(gpu.QueueMain, next)
	if !b.IsFree() {
		t.Fatal("IsFree: false after all uses completed")
	}
}

func TestBinding(t *testing.T) {
	f := newFixture()
	p, err := NewPipeline(f.env, &gpu.PipelineDesc{Vertex: []byte{1}, Fragment: []byte{1}, Textures: 1})
	if err != nil {
		t.Fatal(err)
	}
	img := f.image(t)
	v, err := NewImageView(img, &gpu.ViewDesc{})
	if err != nil {
		t.Fatal(err)
	}
	img.Release()

	if _, err := NewBinding(f.env, p, nil); err == nil {
		t.Fatal("NewBinding: expected error for missing textures")
	}
	b, err := NewBinding(f.env, p, []*ImageView{v})
	if err != nil {
		t.Fatal(err)
	}
	if got := f.dev.BindingViews(b.Handle()); len(got) != 1 || got[0] != v.Handle() {
		t.Fatalf("binding views: got %v, want [%d]", got, v.Handle())
	}
	val := f.submit(t, gpu.QueueMain)
	b.UseResource(gpu.QueueMain, val)
	for _, r := range []*Resource{&p.Resource, &v.Resource, &img.Resource} {
		if r.Use().Value(gpu.QueueMain) != val {
			t.Errorf("Binding.UseResource: %s not marked used", r.Kind())
		}
	}
}

func TestPendingAcquire(t *testing.T) {
	f := newFixture()
	b, err := NewBuffer(f.env, &gpu.BufferDesc{Size: 4})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := b.PendingAcquire(); ok {
		t.Fatal("PendingAcquire: set on new buffer")
	}
	b.SetPendingAcquire(1, 0)
	h, ok := b.PendingAcquire()
	if !ok || h.Src != 1 || h.Dst != 0 {
		t.Fatalf("PendingAcquire: got %+v, %t", h, ok)
	}
	b.ClearPendingAcquire()
	if _, ok := b.PendingAcquire(); ok {
		t.Fatal("PendingAcquire: still set after clear")
	}
}

func TestBufferWrite(t *testing.T) {
	f := newFixture()
	b, err := NewBuffer(f.env, &gpu.BufferDesc{Size: 4, HostVisible: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Write(1, []byte{7, 8}); err != nil {
		t.Fatal(err)
	}
	if got := f.dev.Alloc().Bytes(b.Memory()); got[1] != 7 || got[2] != 8 {
		t.Fatalf("Buffer.Write: memory %v", got)
	}
	if err := b.Write(3, []byte{1, 2}); err == nil {
		t.Fatal("Buffer.Write: expected overflow error")
	}
}
