package upload

import (
	"bytes"
	"testing"

	"github.com/andewx/diesel/deletion"
	"github.com/andewx/diesel/gpu"
	"github.com/andewx/diesel/gpu/gputest"
	"github.com/andewx/diesel/resource"
	"github.com/andewx/diesel/timeline"
)

func setup(mainFamily, transferFamily uint32) (*gputest.Device, *resource.Env, *timeline.Set, *Uploader) {
	dev := gputest.New()
	dev.SetFamilies(mainFamily, transferFamily)
	set := timeline.NewSet(dev)
	env := &resource.Env{Device: dev, Deletions: new(deletion.Queue), Completion: &set}
	return dev, env, &set, New(env, set[gpu.QueueTransfer], mainFamily)
}

func TestMipLevels(t *testing.T) {
	cases := []struct {
		e    gpu.Extent
		want uint32
	}{
		{gpu.Extent{Width: 1, Height: 1}, 1},
		{gpu.Extent{Width: 2, Height: 1}, 2},
		{gpu.Extent{Width: 256, Height: 256}, 9},
		{gpu.Extent{Width: 300, Height: 20}, 9},
		{gpu.Extent{Width: 4, Height: 1024}, 11},
	}
	for _, c := range cases {
		if got := MipLevels(c.e); got != c.want {
			t.Errorf("MipLevels(%v): got %d, want %d", c.e, got, c.want)
		}
	}
}

func TestUploadBuffer(t *testing.T) {
	dev, env, set, u := setup(0, 0)
	b, err := u.Begin()
	if err != nil {
		t.Fatal(err)
	}
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	buf, err := b.Buffer(data, gpu.UsageVertex, "verts")
	if err != nil {
		t.Fatal(err)
	}
	if buf.Usage()&gpu.UsageTransferDst == 0 {
		t.Fatal("uploaded buffer lacks transfer-dst usage")
	}
	cmd := dev.Cmd(b.cmd.Handle())
	v, err := b.Submit()
	if err != nil {
		t.Fatal(err)
	}

	copies := cmd.Find("CopyBuffer")
	if len(copies) != 1 || copies[0].Handles[1] != buf.Handle() || copies[0].Size != 8 {
		t.Fatalf("recorded copies: %+v", copies)
	}
	staging := copies[0].Handles[0]
	if len(cmd.Find("Barrier")) != 0 {
		t.Fatal("same-family upload recorded an ownership release")
	}
	if _, ok := buf.PendingAcquire(); ok {
		t.Fatal("same-family upload left a pending acquire")
	}

	if buf.IsUploaded() {
		t.Fatal("IsUploaded: true before the transfer completed")
	}
	env.Deletions.Sweep(set, deletion.DeviceReclaimer{Device: dev})
	if dev.IsDestroyed(staging) {
		t.Fatal("staging buffer destroyed before the transfer completed")
	}
	dev.Complete(gpu.QueueTransfer, v)
	if !buf.IsUploaded() {
		t.Fatal("IsUploaded: false after the transfer completed")
	}
	env.Deletions.Sweep(set, deletion.DeviceReclaimer{Device: dev})
	if !dev.IsDestroyed(staging) {
		t.Fatal("staging buffer not destroyed after the transfer completed")
	}
	if !dev.IsDestroyed(cmd.Handle()) {
		t.Fatal("upload command buffer not destroyed after the transfer completed")
	}
	if dev.IsDestroyed(buf.Handle()) {
		t.Fatal("destination buffer destroyed")
	}
}

func TestUploadStagingContents(t *testing.T) {
	dev, _, _, u := setup(0, 0)
	b, err := u.Begin()
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("diesel")
	if _, err := b.Buffer(data, gpu.UsageIndex, "idx"); err != nil {
		t.Fatal(err)
	}
	if got := dev.Alloc().Bytes(b.staging[0].Memory()); !bytes.Equal(got, data) {
		t.Fatalf("staging contents: got %q, want %q", got, data)
	}
	b.Abort()
}

func TestUploadBufferHandoff(t *testing.T) {
	dev, _, _, u := setup(0, 1)
	b, err := u.Begin()
	if err != nil {
		t.Fatal(err)
	}
	buf, err := b.Buffer([]byte{1, 2, 3, 4}, gpu.UsageIndex, "idx")
	if err != nil {
		t.Fatal(err)
	}
	cmd := dev.Cmd(b.cmd.Handle())
	if _, err := b.Submit(); err != nil {
		t.Fatal(err)
	}
	bars := cmd.Find("Barrier")
	if len(bars) != 1 || len(bars[0].Barrier.Buffers) != 1 {
		t.Fatalf("ownership release barriers: %+v", bars)
	}
	rel := bars[0].Barrier.Buffers[0]
	if rel.Buffer != buf.Handle() || rel.SrcFamily != 1 || rel.DstFamily != 0 {
		t.Fatalf("ownership release: %+v", rel)
	}

	var acq gpu.Barrier
	AcquireBuffer(&acq, buf)
	if len(acq.Buffers) != 1 || acq.Buffers[0].SrcFamily != 1 || acq.Buffers[0].DstFamily != 0 {
		t.Fatalf("ownership acquire: %+v", acq)
	}
	AcquireBuffer(&acq, buf)
	if len(acq.Buffers) != 1 {
		t.Fatal("ownership acquired twice")
	}
}

func TestUploadImageMips(t *testing.T) {
	dev, _, _, u := setup(0, 0)
	b, err := u.Begin()
	if err != nil {
		t.Fatal(err)
	}
	desc := gpu.ImageDesc{Format: gpu.FormatRGBA8SRGB, Extent: gpu.Extent{Width: 8, Height: 4}, Label: "tex"}
	img, err := b.Image(make([]byte, 8*4*4), desc)
	if err != nil {
		t.Fatal(err)
	}
	if img.Levels() != 4 {
		t.Fatalf("Image.Levels: got %d, want 4", img.Levels())
	}
	cmd := dev.Cmd(b.cmd.Handle())
	if _, err := b.Submit(); err != nil {
		t.Fatal(err)
	}

	blits := cmd.Find("Blit")
	if len(blits) != 3 {
		t.Fatalf("recorded %d blits, want 3", len(blits))
	}
	for i, op := range blits {
		k := uint32(i + 1)
		if op.Blit.SrcLevel != k-1 || op.Blit.DstLevel != k {
			t.Errorf("blit %d: levels %d -> %d", i, op.Blit.SrcLevel, op.Blit.DstLevel)
		}
		if op.Blit.DstExtent != desc.Extent.Mip(k) {
			t.Errorf("blit %d: extent %v, want %v", i, op.Blit.DstExtent, desc.Extent.Mip(k))
		}
	}

	// Every blit reads a level that was moved to transfer-src just before.
	for i, op := range cmd.Ops {
		if op.Name != "Blit" {
			continue
		}
		prev := cmd.Ops[i-1]
		if prev.Name != "Barrier" {
			t.Fatalf("blit %d not preceded by a barrier", i)
		}
		ib := prev.Barrier.Images[0]
		if ib.BaseLevel != op.Blit.SrcLevel || ib.NewLayout != gpu.LayoutTransferSrc {
			t.Fatalf("blit of level %d preceded by %+v", op.Blit.SrcLevel, ib)
		}
	}

	last := cmd.Ops[len(cmd.Ops)-1]
	if last.Name != "Barrier" || len(last.Barrier.Images) != 2 {
		t.Fatalf("final transition: %+v", last)
	}
	head, tail := last.Barrier.Images[0], last.Barrier.Images[1]
	if head.OldLayout != gpu.LayoutTransferSrc || head.Levels != 3 || head.NewLayout != gpu.LayoutShaderRead {
		t.Errorf("final transition of levels 0-2: %+v", head)
	}
	if tail.OldLayout != gpu.LayoutTransferDst || tail.BaseLevel != 3 || tail.NewLayout != gpu.LayoutShaderRead {
		t.Errorf("final transition of the last level: %+v", tail)
	}
}

func TestUploadImageSingleLevel(t *testing.T) {
	dev, _, _, u := setup(0, 0)
	b, err := u.Begin()
	if err != nil {
		t.Fatal(err)
	}
	desc := gpu.ImageDesc{Format: gpu.FormatRGBA8Unorm, Extent: gpu.Extent{Width: 2, Height: 2}, Levels: 1}
	if _, err := b.Image(make([]byte, 16), desc); err != nil {
		t.Fatal(err)
	}
	cmd := dev.Cmd(b.cmd.Handle())
	if len(cmd.Find("Blit")) != 0 {
		t.Fatal("single-level image recorded blits")
	}
	last := cmd.Ops[len(cmd.Ops)-1]
	if len(last.Barrier.Images) != 1 || last.Barrier.Images[0].OldLayout != gpu.LayoutTransferDst {
		t.Fatalf("final transition: %+v", last.Barrier)
	}
	b.Abort()
}

func TestUploadImageHandoff(t *testing.T) {
	dev, _, _, u := setup(2, 5)
	b, err := u.Begin()
	if err != nil {
		t.Fatal(err)
	}
	desc := gpu.ImageDesc{Format: gpu.FormatRGBA8Unorm, Extent: gpu.Extent{Width: 4, Height: 4}}
	img, err := b.Image(make([]byte, 64), desc)
	if err != nil {
		t.Fatal(err)
	}
	cmd := dev.Cmd(b.cmd.Handle())
	rel := cmd.Ops[len(cmd.Ops)-1].Barrier
	var acq gpu.Barrier
	AcquireImage(&acq, img)
	if len(acq.Images) != len(rel.Images) {
		t.Fatalf("acquire has %d barriers, release %d", len(acq.Images), len(rel.Images))
	}
	for i := range rel.Images {
		r, a := rel.Images[i], acq.Images[i]
		if r.SrcFamily != 5 || r.DstFamily != 2 || a.SrcFamily != 5 || a.DstFamily != 2 {
			t.Errorf("barrier %d families: release %d->%d, acquire %d->%d", i, r.SrcFamily, r.DstFamily, a.SrcFamily, a.DstFamily)
		}
		if r.OldLayout != a.OldLayout || r.NewLayout != a.NewLayout || r.BaseLevel != a.BaseLevel || r.Levels != a.Levels {
			t.Errorf("barrier %d: release %+v does not match acquire %+v", i, r, a)
		}
	}
	b.Abort()
}

func TestUploadImageSizeMismatch(t *testing.T) {
	_, _, _, u := setup(0, 0)
	b, err := u.Begin()
	if err != nil {
		t.Fatal(err)
	}
	defer b.Abort()
	desc := gpu.ImageDesc{Format: gpu.FormatRGBA8Unorm, Extent: gpu.Extent{Width: 4, Height: 4}}
	if _, err := b.Image(make([]byte, 10), desc); err == nil {
		t.Fatal("Batch.Image: expected error for short pixel data")
	}
}

func TestAbortReleasesEverything(t *testing.T) {
	dev, env, set, u := setup(0, 0)
	b, err := u.Begin()
	if err != nil {
		t.Fatal(err)
	}
	buf, err := b.Buffer([]byte{1}, gpu.UsageVertex, "v")
	if err != nil {
		t.Fatal(err)
	}
	b.Abort()
	env.Deletions.Sweep(set, deletion.DeviceReclaimer{Device: dev})
	if !dev.IsDestroyed(buf.Handle()) || dev.Live(gpu.KindBuffer) != 0 || dev.Live(gpu.KindCmdBuffer) != 0 {
		t.Fatalf("Abort left live objects: buffers %d, command buffers %d", dev.Live(gpu.KindBuffer), dev.Live(gpu.KindCmdBuffer))
	}
	if _, err := b.Submit(); err == nil {
		t.Fatal("Submit after Abort: expected error")
	}
}
