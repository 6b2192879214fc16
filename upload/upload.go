// Package upload copies host data into device-local buffers and images
// through staging buffers on the transfer queue.
package upload

import (
	"errors"
	"fmt"

	"github.com/andewx/diesel/deletion"
	"github.com/andewx/diesel/gpu"
	"github.com/andewx/diesel/internal/assert"
	"github.com/andewx/diesel/resource"
	"github.com/andewx/diesel/timeline"
)

// Uploader records uploads on the transfer queue.
type Uploader struct {
	env      *resource.Env
	transfer *timeline.Counter
	family   uint32
	main     uint32
}

// New returns an uploader that submits through transfer and hands the
// uploaded objects to the queue family main.
func New(env *resource.Env, transfer *timeline.Counter, main uint32) *Uploader {
	return &Uploader{
		env:      env,
		transfer: transfer,
		family:   transfer.Queue().Family(),
		main:     main,
	}
}

// Batch is a group of uploads submitted together.
type Batch struct {
	u       *Uploader
	cmd     gpu.CmdBuffer
	staging []*resource.Buffer
	dsts    []uploaded
	release []gpu.BufferBarrier
	done    bool
}

type uploaded interface {
	UseResource(q gpu.QueueID, value uint64)
	Release()
}

// Begin starts a new batch.
func (u *Uploader) Begin() (*Batch, error) {
	cmd, err := u.env.Device.NewCmdBuffer(gpu.QueueTransfer)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	if err := cmd.Begin(); err != nil {
		u.env.Device.Destroy(gpu.KindCmdBuffer, cmd.Handle())
		return nil, fmt.Errorf("upload: %w", err)
	}
	return &Batch{u: u, cmd: cmd}, nil
}

func (b *Batch) handoff() bool { return b.u.family != b.u.main }

func (b *Batch) stage(data []byte, label string) (*resource.Buffer, error) {
	s, err := resource.NewBuffer(b.u.env, &gpu.BufferDesc{
		Size:        uint64(len(data)),
		Usage:       gpu.UsageTransferSrc,
		HostVisible: true,
		Label:       label + " staging",
	})
	if err != nil {
		return nil, err
	}
	b.staging = append(b.staging, s)
	if err := s.Write(0, data); err != nil {
		return nil, err
	}
	return s, nil
}

// Buffer uploads data into a new device-local buffer.
func (b *Batch) Buffer(data []byte, usage gpu.Usage, label string) (*resource.Buffer, error) {
	assert.That(!b.done, "upload of %q into a submitted batch", label)
	if len(data) == 0 {
		return nil, fmt.Errorf("upload: empty buffer %q", label)
	}
	src, err := b.stage(data, label)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	dst, err := resource.NewBuffer(b.u.env, &gpu.BufferDesc{
		Size:  uint64(len(data)),
		Usage: usage | gpu.UsageTransferDst,
		Label: label,
	})
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	b.dsts = append(b.dsts, dst)
	b.cmd.CopyBuffer(src.Handle(), dst.Handle(), dst.Size())
	if b.handoff() {
		b.release = append(b.release, gpu.BufferBarrier{
			Buffer:    dst.Handle(),
			Size:      dst.Size(),
			SrcAccess: gpu.AccessTransferWrite,
			SrcFamily: b.u.family,
			DstFamily: b.u.main,
		})
		dst.SetPendingAcquire(b.u.family, b.u.main)
	}
	return dst, nil
}

// Image uploads level 0 of an image from data and generates the
// remaining levels. A zero desc.Levels requests a full mip chain.
// The image ends up in the shader-read layout.
func (b *Batch) Image(data []byte, desc gpu.ImageDesc) (*resource.Image, error) {
	assert.That(!b.done, "upload of %q into a submitted batch", desc.Label)
	if desc.Extent.IsZero() {
		return nil, fmt.Errorf("upload: image %q has zero extent", desc.Label)
	}
	want := int(desc.Extent.Width) * int(desc.Extent.Height) * desc.Format.Size()
	if len(data) != want {
		return nil, fmt.Errorf("upload: image %q has %d bytes, want %d", desc.Label, len(data), want)
	}
	if desc.Levels == 0 {
		desc.Levels = MipLevels(desc.Extent)
	}
	desc.Usage |= gpu.UsageTransferDst | gpu.UsageSampled
	if desc.Levels > 1 {
		desc.Usage |= gpu.UsageTransferSrc
	}
	src, err := b.stage(data, desc.Label)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	img, err := resource.NewImage(b.u.env, &desc)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	b.dsts = append(b.dsts, img)

	b.cmd.Barrier(&gpu.Barrier{
		SrcStage: gpu.StageTop,
		DstStage: gpu.StageTransfer,
		Images: []gpu.ImageBarrier{{
			Image:     img.Handle(),
			Levels:    desc.Levels,
			OldLayout: gpu.LayoutUndefined,
			NewLayout: gpu.LayoutTransferDst,
			DstAccess: gpu.AccessTransferWrite,
			SrcFamily: gpu.FamilyIgnored,
			DstFamily: gpu.FamilyIgnored,
		}},
	})
	b.cmd.CopyBufferToImage(src.Handle(), img.Handle(), desc.Extent)
	recordMips(b.cmd, img.Handle(), desc.Extent, desc.Levels)

	fin := &gpu.Barrier{SrcStage: gpu.StageTransfer, DstStage: gpu.StageFragmentShader}
	src2, dst2 := gpu.FamilyIgnored, gpu.FamilyIgnored
	if b.handoff() {
		fin.DstStage = gpu.StageBottom
		src2, dst2 = b.u.family, b.u.main
		img.SetPendingAcquire(b.u.family, b.u.main)
	}
	fin.Images = readBarriers(img.Handle(), desc.Levels, src2, dst2)
	if b.handoff() {
		for i := range fin.Images {
			fin.Images[i].DstAccess = gpu.AccessNone
		}
	}
	b.cmd.Barrier(fin)
	return img, nil
}

// recordMips fills levels 1 through levels-1 by blitting each level
// from the one above it. On return levels 0 through levels-2 are in
// the transfer-src layout and the last level is in transfer-dst.
func recordMips(cmd gpu.CmdBuffer, img gpu.Handle, extent gpu.Extent, levels uint32) {
	for k := uint32(1); k < levels; k++ {
		cmd.Barrier(&gpu.Barrier{
			SrcStage: gpu.StageTransfer,
			DstStage: gpu.StageTransfer,
			Images: []gpu.ImageBarrier{{
				Image:     img,
				BaseLevel: k - 1,
				Levels:    1,
				OldLayout: gpu.LayoutTransferDst,
				NewLayout: gpu.LayoutTransferSrc,
				SrcAccess: gpu.AccessTransferWrite,
				DstAccess: gpu.AccessTransferRead,
				SrcFamily: gpu.FamilyIgnored,
				DstFamily: gpu.FamilyIgnored,
			}},
		})
		cmd.Blit(&gpu.Blit{
			Src:       img,
			SrcLayout: gpu.LayoutTransferSrc,
			SrcLevel:  k - 1,
			SrcExtent: extent.Mip(k - 1),
			Dst:       img,
			DstLayout: gpu.LayoutTransferDst,
			DstLevel:  k,
			DstExtent: extent.Mip(k),
		})
	}
}

// readBarriers returns the transitions that move every level of an
// image written by recordMips into the shader-read layout.
func readBarriers(img gpu.Handle, levels uint32, src, dst uint32) []gpu.ImageBarrier {
	var bs []gpu.ImageBarrier
	if levels > 1 {
		bs = append(bs, gpu.ImageBarrier{
			Image:     img,
			Levels:    levels - 1,
			OldLayout: gpu.LayoutTransferSrc,
			NewLayout: gpu.LayoutShaderRead,
			SrcAccess: gpu.AccessTransferRead,
			DstAccess: gpu.AccessShaderRead,
			SrcFamily: src,
			DstFamily: dst,
		})
	}
	return append(bs, gpu.ImageBarrier{
		Image:     img,
		BaseLevel: levels - 1,
		Levels:    1,
		OldLayout: gpu.LayoutTransferDst,
		NewLayout: gpu.LayoutShaderRead,
		SrcAccess: gpu.AccessTransferWrite,
		DstAccess: gpu.AccessShaderRead,
		SrcFamily: src,
		DstFamily: dst,
	})
}

// Submit ends the batch and submits it to the transfer queue. The
// staging buffers are released right away; they are destroyed once
// the returned value is reached.
func (b *Batch) Submit() (uint64, error) {
	if b.done {
		return 0, errors.New("upload: batch submitted twice")
	}
	b.done = true
	if len(b.release) > 0 {
		b.cmd.Barrier(&gpu.Barrier{
			SrcStage: gpu.StageTransfer,
			DstStage: gpu.StageBottom,
			Buffers:  b.release,
		})
	}
	if err := b.cmd.End(); err != nil {
		b.abort()
		return 0, fmt.Errorf("upload: %w", err)
	}
	v, err := b.u.transfer.Submit(&gpu.Submit{Cmds: []gpu.CmdBuffer{b.cmd}})
	if err != nil {
		b.abort()
		return 0, fmt.Errorf("upload: %w", err)
	}
	for _, s := range b.staging {
		s.UseResource(gpu.QueueTransfer, v)
		s.Release()
	}
	for _, d := range b.dsts {
		d.UseResource(gpu.QueueTransfer, v)
	}
	var use timeline.Use
	use.Raise(gpu.QueueTransfer, v)
	b.retireCmd(use)
	return v, nil
}

// Abort discards the batch and every object created through it.
func (b *Batch) Abort() {
	if b.done {
		return
	}
	b.done = true
	b.abort()
}

func (b *Batch) abort() {
	for _, s := range b.staging {
		s.Release()
	}
	for _, d := range b.dsts {
		d.Release()
	}
	b.retireCmd(timeline.Use{})
}

func (b *Batch) retireCmd(use timeline.Use) {
	b.u.env.Deletions.Mark(deletion.Entry{
		Kind:   gpu.KindCmdBuffer,
		Handle: b.cmd.Handle(),
		Use:    use,
		Label:  "upload",
	})
}

// MipLevels returns the length of a full mip chain for extent.
func MipLevels(extent gpu.Extent) uint32 {
	n := uint32(1)
	for m := max(extent.Width, extent.Height); m > 1; m >>= 1 {
		n++
	}
	return n
}
