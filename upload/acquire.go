package upload

import (
	"github.com/andewx/diesel/gpu"
	"github.com/andewx/diesel/resource"
)

// AcquireBuffer appends the barrier completing the ownership transfer
// of buf, if one is pending, and clears it.
func AcquireBuffer(b *gpu.Barrier, buf *resource.Buffer) {
	h, ok := buf.PendingAcquire()
	if !ok {
		return
	}
	b.Buffers = append(b.Buffers, gpu.BufferBarrier{
		Buffer:    buf.Handle(),
		Size:      buf.Size(),
		DstAccess: gpu.AccessVertexRead | gpu.AccessIndexRead,
		SrcFamily: h.Src,
		DstFamily: h.Dst,
	})
	buf.ClearPendingAcquire()
}

// AcquireImage appends the barriers completing the ownership transfer
// of img, if one is pending, and clears it. They repeat the layout
// transitions of the matching release.
func AcquireImage(b *gpu.Barrier, img *resource.Image) {
	h, ok := img.PendingAcquire()
	if !ok {
		return
	}
	bs := readBarriers(img.Handle(), img.Levels(), h.Src, h.Dst)
	for i := range bs {
		bs[i].SrcAccess = gpu.AccessNone
	}
	b.Images = append(b.Images, bs...)
	img.ClearPendingAcquire()
}
