package resource

import (
	"fmt"

	"github.com/andewx/diesel/gpu"
	"github.com/andewx/diesel/internal/assert"
)

// Image is an image and its memory, shared by the views created from it.
// It is queued for deletion once its last reference is released, and
// destroyed once every use recorded on it or its views is complete.
type Image struct {
	Resource
	mem  gpu.Allocation
	desc gpu.ImageDesc
	refs int
}

// NewImage allocates an image. The caller holds the only reference.
func NewImage(env *Env, desc *gpu.ImageDesc) (*Image, error) {
	h, mem, err := env.Device.Allocator().NewImage(desc)
	if err != nil {
		return nil, fmt.Errorf("image %q: %w", desc.Label, err)
	}
	img := &Image{mem: mem, desc: *desc, refs: 1}
	img.init(env, gpu.KindImage, h, desc.Label)
	return img, nil
}

// Desc returns the description the image was created with.
func (i *Image) Desc() gpu.ImageDesc { return i.desc }

// Extent returns the extent of mip level 0.
func (i *Image) Extent() gpu.Extent { return i.desc.Extent }

// Levels returns the number of mip levels.
func (i *Image) Levels() uint32 { return i.desc.Levels }

// Refs returns the number of outstanding references.
func (i *Image) Refs() int { return i.refs }

// Retain adds a reference.
func (i *Image) Retain() {
	assert.That(i.refs > 0, "retain of released image %q", i.label)
	i.refs++
}

// Release drops a reference, queuing the image for deletion when it
// was the last one.
func (i *Image) Release() {
	assert.That(i.refs > 0, "release of released image %q", i.label)
	i.refs--
	if i.refs == 0 {
		i.retire(i.mem)
	}
}

// ImageView is an exclusively owned view holding a reference to its image.
type ImageView struct {
	Resource
	image *Image
	desc  gpu.ViewDesc
}

// NewImageView creates a view of img covering desc. A zero desc views
// every level of img in its own format.
func NewImageView(img *Image, desc *gpu.ViewDesc) (*ImageView, error) {
	d := *desc
	if d.Format == gpu.FormatUndefined {
		d.Format = img.desc.Format
	}
	if d.Levels == 0 {
		d.Levels = img.desc.Levels - d.BaseLevel
	}
	if d.Format.IsDepth() {
		d.Aspect = gpu.AspectDepth
	}
	h, err := img.env.Device.NewImageView(img.handle, &d)
	if err != nil {
		return nil, fmt.Errorf("view of image %q: %w", img.label, err)
	}
	img.Retain()
	v := &ImageView{image: img, desc: d}
	v.init(img.env, gpu.KindImageView, h, img.label)
	return v, nil
}

// Image returns the viewed image.
func (v *ImageView) Image() *Image { return v.image }

// Desc returns the view's description.
func (v *ImageView) Desc() gpu.ViewDesc { return v.desc }

// UseResource records the use on the view and on its image.
func (v *ImageView) UseResource(q gpu.QueueID, value uint64) {
	v.Resource.UseResource(q, value)
	v.image.UseResource(q, value)
}

// IsUploaded reports whether the viewed image finished uploading.
func (v *ImageView) IsUploaded() bool { return v.image.IsUploaded() }

// Release queues the view for deletion and drops its image reference.
func (v *ImageView) Release() {
	v.retire(gpu.Allocation{})
	v.image.Release()
}
