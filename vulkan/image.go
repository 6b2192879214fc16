package vulkan

import (
	"github.com/andewx/diesel/gpu"
	vk "github.com/vulkan-go/vulkan"
)

// NewImageView implements gpu.Device.
func (d *Device) NewImageView(h gpu.Handle, desc *gpu.ViewDesc) (gpu.Handle, error) {
	img := lookup[*image](&d.reg, h)
	view, err := d.createView(img.img, desc)
	if err != nil {
		return gpu.NullHandle, err
	}
	return d.reg.add(&imageView{view: view, image: h}), nil
}

func (d *Device) createView(img vk.Image, desc *gpu.ViewDesc) (vk.ImageView, error) {
	levels := desc.Levels
	if levels == 0 {
		levels = 1
	}
	var view vk.ImageView
	ret := vk.CreateImageView(d.device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: vk.ImageViewType2d,
		Format:   vkFormat(desc.Format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:   vkAspect(desc.Aspect, desc.Format, false),
			BaseMipLevel: desc.BaseLevel,
			LevelCount:   levels,
			LayerCount:   1,
		},
	}, nil, &view)
	if isError(ret) {
		return vk.ImageView(vk.NullHandle), NewError(ret)
	}
	return view, nil
}

func (d *Device) destroyView(h gpu.Handle) {
	v := lookup[*imageView](&d.reg, h)
	d.reg.remove(h)
	d.dropFramebuffers(h)
	vk.DestroyImageView(d.device, v.view, nil)
}

// createSampler creates the sampler shared by every binding: linear
// filtering across all mip levels, repeating coordinates.
func (d *Device) createSampler() error {
	ret := vk.CreateSampler(d.device, &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MinLod:                  0,
		MaxLod:                  1000,
		BorderColor:             vk.BorderColorFloatOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}, nil, &d.sampler)
	return NewError(ret)
}
