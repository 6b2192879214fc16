package vulkan

import (
	"fmt"

	"github.com/andewx/diesel/gpu"
	vk "github.com/vulkan-go/vulkan"
)

type passKey struct {
	color, depth gpu.Format
}

type framebufferKey struct {
	color, depth gpu.Handle
	extent       gpu.Extent
}

// renderPass returns the render pass for a pair of attachment formats,
// creating it on first use. Attachments are cleared on load and stay in
// their attachment layouts; transitions are recorded by the caller.
func (d *Device) renderPass(color, depth gpu.Format) (vk.RenderPass, error) {
	key := passKey{color, depth}
	if p, ok := d.passes[key]; ok {
		return p, nil
	}

	attachments := []vk.AttachmentDescription{{
		Format:         vkFormat(color),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutColorAttachmentOptimal,
		FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
	}}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{{
			Attachment: 0,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}},
	}
	if depth != gpu.FormatUndefined {
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         vkFormat(depth),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutDepthStencilAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
	}

	var pass vk.RenderPass
	ret := vk.CreateRenderPass(d.device, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
	}, nil, &pass)
	if isError(ret) {
		return vk.NullRenderPass, fmt.Errorf("vulkan: render pass %v/%v: %w", color, depth, NewError(ret))
	}
	d.passes[key] = pass
	return pass, nil
}

// framebuffer returns the render pass and framebuffer for a target.
// Framebuffers are cached until one of their views is destroyed.
func (d *Device) framebuffer(t *gpu.RenderTarget) (vk.RenderPass, vk.Framebuffer, error) {
	pass, err := d.renderPass(t.ColorFormat, t.DepthFormat)
	if err != nil {
		return pass, vk.Framebuffer(vk.NullHandle), err
	}
	key := framebufferKey{t.Color, t.Depth, t.Extent}
	if fb, ok := d.framebuffers[key]; ok {
		return pass, fb, nil
	}
	views := []vk.ImageView{lookup[*imageView](&d.reg, t.Color).view}
	if t.Depth != gpu.NullHandle {
		views = append(views, lookup[*imageView](&d.reg, t.Depth).view)
	}
	var fb vk.Framebuffer
	ret := vk.CreateFramebuffer(d.device, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           t.Extent.Width,
		Height:          t.Extent.Height,
		Layers:          1,
	}, nil, &fb)
	if isError(ret) {
		return pass, vk.Framebuffer(vk.NullHandle), fmt.Errorf("vulkan: framebuffer: %w", NewError(ret))
	}
	d.framebuffers[key] = fb
	return pass, fb, nil
}

// dropFramebuffers destroys every cached framebuffer that uses view.
func (d *Device) dropFramebuffers(view gpu.Handle) {
	for k, fb := range d.framebuffers {
		if k.color == view || k.depth == view {
			vk.DestroyFramebuffer(d.device, fb, nil)
			delete(d.framebuffers, k)
		}
	}
}

func (d *Device) destroyPasses() {
	for k, fb := range d.framebuffers {
		vk.DestroyFramebuffer(d.device, fb, nil)
		delete(d.framebuffers, k)
	}
	for k, p := range d.passes {
		vk.DestroyRenderPass(d.device, p, nil)
		delete(d.passes, k)
	}
}
