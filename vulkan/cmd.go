package vulkan

import (
	"unsafe"

	"github.com/andewx/diesel/gpu"
	vk "github.com/vulkan-go/vulkan"
)

// CmdBuffer is a primary command buffer allocated from its queue's pool.
type CmdBuffer struct {
	d   *Device
	h   gpu.Handle
	q   *Queue
	cmd vk.CommandBuffer
}

// Handle implements gpu.CmdBuffer.
func (c *CmdBuffer) Handle() gpu.Handle { return c.h }

// Queue implements gpu.CmdBuffer.
func (c *CmdBuffer) Queue() gpu.QueueID { return c.q.id }

// Begin implements gpu.CmdBuffer.
func (c *CmdBuffer) Begin() error {
	return NewError(vk.BeginCommandBuffer(c.cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}))
}

// End implements gpu.CmdBuffer.
func (c *CmdBuffer) End() error {
	return NewError(vk.EndCommandBuffer(c.cmd))
}

// Reset implements gpu.CmdBuffer.
func (c *CmdBuffer) Reset() error {
	return NewError(vk.ResetCommandBuffer(c.cmd, 0))
}

// Barrier implements gpu.CmdBuffer.
func (c *CmdBuffer) Barrier(b *gpu.Barrier) {
	var bufs []vk.BufferMemoryBarrier
	for _, bb := range b.Buffers {
		size := vk.DeviceSize(^uint64(0))
		if bb.Size != 0 {
			size = vk.DeviceSize(bb.Size)
		}
		bufs = append(bufs, vk.BufferMemoryBarrier{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			SrcAccessMask:       vkAccess(bb.SrcAccess),
			DstAccessMask:       vkAccess(bb.DstAccess),
			SrcQueueFamilyIndex: bb.SrcFamily,
			DstQueueFamilyIndex: bb.DstFamily,
			Buffer:              lookup[*buffer](&c.d.reg, bb.Buffer).buf,
			Size:                size,
		})
	}
	var imgs []vk.ImageMemoryBarrier
	for _, ib := range b.Images {
		img := lookup[*image](&c.d.reg, ib.Image)
		levels := ib.Levels
		if levels == 0 {
			levels = img.levels - ib.BaseLevel
		}
		imgs = append(imgs, vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vkAccess(ib.SrcAccess),
			DstAccessMask:       vkAccess(ib.DstAccess),
			OldLayout:           vkLayout(ib.OldLayout),
			NewLayout:           vkLayout(ib.NewLayout),
			SrcQueueFamilyIndex: ib.SrcFamily,
			DstQueueFamilyIndex: ib.DstFamily,
			Image:               img.img,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:   vkAspect(ib.Aspect, img.format, true),
				BaseMipLevel: ib.BaseLevel,
				LevelCount:   levels,
				LayerCount:   1,
			},
		})
	}
	vk.CmdPipelineBarrier(c.cmd,
		vkStages(b.SrcStage, vk.PipelineStageTopOfPipeBit),
		vkStages(b.DstStage, vk.PipelineStageBottomOfPipeBit),
		0, 0, nil,
		uint32(len(bufs)), bufs,
		uint32(len(imgs)), imgs)
}

// CopyBuffer implements gpu.CmdBuffer.
func (c *CmdBuffer) CopyBuffer(src, dst gpu.Handle, size uint64) {
	vk.CmdCopyBuffer(c.cmd,
		lookup[*buffer](&c.d.reg, src).buf,
		lookup[*buffer](&c.d.reg, dst).buf,
		1, []vk.BufferCopy{{Size: vk.DeviceSize(size)}})
}

// CopyBufferToImage implements gpu.CmdBuffer. The image must be in the
// transfer-dst layout; only level 0 is written.
func (c *CmdBuffer) CopyBufferToImage(src, dst gpu.Handle, extent gpu.Extent) {
	vk.CmdCopyBufferToImage(c.cmd,
		lookup[*buffer](&c.d.reg, src).buf,
		lookup[*image](&c.d.reg, dst).img,
		vk.ImageLayoutTransferDstOptimal,
		1, []vk.BufferImageCopy{{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		}})
}

// Blit implements gpu.CmdBuffer.
func (c *CmdBuffer) Blit(b *gpu.Blit) {
	vk.CmdBlitImage(c.cmd,
		lookup[*image](&c.d.reg, b.Src).img, vkLayout(b.SrcLayout),
		lookup[*image](&c.d.reg, b.Dst).img, vkLayout(b.DstLayout),
		1, []vk.ImageBlit{{
			SrcSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				MipLevel:   b.SrcLevel,
				LayerCount: 1,
			},
			SrcOffsets: [2]vk.Offset3D{{}, mipOffset(b.SrcExtent)},
			DstSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				MipLevel:   b.DstLevel,
				LayerCount: 1,
			},
			DstOffsets: [2]vk.Offset3D{{}, mipOffset(b.DstExtent)},
		}},
		vk.FilterLinear)
}

// BeginPass implements gpu.CmdBuffer. Attachments must already be in
// their target layouts; they are left there.
func (c *CmdBuffer) BeginPass(t *gpu.RenderTarget) {
	pass, fb, err := c.d.framebuffer(t)
	if err != nil {
		panic(err)
	}
	clear := []vk.ClearValue{vk.NewClearValue(t.ClearColor[:])}
	if t.Depth != gpu.NullHandle {
		clear = append(clear, vk.NewClearDepthStencil(t.ClearDepth, 0))
	}
	area := vk.Rect2D{Extent: vkExtent(t.Extent)}
	vk.CmdBeginRenderPass(c.cmd, &vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      pass,
		Framebuffer:     fb,
		RenderArea:      area,
		ClearValueCount: uint32(len(clear)),
		PClearValues:    clear,
	}, vk.SubpassContentsInline)
	vk.CmdSetViewport(c.cmd, 0, 1, []vk.Viewport{{
		Width:    float32(t.Extent.Width),
		Height:   float32(t.Extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(c.cmd, 0, 1, []vk.Rect2D{area})
}

// EndPass implements gpu.CmdBuffer.
func (c *CmdBuffer) EndPass() {
	vk.CmdEndRenderPass(c.cmd)
}

// BindPipeline implements gpu.CmdBuffer.
func (c *CmdBuffer) BindPipeline(h gpu.Handle) {
	vk.CmdBindPipeline(c.cmd, vk.PipelineBindPointGraphics, lookup[*pipeline](&c.d.reg, h).pipe)
}

// BindBinding implements gpu.CmdBuffer.
func (c *CmdBuffer) BindBinding(p, b gpu.Handle) {
	vk.CmdBindDescriptorSets(c.cmd, vk.PipelineBindPointGraphics,
		lookup[*pipeline](&c.d.reg, p).layout, 0,
		1, []vk.DescriptorSet{lookup[*binding](&c.d.reg, b).set},
		0, nil)
}

// BindVertexBuffer implements gpu.CmdBuffer.
func (c *CmdBuffer) BindVertexBuffer(h gpu.Handle) {
	vk.CmdBindVertexBuffers(c.cmd, 0, 1,
		[]vk.Buffer{lookup[*buffer](&c.d.reg, h).buf}, []vk.DeviceSize{0})
}

// BindIndexBuffer implements gpu.CmdBuffer. Indices are 32-bit.
func (c *CmdBuffer) BindIndexBuffer(h gpu.Handle) {
	vk.CmdBindIndexBuffer(c.cmd, lookup[*buffer](&c.d.reg, h).buf, 0, vk.IndexTypeUint32)
}

// PushConstants implements gpu.CmdBuffer.
func (c *CmdBuffer) PushConstants(h gpu.Handle, data []byte) {
	if len(data) == 0 {
		return
	}
	p := lookup[*pipeline](&c.d.reg, h)
	vk.CmdPushConstants(c.cmd, p.layout, p.pushStages, 0, uint32(len(data)), unsafe.Pointer(&data[0]))
}

// DrawIndexed implements gpu.CmdBuffer.
func (c *CmdBuffer) DrawIndexed(count uint32) {
	vk.CmdDrawIndexed(c.cmd, count, 1, 0, 0, 0)
}
