package render

import (
	"fmt"

	"github.com/andewx/diesel/deletion"
	"github.com/andewx/diesel/gpu"
	"github.com/andewx/diesel/resource"
	"github.com/andewx/diesel/timeline"
	"github.com/andewx/diesel/upload"
)

// slot is a frame in flight. gate is the main queue value its last
// submission signals; the command buffer is reusable once it is reached.
type slot struct {
	cmd  gpu.CmdBuffer
	gate uint64
}

// target holds the size dependent attachments frames render into.
type target struct {
	extent gpu.Extent
	color  *resource.ImageView
	depth  *resource.ImageView
}

func (b *Backend) newAttachment(format gpu.Format, usage gpu.Usage, extent gpu.Extent, label string) (*resource.ImageView, error) {
	img, err := resource.NewImage(b.env, &gpu.ImageDesc{
		Format: format,
		Extent: extent,
		Levels: 1,
		Usage:  usage,
		Label:  label,
	})
	if err != nil {
		return nil, err
	}
	v, err := resource.NewImageView(img, &gpu.ViewDesc{})
	img.Release()
	return v, err
}

func (b *Backend) newTarget(extent gpu.Extent) error {
	color, err := b.newAttachment(b.cfg.ColorFormat, gpu.UsageColorTarget|gpu.UsageTransferSrc, extent, "color target")
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	depth, err := b.newAttachment(b.cfg.DepthFormat, gpu.UsageDepthTarget, extent, "depth target")
	if err != nil {
		color.Release()
		return fmt.Errorf("render: %w", err)
	}
	b.target = &target{extent: extent, color: color, depth: depth}
	return nil
}

func (b *Backend) releaseTarget() {
	if b.target == nil {
		return
	}
	b.target.color.Release()
	b.target.depth.Release()
	b.target = nil
}

// resizeSlots grows or shrinks the slot ring to n slots.
func (b *Backend) resizeSlots(n int) error {
	for len(b.slots) < n {
		cmd, err := b.dev.NewCmdBuffer(gpu.QueueMain)
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		b.slots = append(b.slots, slot{cmd: cmd})
	}
	b.retireSlots(n)
	if n > 0 {
		b.cur %= n
	}
	return nil
}

// retireSlots queues the command buffers of every slot past the first
// n for deletion.
func (b *Backend) retireSlots(n int) {
	for _, s := range b.slots[min(n, len(b.slots)):] {
		var use timeline.Use
		use.Raise(gpu.QueueMain, s.gate)
		b.deletions.Mark(deletion.Entry{
			Kind:   gpu.KindCmdBuffer,
			Handle: s.cmd.Handle(),
			Use:    use,
			Label:  "frame",
		})
	}
	if n < len(b.slots) {
		b.slots = b.slots[:n]
	}
}

// rebuild recreates the swapchain, then the attachments if the extent
// changed, then resizes the slot ring to the new image count.
func (b *Backend) rebuild() error {
	ok, err := b.surface.Rebuild()
	if err != nil {
		return fmt.Errorf("render: rebuild: %w", err)
	}
	if !ok {
		return nil
	}
	b.stats.Rebuilds++
	if ext := b.surface.Extent(); b.target == nil || ext != b.target.extent {
		b.releaseTarget()
		if err := b.newTarget(ext); err != nil {
			return err
		}
	}
	return b.resizeSlots(b.framesInFlight())
}

// SubmitFrame records, submits and presents one frame, then destroys
// the released resources the device is done with.
//
// resized reports that the window size changed since the last frame.
// Draw entries whose mesh has not finished uploading are skipped. So
// are entries whose material has not, unless a fallback material is
// set and ready, in which case it is drawn instead.
//
// Device failures are fatal. A stale swapchain is rebuilt and a
// minimized window skips the frame.
func (b *Backend) SubmitFrame(resized bool, data *DrawData) {
	if b.closed {
		return
	}
	if b.surface != nil && (resized || b.surface.Stale() || b.surface.Minimized()) {
		if err := b.rebuild(); err != nil {
			b.fatal(err)
			return
		}
	}
	if b.target == nil || (b.surface != nil && b.surface.Minimized()) {
		b.stats.PresentsSkipped++
		b.CleanupGPUResources()
		return
	}

	main := b.counters[gpu.QueueMain]
	s := &b.slots[b.cur]
	if err := main.WaitUntil(s.gate, b.cfg.WaitTimeout); err != nil {
		b.fatal(fmt.Errorf("render: frame slot %d: %w", b.cur, err))
		return
	}

	var acquire gpu.Barrier
	draws := b.prepare(data, &acquire)
	if err := b.record(s.cmd, data, draws, &acquire); err != nil {
		b.fatal(fmt.Errorf("render: record: %w", err))
		return
	}

	sub := &gpu.Submit{Cmds: []gpu.CmdBuffer{s.cmd}}
	// The color target is overwritten by this frame, so it must wait
	// for the previous frame's copy into the swapchain.
	if b.prevPresent > 0 {
		sub.Waits = []gpu.Wait{{Queue: gpu.QueueMain, Value: b.prevPresent, Stage: gpu.StageColorOutput}}
	}
	v, err := main.Submit(sub)
	if err != nil {
		b.fatal(fmt.Errorf("render: submit: %w", err))
		return
	}
	s.gate = v
	b.stats.Frames++
	b.stats.Draws += len(draws)
	for _, d := range draws {
		d.mesh.UseResource(gpu.QueueMain, v)
		d.material.UseResource(gpu.QueueMain, v)
	}
	b.target.color.UseResource(gpu.QueueMain, v)
	b.target.depth.UseResource(gpu.QueueMain, v)

	if b.surface != nil {
		pv, err := b.surface.Present(b.target.color.Image().Handle(), b.target.extent, v)
		if err != nil {
			b.fatal(fmt.Errorf("render: present: %w", err))
			return
		}
		if pv > 0 {
			b.prevPresent = pv
			b.target.color.UseResource(gpu.QueueMain, pv)
			b.stats.Presented++
		} else {
			b.stats.PresentsSkipped++
		}
	}

	b.cur = (b.cur + 1) % len(b.slots)
	if b.surface != nil && b.surface.Stale() {
		b.ctx.Log.Info.Printf("swapchain stale after frame %d, rebuilding", b.stats.Frames)
		if err := b.rebuild(); err != nil {
			b.fatal(err)
			return
		}
	}
	b.CleanupGPUResources()
}

// prepare selects the entries to draw and collects the ownership
// acquires of the resources they use.
func (b *Backend) prepare(data *DrawData, acquire *gpu.Barrier) []drawn {
	b.used = b.used[:0]
	if data == nil {
		return b.used
	}
	for _, e := range data.Entries {
		if e.Mesh == nil || e.Material == nil || !e.Mesh.IsUploaded() {
			b.stats.DrawsNotReady++
			continue
		}
		m := e.Material
		if !m.IsUploaded() {
			if b.fallback == nil || !b.fallback.IsUploaded() {
				b.stats.DrawsNotReady++
				continue
			}
			m = b.fallback
			b.stats.DrawsFallback++
		}
		upload.AcquireBuffer(acquire, e.Mesh.vertices)
		upload.AcquireBuffer(acquire, e.Mesh.indices)
		for _, v := range m.binding.Views() {
			upload.AcquireImage(acquire, v.Image())
		}
		b.used = append(b.used, drawn{world: e.World, mesh: e.Mesh, material: m})
	}
	return b.used
}

func (b *Backend) record(cmd gpu.CmdBuffer, data *DrawData, draws []drawn, acquire *gpu.Barrier) error {
	if err := cmd.Reset(); err != nil {
		return err
	}
	if err := cmd.Begin(); err != nil {
		return err
	}
	if len(acquire.Buffers) > 0 || len(acquire.Images) > 0 {
		acquire.SrcStage = gpu.StageTop
		acquire.DstStage = gpu.StageVertexInput | gpu.StageFragmentShader
		cmd.Barrier(acquire)
	}

	t := b.target
	color, depth := t.color.Image().Handle(), t.depth.Image().Handle()
	cmd.Barrier(&gpu.Barrier{
		SrcStage: gpu.StageTransfer,
		DstStage: gpu.StageColorOutput | gpu.StageDepthTest,
		Images: []gpu.ImageBarrier{{
			Image:     color,
			Levels:    1,
			OldLayout: gpu.LayoutUndefined,
			NewLayout: gpu.LayoutColorTarget,
			SrcAccess: gpu.AccessTransferRead,
			DstAccess: gpu.AccessColorWrite,
			SrcFamily: gpu.FamilyIgnored,
			DstFamily: gpu.FamilyIgnored,
		}, {
			Image:     depth,
			Aspect:    gpu.AspectDepth,
			Levels:    1,
			OldLayout: gpu.LayoutUndefined,
			NewLayout: gpu.LayoutDepthTarget,
			DstAccess: gpu.AccessDepthRead | gpu.AccessDepthWrite,
			SrcFamily: gpu.FamilyIgnored,
			DstFamily: gpu.FamilyIgnored,
		}},
	})

	cmd.BeginPass(&gpu.RenderTarget{
		Color:       t.color.Handle(),
		ColorFormat: b.cfg.ColorFormat,
		Depth:       t.depth.Handle(),
		DepthFormat: b.cfg.DepthFormat,
		Extent:      t.extent,
		ClearColor:  b.cfg.ClearColor,
		ClearDepth:  1,
	})
	if len(draws) > 0 {
		viewProj := Mul(VulkanProjection(data.Proj), data.View)
		var bound gpu.Handle
		for _, d := range draws {
			p := d.material.Pipeline().Handle()
			if p != bound {
				cmd.BindPipeline(p)
				bound = p
			}
			cmd.BindBinding(p, d.material.binding.Handle())
			cmd.BindVertexBuffer(d.mesh.vertices.Handle())
			cmd.BindIndexBuffer(d.mesh.indices.Handle())
			cmd.PushConstants(p, pushConstants(viewProj, d.world, data.Light))
			cmd.DrawIndexed(d.mesh.count)
		}
	}
	cmd.EndPass()

	cmd.Barrier(&gpu.Barrier{
		SrcStage: gpu.StageColorOutput,
		DstStage: gpu.StageTransfer,
		Images: []gpu.ImageBarrier{{
			Image:     color,
			Levels:    1,
			OldLayout: gpu.LayoutColorTarget,
			NewLayout: gpu.LayoutTransferSrc,
			SrcAccess: gpu.AccessColorWrite,
			DstAccess: gpu.AccessTransferRead,
			SrcFamily: gpu.FamilyIgnored,
			DstFamily: gpu.FamilyIgnored,
		}},
	})
	return cmd.End()
}
