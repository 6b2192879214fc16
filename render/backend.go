// Package render paces frame submission against a gpu.Device.
//
// A Backend creates pipelines, textures, meshes and materials, records
// a frame from a flat list of draw entries, and keeps a bounded number
// of frames in flight. Resources are never destroyed while submitted
// work may still reference them: releasing one queues it for deletion,
// and every frame sweeps the objects whose work has completed.
//
// A Backend must only be used from a single goroutine, the frame thread.
package render

import (
	"errors"
	"fmt"
	"os"

	"github.com/andewx/diesel/asset"
	"github.com/andewx/diesel/deletion"
	"github.com/andewx/diesel/gpu"
	"github.com/andewx/diesel/present"
	"github.com/andewx/diesel/resource"
	"github.com/andewx/diesel/timeline"
	"github.com/andewx/diesel/upload"
)

// PushSize is the size in bytes of the per-draw push constants:
// the model-view-projection matrix followed by the world matrix whose
// bottom row carries the light position.
const PushSize = 128

// Stats counts frame loop events.
type Stats struct {
	Frames           int
	Presented        int
	PresentsSkipped  int
	Rebuilds         int
	Draws            int
	DrawsNotReady    int
	DrawsFallback    int
	PendingDeletions int
}

// Backend is the frame loop and resource factory.
type Backend struct {
	ctx *Context
	cfg Config
	dev gpu.Device

	counters  timeline.Set
	deletions deletion.Queue
	reclaim   deletion.Reclaimer
	env       *resource.Env
	uploader  *upload.Uploader
	surface   *present.Surface

	slots       []slot
	cur         int
	prevPresent uint64
	target      *target
	fallback    *Material
	used        []drawn
	stats       Stats
	closed      bool
}

// New creates a Backend. When ctx.Window is set the backend presents
// to the device's surface, otherwise it renders offscreen at
// Config.Extent.
func New(ctx *Context, opts ...Option) (*Backend, error) {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.FramesInFlight < 1 {
		return nil, fmt.Errorf("render: %d frames in flight", cfg.FramesInFlight)
	}
	if ctx.Log == nil {
		ctx.Log = NewLogger(os.Stderr)
	}
	b := &Backend{
		ctx:      ctx,
		cfg:      cfg,
		dev:      ctx.Device,
		counters: timeline.NewSet(ctx.Device),
		reclaim:  deletion.DeviceReclaimer{Device: ctx.Device},
	}
	b.env = &resource.Env{Device: b.dev, Deletions: &b.deletions, Completion: &b.counters}
	b.uploader = upload.New(b.env, b.counters[gpu.QueueTransfer], b.dev.Queue(gpu.QueueMain).Family())

	extent := cfg.Extent
	if ctx.Window != nil {
		s, err := present.New(b.dev, ctx.Window, b.counters[gpu.QueueMain], present.Config{
			PresentMode: cfg.PresentMode,
			ImageCount:  cfg.ImageCount,
			Timeout:     cfg.WaitTimeout,
		}, ctx.Log.Info)
		if err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
		b.surface = s
		extent = s.Extent()
	}
	if !extent.IsZero() {
		if err := b.newTarget(extent); err != nil {
			b.Close()
			return nil, err
		}
	}
	if err := b.resizeSlots(b.framesInFlight()); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// Device returns the device the backend renders with.
func (b *Backend) Device() gpu.Device { return b.dev }

// Config returns the backend settings.
func (b *Backend) Config() Config { return b.cfg }

// FramesInFlight returns the current number of frame slots.
func (b *Backend) FramesInFlight() int { return len(b.slots) }

// Extent returns the render target size, zero before the first
// non-minimized surface.
func (b *Backend) Extent() gpu.Extent {
	if b.target == nil {
		return gpu.Extent{}
	}
	return b.target.extent
}

// Stats returns the frame loop counters.
func (b *Backend) Stats() Stats {
	s := b.stats
	s.PendingDeletions = b.deletions.Len()
	return s
}

// framesInFlight is the configured maximum limited by the number of
// swapchain images.
func (b *Backend) framesInFlight() int {
	n := b.cfg.FramesInFlight
	if b.surface != nil && b.surface.ImageCount() > 0 && b.surface.ImageCount() < n {
		n = b.surface.ImageCount()
	}
	return max(n, 1)
}

func (b *Backend) fatal(err error) { b.ctx.Fatal(err) }

// CreatePipeline compiles a pipeline from SPIR-V vertex and fragment code.
func (b *Backend) CreatePipeline(vertex, fragment []byte, opts ...PipelineOption) (*resource.Pipeline, error) {
	desc := gpu.PipelineDesc{
		Vertex:      vertex,
		Fragment:    fragment,
		ColorFormat: b.cfg.ColorFormat,
		DepthFormat: b.cfg.DepthFormat,
		Textures:    1,
		PushSize:    PushSize,
	}
	for _, o := range opts {
		o(&desc)
	}
	if len(vertex) == 0 || len(fragment) == 0 {
		return nil, errors.New("render: pipeline without shader code")
	}
	p, err := resource.NewPipeline(b.env, &desc)
	if err != nil {
		b.fatal(err)
		return nil, err
	}
	return p, nil
}

// PipelineOption modifies the description of a pipeline.
type PipelineOption func(*gpu.PipelineDesc)

// WithEntryPoints names the shader entry points.
func WithEntryPoints(vertex, fragment string) PipelineOption {
	return func(d *gpu.PipelineDesc) { d.VertexEntry, d.FragmentEntry = vertex, fragment }
}

// WithTextures sets the number of textures a material for the pipeline binds.
func WithTextures(n int) PipelineOption { return func(d *gpu.PipelineDesc) { d.Textures = n } }

// WithLabel names the pipeline in logs.
func WithLabel(label string) PipelineOption { return func(d *gpu.PipelineDesc) { d.Label = label } }

// CreateTexture uploads a raw texture asset with a full mip chain and
// returns a view of it. The view is not drawable until IsUploaded.
func (b *Backend) CreateTexture(raw []byte, srgb bool) (*resource.ImageView, error) {
	tex, err := asset.ParseTexture(raw)
	if err != nil {
		return nil, fmt.Errorf("render: texture: %w", err)
	}
	format := gpu.FormatRGBA8Unorm
	if srgb {
		format = gpu.FormatRGBA8SRGB
	}
	batch, err := b.uploader.Begin()
	if err != nil {
		b.fatal(err)
		return nil, err
	}
	img, err := batch.Image(tex.Pixels, gpu.ImageDesc{
		Format: format,
		Extent: gpu.Extent{Width: tex.Width, Height: tex.Height},
		Label:  fmt.Sprintf("texture %dx%d", tex.Width, tex.Height),
	})
	if err != nil {
		batch.Abort()
		return nil, err
	}
	if _, err := batch.Submit(); err != nil {
		b.fatal(err)
		return nil, err
	}
	view, err := resource.NewImageView(img, &gpu.ViewDesc{})
	img.Release()
	if err != nil {
		b.fatal(err)
		return nil, err
	}
	return view, nil
}

// CreateMesh uploads a vertex and an index buffer in one submission.
func (b *Backend) CreateMesh(vertices []asset.Vertex, indices []uint32) (*Mesh, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, errors.New("render: empty mesh")
	}
	batch, err := b.uploader.Begin()
	if err != nil {
		b.fatal(err)
		return nil, err
	}
	vb, err := batch.Buffer(asset.VertexBytes(vertices), gpu.UsageVertex, "vertices")
	if err != nil {
		batch.Abort()
		return nil, err
	}
	ib, err := batch.Buffer(asset.IndexBytes(indices), gpu.UsageIndex, "indices")
	if err != nil {
		batch.Abort()
		return nil, err
	}
	if _, err := batch.Submit(); err != nil {
		b.fatal(err)
		return nil, err
	}
	return &Mesh{vertices: vb, indices: ib, count: uint32(len(indices))}, nil
}

// CreateMeshAsset uploads a raw mesh asset.
func (b *Backend) CreateMeshAsset(raw []byte) (*Mesh, error) {
	m, err := asset.ParseMesh(raw)
	if err != nil {
		return nil, fmt.Errorf("render: mesh: %w", err)
	}
	return b.CreateMesh(m.Vertices, m.Indices)
}

// CreateMaterial binds textures to a pipeline.
// The material holds no reference on the textures; they must outlive it.
func (b *Backend) CreateMaterial(p *resource.Pipeline, textures ...*resource.ImageView) (*Material, error) {
	bind, err := resource.NewBinding(b.env, p, textures)
	if err != nil {
		return nil, err
	}
	return &Material{binding: bind}, nil
}

// SetFallbackMaterial sets the material drawn in place of materials
// whose textures have not finished uploading. Nil disables the fallback,
// skipping such draws instead.
func (b *Backend) SetFallbackMaterial(m *Material) { b.fallback = m }

// CleanupGPUResources destroys every released resource the device is
// done with.
func (b *Backend) CleanupGPUResources() int {
	return b.deletions.Sweep(&b.counters, b.reclaim)
}

// WaitIdle blocks until the device finished all submitted work and
// destroys every released resource.
func (b *Backend) WaitIdle() {
	if err := b.dev.WaitIdle(); err != nil {
		b.fatal(err)
		return
	}
	b.CleanupGPUResources()
}

// Close waits for the device, releases the render target, frame slots
// and surface, and logs a warning for every released resource that could
// not be destroyed. Resources created by the caller must be released
// before Close.
func (b *Backend) Close() {
	if b.closed {
		return
	}
	b.closed = true
	if err := b.dev.WaitIdle(); err != nil {
		b.ctx.Log.Error.Printf("close: %v", err)
	}
	b.releaseTarget()
	b.retireSlots(0)
	if b.surface != nil {
		b.surface.Destroy()
	}
	b.CleanupGPUResources()
	for _, e := range b.deletions.Pending() {
		b.ctx.Log.Warn.Printf("leak: %s %q (handle %d) still pending deletion", e.Kind, e.Label, e.Handle)
	}
}
