package resource

import (
	"fmt"

	"github.com/andewx/diesel/gpu"
)

// Pipeline is a compiled graphics pipeline.
type Pipeline struct {
	Resource
	textures int
}

// NewPipeline compiles a pipeline.
func NewPipeline(env *Env, desc *gpu.PipelineDesc) (*Pipeline, error) {
	h, err := env.Device.NewPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", desc.Label, err)
	}
	p := &Pipeline{textures: desc.Textures}
	p.init(env, gpu.KindPipeline, h, desc.Label)
	return p, nil
}

// Textures returns the number of textures a binding for the pipeline holds.
func (p *Pipeline) Textures() int { return p.textures }

// Release queues the pipeline for deletion.
func (p *Pipeline) Release() { p.retire(gpu.Allocation{}) }

// Binding is the set of textures bound to a pipeline when drawing.
type Binding struct {
	Resource
	pipeline *Pipeline
	views    []*ImageView
}

// NewBinding binds views, in order, to p's texture slots.
func NewBinding(env *Env, p *Pipeline, views []*ImageView) (*Binding, error) {
	if len(views) != p.textures {
		return nil, fmt.Errorf("binding for pipeline %q: %d textures, want %d", p.label, len(views), p.textures)
	}
	hs := make([]gpu.Handle, len(views))
	for i, v := range views {
		hs[i] = v.handle
	}
	h, err := env.Device.NewBinding(p.handle, hs)
	if err != nil {
		return nil, fmt.Errorf("binding for pipeline %q: %w", p.label, err)
	}
	b := &Binding{pipeline: p, views: append([]*ImageView(nil), views...)}
	b.init(env, gpu.KindBinding, h, p.label)
	return b, nil
}

// Pipeline returns the pipeline the binding was created for.
func (b *Binding) Pipeline() *Pipeline { return b.pipeline }

// Views returns the bound views.
func (b *Binding) Views() []*ImageView { return b.views }

// UseResource records the use on the binding, its pipeline and its views.
func (b *Binding) UseResource(q gpu.QueueID, value uint64) {
	b.Resource.UseResource(q, value)
	b.pipeline.UseResource(q, value)
	for _, v := range b.views {
		v.UseResource(q, value)
	}
}

// IsUploaded reports whether every bound texture finished uploading.
func (b *Binding) IsUploaded() bool {
	for _, v := range b.views {
		if !v.IsUploaded() {
			return false
		}
	}
	return true
}

// Release queues the binding for deletion. The views are not released.
func (b *Binding) Release() { b.retire(gpu.Allocation{}) }
