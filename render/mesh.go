package render

import (
	"github.com/andewx/diesel/gpu"
	"github.com/andewx/diesel/resource"
)

// Mesh is an indexed triangle list.
type Mesh struct {
	vertices *resource.Buffer
	indices  *resource.Buffer
	count    uint32
}

// IndexCount returns the number of indices.
func (m *Mesh) IndexCount() uint32 { return m.count }

// Vertices returns the vertex buffer.
func (m *Mesh) Vertices() *resource.Buffer { return m.vertices }

// Indices returns the index buffer.
func (m *Mesh) Indices() *resource.Buffer { return m.indices }

// IsUploaded reports whether both buffers finished uploading.
func (m *Mesh) IsUploaded() bool { return m.vertices.IsUploaded() && m.indices.IsUploaded() }

// UseResource records a use of both buffers.
func (m *Mesh) UseResource(q gpu.QueueID, value uint64) {
	m.vertices.UseResource(q, value)
	m.indices.UseResource(q, value)
}

// Release queues both buffers for deletion.
func (m *Mesh) Release() {
	m.vertices.Release()
	m.indices.Release()
}

// Material is a pipeline with its textures bound.
type Material struct {
	binding *resource.Binding
}

// Pipeline returns the material's pipeline.
func (m *Material) Pipeline() *resource.Pipeline { return m.binding.Pipeline() }

// Binding returns the texture binding.
func (m *Material) Binding() *resource.Binding { return m.binding }

// IsUploaded reports whether every texture finished uploading.
func (m *Material) IsUploaded() bool { return m.binding.IsUploaded() }

// UseResource records a use of the material, its pipeline and textures.
func (m *Material) UseResource(q gpu.QueueID, value uint64) { m.binding.UseResource(q, value) }

// Release queues the binding for deletion. The pipeline and textures
// are not released.
func (m *Material) Release() { m.binding.Release() }
