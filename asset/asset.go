// Package asset parses the raw texture and mesh formats the renderer
// consumes and converts common image files into raw textures.
//
// A raw texture is a little-endian header of width and height (uint32
// each) followed by width*height RGBA8 pixels. A raw mesh is a
// little-endian vertex count (uint32), that many vertices, and a
// trailing array of uint32 indices.
package asset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/image/math/f32"
)

// VertexSize is the size in bytes of an encoded Vertex.
const VertexSize = 32

const texHeader = 8

var (
	// ErrShort means the data ended before the header said it would.
	ErrShort = errors.New("asset: truncated data")
	// ErrEmpty means the asset describes no texels or no vertices.
	ErrEmpty = errors.New("asset: empty asset")
)

// Vertex is a mesh vertex: position, normal and texture coordinates.
type Vertex struct {
	Position f32.Vec3
	Normal   f32.Vec3
	UV       f32.Vec2
}

// Texture is a decoded raw texture.
type Texture struct {
	Width, Height uint32
	Pixels        []byte
}

// ParseTexture parses a raw texture. Pixels alias data.
func ParseTexture(data []byte) (*Texture, error) {
	if len(data) < texHeader {
		return nil, ErrShort
	}
	w := binary.LittleEndian.Uint32(data)
	h := binary.LittleEndian.Uint32(data[4:])
	if w == 0 || h == 0 {
		return nil, ErrEmpty
	}
	n := uint64(w) * uint64(h) * 4
	if uint64(len(data)-texHeader) < n {
		return nil, fmt.Errorf("texture %dx%d: %w", w, h, ErrShort)
	}
	return &Texture{Width: w, Height: h, Pixels: data[texHeader : texHeader+int(n)]}, nil
}

// EncodeTexture returns the raw form of an RGBA8 image.
func EncodeTexture(width, height uint32, pixels []byte) []byte {
	b := make([]byte, texHeader, texHeader+len(pixels))
	binary.LittleEndian.PutUint32(b, width)
	binary.LittleEndian.PutUint32(b[4:], height)
	return append(b, pixels...)
}

// Mesh is a decoded raw mesh.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// ParseMesh parses a raw mesh.
func ParseMesh(data []byte) (*Mesh, error) {
	if len(data) < 4 {
		return nil, ErrShort
	}
	n := binary.LittleEndian.Uint32(data)
	if n == 0 {
		return nil, ErrEmpty
	}
	data = data[4:]
	if uint64(len(data)) < uint64(n)*VertexSize {
		return nil, fmt.Errorf("mesh of %d vertices: %w", n, ErrShort)
	}
	m := &Mesh{Vertices: make([]Vertex, n)}
	for i := range m.Vertices {
		m.Vertices[i] = decodeVertex(data[i*VertexSize:])
	}
	data = data[int(n)*VertexSize:]
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("mesh index data of %d bytes: %w", len(data), ErrShort)
	}
	m.Indices = make([]uint32, len(data)/4)
	for i := range m.Indices {
		idx := binary.LittleEndian.Uint32(data[i*4:])
		if idx >= n {
			return nil, fmt.Errorf("asset: index %d out of range of %d vertices", idx, n)
		}
		m.Indices[i] = idx
	}
	return m, nil
}

// EncodeMesh returns the raw form of a mesh.
func EncodeMesh(vertices []Vertex, indices []uint32) []byte {
	b := make([]byte, 4, 4+len(vertices)*VertexSize+len(indices)*4)
	binary.LittleEndian.PutUint32(b, uint32(len(vertices)))
	b = append(b, VertexBytes(vertices)...)
	return append(b, IndexBytes(indices)...)
}

// VertexBytes returns the device layout of vertices.
func VertexBytes(vertices []Vertex) []byte {
	b := make([]byte, 0, len(vertices)*VertexSize)
	for _, v := range vertices {
		for _, f := range v.Position {
			b = binary.LittleEndian.AppendUint32(b, math.Float32bits(f))
		}
		for _, f := range v.Normal {
			b = binary.LittleEndian.AppendUint32(b, math.Float32bits(f))
		}
		for _, f := range v.UV {
			b = binary.LittleEndian.AppendUint32(b, math.Float32bits(f))
		}
	}
	return b
}

// IndexBytes returns the device layout of indices.
func IndexBytes(indices []uint32) []byte {
	b := make([]byte, 0, len(indices)*4)
	for _, i := range indices {
		b = binary.LittleEndian.AppendUint32(b, i)
	}
	return b
}

func decodeVertex(b []byte) Vertex {
	var f [8]float32
	for i := range f {
		f[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return Vertex{
		Position: f32.Vec3{f[0], f[1], f[2]},
		Normal:   f32.Vec3{f[3], f[4], f[5]},
		UV:       f32.Vec2{f[6], f[7]},
	}
}
