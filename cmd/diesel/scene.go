package main

import (
	"github.com/andewx/diesel/asset"
	"golang.org/x/image/math/f32"
)

// cube returns a unit cube with one texture per face.
func cube() ([]asset.Vertex, []uint32) {
	faces := []struct{ n, u, v f32.Vec3 }{
		{f32.Vec3{0, 0, 1}, f32.Vec3{1, 0, 0}, f32.Vec3{0, 1, 0}},
		{f32.Vec3{0, 0, -1}, f32.Vec3{-1, 0, 0}, f32.Vec3{0, 1, 0}},
		{f32.Vec3{1, 0, 0}, f32.Vec3{0, 0, -1}, f32.Vec3{0, 1, 0}},
		{f32.Vec3{-1, 0, 0}, f32.Vec3{0, 0, 1}, f32.Vec3{0, 1, 0}},
		{f32.Vec3{0, 1, 0}, f32.Vec3{1, 0, 0}, f32.Vec3{0, 0, -1}},
		{f32.Vec3{0, -1, 0}, f32.Vec3{1, 0, 0}, f32.Vec3{0, 0, 1}},
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	var vertices []asset.Vertex
	var indices []uint32
	for _, f := range faces {
		base := uint32(len(vertices))
		for _, c := range corners {
			var p f32.Vec3
			for i := range p {
				p[i] = 0.5 * (f.n[i] + c[0]*f.u[i] + c[1]*f.v[i])
			}
			vertices = append(vertices, asset.Vertex{
				Position: p,
				Normal:   f.n,
				UV:       f32.Vec2{(c[0] + 1) / 2, (1 - c[1]) / 2},
			})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return vertices, indices
}

// checkerboard returns a raw RGBA texture of size×size texels in
// squares of cell texels.
func checkerboard(size, cell int, a, b [4]byte) []byte {
	pix := make([]byte, 0, size*size*4)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := a
			if (x/cell+y/cell)%2 == 1 {
				c = b
			}
			pix = append(pix, c[:]...)
		}
	}
	return asset.EncodeTexture(uint32(size), uint32(size), pix)
}
