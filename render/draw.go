package render

import (
	"encoding/binary"
	"math"

	"golang.org/x/image/math/f32"
)

// DrawEntry is one object to draw.
type DrawEntry struct {
	World    f32.Mat4
	Mesh     *Mesh
	Material *Material
}

// DrawData is everything a frame draws.
type DrawData struct {
	Entries []DrawEntry
	View    f32.Mat4
	// Proj is an OpenGL style projection, see Perspective.
	Proj  f32.Mat4
	Light f32.Vec3
}

type drawn struct {
	world    f32.Mat4
	mesh     *Mesh
	material *Material
}

// pushConstants packs the model-view-projection and world matrices
// column major. The bottom row of the world matrix is replaced by the
// light position.
func pushConstants(viewProj, world f32.Mat4, light f32.Vec3) []byte {
	buf := make([]byte, PushSize)
	putColumnMajor(buf, Mul(viewProj, world))
	world[12], world[13], world[14], world[15] = light[0], light[1], light[2], 0
	putColumnMajor(buf[64:], world)
	return buf
}

func putColumnMajor(b []byte, m f32.Mat4) {
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			binary.LittleEndian.PutUint32(b[(c*4+r)*4:], math.Float32bits(m[r*4+c]))
		}
	}
}
