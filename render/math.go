package render

import (
	"math"

	"golang.org/x/image/math/f32"
)

// Matrices are row major and transform column vectors.

// Identity returns the identity matrix.
func Identity() f32.Mat4 {
	return f32.Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mul returns a*b.
func Mul(a, b f32.Mat4) f32.Mat4 {
	var m f32.Mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var s float32
			for k := 0; k < 4; k++ {
				s += a[i*4+k] * b[k*4+j]
			}
			m[i*4+j] = s
		}
	}
	return m
}

// Transform returns m applied to the point p.
func Transform(m f32.Mat4, p f32.Vec3) f32.Vec4 {
	var r f32.Vec4
	for i := 0; i < 4; i++ {
		r[i] = m[i*4]*p[0] + m[i*4+1]*p[1] + m[i*4+2]*p[2] + m[i*4+3]
	}
	return r
}

// Translate returns a translation matrix.
func Translate(x, y, z float32) f32.Mat4 {
	m := Identity()
	m[3], m[7], m[11] = x, y, z
	return m
}

// Scale returns a scaling matrix.
func Scale(x, y, z float32) f32.Mat4 {
	return f32.Mat4{
		x, 0, 0, 0,
		0, y, 0, 0,
		0, 0, z, 0,
		0, 0, 0, 1,
	}
}

// RotateY returns a rotation of angle radians about the Y axis.
func RotateY(angle float32) f32.Mat4 {
	s, c := sincos(angle)
	return f32.Mat4{
		c, 0, s, 0,
		0, 1, 0, 0,
		-s, 0, c, 0,
		0, 0, 0, 1,
	}
}

// RotateX returns a rotation of angle radians about the X axis.
func RotateX(angle float32) f32.Mat4 {
	s, c := sincos(angle)
	return f32.Mat4{
		1, 0, 0, 0,
		0, c, -s, 0,
		0, s, c, 0,
		0, 0, 0, 1,
	}
}

// Perspective returns an OpenGL style projection with a [-1, 1]
// depth range.
func Perspective(fovy, aspect, near, far float32) f32.Mat4 {
	f := float32(1 / math.Tan(float64(fovy)/2))
	return f32.Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) / (near - far), 2 * far * near / (near - far),
		0, 0, -1, 0,
	}
}

// LookAt returns a view matrix looking from eye towards center.
func LookAt(eye, center, up f32.Vec3) f32.Mat4 {
	f := normalize(sub(center, eye))
	s := normalize(cross(f, up))
	u := cross(s, f)
	return f32.Mat4{
		s[0], s[1], s[2], -dot(s, eye),
		u[0], u[1], u[2], -dot(u, eye),
		-f[0], -f[1], -f[2], dot(f, eye),
		0, 0, 0, 1,
	}
}

// VulkanProjection converts an OpenGL style projection to Vulkan clip
// space, which has Y pointing down and a [0, 1] depth range.
func VulkanProjection(proj f32.Mat4) f32.Mat4 {
	clip := f32.Mat4{
		1, 0, 0, 0,
		0, -1, 0, 0,
		0, 0, 0.5, 0.5,
		0, 0, 0, 1,
	}
	return Mul(clip, proj)
}

func sincos(a float32) (float32, float32) {
	s, c := math.Sincos(float64(a))
	return float32(s), float32(c)
}

func sub(a, b f32.Vec3) f32.Vec3 { return f32.Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }

func dot(a, b f32.Vec3) float32 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

func cross(a, b f32.Vec3) f32.Vec3 {
	return f32.Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func normalize(v f32.Vec3) f32.Vec3 {
	l := float32(math.Sqrt(float64(dot(v, v))))
	if l == 0 {
		return v
	}
	return f32.Vec3{v[0] / l, v[1] / l, v[2] / l}
}
