package render

import (
	"math"
	"testing"

	"golang.org/x/image/math/f32"
)

func near(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-4 }

func TestMulIdentity(t *testing.T) {
	m := Mul(Translate(1, 2, 3), RotateY(0.5))
	if Mul(Identity(), m) != m || Mul(m, Identity()) != m {
		t.Fatal("identity is not neutral")
	}
}

func TestTransform(t *testing.T) {
	p := Transform(Mul(Translate(1, 2, 3), Scale(2, 2, 2)), f32.Vec3{1, 1, 1})
	if p != (f32.Vec4{3, 4, 5, 1}) {
		t.Fatalf("got %v", p)
	}
	r := Transform(RotateY(math.Pi/2), f32.Vec3{1, 0, 0})
	if !near(r[0], 0) || !near(r[2], -1) {
		t.Fatalf("rotated x axis to %v", r)
	}
}

func TestLookAt(t *testing.T) {
	v := LookAt(f32.Vec3{0, 0, 5}, f32.Vec3{}, f32.Vec3{0, 1, 0})
	p := Transform(v, f32.Vec3{})
	if !near(p[0], 0) || !near(p[1], 0) || !near(p[2], -5) {
		t.Fatalf("origin in view space: %v", p)
	}
}

func TestVulkanProjection(t *testing.T) {
	const zn, zf = 0.5, 50
	proj := VulkanProjection(Perspective(math.Pi/2, 1, zn, zf))
	for _, tc := range []struct {
		z, depth float32
	}{
		{-zn, 0},
		{-zf, 1},
	} {
		p := Transform(proj, f32.Vec3{0, 0, tc.z})
		if d := p[2] / p[3]; !near(d, tc.depth) {
			t.Errorf("z %v: depth %v, want %v", tc.z, d, tc.depth)
		}
	}
	up := Transform(proj, f32.Vec3{0, 1, -1})
	if up[1] >= 0 {
		t.Fatalf("up maps to clip y %v, want negative", up[1])
	}
}
