package asset

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"golang.org/x/image/math/f32"
)

func TestTexture(t *testing.T) {
	pix := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	tex, err := ParseTexture(EncodeTexture(2, 1, pix))
	if err != nil {
		t.Fatal(err)
	}
	if tex.Width != 2 || tex.Height != 1 || !bytes.Equal(tex.Pixels, pix) {
		t.Fatalf("ParseTexture: got %+v", tex)
	}
}

func TestTextureErrors(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want error
	}{
		{"no header", []byte{1, 2}, ErrShort},
		{"zero width", EncodeTexture(0, 4, nil), ErrEmpty},
		{"short pixels", EncodeTexture(2, 2, make([]byte, 15)), ErrShort},
	}
	for _, c := range cases {
		if _, err := ParseTexture(c.data); !errors.Is(err, c.want) {
			t.Errorf("%s: got %v, want %v", c.name, err, c.want)
		}
	}
}

func TestMesh(t *testing.T) {
	verts := []Vertex{
		{Position: f32.Vec3{0, 1, 2}, Normal: f32.Vec3{0, 0, 1}, UV: f32.Vec2{0.5, 1}},
		{Position: f32.Vec3{-1, 0, 0}, Normal: f32.Vec3{0, 1, 0}, UV: f32.Vec2{0, 0}},
		{Position: f32.Vec3{1, 0, 0}, Normal: f32.Vec3{1, 0, 0}, UV: f32.Vec2{1, 0}},
	}
	idx := []uint32{0, 1, 2, 2, 1, 0}
	data := EncodeMesh(verts, idx)
	if len(data) != 4+3*VertexSize+6*4 {
		t.Fatalf("EncodeMesh: %d bytes", len(data))
	}
	m, err := ParseMesh(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Vertices) != 3 || m.Vertices[0] != verts[0] || m.Vertices[2] != verts[2] {
		t.Fatalf("ParseMesh vertices: %+v", m.Vertices)
	}
	if len(m.Indices) != 6 || m.Indices[1] != 1 {
		t.Fatalf("ParseMesh indices: %v", m.Indices)
	}
}

func TestMeshErrors(t *testing.T) {
	v := []Vertex{{}}
	bad := EncodeMesh(v, []uint32{0, 1})
	if _, err := ParseMesh(bad); err == nil {
		t.Error("out of range index: expected error")
	}
	if _, err := ParseMesh(EncodeMesh(v, nil)[:10]); !errors.Is(err, ErrShort) {
		t.Errorf("truncated vertices: got %v", err)
	}
	if _, err := ParseMesh(append(EncodeMesh(v, nil), 1)); !errors.Is(err, ErrShort) {
		t.Errorf("ragged indices: got %v", err)
	}
	if _, err := ParseMesh([]byte{0, 0, 0, 0}); !errors.Is(err, ErrEmpty) {
		t.Errorf("no vertices: got %v", err)
	}
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{uint8(x), uint8(y), 0, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	tex, err := Decode(bytes.NewReader(encodePNG(t, 4, 3)), 0)
	if err != nil {
		t.Fatal(err)
	}
	if tex.Width != 4 || tex.Height != 3 || len(tex.Pixels) != 4*3*4 {
		t.Fatalf("Decode: %dx%d, %d bytes", tex.Width, tex.Height, len(tex.Pixels))
	}
	// Pixel (2, 1) is red 2, green 1.
	if p := tex.Pixels[(1*4+2)*4:]; p[0] != 2 || p[1] != 1 || p[3] != 255 {
		t.Fatalf("Decode: pixel (2, 1) = %v", p[:4])
	}
}

func TestDecodeScales(t *testing.T) {
	tex, err := Decode(bytes.NewReader(encodePNG(t, 64, 16)), 32)
	if err != nil {
		t.Fatal(err)
	}
	if tex.Width != 32 || tex.Height != 8 {
		t.Fatalf("Decode with limit 32: got %dx%d, want 32x8", tex.Width, tex.Height)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode(bytes.NewReader([]byte("not an image")), 0); err == nil {
		t.Fatal("Decode: expected error")
	}
}
