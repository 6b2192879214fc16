package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/andewx/diesel/asset"
)

func TestCube(t *testing.T) {
	v, idx := cube()
	if len(v) != 24 || len(idx) != 36 {
		t.Fatalf("cube: got %d vertices and %d indices", len(v), len(idx))
	}
	for i, vert := range v {
		for _, c := range vert.Position {
			if c != 0.5 && c != -0.5 {
				t.Fatalf("vertex %d: position %v is not a cube corner", i, vert.Position)
			}
		}
	}
	// The raw form must survive a parse, which range checks indices.
	if _, err := asset.ParseMesh(asset.EncodeMesh(v, idx)); err != nil {
		t.Fatalf("ParseMesh: %v", err)
	}
}

func TestCheckerboard(t *testing.T) {
	a, b := [4]byte{255, 0, 0, 255}, [4]byte{0, 0, 255, 255}
	tex, err := asset.ParseTexture(checkerboard(8, 4, a, b))
	if err != nil {
		t.Fatal(err)
	}
	if tex.Width != 8 || tex.Height != 8 {
		t.Fatalf("size: got %dx%d", tex.Width, tex.Height)
	}
	texel := func(x, y int) [4]byte {
		var c [4]byte
		copy(c[:], tex.Pixels[(y*8+x)*4:])
		return c
	}
	if texel(0, 0) != a || texel(4, 0) != b || texel(4, 4) != a {
		t.Fatalf("unexpected pattern: %v %v %v", texel(0, 0), texel(4, 0), texel(4, 4))
	}
}

func TestLoadContent(t *testing.T) {
	dir := t.TempDir()

	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(1, 1, color.RGBA{1, 2, 3, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	write := func(name string, data []byte) {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("a.png", buf.Bytes())
	v, idx := cube()
	write("b.mesh", asset.EncodeMesh(v, idx))
	write("c.jpg", []byte("not a jpeg"))
	write("notes.txt", []byte("ignored"))

	c, err := loadContent(dir, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.textures) != 1 || c.textures[0].Width != 4 || c.textures[0].Height != 2 {
		t.Fatalf("textures: %+v", c.textures)
	}
	if len(c.meshes) != 1 || len(c.meshes[0].Indices) != 36 {
		t.Fatalf("meshes: %d", len(c.meshes))
	}
	if len(c.errs) != 1 {
		t.Fatalf("errors: got %v, want one for c.jpg", c.errs)
	}
}

func TestLoadContentMissingDir(t *testing.T) {
	if _, err := loadContent(filepath.Join(t.TempDir(), "missing"), 1); err == nil {
		t.Fatal("expected an error")
	}
}
