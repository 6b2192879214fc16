package shader

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func module(words ...uint32) []byte {
	b := binary.LittleEndian.AppendUint32(nil, Magic)
	for _, w := range words {
		b = binary.LittleEndian.AppendUint32(b, w)
	}
	return b
}

func TestValidate(t *testing.T) {
	if err := Validate(module(0x10000, 0, 1, 0)); err != nil {
		t.Fatalf("Validate: unexpected error: %v", err)
	}
	bad := [][]byte{
		nil,
		module(1, 2, 3),
		append(module(0x10000, 0, 1, 0), 0),
		make([]byte, 20),
	}
	for i, b := range bad {
		if err := Validate(b); !errors.Is(err, ErrNotSPIRV) {
			t.Errorf("case %d: got %v, want ErrNotSPIRV", i, err)
		}
	}
}

func TestWords(t *testing.T) {
	w := Words(module(7, 8))
	if len(w) != 3 || w[0] != Magic || w[2] != 8 {
		t.Fatalf("Words: got %#x", w)
	}
}

func TestLoadSPIRV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mesh.spv")
	code := module(0x10000, 0, 1, 0)
	if err := os.WriteFile(path, code, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(code) {
		t.Fatalf("Load: %d bytes, want %d", len(got), len(code))
	}

	junk := filepath.Join(dir, "junk.spv")
	os.WriteFile(junk, []byte("not spirv at all, really"), 0o644)
	if _, err := Load(junk); !errors.Is(err, ErrNotSPIRV) {
		t.Fatalf("Load of junk: got %v", err)
	}
}

func TestMeshWGSLEmbedded(t *testing.T) {
	if len(MeshWGSL) == 0 {
		t.Fatal("MeshWGSL is empty")
	}
}
