// Package shader turns shader sources into the SPIR-V bytecode
// pipelines are created from.
package shader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gogpu/naga"
)

// Magic is the first word of every SPIR-V module.
const Magic = 0x07230203

// ErrNotSPIRV means the bytecode is not a SPIR-V module.
var ErrNotSPIRV = errors.New("shader: not a SPIR-V module")

// Compile compiles WGSL source into SPIR-V.
func Compile(wgsl string) ([]byte, error) {
	code, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("shader: compile: %w", err)
	}
	if err := Validate(code); err != nil {
		return nil, err
	}
	return code, nil
}

// Validate checks that code looks like a little-endian SPIR-V module.
func Validate(code []byte) error {
	if len(code) < 20 || len(code)%4 != 0 {
		return fmt.Errorf("%w: %d bytes", ErrNotSPIRV, len(code))
	}
	if binary.LittleEndian.Uint32(code) != Magic {
		return ErrNotSPIRV
	}
	return nil
}

// Load reads a shader file. Files ending in .wgsl are compiled, any
// other file must already hold SPIR-V.
func Load(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(path) == ".wgsl" {
		code, err := Compile(string(b))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return code, nil
	}
	if err := Validate(b); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Words returns code as the 32-bit words device APIs expect.
func Words(code []byte) []uint32 {
	w := make([]uint32, len(code)/4)
	for i := range w {
		w[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return w
}
