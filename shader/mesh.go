package shader

import _ "embed"

// MeshWGSL draws lit, textured meshes. Its vertex entry point is
// vs_main and its fragment entry point fs_main. It expects the push
// constant layout written by the renderer and one texture.
//
//go:embed mesh.wgsl
var MeshWGSL string
