// Package shaders provides embedded GLSL shader sources.
package shaders

import _ "embed"

// FrustumCullCompute is the compute shader that writes per-draw visibility
// into the indirect command buffer.
//
//go:embed frustum_cull.comp
var FrustumCullCompute string

// FrustumCullLocalSize is local_size_x of FrustumCullCompute.
const FrustumCullLocalSize = 64
