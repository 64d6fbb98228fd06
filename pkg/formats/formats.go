// Package formats implements the binary mesh, material and string-list files
// that hold a scene's geometry in a GPU-ready layout.
//
// All files are little-endian sequences of fixed-size records. A mesh file is
//
//	[MeshFileHeader][VertexLayout][Mesh x N][BoundingBox x N][indices][vertices]
//
// and a material file is
//
//	[uint64 count][uint64 byteSize][Material x count][string list]
package formats

import "encoding/binary"

var byteOrder = binary.LittleEndian
