// Package merge combines independently built scenes, mesh containers and
// material lists into one set that shares a single index and vertex
// stream, renumbering every cross reference on the way.
package merge

import "errors"

// Merge errors.
var (
	ErrNoInput              = errors.New("nothing to merge")
	ErrLayoutMismatch       = errors.New("vertex layouts differ")
	ErrMaterialNotFound     = errors.New("material not found")
	ErrNothingToMerge       = errors.New("no mesh nodes use the material")
	ErrMeshCountMissing     = errors.New("mesh count missing for scene")
	ErrMaterialCountMissing = errors.New("material count missing for scene")
)
