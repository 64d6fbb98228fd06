package merge

import (
	"slices"

	"github.com/Faultbox/scenery/pkg/formats"
)

// AddUnique appends s to list unless it is already present and returns its
// index.
func AddUnique(list *[]string, s string) int {
	if i := slices.Index(*list, s); i >= 0 {
		return i
	}
	*list = append(*list, s)
	return len(*list) - 1
}

// MaterialLists concatenates material lists and builds one texture list
// without duplicate file names. textures[i] is the texture list that
// materials[i] indexes into; every texture slot is rewritten to index the
// merged list.
func MaterialLists(materials [][]formats.Material, textures [][]string) ([]formats.Material, []string) {
	var allTextures []string
	newIndex := make(map[string]int32)
	for _, list := range textures {
		for _, file := range list {
			newIndex[file] = int32(AddUnique(&allTextures, file))
		}
	}

	var all []formats.Material
	for li, list := range materials {
		var src []string
		if li < len(textures) {
			src = textures[li]
		}
		for _, m := range list {
			for _, tex := range m.Textures() {
				if *tex == formats.NoTexture {
					continue
				}
				if int(*tex) >= len(src) {
					*tex = formats.NoTexture
					continue
				}
				*tex = newIndex[src[*tex]]
			}
			all = append(all, m)
		}
	}
	return all, allTextures
}
