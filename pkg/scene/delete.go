package scene

import (
	"slices"

	"github.com/Faultbox/scenery/pkg/math"
)

// DeleteNodes removes nodes and all of their descendants, compacts the
// node arrays and renumbers every hierarchy link and component map key.
// Component map entries of removed nodes are dropped.
func (s *Scene) DeleteNodes(nodes []int) {
	doomed := s.collectSubtrees(nodes)
	if len(doomed) == 0 {
		return
	}

	// newIndex[old] is the compacted index, or -1 for removed nodes.
	newIndex := make([]int32, len(s.Hierarchy))
	next := int32(0)
	for i := range newIndex {
		if doomed[i] {
			newIndex[i] = -1
			continue
		}
		newIndex[i] = next
		next++
	}

	relink := func(link int32) int32 {
		return s.nearestKeptSibling(link, doomed, newIndex)
	}

	kept := int(next)
	local := make([]math.Mat4, 0, kept)
	global := make([]math.Mat4, 0, kept)
	hier := make([]Hierarchy, 0, kept)
	for i, h := range s.Hierarchy {
		if doomed[i] {
			continue
		}
		parent := int32(-1)
		if h.Parent != -1 {
			parent = newIndex[h.Parent]
		}
		hier = append(hier, Hierarchy{
			Parent:      parent,
			FirstChild:  relink(h.FirstChild),
			NextSibling: relink(h.NextSibling),
			LastSibling: relink(h.LastSibling),
			Level:       h.Level,
		})
		local = append(local, s.LocalTransform[i])
		global = append(global, s.GlobalTransform[i])
	}
	s.Hierarchy = hier
	s.LocalTransform = local
	s.GlobalTransform = global

	s.MeshForNode = remapKeys(s.MeshForNode, newIndex)
	s.MaterialForNode = remapKeys(s.MaterialForNode, newIndex)
	s.NameForNode = remapKeys(s.NameForNode, newIndex)

	for level, queue := range s.ChangedAtThisFrame {
		out := queue[:0]
		for _, n := range queue {
			if newIndex[n] != -1 {
				out = append(out, int(newIndex[n]))
			}
		}
		s.ChangedAtThisFrame[level] = out
	}
}

// collectSubtrees marks nodes and every descendant.
func (s *Scene) collectSubtrees(nodes []int) []bool {
	doomed := make([]bool, len(s.Hierarchy))
	found := false
	stack := slices.Clone(nodes)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n < 0 || n >= len(doomed) || doomed[n] {
			continue
		}
		doomed[n] = true
		found = true
		for c := s.Hierarchy[n].FirstChild; c != -1; c = s.Hierarchy[c].NextSibling {
			stack = append(stack, int(c))
		}
	}
	if !found {
		return nil
	}
	return doomed
}

// nearestKeptSibling follows the sibling chain from link until it reaches a
// node that survives deletion and returns that node's new index, or -1.
func (s *Scene) nearestKeptSibling(link int32, doomed []bool, newIndex []int32) int32 {
	for link != -1 && doomed[link] {
		link = s.Hierarchy[link].NextSibling
	}
	if link == -1 {
		return -1
	}
	return newIndex[link]
}

func remapKeys(m map[uint32]uint32, newIndex []int32) map[uint32]uint32 {
	out := make(map[uint32]uint32, len(m))
	for node, v := range m {
		if int(node) >= len(newIndex) || newIndex[node] == -1 {
			continue
		}
		out[uint32(newIndex[node])] = v
	}
	return out
}
