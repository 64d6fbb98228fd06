// Package scene implements the node hierarchy of a static scene: an
// arena of nodes linked by integer indices, per-node local and global
// transforms, and sparse component maps for meshes, materials and names.
package scene

import (
	"github.com/Faultbox/scenery/pkg/math"
)

// Hierarchy links a node to its parent, children and siblings. Links are
// node indices with -1 meaning none. LastSibling is only maintained on the
// first child of a parent and is a cache; -1 means unknown.
type Hierarchy struct {
	Parent      int32
	FirstChild  int32
	NextSibling int32
	LastSibling int32
	Level       int32
}

func newHierarchy(parent, level int32) Hierarchy {
	return Hierarchy{Parent: parent, FirstChild: -1, NextSibling: -1, LastSibling: -1, Level: level}
}

// Scene is a forest of nodes stored in parallel arrays indexed by node.
type Scene struct {
	LocalTransform  []math.Mat4
	GlobalTransform []math.Mat4
	Hierarchy       []Hierarchy

	// ChangedAtThisFrame holds one dirty queue per hierarchy level.
	ChangedAtThisFrame [][]int

	// Component maps: node -> mesh, material and node name index.
	MeshForNode     map[uint32]uint32
	MaterialForNode map[uint32]uint32
	NameForNode     map[uint32]uint32

	NodeNames     []string
	MaterialNames []string
}

// New returns an empty scene.
func New() *Scene {
	return &Scene{
		MeshForNode:     make(map[uint32]uint32),
		MaterialForNode: make(map[uint32]uint32),
		NameForNode:     make(map[uint32]uint32),
	}
}

// NumNodes returns the number of nodes.
func (s *Scene) NumNodes() int {
	return len(s.Hierarchy)
}

// AddNode appends a node under parent (-1 for a root) at the given level and
// returns its index. The node starts with identity transforms.
func (s *Scene) AddNode(parent, level int) int {
	node := len(s.Hierarchy)

	s.LocalTransform = append(s.LocalTransform, math.Identity())
	s.GlobalTransform = append(s.GlobalTransform, math.Identity())
	s.Hierarchy = append(s.Hierarchy, newHierarchy(int32(parent), int32(level)))

	if parent < 0 {
		return node
	}

	first := s.Hierarchy[parent].FirstChild
	if first == -1 {
		s.Hierarchy[parent].FirstChild = int32(node)
		s.Hierarchy[node].LastSibling = int32(node)
		return node
	}

	dest := s.Hierarchy[first].LastSibling
	if dest <= -1 {
		// Cache miss: walk the sibling chain.
		for dest = first; s.Hierarchy[dest].NextSibling != -1; dest = s.Hierarchy[dest].NextSibling {
		}
	}
	s.Hierarchy[dest].NextSibling = int32(node)
	s.Hierarchy[first].LastSibling = int32(node)
	return node
}

// MarkAsChanged queues node and all of its descendants for global transform
// recalculation.
func (s *Scene) MarkAsChanged(node int) {
	stack := []int{node}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		level := int(s.Hierarchy[n].Level)
		for len(s.ChangedAtThisFrame) <= level {
			s.ChangedAtThisFrame = append(s.ChangedAtThisFrame, nil)
		}
		s.ChangedAtThisFrame[level] = append(s.ChangedAtThisFrame[level], n)

		for c := s.Hierarchy[n].FirstChild; c != -1; c = s.Hierarchy[c].NextSibling {
			stack = append(stack, int(c))
		}
	}
}

// RecalculateGlobalTransforms resolves the global transform of every queued
// node, level by level, and clears the queues. It reports whether any node
// was updated.
func (s *Scene) RecalculateGlobalTransforms() bool {
	updated := false
	for level, queue := range s.ChangedAtThisFrame {
		for _, c := range queue {
			p := s.Hierarchy[c].Parent
			if level == 0 || p < 0 {
				s.GlobalTransform[c] = s.LocalTransform[c]
			} else {
				s.GlobalTransform[c] = s.GlobalTransform[p].Mul(s.LocalTransform[c])
			}
			updated = true
		}
		s.ChangedAtThisFrame[level] = queue[:0]
	}
	return updated
}

// Children returns the direct children of node in sibling order.
func (s *Scene) Children(node int) []int {
	var out []int
	for c := s.Hierarchy[node].FirstChild; c != -1; c = s.Hierarchy[c].NextSibling {
		out = append(out, int(c))
	}
	return out
}

// NodeLevel returns the depth of node by walking its parent chain.
func (s *Scene) NodeLevel(node int) int {
	level := -1
	for p := int32(node); p != -1; p = s.Hierarchy[p].Parent {
		level++
	}
	return level
}

// NodeName returns the name of node, or "" when it has none.
func (s *Scene) NodeName(node int) string {
	idx, ok := s.NameForNode[uint32(node)]
	if !ok || int(idx) >= len(s.NodeNames) {
		return ""
	}
	return s.NodeNames[idx]
}

// SetNodeName assigns a new name entry to node.
func (s *Scene) SetNodeName(node int, name string) {
	s.NameForNode[uint32(node)] = uint32(len(s.NodeNames))
	s.NodeNames = append(s.NodeNames, name)
}

// FindNodeByName returns the first node named name, or -1.
func (s *Scene) FindNodeByName(name string) int {
	for i := range s.Hierarchy {
		if idx, ok := s.NameForNode[uint32(i)]; ok && int(idx) < len(s.NodeNames) && s.NodeNames[idx] == name {
			return i
		}
	}
	return -1
}

// MaterialName returns the name of the material assigned to node, or "".
func (s *Scene) MaterialName(node int) string {
	idx, ok := s.MaterialForNode[uint32(node)]
	if !ok || int(idx) >= len(s.MaterialNames) {
		return ""
	}
	return s.MaterialNames[idx]
}

// SetLocalTransform replaces the local transform of node and marks its
// subtree as changed.
func (s *Scene) SetLocalTransform(node int, m math.Mat4) {
	s.LocalTransform[node] = m
	s.MarkAsChanged(node)
}
