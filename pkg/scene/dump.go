package scene

import (
	"fmt"
	"io"
	"strings"
)

// DumpTransforms writes the local and global transform of every node.
func DumpTransforms(w io.Writer, s *Scene) error {
	for i := range s.Hierarchy {
		if _, err := fmt.Fprintf(w, "Node[%d].localTransform: %v\nNode[%d].globalTransform: %v\n",
			i, s.LocalTransform[i], i, s.GlobalTransform[i]); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "Node[%d].globalDet = %f; localDet = %f\n",
			i, s.GlobalTransform[i].Determinant(), s.LocalTransform[i].Determinant()); err != nil {
			return err
		}
	}
	return nil
}

// DumpToDot writes the hierarchy as a Graphviz digraph. Nodes listed in
// highlight are filled.
func DumpToDot(w io.Writer, s *Scene, highlight ...int) error {
	marked := make(map[int]bool, len(highlight))
	for _, n := range highlight {
		marked[n] = true
	}

	var b strings.Builder
	b.WriteString("digraph G\n{\n")
	for i := range s.Hierarchy {
		name := s.NodeName(i)
		if name == "" {
			name = fmt.Sprintf("node%d", i)
		}
		extra := ""
		if marked[i] {
			extra = ", color = red, style = filled"
		}
		fmt.Fprintf(&b, "n%d [label=%q%s]\n", i, name, extra)
	}
	for i, h := range s.Hierarchy {
		if h.Parent > -1 {
			fmt.Fprintf(&b, "\t n%d -> n%d\n", h.Parent, i)
		}
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}
