package scene

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/Faultbox/scenery/pkg/formats"
	"github.com/Faultbox/scenery/pkg/math"
)

// Scene file errors.
var (
	ErrTruncatedScene = errors.New("truncated scene data")
	ErrInvalidMap     = errors.New("invalid component map")
	ErrInvalidLink    = errors.New("hierarchy link out of range")
)

var byteOrder = binary.LittleEndian

// WriteScene writes s in scene file format:
//
//	[uint32 nodes][local Mat4 x n][global Mat4 x n][Hierarchy x n]
//	[materialForNode][meshForNode]
//	optional: [nameForNode][node names][material names]
//
// Maps are written as [uint32 words][key value]..., words being twice the
// entry count. Names are written only when the scene has named nodes.
func WriteScene(w io.Writer, s *Scene) error {
	n := uint32(len(s.Hierarchy))
	for _, v := range []any{n, s.LocalTransform, s.GlobalTransform, s.Hierarchy} {
		if err := binary.Write(w, byteOrder, v); err != nil {
			return err
		}
	}
	if err := writeMap(w, s.MaterialForNode); err != nil {
		return fmt.Errorf("writing material map: %w", err)
	}
	if err := writeMap(w, s.MeshForNode); err != nil {
		return fmt.Errorf("writing mesh map: %w", err)
	}

	if len(s.NodeNames) == 0 || len(s.NameForNode) == 0 {
		return nil
	}
	if err := writeMap(w, s.NameForNode); err != nil {
		return fmt.Errorf("writing name map: %w", err)
	}
	if err := formats.WriteStringList(w, s.NodeNames); err != nil {
		return fmt.Errorf("writing node names: %w", err)
	}
	if err := formats.WriteStringList(w, s.MaterialNames); err != nil {
		return fmt.Errorf("writing material names: %w", err)
	}
	return nil
}

func writeMap(w io.Writer, m map[uint32]uint32) error {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	words := make([]uint32, 0, 1+2*len(keys))
	words = append(words, uint32(2*len(keys)))
	for _, k := range keys {
		words = append(words, k, m[k])
	}
	return binary.Write(w, byteOrder, words)
}

func readMap(r *bytes.Reader) (map[uint32]uint32, error) {
	var words uint32
	if err := binary.Read(r, byteOrder, &words); err != nil {
		return nil, errors.Join(ErrTruncatedScene, err)
	}
	if words%2 != 0 {
		return nil, fmt.Errorf("%w: odd word count %d", ErrInvalidMap, words)
	}
	if need := int64(words) * 4; need > int64(r.Len()) {
		return nil, fmt.Errorf("%w: map of %d words needs %d bytes, have %d", ErrTruncatedScene, words, need, r.Len())
	}
	pairs := make([]uint32, words)
	if err := binary.Read(r, byteOrder, pairs); err != nil {
		return nil, errors.Join(ErrTruncatedScene, err)
	}
	m := make(map[uint32]uint32, words/2)
	for i := 0; i < len(pairs); i += 2 {
		m[pairs[i]] = pairs[i+1]
	}
	return m, nil
}

// ParseScene parses scene file data. Global transforms are recomputed from
// the local ones after loading.
func ParseScene(data []byte) (*Scene, error) {
	r := bytes.NewReader(data)

	var n uint32
	if err := binary.Read(r, byteOrder, &n); err != nil {
		return nil, ErrTruncatedScene
	}
	need := int64(n) * int64(2*binary.Size(math.Mat4{})+binary.Size(Hierarchy{}))
	if need > int64(r.Len()) {
		return nil, fmt.Errorf("%w: %d nodes need %d bytes, have %d", ErrTruncatedScene, n, need, r.Len())
	}

	s := New()
	s.LocalTransform = make([]math.Mat4, n)
	s.GlobalTransform = make([]math.Mat4, n)
	s.Hierarchy = make([]Hierarchy, n)
	for _, v := range []any{s.LocalTransform, s.GlobalTransform, s.Hierarchy} {
		if err := binary.Read(r, byteOrder, v); err != nil {
			return nil, errors.Join(ErrTruncatedScene, err)
		}
	}

	var err error
	if s.MaterialForNode, err = readMap(r); err != nil {
		return nil, fmt.Errorf("reading material map: %w", err)
	}
	if s.MeshForNode, err = readMap(r); err != nil {
		return nil, fmt.Errorf("reading mesh map: %w", err)
	}

	if r.Len() > 0 {
		if s.NameForNode, err = readMap(r); err != nil {
			return nil, fmt.Errorf("reading name map: %w", err)
		}
		if s.NodeNames, err = formats.ReadStringList(r); err != nil {
			return nil, fmt.Errorf("reading node names: %w", err)
		}
		if s.MaterialNames, err = formats.ReadStringList(r); err != nil {
			return nil, fmt.Errorf("reading material names: %w", err)
		}
	}

	if err := s.validateLinks(); err != nil {
		return nil, err
	}

	for i, h := range s.Hierarchy {
		if h.Parent == -1 {
			s.MarkAsChanged(i)
		}
	}
	s.RecalculateGlobalTransforms()
	return s, nil
}

func (s *Scene) validateLinks() error {
	n := int32(len(s.Hierarchy))
	for i, h := range s.Hierarchy {
		for _, link := range []int32{h.Parent, h.FirstChild, h.NextSibling, h.LastSibling} {
			if link < -1 || link >= n {
				return fmt.Errorf("%w: node %d links to %d of %d", ErrInvalidLink, i, link, n)
			}
		}
		if h.Level < 0 {
			return fmt.Errorf("%w: node %d has level %d", ErrInvalidLink, i, h.Level)
		}
	}
	return nil
}

// LoadScene reads a scene file.
func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return ParseScene(data)
}

// SaveScene writes s to path.
func SaveScene(path string, s *Scene) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := WriteScene(bw, s); err != nil {
		f.Close()
		return fmt.Errorf("writing scene: %w", err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing: %w", err)
	}
	return f.Close()
}
