package scene

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpToDot(t *testing.T) {
	s := buildTree(t)
	var buf bytes.Buffer
	require.NoError(t, DumpToDot(&buf, s, 3))

	out := buf.String()
	assert.Contains(t, out, "digraph G")
	assert.Contains(t, out, `n3 [label="B", color = red, style = filled]`)
	assert.Contains(t, out, "n1 -> n3")
	assert.Contains(t, out, "n2 -> n5")
	assert.NotContains(t, out, "-> n0")
}

func TestDumpTransforms(t *testing.T) {
	s := buildTree(t)
	var buf bytes.Buffer
	require.NoError(t, DumpTransforms(&buf, s))
	assert.Contains(t, buf.String(), "Node[5].globalTransform")
	assert.Contains(t, buf.String(), "globalDet = 1.000000")
}
