package unfold_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextstop-transit/transferpatterns/model"
	"github.com/nextstop-transit/transferpatterns/tpgraph"
	"github.com/nextstop-transit/transferpatterns/unfold"
)

func mkStop(label string) model.Stop { return model.Stop{Label: label} }

func TestPathsLinearChain(t *testing.T) {
	a, b, c := mkStop("A"), mkStop("B"), mkStop("C")
	aNode := tpgraph.NewTPNode(a)
	bNode := tpgraph.NewTPNode(b)
	cNode := tpgraph.NewTPNode(c)
	bNode.AddArc(tpgraph.TPArc{Predecessor: aNode})
	cNode.AddArc(tpgraph.TPArc{Predecessor: bNode})

	paths := unfold.Paths(cNode)
	require.Len(t, paths, 1)
	require.Len(t, paths[0], 2)
	assert.Equal(t, "A", paths[0][0].From.Label)
	assert.Equal(t, "B", paths[0][0].To.Label)
	assert.Equal(t, "B", paths[0][1].From.Label)
	assert.Equal(t, "C", paths[0][1].To.Label)
}

func TestPathsForksOnMultiplePredecessors(t *testing.T) {
	a, b, c, d := mkStop("A"), mkStop("B"), mkStop("C"), mkStop("D")
	aNode := tpgraph.NewTPNode(a)
	bNode := tpgraph.NewTPNode(b)
	cNode := tpgraph.NewTPNode(c)
	dNode := tpgraph.NewTPNode(d)

	bNode.AddArc(tpgraph.TPArc{Predecessor: aNode})
	cNode.AddArc(tpgraph.TPArc{Predecessor: aNode, WalkingLeg: true})
	dNode.AddArc(tpgraph.TPArc{Predecessor: bNode})
	dNode.AddArc(tpgraph.TPArc{Predecessor: cNode})

	paths := unfold.Paths(dNode)
	require.Len(t, paths, 2)
	for _, p := range paths {
		require.Len(t, p, 2)
		assert.Equal(t, "A", p[0].From.Label)
		assert.Equal(t, "D", p[1].To.Label)
	}
}

func TestPathsRootOnlyTargetIsEmptyLegSequence(t *testing.T) {
	root := tpgraph.NewTPNode(mkStop("S"))
	paths := unfold.Paths(root)
	require.Len(t, paths, 1)
	assert.Empty(t, paths[0])
}
