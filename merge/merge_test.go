package merge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextstop-transit/transferpatterns/merge"
	"github.com/nextstop-transit/transferpatterns/model"
	"github.com/nextstop-transit/transferpatterns/tpgraph"
)

func TestMergeChunkCanonicalizesAgainstFirstChunk(t *testing.T) {
	// Chunk 1 defines the canonical Stop/TripPattern instances.
	a1 := model.Stop{Label: "A"}
	b1 := model.Stop{Label: "B"}
	c1 := model.Stop{Label: "C"}
	p1 := &model.TripPattern{Code: "P1", Stops: []model.Stop{a1, b1}}

	aNode1 := tpgraph.NewTPNode(a1)
	bNode1 := tpgraph.NewTPNode(b1)
	bNode1.AddArc(tpgraph.TPArc{Predecessor: aNode1})
	tp1 := tpgraph.NewTransferPattern(a1)
	tp1.Targets["B"] = bNode1

	chunk1 := &tpgraph.Chunk{
		N: 1, M: 2,
		Stops:                []model.Stop{a1, b1, c1},
		TripPatterns:         []*model.TripPattern{p1},
		Patterns:             []*tpgraph.TransferPattern{tp1},
		HasDirectConnections: true,
	}

	// Chunk 2 has its own copies of the same stops/pattern (as if parsed
	// independently by another worker), with a different source.
	a2 := model.Stop{Label: "A"}
	c2 := model.Stop{Label: "C"}
	p1Copy := &model.TripPattern{Code: "P1", Stops: []model.Stop{a2, c2}}

	aNode2 := tpgraph.NewTPNode(a2)
	cNode2 := tpgraph.NewTPNode(c2)
	cNode2.AddArc(tpgraph.TPArc{Predecessor: aNode2})
	tp2 := tpgraph.NewTransferPattern(c2)
	tp2.Targets["C"] = cNode2

	chunk2 := &tpgraph.Chunk{
		N: 2, M: 2,
		Stops:        []model.Stop{a2, c2},
		TripPatterns: []*model.TripPattern{p1Copy},
		Patterns:     []*tpgraph.TransferPattern{tp2},
	}

	acc := merge.NewAccumulator()
	require.NoError(t, acc.MergeChunk(chunk1))
	require.NoError(t, acc.MergeChunk(chunk2))

	idx := acc.Index()
	assert.Len(t, idx.Patterns, 2)

	bNode, ok := idx.GetTransferPattern(a1, b1)
	require.True(t, ok)
	require.Len(t, bNode.Arcs, 1)
	assert.Equal(t, "A", bNode.Arcs[0].Predecessor.Stop.Label)

	conns := idx.DirectConnections(a1, b1)
	require.Len(t, conns, 1)
}

func TestMergeChunkFailsOnUnknownStop(t *testing.T) {
	a1 := model.Stop{Label: "A"}
	chunk1 := &tpgraph.Chunk{Stops: []model.Stop{a1}}

	unknown := model.Stop{Label: "Z"}
	badNode := tpgraph.NewTPNode(unknown)
	tp := tpgraph.NewTransferPattern(a1)
	tp.Targets["Z"] = badNode

	chunk2 := &tpgraph.Chunk{Stops: []model.Stop{unknown}, Patterns: []*tpgraph.TransferPattern{tp}}

	acc := merge.NewAccumulator()
	require.NoError(t, acc.MergeChunk(chunk1))

	err := acc.MergeChunk(chunk2)
	require.Error(t, err)
	var unknownStop *merge.ErrUnknownStop
	assert.ErrorAs(t, err, &unknownStop)
}

func TestMergeChunkFailsOnUnknownTripPattern(t *testing.T) {
	a1 := model.Stop{Label: "A"}
	chunk1 := &tpgraph.Chunk{Stops: []model.Stop{a1}}

	chunk2 := &tpgraph.Chunk{
		Stops:        []model.Stop{a1},
		TripPatterns: []*model.TripPattern{{Code: "NOPE"}},
	}

	acc := merge.NewAccumulator()
	require.NoError(t, acc.MergeChunk(chunk1))

	err := acc.MergeChunk(chunk2)
	require.Error(t, err)
	var unknownPattern *merge.ErrUnknownTripPattern
	assert.ErrorAs(t, err, &unknownPattern)
}
