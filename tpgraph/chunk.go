package tpgraph

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/nextstop-transit/transferpatterns/model"
)

// Chunk is the on-disk unit produced by one build worker (spec §4.H, §6):
// the worker's own copies of every Stop and TripPattern it touched, plus
// its slice of the TransferPatternIndex. Chunk 1 alone carries the
// DirectConnectionIndex's source data (spec §4.H: "Only chunk 1 builds the
// DirectConnectionIndex").
//
// Format is a self-describing gob stream (spec §6: "self-describing object
// stream"), matching the encoding/gob choice the rest of the pack reaches
// for when nothing calls for a schema'd format — see DESIGN.md.
type Chunk struct {
	N, M int

	Stops        []model.Stop
	TripPatterns []*model.TripPattern
	Patterns     []*TransferPattern

	// HasDirectConnections is set iff this chunk also carries every
	// stop-visit needed to rebuild the DirectConnectionIndex (spec
	// §4.H).
	HasDirectConnections bool
}

// ChunkFileName returns the chunk file name chunk_<n>_of_<m>.
func ChunkFileName(n, m int) string {
	return fmt.Sprintf("chunk_%d_of_%d", n, m)
}

// WriteChunk serializes c to path as a gob stream.
func WriteChunk(path string, c *Chunk) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chunk file %s: %w", path, err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encoding chunk %s: %w", path, err)
	}
	return nil
}

// ReadChunk deserializes a Chunk previously written by WriteChunk.
func ReadChunk(path string) (*Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening chunk file %s: %w", path, err)
	}
	defer f.Close()

	var c Chunk
	if err := gob.NewDecoder(f).Decode(&c); err != nil {
		return nil, fmt.Errorf("decoding chunk %s: %w", path, err)
	}
	return &c, nil
}

// MergedFileName is the merged-index artifact name under the build
// directory's merged/ subdirectory (spec §6).
const MergedFileName = "graph.tp"

// MergedFile is the final, query-ready on-disk representation (spec §6:
// "the merged result lives in merged/<GRAPH_FILENAME>... reachable via a tp
// field").
type MergedFile struct {
	Stops        []model.Stop
	TripPatterns []*model.TripPattern
	TP           *TransferPatternIndexData
}

// TransferPatternIndexData is the gob-friendly projection of
// TransferPatternIndex: DirectConnectionIndex isn't itself exported for
// encoding (it holds derived lookup maps), so the merged file carries a
// flat stop-visit list alongside MergedFile.TripPatterns; Rehydrate rebuilds
// the index from those trip patterns on load.
type TransferPatternIndexData struct {
	Patterns   []*TransferPattern
	StopVisits []StopVisitRecord
}

type StopVisitRecord struct {
	TripPatternCode string
	Pos             int
}

func WriteMerged(path string, stops []model.Stop, patterns []*model.TripPattern, idx *TransferPatternIndex) error {
	data := &TransferPatternIndexData{Patterns: allPatterns(idx)}
	for _, p := range patterns {
		for pos := range p.Stops {
			data.StopVisits = append(data.StopVisits, StopVisitRecord{TripPatternCode: p.Code, Pos: pos})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating merged file %s: %w", path, err)
	}
	defer f.Close()

	mf := &MergedFile{Stops: stops, TripPatterns: patterns, TP: data}
	if err := gob.NewEncoder(f).Encode(mf); err != nil {
		return fmt.Errorf("encoding merged file %s: %w", path, err)
	}
	return nil
}

func ReadMerged(path string) (*MergedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening merged file %s: %w", path, err)
	}
	defer f.Close()

	var mf MergedFile
	if err := gob.NewDecoder(f).Decode(&mf); err != nil {
		return nil, fmt.Errorf("decoding merged file %s: %w", path, err)
	}
	return &mf, nil
}

// Rehydrate rebuilds a live TransferPatternIndex (with its
// DirectConnectionIndex) from a decoded MergedFile.
func (mf *MergedFile) Rehydrate() *TransferPatternIndex {
	idx := NewTransferPatternIndex()
	for _, tp := range mf.TP.Patterns {
		idx.Insert(tp)
	}
	for _, p := range mf.TripPatterns {
		idx.DirectConn.Add(p)
	}
	return idx
}

func allPatterns(idx *TransferPatternIndex) []*TransferPattern {
	out := make([]*TransferPattern, 0, len(idx.Patterns))
	for _, tp := range idx.Patterns {
		out = append(out, tp)
	}
	return out
}
