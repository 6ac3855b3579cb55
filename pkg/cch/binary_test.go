package cch

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleHash(b byte) inputHash {
	var h inputHash
	for i := range h {
		h[i] = b
	}
	return h
}

func TestTopoRoundTrip(t *testing.T) {
	topo, _ := tinyTopology()
	path := filepath.Join(t.TempDir(), "cch.car.topo")
	hash := sampleHash(0x42)

	require.NoError(t, WriteTopo(path, topo, hash))

	got, gotHash, err := ReadTopo(path)
	require.NoError(t, err)
	require.Equal(t, hash, gotHash)
	require.Equal(t, topo, got)
}

func TestWeightsRoundTrip(t *testing.T) {
	topo, w := tinyTopology()
	path := filepath.Join(t.TempDir(), "cch.w.car.u32")
	hash := sampleHash(0x7)

	require.NoError(t, WriteWeights(path, w, hash))

	got, gotHash, err := ReadWeights(path, topo)
	require.NoError(t, err)
	require.Equal(t, hash, gotHash)
	require.Equal(t, w, got)
}

func TestWeightsRejectsEdgeCountMismatch(t *testing.T) {
	topo, w := tinyTopology()
	path := filepath.Join(t.TempDir(), "cch.w.car.u32")
	require.NoError(t, WriteWeights(path, w, sampleHash(1)))

	topo.UpTargets = append(topo.UpTargets, 3)
	_, _, err := ReadWeights(path, topo)
	require.Error(t, err)
}

func TestFilteredEBGRoundTrip(t *testing.T) {
	fe := &FilteredEBG{
		NumFiltered:    3,
		NumOriginal:    5,
		FilteredToOrig: []uint32{0, 2, 4},
		OrigToFiltered: []uint32{0, MaxWeight, 1, MaxWeight, 2},
	}
	path := filepath.Join(t.TempDir(), "filtered.car.ebg")
	hash := sampleHash(0x9)

	require.NoError(t, WriteFilteredEBG(path, fe, hash))

	got, gotHash, err := ReadFilteredEBG(path)
	require.NoError(t, err)
	require.Equal(t, hash, gotHash)
	require.Equal(t, fe, got)
}

func TestLoadModeRejectsHashMismatch(t *testing.T) {
	dir := t.TempDir()
	topo, w := tinyTopology()
	fe := &FilteredEBG{NumFiltered: 1, NumOriginal: 1, FilteredToOrig: []uint32{0}, OrigToFiltered: []uint32{0}}

	topoPath := filepath.Join(dir, "cch.car.topo")
	wPath := filepath.Join(dir, "cch.w.car.u32")
	fPath := filepath.Join(dir, "filtered.car.ebg")

	require.NoError(t, WriteTopo(topoPath, topo, sampleHash(1)))
	require.NoError(t, WriteWeights(wPath, w, sampleHash(1)))
	require.NoError(t, WriteFilteredEBG(fPath, fe, sampleHash(2))) // disagreeing hash

	_, _, _, err := LoadMode(topoPath, wPath, fPath)
	require.Error(t, err)
}

func TestLoadModeAccepts(t *testing.T) {
	dir := t.TempDir()
	topo, w := tinyTopology()
	fe := &FilteredEBG{NumFiltered: 1, NumOriginal: 1, FilteredToOrig: []uint32{0}, OrigToFiltered: []uint32{0}}

	topoPath := filepath.Join(dir, "cch.car.topo")
	wPath := filepath.Join(dir, "cch.w.car.u32")
	fPath := filepath.Join(dir, "filtered.car.ebg")

	h := sampleHash(5)
	require.NoError(t, WriteTopo(topoPath, topo, h))
	require.NoError(t, WriteWeights(wPath, w, h))
	require.NoError(t, WriteFilteredEBG(fPath, fe, h))

	gotTopo, gotW, gotFE, err := LoadMode(topoPath, wPath, fPath)
	require.NoError(t, err)
	require.Equal(t, topo, gotTopo)
	require.Equal(t, w, gotW)
	require.Equal(t, fe, gotFE)
}

func TestNBGGeoRoundTrip(t *testing.T) {
	g := &NBGGeo{
		Edges: []NBGEdge{
			{TailNode: 0, HeadNode: 1, LengthMM: 12000, BearingCentidegrees: 9000, GeomIdx: 0},
			{TailNode: 1, HeadNode: 2, LengthMM: 8000, BearingCentidegrees: 18000, GeomIdx: 1},
		},
		PolylineOffsets: []uint32{0, 2, 3},
		Points: []FixedPoint{
			FixedPointFromDegrees(48.1, 11.5),
			FixedPointFromDegrees(48.2, 11.6),
			FixedPointFromDegrees(48.3, 11.7),
		},
	}
	path := filepath.Join(t.TempDir(), "nbg.geo")
	require.NoError(t, WriteNBGGeo(path, g))

	got, err := ReadNBGGeo(path)
	require.NoError(t, err)
	require.Equal(t, g, got)
	require.Len(t, got.Polyline(0), 2)
	require.Len(t, got.Polyline(1), 1)
}

func TestEBGNodesRoundTrip(t *testing.T) {
	edges := []BaseEdge{
		{GeomIdx: 0, LengthMM: 5000, TailNBG: 0, HeadNBG: 1},
		{GeomIdx: 1, LengthMM: 3000, TailNBG: 1, HeadNBG: 2},
	}
	path := filepath.Join(t.TempDir(), "ebg.nodes")
	require.NoError(t, WriteEBGNodes(path, edges))

	got, err := ReadEBGNodes(path)
	require.NoError(t, err)
	require.Equal(t, edges, got)
}
