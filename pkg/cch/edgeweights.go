package cch

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// EdgeWeights is the wire format of w.<mode>.u32 (spec.md §6): one
// traversal weight in deciseconds per original (unfiltered) base edge,
// indexed the same way as ebg.nodes — distinct from cch.w.<mode>.u32,
// which carries the CCH's rank-aligned up/down shortcut weights.
const edgeWeightMagic = "CCHEWT01"

type edgeWeightHeader struct {
	Magic    [8]byte
	NumEdges uint32
}

// WriteEdgeWeights serializes w.<mode>.u32.
func WriteEdgeWeights(path string, weights []uint32) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("cch: create %s: %w", tmp, err)
	}
	defer func() {
		f.Close()
		os.Remove(tmp)
	}()

	hdr := edgeWeightHeader{NumEdges: uint32(len(weights))}
	copy(hdr.Magic[:], edgeWeightMagic)
	if err := binary.Write(f, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("cch: write edge-weight header: %w", err)
	}
	sum := sha256.New()
	w := io.MultiWriter(f, sum)
	if err := writeUint32Slice(w, weights); err != nil {
		return fmt.Errorf("cch: write edge weights: %w", err)
	}
	if _, err := f.Write(sum.Sum(nil)); err != nil {
		return fmt.Errorf("cch: write edge-weight payload hash: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("cch: close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// ReadEdgeWeights loads w.<mode>.u32.
func ReadEdgeWeights(path string) ([]uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cch: open %s: %w", path, err)
	}
	defer f.Close()

	var hdr edgeWeightHeader
	if err := binary.Read(f, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("cch: read edge-weight header: %w", err)
	}
	if string(hdr.Magic[:]) != edgeWeightMagic {
		return nil, fmt.Errorf("cch: bad edge-weight magic %q", hdr.Magic)
	}

	sum := sha256.New()
	r := io.TeeReader(f, sum)
	weights, err := readUint32Slice(r, int(hdr.NumEdges))
	if err != nil {
		return nil, fmt.Errorf("cch: read edge weights: %w", err)
	}

	computed := sum.Sum(nil)
	stored := make([]byte, sha256.Size)
	if _, err := io.ReadFull(f, stored); err != nil {
		return nil, fmt.Errorf("cch: read edge-weight payload hash: %w", err)
	}
	if string(stored) != string(computed) {
		return nil, fmt.Errorf("cch: edge-weight payload hash mismatch")
	}
	return weights, nil
}
