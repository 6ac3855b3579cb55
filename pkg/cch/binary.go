package cch

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"unsafe"
)

// Artifact file formats, spec.md §6: little-endian throughout, fixed-size
// headers, a 32-byte input-hash field in every header so the loader can
// confirm a mode's topo/weight/filtered files were produced from the same
// inputs. Reading is zero-copy via unsafe.Slice, following the teacher's
// pattern in pkg/graph/binary.go; unlike the teacher's single CRC32
// trailer, every artifact here carries its own SHA-256 of the payload that
// follows the header, checked immediately after read.

const topoMagic = "CCHTOPO1"
const weightMagic = "CCHWGT01"
const filteredMagic = "CCHFEBG1"

// inputHash is the 32-byte SHA-256 of the upstream inputs that produced an
// artifact; all files belonging to one mode must carry the same value.
type inputHash [32]byte

// topoHeader is the fixed header of a cch.<mode>.topo file.
type topoHeader struct {
	Magic         [8]byte
	Hash          inputHash
	NumNodes      uint32
	NumShortcuts  uint32
	NumOriginalArcs uint32
	NumUpEdges    uint32
	NumDownEdges  uint32
}

// WriteTopo serializes a Topology to the cch.<mode>.topo format.
func WriteTopo(path string, t *Topology, hash inputHash) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("cch: create %s: %w", tmp, err)
	}
	defer func() {
		f.Close()
		os.Remove(tmp)
	}()

	hdr := topoHeader{
		Hash:            hash,
		NumNodes:        t.NumNodes,
		NumShortcuts:    t.NumShortcuts,
		NumOriginalArcs: t.NumOriginalArcs,
		NumUpEdges:      uint32(len(t.UpTargets)),
		NumDownEdges:    uint32(len(t.DownTargets)),
	}
	copy(hdr.Magic[:], topoMagic)
	if err := binary.Write(f, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("cch: write topo header: %w", err)
	}

	sum := sha256.New()
	w := io.MultiWriter(f, sum)

	if err := writeUint32Slice(w, t.UpOffsets); err != nil {
		return fmt.Errorf("write up_offsets: %w", err)
	}
	if err := writeUint32Slice(w, t.UpTargets); err != nil {
		return fmt.Errorf("write up_targets: %w", err)
	}
	if err := writeBoolSlice(w, t.UpShortcut); err != nil {
		return fmt.Errorf("write up_is_shortcut: %w", err)
	}
	if err := writeInt32Slice(w, t.UpMiddle); err != nil {
		return fmt.Errorf("write up_middle: %w", err)
	}
	if err := writeUint32Slice(w, t.DownOffsets); err != nil {
		return fmt.Errorf("write down_offsets: %w", err)
	}
	if err := writeUint32Slice(w, t.DownTargets); err != nil {
		return fmt.Errorf("write down_targets: %w", err)
	}
	if err := writeBoolSlice(w, t.DownShortcut); err != nil {
		return fmt.Errorf("write down_is_shortcut: %w", err)
	}
	if err := writeInt32Slice(w, t.DownMiddle); err != nil {
		return fmt.Errorf("write down_middle: %w", err)
	}
	if err := writeUint32Slice(w, t.RankToFiltered); err != nil {
		return fmt.Errorf("write rank_to_filtered: %w", err)
	}

	payloadHash := sum.Sum(nil)
	if _, err := f.Write(payloadHash); err != nil {
		return fmt.Errorf("write payload hash trailer: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("cch: close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// ReadTopo loads and validates a cch.<mode>.topo file, returning its
// Topology and the declared input hash (for cross-artifact agreement
// checks against the sibling weight/filtered files of the same mode).
func ReadTopo(path string) (*Topology, inputHash, error) {
	var zero inputHash
	f, err := os.Open(path)
	if err != nil {
		return nil, zero, fmt.Errorf("cch: open %s: %w", path, err)
	}
	defer f.Close()

	var hdr topoHeader
	if err := binary.Read(f, binary.LittleEndian, &hdr); err != nil {
		return nil, zero, fmt.Errorf("cch: read topo header: %w", err)
	}
	if string(hdr.Magic[:]) != topoMagic {
		return nil, zero, fmt.Errorf("cch: bad topo magic %q", hdr.Magic)
	}

	sum := sha256.New()
	r := io.TeeReader(f, sum)

	t := &Topology{
		NumNodes:        hdr.NumNodes,
		NumShortcuts:    hdr.NumShortcuts,
		NumOriginalArcs: hdr.NumOriginalArcs,
	}

	var rerr error
	read := func(step string, fn func() error) {
		if rerr != nil {
			return
		}
		if err := fn(); err != nil {
			rerr = fmt.Errorf("cch: read %s: %w", step, err)
		}
	}

	read("up_offsets", func() (e error) { t.UpOffsets, e = readUint32Slice(r, int(hdr.NumNodes+1)); return })
	read("up_targets", func() (e error) { t.UpTargets, e = readUint32Slice(r, int(hdr.NumUpEdges)); return })
	read("up_is_shortcut", func() (e error) { t.UpShortcut, e = readBoolSlice(r, int(hdr.NumUpEdges)); return })
	read("up_middle", func() (e error) { t.UpMiddle, e = readInt32Slice(r, int(hdr.NumUpEdges)); return })
	read("down_offsets", func() (e error) { t.DownOffsets, e = readUint32Slice(r, int(hdr.NumNodes+1)); return })
	read("down_targets", func() (e error) { t.DownTargets, e = readUint32Slice(r, int(hdr.NumDownEdges)); return })
	read("down_is_shortcut", func() (e error) { t.DownShortcut, e = readBoolSlice(r, int(hdr.NumDownEdges)); return })
	read("down_middle", func() (e error) { t.DownMiddle, e = readInt32Slice(r, int(hdr.NumDownEdges)); return })
	read("rank_to_filtered", func() (e error) { t.RankToFiltered, e = readUint32Slice(r, int(hdr.NumNodes)); return })
	if rerr != nil {
		return nil, zero, rerr
	}

	computed := sum.Sum(nil)
	stored := make([]byte, sha256.Size)
	if _, err := io.ReadFull(f, stored); err != nil {
		return nil, zero, fmt.Errorf("cch: read topo payload hash: %w", err)
	}
	if string(stored) != string(computed) {
		return nil, zero, fmt.Errorf("cch: topo payload hash mismatch")
	}

	return t, hdr.Hash, nil
}

// weightHeader is the fixed header of a cch.w.<mode>.u32 file.
type weightHeader struct {
	Magic        [8]byte
	Hash         inputHash
	NumUpEdges   uint32
	NumDownEdges uint32
}

// WriteWeights serializes a Weights array matching a topo's edge counts.
func WriteWeights(path string, w *Weights, hash inputHash) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("cch: create %s: %w", tmp, err)
	}
	defer func() {
		f.Close()
		os.Remove(tmp)
	}()

	hdr := weightHeader{
		Hash:         hash,
		NumUpEdges:   uint32(len(w.Up)),
		NumDownEdges: uint32(len(w.Down)),
	}
	copy(hdr.Magic[:], weightMagic)
	if err := binary.Write(f, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("cch: write weight header: %w", err)
	}

	sum := sha256.New()
	mw := io.MultiWriter(f, sum)
	if err := writeUint32Slice(mw, w.Up); err != nil {
		return fmt.Errorf("write up weights: %w", err)
	}
	if err := writeUint32Slice(mw, w.Down); err != nil {
		return fmt.Errorf("write down weights: %w", err)
	}
	if _, err := f.Write(sum.Sum(nil)); err != nil {
		return fmt.Errorf("write weight payload hash: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("cch: close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// ReadWeights loads a cch.w.<mode>.u32 file, checking its declared edge
// counts against topo and returning its declared input hash.
func ReadWeights(path string, topo *Topology) (*Weights, inputHash, error) {
	var zero inputHash
	f, err := os.Open(path)
	if err != nil {
		return nil, zero, fmt.Errorf("cch: open %s: %w", path, err)
	}
	defer f.Close()

	var hdr weightHeader
	if err := binary.Read(f, binary.LittleEndian, &hdr); err != nil {
		return nil, zero, fmt.Errorf("cch: read weight header: %w", err)
	}
	if string(hdr.Magic[:]) != weightMagic {
		return nil, zero, fmt.Errorf("cch: bad weight magic %q", hdr.Magic)
	}
	if int(hdr.NumUpEdges) != len(topo.UpTargets) || int(hdr.NumDownEdges) != len(topo.DownTargets) {
		return nil, zero, fmt.Errorf("cch: weight edge counts (%d,%d) disagree with topo (%d,%d)",
			hdr.NumUpEdges, hdr.NumDownEdges, len(topo.UpTargets), len(topo.DownTargets))
	}

	sum := sha256.New()
	r := io.TeeReader(f, sum)

	w := &Weights{}
	var rerr error
	if w.Up, rerr = readUint32Slice(r, int(hdr.NumUpEdges)); rerr != nil {
		return nil, zero, fmt.Errorf("cch: read up weights: %w", rerr)
	}
	if w.Down, rerr = readUint32Slice(r, int(hdr.NumDownEdges)); rerr != nil {
		return nil, zero, fmt.Errorf("cch: read down weights: %w", rerr)
	}

	computed := sum.Sum(nil)
	stored := make([]byte, sha256.Size)
	if _, err := io.ReadFull(f, stored); err != nil {
		return nil, zero, fmt.Errorf("cch: read weight payload hash: %w", err)
	}
	if string(stored) != string(computed) {
		return nil, zero, fmt.Errorf("cch: weight payload hash mismatch")
	}

	return w, hdr.Hash, nil
}

// FilteredEBG is the filtered<->original EBG node-id mapping of
// filtered.<mode>.ebg.
type FilteredEBG struct {
	NumFiltered     uint32
	NumOriginal     uint32
	FilteredToOrig  []uint32
	OrigToFiltered  []uint32
}

type filteredHeader struct {
	Magic       [8]byte
	Hash        inputHash
	NumFiltered uint32
	NumOriginal uint32
}

// WriteFilteredEBG serializes the filtered<->original id mapping.
func WriteFilteredEBG(path string, fe *FilteredEBG, hash inputHash) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("cch: create %s: %w", tmp, err)
	}
	defer func() {
		f.Close()
		os.Remove(tmp)
	}()

	hdr := filteredHeader{Hash: hash, NumFiltered: fe.NumFiltered, NumOriginal: fe.NumOriginal}
	copy(hdr.Magic[:], filteredMagic)
	if err := binary.Write(f, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("cch: write filtered header: %w", err)
	}

	sum := sha256.New()
	mw := io.MultiWriter(f, sum)
	if err := writeUint32Slice(mw, fe.FilteredToOrig); err != nil {
		return fmt.Errorf("write filtered_to_original: %w", err)
	}
	if err := writeUint32Slice(mw, fe.OrigToFiltered); err != nil {
		return fmt.Errorf("write original_to_filtered: %w", err)
	}
	if _, err := f.Write(sum.Sum(nil)); err != nil {
		return fmt.Errorf("write filtered payload hash: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("cch: close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// ReadFilteredEBG loads a filtered.<mode>.ebg file.
func ReadFilteredEBG(path string) (*FilteredEBG, inputHash, error) {
	var zero inputHash
	f, err := os.Open(path)
	if err != nil {
		return nil, zero, fmt.Errorf("cch: open %s: %w", path, err)
	}
	defer f.Close()

	var hdr filteredHeader
	if err := binary.Read(f, binary.LittleEndian, &hdr); err != nil {
		return nil, zero, fmt.Errorf("cch: read filtered header: %w", err)
	}
	if string(hdr.Magic[:]) != filteredMagic {
		return nil, zero, fmt.Errorf("cch: bad filtered magic %q", hdr.Magic)
	}

	sum := sha256.New()
	r := io.TeeReader(f, sum)

	fe := &FilteredEBG{NumFiltered: hdr.NumFiltered, NumOriginal: hdr.NumOriginal}
	var rerr error
	if fe.FilteredToOrig, rerr = readUint32Slice(r, int(hdr.NumFiltered)); rerr != nil {
		return nil, zero, fmt.Errorf("cch: read filtered_to_original: %w", rerr)
	}
	if fe.OrigToFiltered, rerr = readUint32Slice(r, int(hdr.NumOriginal)); rerr != nil {
		return nil, zero, fmt.Errorf("cch: read original_to_filtered: %w", rerr)
	}

	computed := sum.Sum(nil)
	stored := make([]byte, sha256.Size)
	if _, err := io.ReadFull(f, stored); err != nil {
		return nil, zero, fmt.Errorf("cch: read filtered payload hash: %w", err)
	}
	if string(stored) != string(computed) {
		return nil, zero, fmt.Errorf("cch: filtered payload hash mismatch")
	}

	return fe, hdr.Hash, nil
}

// LoadMode loads the three mode-specific artifacts (topo, weights, filtered
// mapping) and checks that their declared input hashes agree, per spec.md
// §6's validation rule. It does not load ebg.nodes or nbg.geo — those are
// mode-independent and loaded once by the caller via ReadEBGNodes /
// ReadNBGGeo.
func LoadMode(topoPath, weightPath, filteredPath string) (*Topology, *Weights, *FilteredEBG, error) {
	topo, topoHash, err := ReadTopo(topoPath)
	if err != nil {
		return nil, nil, nil, err
	}
	weights, wHash, err := ReadWeights(weightPath, topo)
	if err != nil {
		return nil, nil, nil, err
	}
	filtered, fHash, err := ReadFilteredEBG(filteredPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if topoHash != wHash || topoHash != fHash {
		return nil, nil, nil, fmt.Errorf("cch: input hash mismatch across mode artifacts (topo=%x weights=%x filtered=%x)",
			topoHash[:4], wHash[:4], fHash[:4])
	}
	return topo, weights, filtered, nil
}

// Zero-copy I/O helpers, following the teacher's pkg/graph/binary.go
// pattern of reinterpreting a slice's backing array as a byte slice via
// unsafe.Slice rather than looping with encoding/binary per element.

func writeUint32Slice(w io.Writer, s []uint32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeInt32Slice(w io.Writer, s []int32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeBoolSlice(w io.Writer, s []bool) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s))
	_, err := w.Write(b)
	return err
}

func readUint32Slice(r io.Reader, n int) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]uint32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readInt32Slice(r io.Reader, n int) ([]int32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]int32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readBoolSlice(r io.Reader, n int) ([]bool, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]bool, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}
