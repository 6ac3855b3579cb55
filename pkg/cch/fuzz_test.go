package cch

import (
	"os"
	"path/filepath"
	"testing"

	fuzz "github.com/trailofbits/go-fuzz-utils"
)

// FuzzReadTopo feeds arbitrary byte streams to the topo loader. Per
// spec.md §7, a malformed artifact must surface as a LoadFailure-shaped
// error — never a panic, never a hang, regardless of how the header or
// CSR arrays are corrupted.
func FuzzReadTopo(f *testing.F) {
	topo, _ := tinyTopology()
	seed := filepath.Join(f.TempDir(), "seed.topo")
	if err := WriteTopo(seed, topo, sampleHash(0x11)); err != nil {
		f.Fatal(err)
	}
	seedBytes, err := os.ReadFile(seed)
	if err != nil {
		f.Fatal(err)
	}
	f.Add(seedBytes)
	f.Add([]byte("short"))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		tp, err := fuzz.NewTypeProvider(data)
		if err != nil {
			t.Skip(err)
		}
		// Overwrite one byte at a random position of the input so most
		// runs still resemble a real artifact closely enough to exercise
		// the header, length and payload-hash checks, not just "header too
		// short".
		n, err := tp.GetInt()
		if err != nil {
			t.Skip(err)
		}
		mutated := append([]byte(nil), data...)
		if len(mutated) > 0 {
			i := (n%len(mutated) + len(mutated)) % len(mutated)
			b, err := tp.GetByte()
			if err != nil {
				t.Skip(err)
			}
			mutated[i] = b
		}

		path := filepath.Join(t.TempDir(), "fuzz.topo")
		if err := os.WriteFile(path, mutated, 0o644); err != nil {
			t.Skip(err)
		}

		// Must never panic; an error return is the only acceptable failure
		// mode for malformed bytes.
		_, _, _ = ReadTopo(path)
	})
}

// FuzzReadWeights does the same for the weight-array loader, validated
// against a known-good topo so edge-count-mismatch paths are reachable.
func FuzzReadWeights(f *testing.F) {
	topo, w := tinyTopology()
	seed := filepath.Join(f.TempDir(), "seed.w")
	if err := WriteWeights(seed, w, sampleHash(0x22)); err != nil {
		f.Fatal(err)
	}
	seedBytes, err := os.ReadFile(seed)
	if err != nil {
		f.Fatal(err)
	}
	f.Add(seedBytes)

	f.Fuzz(func(t *testing.T, data []byte) {
		tp, err := fuzz.NewTypeProvider(data)
		if err != nil {
			t.Skip(err)
		}
		n, err := tp.GetInt()
		if err != nil {
			t.Skip(err)
		}
		mutated := append([]byte(nil), data...)
		if len(mutated) > 0 {
			i := (n%len(mutated) + len(mutated)) % len(mutated)
			b, err := tp.GetByte()
			if err != nil {
				t.Skip(err)
			}
			mutated[i] = b
		}

		path := filepath.Join(t.TempDir(), "fuzz.w")
		if err := os.WriteFile(path, mutated, 0o644); err != nil {
			t.Skip(err)
		}

		_, _, _ = ReadWeights(path, topo)
	})
}
