package cch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEdgeWeightsRoundTrip(t *testing.T) {
	weights := []uint32{10, 250, MaxWeight, 0, 99999}
	path := filepath.Join(t.TempDir(), "w.car.u32")

	require.NoError(t, WriteEdgeWeights(path, weights))

	got, err := ReadEdgeWeights(path)
	require.NoError(t, err)
	require.Equal(t, weights, got)
}

func TestEdgeWeightsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.empty.u32")
	require.NoError(t, WriteEdgeWeights(path, nil))

	got, err := ReadEdgeWeights(path)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestEdgeWeightsRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.u32")
	require.NoError(t, WriteEdgeWeights(path, []uint32{1, 2, 3}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	b[0] ^= 0xFF
	require.NoError(t, os.WriteFile(path, b, 0o644))

	_, err = ReadEdgeWeights(path)
	require.Error(t, err)
}
