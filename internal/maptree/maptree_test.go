package maptree

import (
	"bytes"
	"testing"

	"github.com/hawc-hal/hal/internal/healpix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sparse(t *testing.T, nside int, pixels []int, values []float64) *SparseMap {
	t.Helper()
	m, err := NewSparseMap(nside, pixels, values)
	require.NoError(t, err)
	return m
}

func TestNewSparseMap_Validation(t *testing.T) {
	tests := []struct {
		name   string
		nside  int
		pixels []int
		values []float64
		want   error
	}{
		{"bad nside", 3, []int{1}, []float64{1}, healpix.ErrInvalidNSide},
		{"length mismatch", 4, []int{1, 2}, []float64{1}, ErrPixelMismatch},
		{"out of range", 1, []int{12}, []float64{1}, ErrPixelMismatch},
		{"negative pixel", 1, []int{-1}, []float64{1}, ErrPixelMismatch},
		{"not ascending", 4, []int{5, 3}, []float64{1, 1}, ErrPixelMismatch},
		{"duplicate", 4, []int{5, 5}, []float64{1, 1}, ErrPixelMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSparseMap(tt.nside, tt.pixels, tt.values)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSparseMap(t *testing.T) {
	m := sparse(t, 1, []int{0, 4, 11}, []float64{1, 2, 3})
	assert.Equal(t, 1, m.NSide())
	assert.Equal(t, 3, m.Len())
	assert.InDelta(t, 6.0, m.Sum(), 0)

	dense := m.AsDense()
	require.Len(t, dense, 12)
	assert.Equal(t, 1.0, dense[0])
	assert.Equal(t, 2.0, dense[4])
	assert.Equal(t, 3.0, dense[11])
	assert.Equal(t, healpix.Unseen, dense[1])

	c := m.Clone()
	require.NoError(t, c.SetNewValues([]float64{7, 8, 9}))
	assert.Equal(t, []float64{1, 2, 3}, m.AsPartial(), "clone owns its values")
	assert.Equal(t, []float64{7, 8, 9}, c.AsPartial())
	assert.ErrorIs(t, c.SetNewValues([]float64{1}), ErrPixelMismatch)
}

func TestNewAnalysisBin(t *testing.T) {
	pix := []int{1, 2, 3}
	obs := sparse(t, 4, pix, []float64{5, 3, 8})
	bkg := sparse(t, 4, pix, []float64{1, 1, 1})

	b, err := NewAnalysisBin("1", 2, obs, bkg)
	require.NoError(t, err)
	assert.Equal(t, 4, b.NSide())
	assert.Same(t, obs, b.Observation())
	assert.Same(t, bkg, b.Background())

	_, err = NewAnalysisBin("1", 2, sparse(t, 4, pix, []float64{5, 0, 8}), bkg)
	assert.ErrorIs(t, err, ErrNonPositiveObservation)

	_, err = NewAnalysisBin("1", 2, obs, sparse(t, 4, []int{1, 2, 4}, []float64{1, 1, 1}))
	assert.ErrorIs(t, err, ErrPixelMismatch)

	_, err = NewAnalysisBin("1", 2, obs, sparse(t, 8, pix, []float64{1, 1, 1}))
	assert.ErrorIs(t, err, ErrPixelMismatch)

	_, err = NewAnalysisBin("1", 2, obs, sparse(t, 4, pix, []float64{1, -1, 1}))
	assert.ErrorIs(t, err, ErrPixelMismatch)

	_, err = NewAnalysisBin("1", 0, obs, bkg)
	assert.Error(t, err)
}

func TestAnalysisBin_ReplaceObservation(t *testing.T) {
	pix := []int{1, 2, 3}
	b, err := NewAnalysisBin("1", 1, sparse(t, 4, pix, []float64{5, 3, 8}), sparse(t, 4, pix, []float64{1, 1, 1}))
	require.NoError(t, err)

	require.NoError(t, b.ReplaceObservation([]float64{0, 2, 0}), "simulated zeros are allowed")
	assert.Equal(t, []float64{0, 2, 0}, b.Observation().AsPartial())
	assert.ErrorIs(t, b.ReplaceObservation([]float64{0, -2, 0}), ErrPixelMismatch)
	assert.ErrorIs(t, b.ReplaceObservation([]float64{1}), ErrPixelMismatch)
}

func TestMapTree(t *testing.T) {
	pix := []int{1, 2, 3}
	mk := func(name string) *AnalysisBin {
		b, err := NewAnalysisBin(name, 1.5, sparse(t, 4, pix, []float64{5, 3, 8}), sparse(t, 4, pix, []float64{1, 1, 2}))
		require.NoError(t, err)
		return b
	}

	_, err := New(nil)
	assert.Error(t, err)
	_, err = New([]*AnalysisBin{mk("a"), mk("a")})
	assert.Error(t, err)

	tree, err := New([]*AnalysisBin{mk("a"), mk("b")})
	require.NoError(t, err)
	assert.Equal(t, 2, tree.Len())
	assert.Equal(t, "b", tree.Bin(1).Name)

	clone := tree.Clone()
	require.NoError(t, clone.Bin(0).ReplaceObservation([]float64{1, 1, 1}))
	assert.Equal(t, []float64{5, 3, 8}, tree.Bin(0).Observation().AsPartial())
	assert.Equal(t, []float64{1, 1, 2}, clone.Bin(0).Background().AsPartial())

	var buf bytes.Buffer
	tree.Display(&buf)
	out := buf.String()
	assert.Contains(t, out, "RING")
	assert.Contains(t, out, "4.000")
	assert.Contains(t, out, "This map tree contains 2 analysis bins")
}
