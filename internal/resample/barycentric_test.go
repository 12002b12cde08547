package resample

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func affineGrid(width, height int, f func(x, y float64) float64) []float64 {
	data := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			data[y*width+x] = f(float64(x), float64(y))
		}
	}
	return data
}

func TestTriangulate(t *testing.T) {
	tris, err := Triangulate(3, 2)
	require.NoError(t, err)
	want := []Triangle{
		{0, 1, 3}, {4, 3, 1},
		{1, 2, 4}, {5, 4, 2},
	}
	assert.Equal(t, want, tris)
}

func TestPrepare_DegenerateGrid(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
	}{
		{"empty", 0, 0},
		{"single point", 1, 1},
		{"collinear row", 10, 1},
		{"collinear column", 1, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Prepare(tt.width, tt.height, []r2.Vec{{X: 0, Y: 0}})
			assert.ErrorIs(t, err, ErrDegenerateGrid)
		})
	}
}

func TestPrepare_InvalidTarget(t *testing.T) {
	_, err := Prepare(4, 4, []r2.Vec{{X: 1, Y: 1}, {X: math.NaN(), Y: 0}})
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = Prepare(4, 4, []r2.Vec{{X: math.Inf(1), Y: 0}})
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestWeights_PartitionOfUnity(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	targets := make([]r2.Vec, 500)
	for i := range targets {
		// include points outside the hull
		targets[i] = r2.Vec{X: rng.Float64()*14 - 2, Y: rng.Float64()*10 - 2}
	}
	w, err := Prepare(10, 7, targets)
	require.NoError(t, err)
	require.Equal(t, len(targets), w.Len())

	for i := 0; i < w.Len(); i++ {
		_, wt := w.At(i)
		assert.InDelta(t, 1.0, wt[0]+wt[1]+wt[2], 1e-12, "target %d", i)
	}
}

func TestWeights_AffineExactness(t *testing.T) {
	width, height := 12, 9
	f := func(x, y float64) float64 { return 2.5*x - 3*y + 7 }
	data := affineGrid(width, height, f)

	rng := rand.New(rand.NewPCG(7, 11))
	targets := make([]r2.Vec, 200)
	want := make([]float64, len(targets))
	for i := range targets {
		x := rng.Float64() * float64(width-1)
		y := rng.Float64() * float64(height-1)
		targets[i] = r2.Vec{X: x, Y: y}
		want[i] = f(x, y)
	}

	w, err := Prepare(width, height, targets)
	require.NoError(t, err)
	got, err := w.Apply(data)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("affine field not reproduced (-want +got):\n%s", diff)
	}
}

func TestWeights_GridNodesAreExact(t *testing.T) {
	width, height := 5, 4
	data := make([]float64, width*height)
	for i := range data {
		data[i] = float64(i*i) - 3
	}
	var targets []r2.Vec
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			targets = append(targets, r2.Vec{X: float64(x), Y: float64(y)})
		}
	}
	w, err := Prepare(width, height, targets)
	require.NoError(t, err)
	got, err := w.Apply(data)
	require.NoError(t, err)
	assert.InDeltaSlice(t, data, got, 1e-12)
}

func TestWeights_ReusedAcrossData(t *testing.T) {
	targets := []r2.Vec{{X: 0.5, Y: 0.5}, {X: 2.25, Y: 1.75}}
	w, err := Prepare(4, 3, targets)
	require.NoError(t, err)

	for k := 1; k <= 3; k++ {
		scale := float64(k)
		data := affineGrid(4, 3, func(x, y float64) float64 { return scale * (x + y) })
		got, err := w.Apply(data)
		require.NoError(t, err)
		assert.InDelta(t, scale*1.0, got[0], 1e-12)
		assert.InDelta(t, scale*4.0, got[1], 1e-12)
	}
}

func TestWeights_ExtrapolatesOutsideHull(t *testing.T) {
	f := func(x, y float64) float64 { return x + 2*y }
	w, err := Prepare(3, 3, []r2.Vec{{X: -1, Y: 0}, {X: 3, Y: 3}})
	require.NoError(t, err)
	got, err := w.Apply(affineGrid(3, 3, f))
	require.NoError(t, err)
	assert.InDelta(t, -1.0, got[0], 1e-12)
	assert.InDelta(t, 9.0, got[1], 1e-12)
}

func TestWeights_DataLength(t *testing.T) {
	w, err := Prepare(3, 3, []r2.Vec{{X: 1, Y: 1}})
	require.NoError(t, err)

	_, err = w.Apply(make([]float64, 8))
	assert.ErrorIs(t, err, ErrDataLength)

	err = w.ApplyInto(make([]float64, 2), make([]float64, 9))
	assert.ErrorIs(t, err, ErrDataLength)
}
