package display

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hawc-hal/hal/internal/hal"
	"github.com/hawc-hal/hal/internal/healpix"
	"github.com/hawc-hal/hal/internal/maptree"
	"github.com/hawc-hal/hal/internal/model"
	"github.com/hawc-hal/hal/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crabAnalysis(t *testing.T) *hal.Analysis {
	t.Helper()
	resp := testutil.GaussianResponse(t, "gauss", []float64{0, 20, 26}, 2)
	r := testutil.CrabROI(t, 2, 4)
	tree := testutil.UniformMapTree(t, r, 64, 2, 10)
	a, err := hal.New("crab", tree, resp, r, hal.Options{})
	require.NoError(t, err)
	m, err := model.NewModel(model.NewPointSource("crab", testutil.CrabRA, testutil.CrabDec,
		&model.PowerLaw{K: 2.5e-13, Index: -2.63, Pivot: 7}))
	require.NoError(t, err)
	require.NoError(t, a.SetModel(m))
	return a
}

func TestWriteSpectrumPlot(t *testing.T) {
	a := crabAnalysis(t)
	points, err := a.SpectrumSummary()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "spectrum.png")
	require.NoError(t, WriteSpectrumPlot(points, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data[:4])

	assert.ErrorIs(t, WriteSpectrumPlot(nil, path), ErrNoPoints)
}

func TestRenderFitCharts(t *testing.T) {
	a := crabAnalysis(t)
	var buf bytes.Buffer
	require.NoError(t, RenderFitCharts(a, &buf))
	out := buf.String()
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "Bin 0 model")
	assert.Contains(t, out, "Bin 1 residual")
	assert.Contains(t, out, "Stacked excess, bins 0-1")
	assert.NotContains(t, out, "NaN")
}

func TestRenderFitCharts_ZeroBackground(t *testing.T) {
	resp := testutil.GaussianResponse(t, "gauss", []float64{0, 20, 26}, 2)
	r := testutil.CrabROI(t, 2, 4)
	tree := testutil.UniformMapTree(t, r, 64, 2, 10)
	for _, b := range tree.Bins() {
		require.NoError(t, b.Background().SetNewValues(make([]float64, b.Background().Len())))
	}
	a, err := hal.New("empty", tree, resp, r, hal.Options{})
	require.NoError(t, err)
	empty, err := model.NewModel()
	require.NoError(t, err)
	require.NoError(t, a.SetModel(empty))

	var buf bytes.Buffer
	require.NoError(t, RenderFitCharts(a, &buf))
	assert.NotContains(t, buf.String(), "NaN")
}

func TestSignificance(t *testing.T) {
	assert.Zero(t, significance(3, 0))
	assert.InDelta(t, 2.0, significance(12, 4), 1e-12)
}

func TestStackedExcess(t *testing.T) {
	a := crabAnalysis(t)
	for _, b := range a.MapTree().Bins() {
		obs := make([]float64, b.Observation().Len())
		for k := range obs {
			obs[k] = 15
		}
		require.NoError(t, b.ReplaceObservation(obs))
	}

	grid, err := stackedExcess(a)
	require.NoError(t, err)
	proj := a.Projection()
	rows, cols := grid.Dims()
	require.Equal(t, proj.Height, rows)
	require.Equal(t, proj.Width, cols)
	// 5 excess counts in each of the two bins
	assert.InDelta(t, 10.0, grid.At(proj.Height/2, proj.Width/2), 1e-12)
	// corners are outside the data radius
	assert.Zero(t, grid.At(0, 0))
}

func TestWriteSpectrumTable(t *testing.T) {
	a := crabAnalysis(t)
	points, err := a.SpectrumSummary()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSpectrumTable(&buf, points))
	out := buf.String()
	assert.Contains(t, out, "Residual")
	assert.Equal(t, len(points)+1, strings.Count(out, "\n"))
}

func TestStackedMap(t *testing.T) {
	const nside = 8
	mk := func(name string, pixels []int, obs, bkg []float64) *maptree.AnalysisBin {
		o, err := maptree.NewSparseMap(nside, pixels, obs)
		require.NoError(t, err)
		b, err := maptree.NewSparseMap(nside, pixels, bkg)
		require.NoError(t, err)
		bin, err := maptree.NewAnalysisBin(name, 1, o, b)
		require.NoError(t, err)
		return bin
	}

	a := mk("a", []int{1, 2}, []float64{5, 3}, []float64{1, 1})
	b := mk("b", []int{2, 7}, []float64{4, 2}, []float64{2, 2})
	got, err := StackedMap([]*maptree.AnalysisBin{a, b})
	require.NoError(t, err)
	require.Len(t, got, healpix.NPix(nside))
	assert.Equal(t, 4.0, got[1])
	assert.Equal(t, 4.0, got[2])
	assert.Equal(t, 0.0, got[7])
	assert.Equal(t, healpix.Unseen, got[0])

	_, err = StackedMap(nil)
	assert.ErrorIs(t, err, ErrNoPoints)

	o, err := maptree.NewSparseMap(16, []int{0}, []float64{1})
	require.NoError(t, err)
	other, err := maptree.NewAnalysisBin("c", 1, o, o.Clone())
	require.NoError(t, err)
	_, err = StackedMap([]*maptree.AnalysisBin{a, other})
	assert.ErrorIs(t, err, maptree.ErrPixelMismatch)
}
