package convolved

import (
	"testing"

	"github.com/hawc-hal/hal/internal/model"
	"github.com/hawc-hal/hal/internal/psf"
	"github.com/hawc-hal/hal/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testBuilder(t *testing.T) *Builder {
	t.Helper()
	resp := testutil.GaussianResponse(t, "gauss", []float64{0, 20, 26}, 3)
	r := testutil.CrabROI(t, 3, 6)
	proj, err := r.FlatSkyProjection(0.1)
	require.NoError(t, err)
	central, _ := resp.BinsNear(testutil.CrabDec)
	return NewBuilder(proj, resp, central)
}

func crabSpectrum() *model.PowerLaw {
	return &model.PowerLaw{K: 2.5e-13, Index: -2.63, Pivot: 7}
}

func TestEntry_Point(t *testing.T) {
	b := testBuilder(t)
	src := model.NewPointSource("crab", testutil.CrabRA, testutil.CrabDec, crabSpectrum())
	e := b.NewEntry(src)
	assert.Equal(t, model.Point, e.Kind())
	assert.Same(t, src, e.Source())

	bins, _ := b.resp.BinsNear(src.Dec)
	for i := 0; i < b.NBins(); i++ {
		m := e.SourceMap(i)
		// the simulated spectrum, and the PSF fits in the grid
		assert.InEpsilon(t, bins[i].SimSignalEvents, mat.Sum(m), 0.01, "bin %d", i)
		assert.Same(t, m, e.SourceMap(i), "cached")
	}

	img := e.images[0]
	src.Spectrum.(*model.PowerLaw).K *= 2
	m := e.SourceMap(0)
	assert.InEpsilon(t, 2*bins[0].SimSignalEvents, mat.Sum(m), 0.01)
	assert.Same(t, img, e.images[0], "psf image reused when only the spectrum changes")

	src.RA += 0.5
	e.SourceMap(0)
	assert.NotSame(t, img, e.images[0], "psf image rebuilt when the position changes")
}

func TestEntry_PointUsesOwnDeclination(t *testing.T) {
	b := testBuilder(t)
	near := b.NewEntry(model.NewPointSource("near", testutil.CrabRA, testutil.CrabDec, crabSpectrum()))
	// on the grid, but in the next declination band
	far := b.NewEntry(model.NewPointSource("far", testutil.CrabRA, 25, crabSpectrum()))

	nearBins, _ := b.resp.BinsNear(testutil.CrabDec)
	farBins, idx := b.resp.BinsNear(25)
	require.Equal(t, 2, idx)
	require.Less(t, farBins[1].SimSignalEvents, nearBins[1].SimSignalEvents)

	farImg := psf.PointSourceImage(farBins[1].PSF, b.proj, testutil.CrabRA, 25)
	assert.InEpsilon(t, farBins[1].SimSignalEvents, mat.Sum(far.SourceMap(1))/mat.Sum(farImg), 1e-12)
	nearImg := psf.PointSourceImage(nearBins[1].PSF, b.proj, testutil.CrabRA, testutil.CrabDec)
	assert.InEpsilon(t, nearBins[1].SimSignalEvents, mat.Sum(near.SourceMap(1))/mat.Sum(nearImg), 1e-12)
}

func TestEntry_Extended2D(t *testing.T) {
	b := testBuilder(t)
	shape := &model.Gaussian{RA: testutil.CrabRA, Dec: testutil.CrabDec, Sigma: 0.5}
	e := b.NewEntry(model.NewExtendedSource2D("halo", shape, crabSpectrum()))
	assert.Equal(t, model.Extended2D, e.Kind())

	for i := 0; i < b.NBins(); i++ {
		assert.InEpsilon(t, b.central[i].SimSignalEvents, mat.Sum(e.SourceMap(i)), 0.01, "bin %d", i)
	}
	assert.Same(t, e.images[0], e.images[1], "one morphology for all bins")

	// 3 maps plus one shared image
	assert.Equal(t, 4*8*b.proj.NPix(), e.Size())

	narrow := e.SourceMap(0)
	shape.Sigma = 0.8
	wide := e.SourceMap(0)
	assert.NotSame(t, narrow, wide)
	assert.InEpsilon(t, b.central[0].SimSignalEvents, mat.Sum(wide), 0.01)
	r, c := wide.Dims()
	assert.Less(t, wide.At(r/2, c/2), narrow.At(r/2, c/2))
}

func TestEntry_Extended3DMatchesSeparable2D(t *testing.T) {
	b := testBuilder(t)
	pl := crabSpectrum()
	e2 := b.NewEntry(model.NewExtendedSource2D("a",
		&model.Gaussian{RA: testutil.CrabRA, Dec: testutil.CrabDec, Sigma: 0.4}, pl))
	e3 := b.NewEntry(model.NewExtendedSource3D("b", &model.SeparableTemplate{
		RA: testutil.CrabRA, Dec: testutil.CrabDec, Sigma: 0.4, WidthIndex: 0, Pivot: 1, Spectrum: pl,
	}))
	assert.Equal(t, model.Extended3D, e3.Kind())

	for i := 0; i < b.NBins(); i++ {
		assert.True(t, mat.EqualApprox(e2.SourceMap(i), e3.SourceMap(i), 1e-9), "bin %d", i)
	}
}

func TestContainer(t *testing.T) {
	b := testBuilder(t)
	var c Container
	assert.Zero(t, c.Len())
	assert.Zero(t, c.Size())

	p := b.NewEntry(model.NewPointSource("crab", testutil.CrabRA, testutil.CrabDec, crabSpectrum()))
	q := b.NewEntry(model.NewPointSource("other", testutil.CrabRA+1, testutil.CrabDec, crabSpectrum()))
	c.Append(p)
	c.Append(q)
	require.Equal(t, 2, c.Len())
	assert.Same(t, q, c.At(1))

	p.SourceMap(0)
	assert.Equal(t, 2*8*b.proj.NPix(), c.Size(), "map and psf image of one bin")

	c.Reset()
	assert.Zero(t, c.Len())
}
