// Package testutil provides shared test fixtures.
//
// The fixtures describe a small synthetic instrument: a Gaussian PSF that
// narrows with bin index, a crab-like simulated spectrum and a flat
// background, around an ROI at the Crab position.
package testutil

import (
	"fmt"
	"testing"

	"github.com/hawc-hal/hal/internal/maptree"
	"github.com/hawc-hal/hal/internal/response"
	"github.com/hawc-hal/hal/internal/roi"
)

// Crab position and a typical ROI around it, in degrees.
const (
	CrabRA  = 83.633
	CrabDec = 22.0145
)

// SimEnergies are the simulated energy bin centres of the fixture response.
var SimEnergies = response.SyntheticEnergies

// SimSpectrum is the spectrum the fixture response was simulated with, in
// 1/(TeV cm² s).
var SimSpectrum = response.SyntheticSpectrum

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// PSFSigma returns the PSF width of analysis bin i in degrees.
var PSFSigma = response.SyntheticPSFSigma

// GaussianResponse returns a synthetic response named name with one
// declination band per entry of decCenters and nBins analysis bins per
// band.
func GaussianResponse(t testing.TB, name string, decCenters []float64, nBins int) *response.Response {
	t.Helper()
	r, err := response.NewSynthetic(name, decCenters, nBins)
	AssertNoError(t, err)
	return r
}

// CrabROI returns a cone ROI of the given radii around the Crab.
func CrabROI(t testing.TB, dataRadius, modelRadius float64) *roi.ConeROI {
	t.Helper()
	r, err := roi.NewConeROI(CrabRA, CrabDec, dataRadius, modelRadius)
	AssertNoError(t, err)
	return r
}

// UniformMapTree returns nBins analysis bins over the ROI's active pixels at
// nside, each with the same background per pixel and the observation set
// to the background. Transits default to one.
func UniformMapTree(t testing.TB, r *roi.ConeROI, nside, nBins int, background float64) *maptree.MapTree {
	t.Helper()
	pixels, err := r.ActivePixels(nside)
	AssertNoError(t, err)

	bins := make([]*maptree.AnalysisBin, nBins)
	for i := range bins {
		obs := make([]float64, len(pixels))
		bkg := make([]float64, len(pixels))
		for k := range pixels {
			obs[k] = background
			bkg[k] = background
		}
		o, err := maptree.NewSparseMap(nside, pixels, obs)
		AssertNoError(t, err)
		b, err := maptree.NewSparseMap(nside, pixels, bkg)
		AssertNoError(t, err)
		bins[i], err = maptree.NewAnalysisBin(fmt.Sprint(i), 1, o, b)
		AssertNoError(t, err)
	}
	tree, err := maptree.New(bins)
	AssertNoError(t, err)
	return tree
}
