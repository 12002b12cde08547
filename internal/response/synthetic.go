package response

import (
	"fmt"
	"math"
)

// SyntheticEnergies are the simulated energy bin centres of synthetic
// responses, in TeV.
var SyntheticEnergies = []float64{0.3, 0.6, 1.2, 2.5, 5, 10, 20, 40, 80}

// SyntheticSpectrum is the spectrum synthetic responses were simulated
// with, in 1/(TeV cm² s).
func SyntheticSpectrum(energy float64) float64 {
	return 2.5e-13 * math.Pow(energy/7, -2.63)
}

// SyntheticPSFSigma returns the PSF width of analysis bin i in degrees.
func SyntheticPSFSigma(i int) float64 {
	return 0.9 / (1 + 0.5*float64(i))
}

// NewSynthetic returns a response with a Gaussian PSF that narrows with bin
// index, one ±5° declination band per entry of decCenters and nBins
// analysis bins per band. Bin i responds mostly to energies around
// 0.5·2^i TeV; sensitivity falls off away from declination 19°.
func NewSynthetic(name string, decCenters []float64, nBins int) (*Response, error) {
	decBins := make([]DecBin, len(decCenters))
	bins := make([][]*Bin, len(decCenters))
	for d, dec := range decCenters {
		decBins[d] = DecBin{Min: dec - 5, Center: dec, Max: dec + 5}
		zenith := math.Cos((dec - 19) * math.Pi / 180)
		for i := 0; i < nBins; i++ {
			p, err := NewGaussianPSF(SyntheticPSFSigma(i))
			if err != nil {
				return nil, err
			}

			peak := math.Log10(0.5 * math.Pow(2, float64(i)))
			fluxes := make([]float64, len(SyntheticEnergies))
			events := make([]float64, len(SyntheticEnergies))
			total := 0.0
			for k, e := range SyntheticEnergies {
				fluxes[k] = SyntheticSpectrum(e)
				z := (math.Log10(e) - peak) / 0.3
				events[k] = 40 * zenith * math.Exp(-0.5*z*z)
				total += events[k]
			}
			bins[d] = append(bins[d], &Bin{
				Name:                  fmt.Sprint(i),
				DecMin:                dec - 5,
				DecCenter:             dec,
				DecMax:                dec + 5,
				PSF:                   p,
				SimEnergyCenters:      append([]float64(nil), SyntheticEnergies...),
				SimDifferentialFluxes: fluxes,
				SimSignalEventsPerBin: events,
				SimSignalEvents:       total,
				SimBackgroundEvents:   1e4,
			})
		}
	}
	return New(name, decBins, bins)
}
